package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		opts    SecurityOptions
		prepare func(*http.Request)
		want    map[string]string
	}{
		{
			name: "baseline",
			opts: SecurityOptions{},
			want: map[string]string{
				"X-Content-Type-Options":        "nosniff",
				"X-Frame-Options":               "DENY",
				"Referrer-Policy":               "no-referrer",
				"Access-Control-Expose-Headers": "X-Request-ID",
				"Cache-Control":                 "",
				"Permissions-Policy":            "",
				"Strict-Transport-Security":     "",
			},
		},
		{
			name: "no-store and policy",
			opts: SecurityOptions{NoStore: true, EnablePolicy: true},
			want: map[string]string{
				"Cache-Control":                     "no-store",
				"Pragma":                            "no-cache",
				"X-Permitted-Cross-Domain-Policies": "none",
			},
		},
		{
			name: "hsts over plain http is skipped",
			opts: SecurityOptions{EnableHSTS: true},
			want: map[string]string{"Strict-Transport-Security": ""},
		},
		{
			name:    "hsts behind a TLS proxy uses the default max-age",
			opts:    SecurityOptions{EnableHSTS: true},
			prepare: func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") },
			want:    map[string]string{"Strict-Transport-Security": "max-age=15552000; includeSubDomains; preload"},
		},
		{
			name:    "hsts on direct TLS",
			opts:    SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour},
			prepare: func(r *http.Request) { r.TLS = &tls.ConnectionState{} },
			want:    map[string]string{"Strict-Transport-Security": "max-age=3600; includeSubDomains; preload"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(SecurityHeaders(tc.opts))
			r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			if tc.prepare != nil {
				tc.prepare(req)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			for k, v := range tc.want {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s = %q, want %q", k, got, v)
				}
			}
		})
	}
}

func TestExposeHeader_AppendsOnce(t *testing.T) {
	h := http.Header{}
	exposeHeader(h, "X-Request-ID")
	exposeHeader(h, "x-request-id")
	exposeHeader(h, "ETag")
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID, ETag" {
		t.Fatalf("expose = %q", got)
	}
}
