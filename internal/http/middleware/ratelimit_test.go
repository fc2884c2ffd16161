package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByRequester(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var got string
	key := KeyByRequester()
	capture := func(c *gin.Context) { got = key(c); c.Status(http.StatusOK) }
	r.POST("/callbacks/:token", capture)
	r.GET("/sessions/:token", capture)
	r.POST("/captures", capture)

	tests := []struct {
		method, path, actor, want string
	}{
		{http.MethodPost, "/callbacks/tok-1", "agent", "session:tok-1"},
		{http.MethodGet, "/sessions/tok-1", "", "ip:203.0.113.9"},
		{http.MethodPost, "/captures", "cashier-1", "actor:cashier-1"},
		{http.MethodPost, "/captures", "", "ip:203.0.113.9"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
		if tc.actor != "" {
			req.Header.Set(HeaderActor, tc.actor)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
		if got != tc.want {
			t.Errorf("%s %s: key = %q, want %q", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestRateLimiter_LimiterReuseAndSweep(t *testing.T) {
	rl := NewRateLimiter(2, 0, KeyByRequester())
	if rl.burst != 1 {
		t.Fatalf("burst should be raised to 1, got %d", rl.burst)
	}
	lim := rl.limiter("k1")
	if rl.limiter("k1") != lim {
		t.Fatalf("limiter should be reused per key")
	}

	rl.ttl = 0
	rl.visitors["stale"] = &visitor{limiter: lim, lastSeen: time.Now().Add(-time.Hour)}
	rl.sweepN = sweepEvery - 1
	rl.limiter("k2")
	if _, ok := rl.visitors["stale"]; ok {
		t.Fatalf("idle entry should be swept")
	}
	if rl.sweepN != 0 {
		t.Fatalf("sweep counter should reset, got %d", rl.sweepN)
	}
}

func TestRateLimiter_Handler429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), NewRateLimiter(0, 1, KeyByRequester()).Handler())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "198.51.100.7:1"
		r.ServeHTTP(w, req)
		return w
	}
	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	w := do()
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second request: %d retry=%q", w.Code, w.Header().Get("Retry-After"))
	}
	if body := w.Body.String(); !strings.Contains(body, `"code":"too_many_requests"`) || !strings.Contains(body, w.Header().Get("X-Request-ID")) {
		t.Fatalf("429 body: %s", body)
	}
}
