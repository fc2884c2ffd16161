package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if got := Actor(c); got != SystemActor {
		t.Fatalf("fallback = %q", got)
	}
	c.Request.Header.Set(HeaderActor, "  cashier-1 ")
	if got := Actor(c); got != "cashier-1" {
		t.Fatalf("header actor = %q", got)
	}
	c.Set("userID", "sso-user")
	if got := Actor(c); got != "sso-user" {
		t.Fatalf("context actor should win, got %q", got)
	}
	c.Set("userID", 42)
	if got := Actor(c); got != "cashier-1" {
		t.Fatalf("non-string context value should be ignored, got %q", got)
	}
}

func TestIdempotencyValidator_NoHeaderSkipsLookup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	called := false
	r.Use(IdempotencyValidator(IdempotencyOptions{Scope: "captures"}, func(context.Context, string, string, string, time.Time) (bool, error) {
		called = true
		return false, nil
	}))
	r.POST("/captures", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Errorf("no key expected")
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/captures", nil))
	if w.Code != http.StatusNoContent || called {
		t.Fatalf("code=%d lookupCalled=%v", w.Code, called)
	}
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		opts IdempotencyOptions
		key  string
	}{
		{"too long", IdempotencyOptions{MaxLen: 5}, "abcdef"},
		{"default pattern", IdempotencyOptions{}, "has space/slash"},
		{"custom pattern", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc"},
		{"default max length", IdempotencyOptions{}, strings.Repeat("k", 201)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.Use(IdempotencyValidator(tc.opts, nil))
			r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/x", nil)
			req.Header.Set(HeaderIdempotencyKey, tc.key)
			r.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["code"] != "bad_idempotency_key" {
				t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
			}
		})
	}
}

func TestIdempotencyValidator_ReplayBypassesRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var gotActor, gotScope, gotKey string
	lookup := func(_ context.Context, actor, scope, key string, now time.Time) (bool, error) {
		gotActor, gotScope, gotKey = actor, scope, key
		if now.Location() != time.UTC {
			t.Errorf("lookup time should be UTC")
		}
		return key == "seen", nil
	}
	rl := NewRateLimiter(0, 1, KeyByRequester())
	r.Use(IdempotencyValidator(IdempotencyOptions{Scope: "captures"}, lookup), rl.Handler())
	r.POST("/captures", func(c *gin.Context) {
		key, _ := GetIdempotencyKey(c)
		c.JSON(http.StatusOK, gin.H{"key": key, "replay": IsReplay(c)})
	})

	do := func(key string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/captures", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		req.Header.Set(HeaderActor, "cashier-1")
		r.ServeHTTP(w, req)
		return w
	}

	if w := do("fresh"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"replay":false`) {
		t.Fatalf("first request: %d %s", w.Code, w.Body.String())
	}
	if gotActor != "cashier-1" || gotScope != "captures" || gotKey != "fresh" {
		t.Fatalf("lookup args: %q %q %q", gotActor, gotScope, gotKey)
	}
	// The bucket (burst 1, no refill) is now empty.
	if w := do("other"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	w := do("seen")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"replay":true`) {
		t.Fatalf("replay should bypass limiting: %d %s", w.Code, w.Body.String())
	}
}

func TestIdempotencyValidator_RoutesLimitScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	lookups := 0
	r.Use(IdempotencyValidator(
		IdempotencyOptions{Scope: "captures", Routes: []string{"/api/captures"}},
		func(context.Context, string, string, string, time.Time) (bool, error) {
			lookups++
			return true, nil
		},
	))
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"replay": IsReplay(c), "bypass": IsRateBypass(c)})
	}
	r.POST("/api/captures", handler)
	r.POST("/api/callbacks/:token", handler)

	do := func(path, key string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(w, req)
		return w
	}

	if w := do("/api/callbacks/tok-1", "has space"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"bypass":false`) {
		t.Fatalf("other routes must ignore the header: %d %s", w.Code, w.Body.String())
	}
	if lookups != 0 {
		t.Fatalf("lookup ran for an unscoped route")
	}
	if w := do("/api/captures", "has space"); w.Code != http.StatusBadRequest {
		t.Fatalf("scoped route should validate, got %d", w.Code)
	}
	if w := do("/api/captures", "k-1"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"replay":true`) || lookups != 1 {
		t.Fatalf("scoped route replay: %d %s lookups=%d", w.Code, w.Body.String(), lookups)
	}
}

func TestIdempotencyValidator_LookupErrorIsNotAReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, func(context.Context, string, string, string, time.Time) (bool, error) {
		return true, context.DeadlineExceeded
	}))
	r.POST("/x", func(c *gin.Context) {
		if IsReplay(c) || IsRateBypass(c) {
			t.Errorf("lookup errors must not mark a replay")
		}
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
}
