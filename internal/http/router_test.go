package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/card-terminal-gateway/internal/config"
	"github.com/tbourn/card-terminal-gateway/internal/domain"
	_ "github.com/tbourn/card-terminal-gateway/internal/drivers/all"
	"github.com/tbourn/card-terminal-gateway/internal/http/middleware"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
	"github.com/tbourn/card-terminal-gateway/internal/services"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if _, err := (&services.AdminService{DB: db}).SeedCatalog(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:     "/api/v1",
		RateRPS:         100,
		RateBurst:       50,
		DefaultCurrency: "SAR",
		DriverTimeout:   5 * time.Second,
		IdempotencyTTL:  time.Hour,
		Callback:        config.CallbackConfig{RequireSignature: true},
		OTEL:            config.OTELConfig{ServiceName: "test-svc"},
	}
}

// recordingPublisher collects ledger events.
type recordingPublisher struct {
	mu  sync.Mutex
	ids []string
}

func (p *recordingPublisher) TransactionLogged(_ context.Context, tx *domain.CardTransaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, tx.ID)
	return nil
}

func serve(r *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testConfig(), nil)

	w := serve(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	w = serve(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	if w := serve(r, http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Fatalf("GET /nope = %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodPost, "/health", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// Swagger is off unless enabled.
	if w := serve(r, http.MethodGet, "/swagger/index.html", ""); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://pos.example.com"}}
	RegisterRoutes(r, newTestDB(t), cfg, nil)

	w := serve(r, http.MethodGet, "/health", "", "Origin", "https://pos.example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://pos.example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	// Preflight for a signed callback.
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/callbacks/abc", nil)
	req.Header.Set("Origin", "https://pos.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", services.SignatureHeader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if allow := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(strings.ToLower(allow), strings.ToLower(services.SignatureHeader)) {
		t.Fatalf("signature header not allowed: %q", allow)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}

func TestSwaggerRoute_WhenEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	RegisterRoutes(r, newTestDB(t), cfg, nil)

	if w := serve(r, http.MethodGet, "/swagger/index.html", ""); w.Code != http.StatusOK {
		t.Fatalf("swagger ui = %d", w.Code)
	}
}

// End-to-end: a simulator capture through the full middleware stack lands
// one ledger row, publishes one event, and replays by Idempotency-Key.
func TestPipeline_CaptureReplayAndEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	pub := &recordingPublisher{}
	RegisterRoutes(r, db, testConfig(), pub)

	if w := serve(r, http.MethodPut, "/api/v1/settings/Counter", `{"driver_code":"simulator","terminal_id":"T-9"}`); w.Code != http.StatusOK {
		t.Fatalf("settings: %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodPut, "/api/v1/modes-of-payment/Mada", `{"settings_name":"Counter","capture_terminal_data":true}`); w.Code != http.StatusNoContent {
		t.Fatalf("mop: %d %s", w.Code, w.Body.String())
	}

	body := `{"mode_of_payment":"Mada","amount":"42.00","reference_doctype":"Sales Invoice","reference_name":"SINV-7"}`
	w := serve(r, http.MethodPost, "/api/v1/captures", body, middleware.HeaderIdempotencyKey, "till-1:0001", middleware.HeaderActor, "cashier-1")
	if w.Code != http.StatusOK {
		t.Fatalf("capture: %d %s", w.Code, w.Body.String())
	}
	var first map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["status"] != string(domain.StatusApproved) || first["transaction_id"] == "" {
		t.Fatalf("capture = %v", first)
	}

	w = serve(r, http.MethodPost, "/api/v1/captures", body, middleware.HeaderIdempotencyKey, "till-1:0001", middleware.HeaderActor, "cashier-1")
	var again map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &again)
	if w.Code != http.StatusOK || again["transaction_id"] != first["transaction_id"] {
		t.Fatalf("replay: %d %v", w.Code, again)
	}

	if n, _ := repo.CountTransactions(context.Background(), db, repo.TransactionFilter{}); n != 1 {
		t.Fatalf("expected one ledger row, got %d", n)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.ids) != 1 || pub.ids[0] != first["transaction_id"] {
		t.Fatalf("events = %v", pub.ids)
	}
}

func TestPipeline_MalformedIdempotencyKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testConfig(), nil)

	for _, path := range []string{"/api/v1/captures", "/api/v1/sessions"} {
		w := serve(r, http.MethodPost, path, `{}`, middleware.HeaderIdempotencyKey, "bad key!")
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_idempotency_key") {
			t.Fatalf("%s: expected 400 bad_idempotency_key, got %d %s", path, w.Code, w.Body.String())
		}
	}

	// Callbacks take no key; a stray header is ignored.
	w := serve(r, http.MethodPost, "/api/v1/callbacks/unknown-token", `{"status":"Approved"}`, middleware.HeaderIdempotencyKey, "bad key!")
	if w.Code == http.StatusBadRequest || strings.Contains(w.Body.String(), "bad_idempotency_key") {
		t.Fatalf("callback should not validate Idempotency-Key, got %d %s", w.Code, w.Body.String())
	}
}

func TestPipeline_IdempotencyLookupErrorIsNotReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, testConfig(), nil)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// The lookup fails, the request still reaches the handler, which fails
	// on the closed store.
	w := serve(r, http.MethodPost, "/api/v1/captures", `{"mode_of_payment":"Mada","amount":"1"}`, middleware.HeaderIdempotencyKey, "force-error")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d %s", w.Code, w.Body.String())
	}
}

func TestPipeline_RateLimitedByActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := testConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	RegisterRoutes(r, newTestDB(t), cfg, nil)

	if w := serve(r, http.MethodGet, "/api/v1/drivers", "", middleware.HeaderActor, "a"); w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/api/v1/drivers", "", middleware.HeaderActor, "a")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second: %d", w.Code)
	}
	// Another actor has its own bucket.
	if w := serve(r, http.MethodGet, "/api/v1/drivers", "", middleware.HeaderActor, "b"); w.Code != http.StatusOK {
		t.Fatalf("other actor: %d", w.Code)
	}
}
