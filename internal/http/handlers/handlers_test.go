package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "github.com/tbourn/card-terminal-gateway/internal/drivers/all"
	"github.com/tbourn/card-terminal-gateway/internal/http/middleware"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
	"github.com/tbourn/card-terminal-gateway/internal/services"
)

// ---------- test DB + router ----------

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := (&services.AdminService{DB: db}).SeedCatalog(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

type testAPI struct {
	t  *testing.T
	r  *gin.Engine
	db *gorm.DB
}

// newTestAPI mounts every endpoint on real services, the way the router
// does, minus the cross-cutting middleware.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	ledger := &services.LedgerService{DB: db, DefaultCurrency: "SAR"}
	capture := &services.CaptureService{DB: db, Ledger: ledger, DefaultCurrency: "SAR"}
	h := New(
		capture,
		&services.CallbackService{DB: db, Ledger: ledger, RequireSignature: true},
		ledger,
		&services.ApprovalService{DB: db},
		&services.AdminService{DB: db},
	)

	r := gin.New()
	r.Use(middleware.RequestID())
	idem := middleware.IdempotencyValidator(middleware.IdempotencyOptions{Scope: "captures"}, nil)
	r.POST("/captures", idem, h.StartCapture)
	r.POST("/sessions", idem, h.CreateSession)
	r.GET("/sessions/:token", h.GetSession)
	r.POST("/callbacks/:token", h.Callback)
	r.POST("/transactions", h.LogTransaction)
	r.GET("/transactions", h.ListTransactions)
	r.POST("/invoices/:name/approval-check", h.ApprovalCheck)
	r.GET("/drivers", h.ListDrivers)
	r.PUT("/drivers/:code", h.UpsertDriver)
	r.PUT("/settings/:name", h.PutSettings)
	r.GET("/settings/:name", h.GetSettings)
	r.POST("/settings/:name/test", h.TestConnection)
	r.GET("/settings/:name/client-config", h.ClientConfig)
	r.PUT("/modes-of-payment/:name", h.PutModeOfPayment)
	return &testAPI{t: t, r: r, db: db}
}

func (a *testAPI) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case []byte:
		rdr = bytes.NewReader(b)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			a.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

// route wires mop to a settings record bound to driverCode, through the API.
func (a *testAPI) route(mop, driverCode string, settings map[string]any) {
	a.t.Helper()
	body := map[string]any{"driver_code": driverCode, "terminal_id": "T-1", "merchant_id": "M-1"}
	for k, v := range settings {
		body[k] = v
	}
	name := mop + " Terminal"
	if w := a.do(http.MethodPut, "/settings/"+url.PathEscape(name), body); w.Code != http.StatusOK {
		a.t.Fatalf("PUT settings: %d %s", w.Code, w.Body.String())
	}
	routing := map[string]any{"settings_name": name, "capture_terminal_data": true, "require_terminal_approval": true}
	if w := a.do(http.MethodPut, "/modes-of-payment/"+url.PathEscape(mop), routing); w.Code != http.StatusNoContent {
		a.t.Fatalf("PUT mode of payment: %d %s", w.Code, w.Body.String())
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (%s)", w.Code, status, w.Body.String())
	}
	e := decode[ErrorResponse](t, w)
	if e.Code != code || e.RequestID == "" {
		t.Fatalf("error body = %+v, want code %q", e, code)
	}
	return e
}
