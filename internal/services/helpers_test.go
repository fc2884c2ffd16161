package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
	_ "github.com/tbourn/card-terminal-gateway/internal/drivers/all"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
)

// ----- Fake drivers -----

type scriptedDriver struct {
	mode drivers.Mode
	fn   func(ctx context.Context, req drivers.CaptureRequest) (drivers.CaptureResult, error)
}

func (d *scriptedDriver) Mode() drivers.Mode { return d.mode }

func (d *scriptedDriver) StartCapture(ctx context.Context, req drivers.CaptureRequest) (drivers.CaptureResult, error) {
	return d.fn(ctx, req)
}

// agentKeyDriver adds a driver-level callback check on X-Agent-Key.
type agentKeyDriver struct{ scriptedDriver }

func (d *agentKeyDriver) VerifyCallback(_ []byte, h http.Header) drivers.Verdict {
	if h.Get("X-Agent-Key") != "agent-1" {
		return drivers.Verdict{OK: false, Message: "unknown agent"}
	}
	return drivers.Verdict{OK: true}
}

// lastRequest keeps the most recent request seen by the recording driver.
var lastRequest struct {
	sync.Mutex
	req   drivers.CaptureRequest
	calls int
}

func register(code string, mode drivers.Mode, fn func(context.Context, drivers.CaptureRequest) (drivers.CaptureResult, error)) {
	drivers.Register(drivers.Registration{
		Code: code, Name: code, Mode: mode,
		New: func(domain.TerminalSettings) drivers.Driver { return &scriptedDriver{mode: mode, fn: fn} },
	})
}

func init() {
	register("test_panic", drivers.ModeSync, func(context.Context, drivers.CaptureRequest) (drivers.CaptureResult, error) {
		panic("boom")
	})
	register("test_slow", drivers.ModeSync, func(ctx context.Context, _ drivers.CaptureRequest) (drivers.CaptureResult, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return drivers.CaptureResult{Status: domain.StatusApproved}, nil
	})
	register("test_bad_status", drivers.ModeSync, func(context.Context, drivers.CaptureRequest) (drivers.CaptureResult, error) {
		return drivers.CaptureResult{Status: "MAYBE"}, nil
	})
	register("test_contract", drivers.ModeSync, func(context.Context, drivers.CaptureRequest) (drivers.CaptureResult, error) {
		return drivers.CaptureResult{}, errors.New("not implemented")
	})
	register("test_recording", drivers.ModeAsyncCallback, func(_ context.Context, req drivers.CaptureRequest) (drivers.CaptureResult, error) {
		lastRequest.Lock()
		lastRequest.req = req
		lastRequest.calls++
		lastRequest.Unlock()
		return drivers.CaptureResult{Status: domain.StatusPending, Payload: map[string]any{"uuid": req.SessionToken}}, nil
	})
	drivers.Register(drivers.Registration{
		Code: "test_agent_key", Name: "test_agent_key", Mode: drivers.ModeAsyncCallback,
		New: func(domain.TerminalSettings) drivers.Driver {
			return &agentKeyDriver{scriptedDriver{mode: drivers.ModeAsyncCallback, fn: func(context.Context, drivers.CaptureRequest) (drivers.CaptureResult, error) {
				return drivers.CaptureResult{Status: domain.StatusPending}, nil
			}}}
		},
	})
}

// ----- Fixtures -----

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_%s?mode=memory&cache=shared", uuid.NewString())
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
	// One connection keeps shared-cache writers from tripping SQLITE_LOCKED.
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if _, err := (&AdminService{DB: db}).SeedCatalog(context.Background()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return db
}

// route creates settings named after mop, bound to driverCode, and a mode of
// payment routed to them.
func route(t *testing.T, db *gorm.DB, mop, driverCode string, cfg map[string]any) *domain.TerminalSettings {
	t.Helper()
	ctx := context.Background()
	st := &domain.TerminalSettings{
		Name:       mop + " Terminal",
		DriverCode: driverCode,
		TerminalID: "T-1",
		MerchantID: "M-1",
		Config:     datatypes.JSONMap(cfg),
	}
	if err := repo.UpsertSettings(ctx, db, st); err != nil {
		t.Fatalf("settings: %v", err)
	}
	m := &domain.ModeOfPayment{Name: mop, SettingsName: st.Name, CaptureTerminalData: true, RequireTerminalApproval: true}
	if err := repo.UpsertModeOfPayment(ctx, db, m); err != nil {
		t.Fatalf("mode of payment: %v", err)
	}
	return st
}

// catalogEntry adds an active catalog entry whose handler is code.
func catalogEntry(t *testing.T, db *gorm.DB, code string) {
	t.Helper()
	d := &domain.DriverDescriptor{Code: code, Name: code, Mode: string(drivers.ModeSync), Handler: code, Active: true}
	if err := repo.UpsertDriver(context.Background(), db, d); err != nil {
		t.Fatalf("catalog entry: %v", err)
	}
}

func newLedger(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db, DefaultCurrency: "SAR"}
}

func newCapture(db *gorm.DB) *CaptureService {
	return &CaptureService{
		DB:              db,
		Ledger:          newLedger(db),
		DefaultCurrency: "SAR",
		DriverTimeout:   2 * time.Second,
		IdempotencyTTL:  time.Hour,
	}
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func countLedger(t *testing.T, db *gorm.DB, f repo.TransactionFilter) int64 {
	t.Helper()
	n, err := repo.CountTransactions(context.Background(), db, f)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func signedHeader(secret string, body []byte, prefixed bool) http.Header {
	sig := Sign(secret, body)
	if prefixed {
		sig = "sha256=" + sig
	}
	h := http.Header{}
	h.Set(SignatureHeader, sig)
	return h
}
