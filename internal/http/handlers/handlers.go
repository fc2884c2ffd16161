package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
	"github.com/tbourn/card-terminal-gateway/internal/http/middleware"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
	"github.com/tbourn/card-terminal-gateway/internal/services"
	"github.com/tbourn/card-terminal-gateway/internal/utils"
)

//
// Service contracts (context-aware)
//

// CaptureService starts captures and manages their sessions.
type CaptureService interface {
	// Start runs one capture through the resolved driver.
	Start(ctx context.Context, in services.CaptureInput) (*services.CaptureOutcome, error)
	// CreateSession opens a PENDING session; created is false on an
	// idempotent repeat.
	CreateSession(ctx context.Context, in services.CreateSessionInput) (*domain.TerminalSession, bool, error)
	// SessionStatus looks a session up by correlation token.
	SessionStatus(ctx context.Context, token string) (*domain.TerminalSession, error)
}

// CallbackService authenticates and applies terminal callbacks.
type CallbackService interface {
	Handle(ctx context.Context, token string, raw []byte, header http.Header) (*services.CallbackAck, error)
}

// LedgerService appends to and pages through the transaction ledger.
type LedgerService interface {
	Log(ctx context.Context, actor string, raw []byte) (*domain.CardTransaction, error)
	ListPage(ctx context.Context, f repo.TransactionFilter, page, pageSize int) ([]domain.CardTransaction, int64, error)
}

// ApprovalService gates invoice submission on approved terminal captures.
type ApprovalService interface {
	CheckInvoice(ctx context.Context, invoice string, rows []services.PaymentRow) error
}

// AdminService maintains the driver catalog, terminal settings and mode of
// payment routing.
type AdminService interface {
	ListDrivers(ctx context.Context) ([]domain.DriverDescriptor, error)
	UpsertDriver(ctx context.Context, d *domain.DriverDescriptor) error
	UpsertSettings(ctx context.Context, st *domain.TerminalSettings) (*domain.TerminalSettings, error)
	GetSettings(ctx context.Context, name string) (*domain.TerminalSettings, error)
	UpsertModeOfPayment(ctx context.Context, m *domain.ModeOfPayment) error
	TestConnection(ctx context.Context, name string) (drivers.ConnectivityResult, error)
	ClientConfig(ctx context.Context, name string) (map[string]any, error)
}

//
// Handler wiring
//

// Handlers groups the gateway endpoints over abstract services.
type Handlers struct {
	capture   CaptureService
	callbacks CallbackService
	ledger    LedgerService
	approval  ApprovalService
	admin     AdminService
}

// New binds Handlers to its services.
func New(capture CaptureService, callbacks CallbackService, ledger LedgerService, approval ApprovalService, admin AdminService) *Handlers {
	return &Handlers{capture: capture, callbacks: callbacks, ledger: ledger, approval: approval, admin: admin}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination reads page and page_size, defaulting to 1 and 20 and
// capping page_size at 100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// idempotencyKey prefers the validated header over the body field.
func idempotencyKey(c *gin.Context, fromBody string) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	return fromBody
}
