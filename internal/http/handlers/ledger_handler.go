// Ledger HTTP handlers.
//
//   - POST /transactions                     (log a terminal response)
//   - GET  /transactions                     (list, paginated, ETag support)
//   - POST /invoices/{name}/approval-check   (invoice approval gate)
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/http/middleware"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
	"github.com/tbourn/card-terminal-gateway/internal/services"
)

//
// DTOs
//

// TransactionLoggedResponse answers POST /transactions.
type TransactionLoggedResponse struct {
	TransactionID string `json:"transaction_id" example:"0d5e1c9a-9b7f-4e33-8f0e-2a1d6c4b7e90"`
	Status        string `json:"status" example:"Approved"`
}

// ListTransactionsResponse wraps a page of ledger rows.
type ListTransactionsResponse struct {
	Transactions []domain.CardTransaction `json:"transactions"`
	Pagination   Pagination               `json:"pagination"`
}

// PaymentRowRequest is one payment line of an invoice.
type PaymentRowRequest struct {
	ModeOfPayment string          `json:"mode_of_payment" example:"Mada"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"150.00"`
}

// ApprovalCheckRequest lists the invoice's payment rows.
type ApprovalCheckRequest struct {
	Payments []PaymentRowRequest `json:"payments"`
}

// ApprovalCheckResponse is returned when the invoice may be submitted.
type ApprovalCheckResponse struct {
	Invoice  string `json:"invoice" example:"SINV-0001"`
	Approved bool   `json:"approved" example:"true"`
}

//
// Handlers
//

// LogTransaction godoc
// @ID          logTransaction
// @Summary     Log a terminal response
// @Description Appends one ledger row from an arbitrary terminal payload. Known fields are copied into columns and the whole body is kept as raw_response. A payload naming a PENDING session also finalizes that session.
// @Tags        Transactions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Acting user"  example(cashier-1)
// @Param       body       body    object  true  "Terminal payload"
//
// @Success     201  {object}  handlers.TransactionLoggedResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Body is not a JSON object"
// @Failure     409  {object}  handlers.ErrorResponse  "Session already has a ledger row"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /transactions [post]
func (h *Handlers) LogTransaction(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}
	tx, err := h.ledger.Log(c.Request.Context(), middleware.Actor(c), raw)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, TransactionLoggedResponse{TransactionID: tx.ID, Status: tx.Status})
}

// ListTransactions godoc
// @ID          listTransactions
// @Summary     List ledger rows (paginated)
// @Description Returns ledger rows newest first, optionally filtered. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Transactions
// @Produce     json
//
// @Param       If-None-Match      header  string  false "Return 304 if ETag matches"  example(W/\"tx:3:1714564800\")
// @Param       reference_doctype  query   string  false "Reference doctype"           example(Sales Invoice)
// @Param       reference_name     query   string  false "Reference name"              example(SINV-0001)
// @Param       mode_of_payment    query   string  false "Mode of payment"             example(Mada)
// @Param       status             query   string  false "Ledger status"               example(Approved)
// @Param       page               query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size          query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListTransactionsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /transactions [get]
func (h *Handlers) ListTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)
	f := repo.TransactionFilter{
		ReferenceDoctype: strings.TrimSpace(c.Query("reference_doctype")),
		ReferenceName:    strings.TrimSpace(c.Query("reference_name")),
		ModeOfPayment:    strings.TrimSpace(c.Query("mode_of_payment")),
		Status:           strings.TrimSpace(c.Query("status")),
	}

	// ETag pre-check (best effort). Rows are append-only, so count plus the
	// newest creation time identifies the filtered set.
	if svc, isLedger := h.ledger.(*services.LedgerService); isLedger && svc.DB != nil {
		if count, latest, err := repo.TransactionsStats(ctx, svc.DB, f); err == nil {
			var ts int64
			if latest != nil {
				ts = latest.UnixNano()
			}
			etag := fmt.Sprintf(`W/"tx:%d:%d:%d:%d"`, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.ledger.ListPage(ctx, f, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListTransactionsResponse{
		Transactions: items,
		Pagination:   newPagination(page, pageSize, total),
	})
}

// ApprovalCheck godoc
// @ID          approvalCheck
// @Summary     Invoice approval gate
// @Description Checks that every payment row whose mode of payment requires terminal approval is covered by an Approved ledger row for this invoice, with the same mode of payment and amount.
// @Tags        Transactions
// @Accept      json
// @Produce     json
//
// @Param       name  path  string  true  "Sales Invoice name"  example(SINV-0001)
// @Param       body  body  handlers.ApprovalCheckRequest  true  "Payment rows"
//
// @Success     200  {object}  handlers.ApprovalCheckResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Approval required"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /invoices/{name}/approval-check [post]
func (h *Handlers) ApprovalCheck(c *gin.Context) {
	var req ApprovalCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	rows := make([]services.PaymentRow, 0, len(req.Payments))
	for _, p := range req.Payments {
		rows = append(rows, services.PaymentRow{ModeOfPayment: p.ModeOfPayment, Amount: p.Amount})
	}

	invoice := c.Param("name")
	if err := h.approval.CheckInvoice(c.Request.Context(), invoice, rows); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ApprovalCheckResponse{Invoice: invoice, Approved: true})
}
