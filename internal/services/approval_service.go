package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
)

// InvoiceDoctype is the reference doctype the approval gate checks.
const InvoiceDoctype = "Sales Invoice"

// PaymentRow is one payment line of an invoice.
type PaymentRow struct {
	ModeOfPayment string          `json:"mode_of_payment"`
	Amount        decimal.Decimal `json:"amount"`
}

// ApprovalError names the payment row that lacks an approved transaction.
// It unwraps to ErrApprovalRequired.
type ApprovalError struct {
	ModeOfPayment string
	Amount        decimal.Decimal
}

func (e *ApprovalError) Error() string {
	return fmt.Sprintf("Terminal approval is required for Mode of Payment '%s' (Amount: %s). "+
		"Capture and log an Approved terminal transaction before submitting.", e.ModeOfPayment, e.Amount.StringFixed(2))
}

func (e *ApprovalError) Unwrap() error { return ErrApprovalRequired }

// ApprovalService is the before-submit gate for invoices paid by card.
type ApprovalService struct {
	DB *gorm.DB
}

// CheckInvoice returns an *ApprovalError for the first payment row whose
// mode of payment both captures terminal data and requires approval, and
// for which the ledger has no Approved transaction against the invoice with
// the same mode of payment and an equal amount. Rows with no mode of payment
// or a zero amount are skipped.
func (s *ApprovalService) CheckInvoice(ctx context.Context, invoice string, rows []PaymentRow) error {
	tr := otel.Tracer("services/ApprovalService")
	ctx, span := tr.Start(ctx, "CheckInvoice",
		trace.WithAttributes(
			attribute.String("invoice", invoice),
			attribute.Int("payments", len(rows)),
		),
	)
	defer span.End()

	invoice = strings.TrimSpace(invoice)
	if invoice == "" {
		return fmt.Errorf("%w: invoice name is required", ErrInvalidInput)
	}

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if m := strings.TrimSpace(r.ModeOfPayment); m != "" {
			names = append(names, m)
		}
	}
	mops, err := repo.ListModesOfPayment(ctx, s.DB, names)
	if err != nil {
		return err
	}
	gated := make(map[string]bool, len(mops))
	for _, m := range mops {
		gated[m.Name] = m.CaptureTerminalData && m.RequireTerminalApproval
	}

	for _, r := range rows {
		mop := strings.TrimSpace(r.ModeOfPayment)
		if mop == "" || r.Amount.IsZero() || !gated[mop] {
			continue
		}
		ok, err := s.hasApproval(ctx, invoice, mop, r.Amount)
		if err != nil {
			return err
		}
		if !ok {
			return &ApprovalError{ModeOfPayment: mop, Amount: r.Amount}
		}
	}
	return nil
}

func (s *ApprovalService) hasApproval(ctx context.Context, invoice, mop string, amount decimal.Decimal) (bool, error) {
	rows, err := repo.ListTransactions(ctx, s.DB, repo.TransactionFilter{
		ReferenceDoctype: InvoiceDoctype,
		ReferenceName:    invoice,
		ModeOfPayment:    mop,
		Status:           domain.StatusApproved.LedgerLabel(),
	})
	if err != nil {
		return false, err
	}
	for _, t := range rows {
		if t.Amount.Equal(amount) {
			return true, nil
		}
	}
	return false, nil
}
