// Package simulator provides a deterministic demo driver: amounts whose
// fractional part is exactly .99 decline, everything else approves.
package simulator

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
)

// Code is the registry code of the simulator.
const Code = "simulator"

var declineCents = decimal.RequireFromString("0.99")

func init() {
	drivers.Register(drivers.Registration{
		Code:         Code,
		Name:         "Simulator (Demo/Training)",
		Description:  "Approves every amount except those ending in .99.",
		Mode:         drivers.ModeSync,
		Capabilities: []string{"sale", "test_connection"},
		New:          New,
	})
}

// Driver is the simulator.
type Driver struct {
	settings domain.TerminalSettings
}

// New builds a simulator for settings.
func New(settings domain.TerminalSettings) drivers.Driver {
	return &Driver{settings: settings}
}

// Mode implements drivers.Driver.
func (d *Driver) Mode() drivers.Mode { return drivers.ModeSync }

// StartCapture implements drivers.Driver.
func (d *Driver) StartCapture(_ context.Context, req drivers.CaptureRequest) (drivers.CaptureResult, error) {
	status, code, msg := domain.StatusApproved, "00", "SIMULATED APPROVAL"
	if Declines(req.Amount) {
		status, code, msg = domain.StatusDeclined, "05", "SIMULATED DECLINE"
	}
	resp := map[string]any{
		"status":            status.LedgerLabel(),
		"amount":            req.Amount.StringFixed(2),
		"currency":          req.Currency,
		"mode_of_payment":   req.ModeOfPayment,
		"reference_doctype": req.ReferenceDoctype,
		"reference_name":    req.ReferenceName,
		"rrn":               randomCode(12),
		"auth_code":         randomCode(6),
		"response_code":     code,
		"response_message":  msg,
		"terminal_id":       d.settings.TerminalID,
		"merchant_id":       d.settings.MerchantID,
		"raw":               map[string]any{"simulator": true},
	}
	return drivers.CaptureResult{Status: status, Mode: drivers.ModeSync, Message: msg, Response: resp}, nil
}

// TestConnection implements drivers.ConnectionTester.
func (d *Driver) TestConnection(context.Context) drivers.ConnectivityResult {
	return drivers.ConnectivityResult{OK: true, Message: "Simulator ready."}
}

// Declines reports whether amount has a fractional part of exactly .99.
func Declines(amount decimal.Decimal) bool {
	frac := amount.Sub(amount.Truncate(0)).Abs()
	return frac.Equal(declineCents)
}

func randomCode(n int) string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return s[:n]
}
