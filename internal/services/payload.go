package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
)

// decodeObject parses raw as a JSON object. Numbers are kept as json.Number
// so amounts are not rounded through float64.
func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidInput)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidInput)
	}
	return out, nil
}

// field returns the first non-empty value among keys, rendered as text.
func field(p map[string]any, keys ...string) string {
	for _, k := range keys {
		var s string
		switch v := p[k].(type) {
		case nil:
			continue
		case string:
			s = v
		case json.Number:
			s = v.String()
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			s = fmt.Sprint(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func amountOf(v any) (decimal.Decimal, bool) {
	switch a := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(a.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(a))
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(a), true
	case int:
		return decimal.NewFromInt(int64(a)), true
	}
	return decimal.Zero, false
}

// ledgerStatus renders a reported status as a ledger label. Known statuses
// get their canonical label; anything else is kept as reported.
func ledgerStatus(raw string) string {
	if s, ok := domain.ParseStatus(raw); ok {
		return s.LedgerLabel()
	}
	return strings.TrimSpace(raw)
}

// transactionFromPayload copies the recognized ledger fields out of a
// terminal payload. Vendor aliases (tid, mid, transaction_id, message) are
// accepted; unrecognized keys are ignored.
func transactionFromPayload(p map[string]any) *domain.CardTransaction {
	t := &domain.CardTransaction{
		Status:           ledgerStatus(field(p, "status", "result")),
		Currency:         strings.ToUpper(field(p, "currency")),
		ReferenceDoctype: field(p, "reference_doctype"),
		ReferenceName:    field(p, "reference_name"),
		ModeOfPayment:    field(p, "mode_of_payment"),
		TerminalID:       field(p, "terminal_id", "tid"),
		MerchantID:       field(p, "merchant_id", "mid"),
		RRN:              field(p, "rrn", "transaction_id"),
		AuthCode:         field(p, "auth_code"),
		ResponseCode:     field(p, "response_code"),
		ResponseMessage:  field(p, "response_message", "message"),
		SessionToken:     field(p, "session_token"),
	}
	if a, ok := amountOf(p["amount"]); ok {
		t.Amount = a
	}
	return t
}

// asJSON marshals v for a JSON column, falling back to an empty object.
func asJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

// loggerFrom returns the request logger carried by ctx, or the global one.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// catalogLookup adapts the driver catalog table to drivers.CatalogLookup.
func catalogLookup(db *gorm.DB) drivers.CatalogLookup {
	return func(ctx context.Context, code string) (*domain.DriverDescriptor, error) {
		d, err := repo.GetDriver(ctx, db, code)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return d, err
	}
}

// loadSettings returns the settings named by override, or the settings the
// mode of payment routes to. A missing record wraps drivers.ErrConfiguration.
func loadSettings(ctx context.Context, db *gorm.DB, override, modeOfPayment string) (*domain.TerminalSettings, error) {
	name := strings.TrimSpace(override)
	if name == "" {
		mop, err := repo.GetModeOfPayment(ctx, db, modeOfPayment)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, fmt.Errorf("%w: terminal settings are not configured for Mode of Payment %q", drivers.ErrConfiguration, modeOfPayment)
		case err != nil:
			return nil, err
		}
		name = strings.TrimSpace(mop.SettingsName)
		if name == "" {
			return nil, fmt.Errorf("%w: terminal settings are not configured for Mode of Payment %q", drivers.ErrConfiguration, modeOfPayment)
		}
	}
	s, err := repo.GetSettings(ctx, db, name)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("%w: terminal settings %q are not configured", drivers.ErrConfiguration, name)
	case err != nil:
		return nil, err
	}
	return s, nil
}
