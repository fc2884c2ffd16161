// Package services implements the capture orchestrator, callback ingestion,
// the transaction ledger writer, and the operator-facing administration of
// terminal settings and the driver catalog.
//
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers with
// errors.Is. Translation into HTTP status codes happens in the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrSessionNotFound indicates that no session has the given
	// correlation token.
	ErrSessionNotFound = errors.New("terminal session not found")

	// ErrAuthentication is the parent of every callback authentication
	// failure.
	ErrAuthentication = errors.New("callback authentication failed")

	// ErrMissingSignature is returned when a signature is required but the
	// callback carries none.
	ErrMissingSignature = fmt.Errorf("%w: missing signature", ErrAuthentication)

	// ErrInvalidSignature is returned when the callback signature does not
	// match the raw body.
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrAuthentication)

	// ErrSettingsNotFound indicates an unknown terminal settings record.
	ErrSettingsNotFound = errors.New("terminal settings not found")

	// ErrModeOfPaymentNotFound indicates an unknown mode of payment.
	ErrModeOfPaymentNotFound = errors.New("mode of payment not found")

	// ErrInvalidAmount is returned for missing, zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidInput is returned when a required field is blank or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrApprovalRequired is returned by the invoice approval gate.
	ErrApprovalRequired = errors.New("terminal approval required")

	// ErrIdempotencyMismatch is returned when an idempotency key is reused
	// with a different request body.
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")

	// ErrAlreadyLogged is returned when a session already has a ledger row.
	ErrAlreadyLogged = errors.New("transaction already logged for session")
)

// BestEffort records a bookkeeping side effect that failed without failing
// the operation that triggered it.
type BestEffort struct {
	Op  string `json:"op"`
	Err string `json:"error"`
}

// softFail logs a swallowed failure and returns it as a BestEffort value.
func softFail(l *zerolog.Logger, op, token string, err error) BestEffort {
	l.Warn().Err(err).Str("op", op).Str("correlation_token", token).Msg("best-effort step failed")
	return BestEffort{Op: op, Err: err.Error()}
}
