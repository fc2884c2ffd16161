package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status is the lifecycle state of a capture as seen by the gateway.
type Status string

const (
	StatusPending              Status = "PENDING"
	StatusApproved             Status = "APPROVED"
	StatusDeclined             Status = "DECLINED"
	StatusError                Status = "ERROR"
	StatusCancelled            Status = "CANCELLED"
	StatusClientActionRequired Status = "CLIENT_ACTION_REQUIRED"
)

// IsTerminal reports whether s is a sink state for a TerminalSession.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusDeclined, StatusError, StatusCancelled:
		return true
	}
	return false
}

// IsOutcome reports whether s is a payment-network verdict that belongs in the ledger.
func (s Status) IsOutcome() bool {
	return s == StatusApproved || s == StatusDeclined
}

// LedgerLabel renders s the way ledger rows store it ("Approved", "Declined", ...).
func (s Status) LedgerLabel() string {
	// Casers are stateful; one per call.
	return cases.Title(language.Und).String(strings.ToLower(string(s)))
}

// ParseStatus maps a driver-reported status onto the result set a driver may
// return from StartCapture. ok is false for anything outside that set.
func ParseStatus(raw string) (s Status, ok bool) {
	switch v := Status(strings.ToUpper(strings.TrimSpace(raw))); v {
	case StatusPending, StatusApproved, StatusDeclined, StatusError, StatusClientActionRequired:
		return v, true
	case StatusCancelled, "CANCELED":
		return StatusCancelled, true
	}
	return "", false
}

// NormalizeStatus maps a callback status onto the closed session set.
// Unrecognized values (progress notifications, typos, empty) become PENDING.
func NormalizeStatus(raw string) Status {
	s, ok := ParseStatus(raw)
	if !ok || s == StatusClientActionRequired {
		return StatusPending
	}
	return s
}
