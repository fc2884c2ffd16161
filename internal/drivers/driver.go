// Package drivers defines the contract every card-terminal integration
// implements, the compile-time registry the built-in drivers register with,
// and the resolver that maps a TerminalSettings record to a driver instance.
//
// A driver completes a capture in one of three ways:
//
//   - ModeSync: the terminal verdict (APPROVED, DECLINED or ERROR) is known
//     when StartCapture returns and the vendor response is attached.
//   - ModeAsyncCallback: StartCapture dispatches (or prepares) a request for a
//     physical agent and returns PENDING; the verdict arrives later through
//     the callback endpoint, keyed by the session correlation token.
//   - ModeClientSDK: StartCapture returns CLIENT_ACTION_REQUIRED with a
//     bundle the POS client needs to run the vendor SDK itself.
//
// Drivers are stateless. They are constructed per call from the settings
// record alone and must not cache anything across invocations.
package drivers

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
)

// Mode is the completion model of a driver.
type Mode string

const (
	ModeSync          Mode = "SYNC"
	ModeAsyncCallback Mode = "ASYNC_CALLBACK"
	ModeClientSDK     Mode = "CLIENT_SDK"
)

// Valid reports whether m is one of the known completion models.
func (m Mode) Valid() bool {
	switch m {
	case ModeSync, ModeAsyncCallback, ModeClientSDK:
		return true
	}
	return false
}

var (
	// ErrConfiguration marks missing or invalid settings or driver references.
	ErrConfiguration = errors.New("terminal configuration error")

	// ErrContractViolation marks a driver that broke the contract (nil
	// driver, unknown status, panic). It is a deployment defect.
	ErrContractViolation = errors.New("driver contract violation")
)

// CaptureRequest is the immutable input of one capture attempt.
type CaptureRequest struct {
	ModeOfPayment    string          `json:"mode_of_payment"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	ReferenceDoctype string          `json:"reference_doctype,omitempty"`
	ReferenceName    string          `json:"reference_name,omitempty"`
	IdempotencyKey   string          `json:"idempotency_key,omitempty"`

	// SessionToken is the correlation token of the session this attempt
	// belongs to, if any. Async drivers hand it to the agent as "uuid".
	SessionToken string `json:"session_token,omitempty"`
	// CallbackURL is where an async agent should post its result. The
	// settings config blob may override it.
	CallbackURL string `json:"callback_url,omitempty"`
}

// CaptureResult is what StartCapture returns. Status is always one of
// PENDING, APPROVED, DECLINED, ERROR or CLIENT_ACTION_REQUIRED.
type CaptureResult struct {
	Status    domain.Status  `json:"status"`
	Mode      Mode           `json:"mode"`
	Message   string         `json:"message,omitempty"`
	Transport string         `json:"transport,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Client    map[string]any `json:"client,omitempty"`
	Response  map[string]any `json:"response,omitempty"`
}

// Failed builds an ERROR result carrying a human readable message.
func Failed(mode Mode, message string) CaptureResult {
	return CaptureResult{Status: domain.StatusError, Mode: mode, Message: message}
}

// Driver is implemented by every vendor integration.
//
// StartCapture must honour ctx and never block past its own timeout.
// Misconfiguration and vendor failures are reported as an ERROR result; a
// non-nil error is reserved for contract violations.
type Driver interface {
	Mode() Mode
	StartCapture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
}

// ConnectivityResult is the outcome of a connection test.
type ConnectivityResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Raw     any    `json:"raw,omitempty"`
}

// Verdict is the outcome of a driver specific callback check.
type Verdict struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ConnectionTester is implemented by drivers that can probe their endpoint.
// Expected failures are reported with OK=false, never by panicking.
type ConnectionTester interface {
	TestConnection(ctx context.Context) ConnectivityResult
}

// ClientConfigurer is implemented by drivers that expose settings to an
// untrusted client. The returned map must never contain secrets.
type ClientConfigurer interface {
	ClientConfig() map[string]any
}

// CallbackVerifier adds driver specific authentication on top of the shared
// HMAC signature check.
type CallbackVerifier interface {
	VerifyCallback(rawBody []byte, header http.Header) Verdict
}

// TestConnection runs d's connection test, or reports success with an
// explanatory message when d has none.
func TestConnection(ctx context.Context, d Driver) ConnectivityResult {
	if t, ok := d.(ConnectionTester); ok {
		return t.TestConnection(ctx)
	}
	return ConnectivityResult{OK: true, Message: "No connection test implemented for this driver."}
}

// ClientConfig returns d's client-safe configuration, or an empty map.
func ClientConfig(d Driver) map[string]any {
	if c, ok := d.(ClientConfigurer); ok {
		if out := c.ClientConfig(); out != nil {
			return out
		}
	}
	return map[string]any{}
}

// VerifyCallback runs d's callback check; drivers without one accept.
func VerifyCallback(d Driver, rawBody []byte, header http.Header) Verdict {
	if v, ok := d.(CallbackVerifier); ok {
		return v.VerifyCallback(rawBody, header)
	}
	return Verdict{OK: true}
}
