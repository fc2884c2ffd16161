// Package handlers provides the HTTP handlers of the terminal gateway API.
//
// Every error leaves through fail() as an ErrorResponse with a stable code;
// service errors are mapped to status and code in one place, failErr().
// Success bodies are written with ok() and noContent().
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/card-terminal-gateway/internal/drivers"
	"github.com/tbourn/card-terminal-gateway/internal/http/middleware"
	"github.com/tbourn/card-terminal-gateway/internal/services"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID, for correlating with server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message, safe to show at the till
	Message string `json:"message" example:"session not found"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail() for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service error onto the envelope. Unknown errors become a
// 500 whose message is not echoed to the client.
func failErr(c *gin.Context, err error) {
	var approval *services.ApprovalError
	switch {
	case errors.As(err, &approval):
		fail(c, http.StatusUnprocessableEntity, ErrCodeApprovalRequired, approval.Error())
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidAmount):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrAuthentication):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrSettingsNotFound),
		errors.Is(err, services.ErrModeOfPaymentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrIdempotencyMismatch):
		fail(c, http.StatusConflict, ErrCodeIdempotencyReused, err.Error())
	case errors.Is(err, services.ErrAlreadyLogged):
		fail(c, http.StatusConflict, ErrCodeAlreadyLogged, err.Error())
	case errors.Is(err, drivers.ErrConfiguration):
		fail(c, http.StatusUnprocessableEntity, ErrCodeNotConfigured, err.Error())
	case errors.Is(err, drivers.ErrContractViolation):
		fail(c, http.StatusInternalServerError, ErrCodeDriverContract, err.Error())
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

// ok writes body as JSON with status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes 204.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
