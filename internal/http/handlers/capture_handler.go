// Capture and session HTTP handlers.
//
//   - POST /captures           (start a capture)
//   - POST /sessions           (open a PENDING session)
//   - GET  /sessions/{token}   (session status)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/http/middleware"
	"github.com/tbourn/card-terminal-gateway/internal/services"
)

//
// DTOs
//

// SessionCreatedResponse answers POST /sessions.
type SessionCreatedResponse struct {
	SessionID        string        `json:"session_id" example:"3f0c8a52-6d0e-4f61-a0c4-8b1f5c7f9e21"`
	CorrelationToken string        `json:"correlation_token" example:"6b7c1f7e-2f57-4c1c-9a6e-5d2b9c0f4e11"`
	Status           domain.Status `json:"status" example:"PENDING"`
}

// SessionStatusResponse answers GET /sessions/{token}. Found is false and
// the other fields are empty for an unknown token.
type SessionStatusResponse struct {
	Found           bool           `json:"found"`
	Status          domain.Status  `json:"status,omitempty" example:"APPROVED"`
	SessionID       string         `json:"session_id,omitempty"`
	TransactionID   string         `json:"transaction_id,omitempty"`
	ResponsePayload datatypes.JSON `json:"response_payload,omitempty" swaggertype:"object"`
}

//
// Handlers
//

// StartCapture godoc
// @ID          startCapture
// @Summary     Start a card capture
// @Description Resolves the terminal driver for the mode of payment and runs one capture. Configuration and vendor failures come back as status ERROR with a message, not as HTTP errors.
// @Tags        Captures
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Acting user"            example(cashier-1)
// @Param       Idempotency-Key  header  string  false "Replay-safe retry key"  example(pos-7-0001)
// @Param       body             body    services.CaptureInput  true  "Capture request"
//
// @Success     200  {object}  services.CaptureOutcome
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Idempotency key reused"
// @Failure     500  {object}  handlers.ErrorResponse  "Driver contract violation"
// @Router      /captures [post]
func (h *Handlers) StartCapture(c *gin.Context) {
	var in services.CaptureInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	in.IdempotencyKey = idempotencyKey(c, in.IdempotencyKey)
	in.Actor = middleware.Actor(c)

	out, err := h.capture.Start(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// CreateSession godoc
// @ID          createSession
// @Summary     Open a terminal session
// @Description Opens a PENDING session and returns its correlation token. With an idempotency key the session already opened for (mode of payment, key) is returned with 200.
// @Tags        Sessions
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Acting user"  example(cashier-1)
// @Param       Idempotency-Key  header  string  false "Session key"  example(pos-7-0001)
// @Param       body             body    services.CreateSessionInput  true  "Session request"
//
// @Success     201  {object}  handlers.SessionCreatedResponse
// @Success     200  {object}  handlers.SessionCreatedResponse  "Existing session"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Mode of payment not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions [post]
func (h *Handlers) CreateSession(c *gin.Context) {
	var in services.CreateSessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	in.IdempotencyKey = idempotencyKey(c, in.IdempotencyKey)
	in.Actor = middleware.Actor(c)

	sess, created, err := h.capture.CreateSession(c.Request.Context(), in)
	if err != nil {
		failErr(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ok(c, status, SessionCreatedResponse{
		SessionID:        sess.ID,
		CorrelationToken: sess.CorrelationToken,
		Status:           sess.Status,
	})
}

// GetSession godoc
// @ID          getSession
// @Summary     Session status
// @Description Returns the session's status and last terminal payload. Unknown tokens answer 200 with found=false.
// @Tags        Sessions
// @Produce     json
//
// @Param       token  path  string  true  "Correlation token"
//
// @Success     200  {object}  handlers.SessionStatusResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sessions/{token} [get]
func (h *Handlers) GetSession(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	sess, err := h.capture.SessionStatus(c.Request.Context(), token)
	if errors.Is(err, services.ErrSessionNotFound) {
		ok(c, http.StatusOK, SessionStatusResponse{Found: false})
		return
	}
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SessionStatusResponse{
		Found:           true,
		Status:          sess.Status,
		SessionID:       sess.ID,
		TransactionID:   sess.TransactionID,
		ResponsePayload: sess.ResponsePayload,
	})
}
