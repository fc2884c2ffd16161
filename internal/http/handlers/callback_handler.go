package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Callback godoc
// @ID          postCallback
// @Summary     Terminal callback
// @Description Receives an asynchronous terminal result for the session named by token. The X-AlphaX-Signature header carries an HMAC-SHA256 of the exact raw body, as "sha256=<hex>" or bare hex. Repeated deliveries are acknowledged with duplicate=true and never create a second ledger row.
// @Tags        Callbacks
// @Accept      json
// @Produce     json
//
// @Param       token               path    string  true   "Correlation token"
// @Param       X-AlphaX-Signature  header  string  false  "HMAC-SHA256 of the raw body"  example(sha256=9f86d081884c7d65...)
// @Param       body                body    object  true   "Terminal payload with status or result"
//
// @Success     200  {object}  services.CallbackAck
// @Failure     400  {object}  handlers.ErrorResponse  "Body is not a JSON object"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid signature"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown correlation token"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /callbacks/{token} [post]
func (h *Handlers) Callback(c *gin.Context) {
	// The signature covers the bytes as sent, so the body is read raw.
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	ack, err := h.callbacks.Handle(c.Request.Context(), c.Param("token"), raw, c.Request.Header)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ack)
}
