// Administration HTTP handlers.
//
//   - GET  /drivers                         (active catalog)
//   - PUT  /drivers/{code}                  (upsert catalog entry)
//   - PUT  /settings/{name}                 (upsert terminal settings)
//   - GET  /settings/{name}                 (read, secrets redacted)
//   - POST /settings/{name}/test            (connectivity test)
//   - GET  /settings/{name}/client-config   (client-safe driver config)
//   - PUT  /modes-of-payment/{name}         (routing)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
)

//
// DTOs
//

// DriverRequest is the body of PUT /drivers/{code}.
type DriverRequest struct {
	Name         string   `json:"name" example:"Front desk simulator"`
	Description  string   `json:"description"`
	Mode         string   `json:"mode" example:"SYNC"`
	Capabilities []string `json:"capabilities"`
	// Handler is the registered implementation; defaults to the code.
	Handler   string `json:"handler" example:"simulator"`
	Active    *bool  `json:"active"`
	SortOrder int    `json:"sort_order"`
}

// SettingsRequest is the body of PUT /settings/{name}. CallbackSecret is
// write-only; reads never return it.
type SettingsRequest struct {
	DriverCode     string         `json:"driver_code" example:"mqtt_async_bridge"`
	Provider       string         `json:"provider"`
	EndpointURL    string         `json:"endpoint_url"`
	TerminalIP     string         `json:"terminal_ip"`
	TerminalPort   int            `json:"terminal_port"`
	MerchantID     string         `json:"merchant_id"`
	TerminalID     string         `json:"terminal_id"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	Config         map[string]any `json:"config"`
	CallbackSecret string         `json:"callback_secret"`
}

// ModeOfPaymentRequest is the body of PUT /modes-of-payment/{name}.
type ModeOfPaymentRequest struct {
	SettingsName            string `json:"settings_name" example:"Front desk"`
	CaptureTerminalData     bool   `json:"capture_terminal_data"`
	RequireTerminalApproval bool   `json:"require_terminal_approval"`
}

// DriverListResponse wraps the active catalog.
type DriverListResponse struct {
	Drivers []domain.DriverDescriptor `json:"drivers"`
}

//
// Handlers
//

// ListDrivers godoc
// @ID          listDrivers
// @Summary     Driver catalog
// @Description Active driver descriptors ordered by sort order, then name.
// @Tags        Admin
// @Produce     json
// @Success     200  {object}  handlers.DriverListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /drivers [get]
func (h *Handlers) ListDrivers(c *gin.Context) {
	list, err := h.admin.ListDrivers(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, DriverListResponse{Drivers: list})
}

// UpsertDriver godoc
// @ID          upsertDriver
// @Summary     Upsert a catalog entry
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       code  path  string  true  "Driver code"  example(simulator)
// @Param       body  body  handlers.DriverRequest  true  "Catalog entry"
// @Success     200  {object}  domain.DriverDescriptor
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Handler not registered"
// @Router      /drivers/{code} [put]
func (h *Handlers) UpsertDriver(c *gin.Context) {
	var req DriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	d := &domain.DriverDescriptor{
		Code:         c.Param("code"),
		Name:         req.Name,
		Description:  req.Description,
		Mode:         req.Mode,
		Capabilities: req.Capabilities,
		Handler:      req.Handler,
		Active:       req.Active == nil || *req.Active,
		SortOrder:    req.SortOrder,
	}
	if err := h.admin.UpsertDriver(c.Request.Context(), d); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// PutSettings godoc
// @ID          putSettings
// @Summary     Upsert terminal settings
// @Description Creates or replaces a settings record. The response redacts secrets.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       name  path  string  true  "Settings name"  example(Front desk)
// @Param       body  body  handlers.SettingsRequest  true  "Settings"
// @Success     200  {object}  domain.TerminalSettings
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Unknown driver"
// @Router      /settings/{name} [put]
func (h *Handlers) PutSettings(c *gin.Context) {
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	st := &domain.TerminalSettings{
		Name:           c.Param("name"),
		DriverCode:     req.DriverCode,
		Provider:       req.Provider,
		EndpointURL:    req.EndpointURL,
		TerminalIP:     req.TerminalIP,
		TerminalPort:   req.TerminalPort,
		MerchantID:     req.MerchantID,
		TerminalID:     req.TerminalID,
		TimeoutSeconds: req.TimeoutSeconds,
		Config:         req.Config,
		CallbackSecret: req.CallbackSecret,
	}
	out, err := h.admin.UpsertSettings(c.Request.Context(), st)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// GetSettings godoc
// @ID          getSettings
// @Summary     Read terminal settings
// @Tags        Admin
// @Produce     json
// @Param       name  path  string  true  "Settings name"
// @Success     200  {object}  domain.TerminalSettings
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /settings/{name} [get]
func (h *Handlers) GetSettings(c *gin.Context) {
	st, err := h.admin.GetSettings(c.Request.Context(), c.Param("name"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// TestConnection godoc
// @ID          testConnection
// @Summary     Connectivity test
// @Description Runs the driver's connectivity probe. A failed probe is 200 with ok=false.
// @Tags        Admin
// @Produce     json
// @Param       name  path  string  true  "Settings name"
// @Success     200  {object}  drivers.ConnectivityResult
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /settings/{name}/test [post]
func (h *Handlers) TestConnection(c *gin.Context) {
	res, err := h.admin.TestConnection(c.Request.Context(), c.Param("name"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ClientConfig godoc
// @ID          clientConfig
// @Summary     Client-safe driver config
// @Description Returns only what a browser or device SDK may see, e.g. a publishable key.
// @Tags        Admin
// @Produce     json
// @Param       name  path  string  true  "Settings name"
// @Success     200  {object}  map[string]any
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     422  {object}  handlers.ErrorResponse  "Not configured"
// @Router      /settings/{name}/client-config [get]
func (h *Handlers) ClientConfig(c *gin.Context) {
	cfg, err := h.admin.ClientConfig(c.Request.Context(), c.Param("name"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cfg)
}

// PutModeOfPayment godoc
// @ID          putModeOfPayment
// @Summary     Route a mode of payment
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       name  path  string  true  "Mode of payment"  example(Mada)
// @Param       body  body  handlers.ModeOfPaymentRequest  true  "Routing"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Settings not found"
// @Router      /modes-of-payment/{name} [put]
func (h *Handlers) PutModeOfPayment(c *gin.Context) {
	var req ModeOfPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m := &domain.ModeOfPayment{
		Name:                    c.Param("name"),
		SettingsName:            req.SettingsName,
		CaptureTerminalData:     req.CaptureTerminalData,
		RequireTerminalApproval: req.RequireTerminalApproval,
	}
	if err := h.admin.UpsertModeOfPayment(c.Request.Context(), m); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
