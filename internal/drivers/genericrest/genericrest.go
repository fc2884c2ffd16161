// Package genericrest posts the capture to a vendor HTTP endpoint and takes
// the JSON object it answers with as the terminal verdict.
package genericrest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
)

// Code is the registry code of the driver.
const Code = "generic_rest"

const (
	defaultTimeout = 45 * time.Second
	pingTimeout    = 10 * time.Second
)

func init() {
	drivers.Register(drivers.Registration{
		Code:         Code,
		Name:         "Generic REST (HTTP)",
		Description:  "POSTs the capture as JSON to endpoint_url and reads the verdict from the response.",
		Mode:         drivers.ModeSync,
		Capabilities: []string{"sale", "test_connection"},
		New:          New,
	})
}

// Driver is the generic REST driver.
type Driver struct {
	cfg drivers.Config
}

// New builds the driver for settings.
func New(settings domain.TerminalSettings) drivers.Driver {
	return &Driver{cfg: drivers.MergeConfig(settings)}
}

// Mode implements drivers.Driver.
func (d *Driver) Mode() drivers.Mode { return drivers.ModeSync }

// StartCapture implements drivers.Driver.
func (d *Driver) StartCapture(ctx context.Context, req drivers.CaptureRequest) (drivers.CaptureResult, error) {
	url := d.cfg.String("endpoint_url")
	if url == "" {
		return drivers.Failed(drivers.ModeSync, "endpoint_url is required for Generic REST driver."), nil
	}
	payload := map[string]any{
		"amount":            req.Amount.String(),
		"currency":          req.Currency,
		"mode_of_payment":   req.ModeOfPayment,
		"reference_doctype": req.ReferenceDoctype,
		"reference_name":    req.ReferenceName,
		"merchant_id":       d.cfg.String("merchant_id"),
		"terminal_id":       d.cfg.String("terminal_id"),
	}

	obj, raw, err := drivers.DoJSON(ctx, http.MethodPost, url, payload, d.cfg.Timeout(defaultTimeout))
	if err != nil {
		return drivers.Failed(drivers.ModeSync, err.Error()), nil
	}
	if obj == nil {
		res := drivers.Failed(drivers.ModeSync, "Invalid response type from endpoint.")
		res.Response = map[string]any{"raw": raw}
		return res, nil
	}
	res := drivers.SyncResult(drivers.ModeSync, obj)
	res.Payload = payload
	return res, nil
}

// TestConnection implements drivers.ConnectionTester by POSTing to <url>/ping.
func (d *Driver) TestConnection(ctx context.Context) drivers.ConnectivityResult {
	url := d.cfg.String("endpoint_url")
	if url == "" {
		return drivers.ConnectivityResult{OK: false, Message: "endpoint_url is required."}
	}
	_, raw, err := drivers.DoJSON(ctx, http.MethodPost, strings.TrimRight(url, "/")+"/ping", map[string]any{}, pingTimeout)
	if err != nil {
		return drivers.ConnectivityResult{OK: false, Message: err.Error()}
	}
	return drivers.ConnectivityResult{OK: true, Message: "Ping OK", Raw: raw}
}
