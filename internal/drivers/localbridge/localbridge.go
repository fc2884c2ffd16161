// Package localbridge talks to a bridge process running next to the POS that
// owns the physical terminal connection.
package localbridge

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
)

// Code is the registry code of the driver.
const Code = "local_bridge"

const (
	defaultCaptureURL = "http://127.0.0.1:9797/capture"
	defaultBaseURL    = "http://127.0.0.1:9797"
	defaultTimeout    = 60 * time.Second
	pingTimeout       = 10 * time.Second
)

func init() {
	drivers.Register(drivers.Registration{
		Code:         Code,
		Name:         "Local Bridge (localhost)",
		Description:  "Hands the capture to a bridge service on the POS host.",
		Mode:         drivers.ModeSync,
		Capabilities: []string{"sale", "test_connection"},
		New:          New,
	})
}

// Driver is the local bridge driver.
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
	url := drivers.FirstNonEmpty(d.cfg.String("endpoint_url"), defaultCaptureURL)
	payload := map[string]any{
		"amount":            req.Amount.String(),
		"currency":          req.Currency,
		"reference_doctype": req.ReferenceDoctype,
		"reference_name":    req.ReferenceName,
		"mode_of_payment":   req.ModeOfPayment,
	}
	obj, raw, err := drivers.DoJSON(ctx, http.MethodPost, url, payload, d.cfg.Timeout(defaultTimeout))
	if err != nil {
		return drivers.Failed(drivers.ModeSync, err.Error()), nil
	}
	if obj == nil {
		res := drivers.Failed(drivers.ModeSync, "Invalid response from bridge.")
		res.Response = map[string]any{"raw": raw}
		return res, nil
	}
	res := drivers.SyncResult(drivers.ModeSync, obj)
	res.Payload = payload
	return res, nil
}

// TestConnection implements drivers.ConnectionTester with GET <base>/ping.
func (d *Driver) TestConnection(ctx context.Context) drivers.ConnectivityResult {
	base := strings.TrimRight(drivers.FirstNonEmpty(d.cfg.String("endpoint_url"), defaultBaseURL), "/")
	_, raw, err := drivers.DoJSON(ctx, http.MethodGet, base+"/ping", nil, pingTimeout)
	if err != nil {
		return drivers.ConnectivityResult{OK: false, Message: err.Error()}
	}
	return drivers.ConnectivityResult{OK: true, Message: "Bridge reachable", Raw: raw}
}
