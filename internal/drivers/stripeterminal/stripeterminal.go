// Package stripeterminal supports the Stripe Terminal pattern, where the
// POS client runs the vendor SDK and the gateway only hands out the
// publishable configuration it needs.
package stripeterminal

import (
	"context"
	"strings"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
)

// Code is the registry code of the driver.
const Code = "stripe_terminal_sdk"

const provider = "stripe_terminal"

func init() {
	drivers.Register(drivers.Registration{
		Code:         Code,
		Name:         "Stripe Terminal (Client SDK)",
		Description:  "Capture runs in the POS client through the Stripe Terminal JS SDK.",
		Mode:         drivers.ModeClientSDK,
		Capabilities: []string{"sale", "client_config"},
		New:          New,
	})
}

// Driver is the Stripe Terminal client SDK driver.
type Driver struct {
	cfg drivers.Config
}

// New builds the driver for settings.
func New(settings domain.TerminalSettings) drivers.Driver {
	return &Driver{cfg: drivers.MergeConfig(settings)}
}

// Mode implements drivers.Driver.
func (d *Driver) Mode() drivers.Mode { return drivers.ModeClientSDK }

// StartCapture implements drivers.Driver.
func (d *Driver) StartCapture(_ context.Context, req drivers.CaptureRequest) (drivers.CaptureResult, error) {
	client := d.ClientConfig()
	client["currency"] = strings.ToLower(drivers.FirstNonEmpty(req.Currency, d.cfg.String("currency"), "sar"))
	client["amount"] = req.Amount.String()
	client["reference_name"] = req.ReferenceName
	return drivers.CaptureResult{
		Status:  domain.StatusClientActionRequired,
		Mode:    drivers.ModeClientSDK,
		Client:  client,
		Message: "Capture must be performed in the POS client using the Stripe Terminal JS SDK.",
	}, nil
}

// ClientConfig implements drivers.ClientConfigurer. Only publishable values
// are returned; the secret key never leaves the server.
func (d *Driver) ClientConfig() map[string]any {
	return map[string]any{
		"provider":    provider,
		"public_key":  d.cfg.String("stripe_public_key"),
		"location_id": d.cfg.String("stripe_location_id"),
	}
}
