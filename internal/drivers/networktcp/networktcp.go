// Package networktcp is the placeholder for LAN terminals spoken to over a
// vendor TCP protocol. It validates the connection settings and leaves the
// session PENDING; customer specific drivers implement the protocol.
package networktcp

import (
	"context"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
)

// Code is the registry code of the driver.
const Code = "network_tcp"

func init() {
	drivers.Register(drivers.Registration{
		Code:         Code,
		Name:         "Network TCP (LAN Terminal)",
		Description:  "Stub for terminals reached over a vendor TCP protocol; completes by callback.",
		Mode:         drivers.ModeAsyncCallback,
		Capabilities: []string{"sale", "callback"},
		New:          New,
	})
}

// Driver is the network TCP stub.
type Driver struct {
	cfg drivers.Config
}

// New builds the driver for settings.
func New(settings domain.TerminalSettings) drivers.Driver {
	return &Driver{cfg: drivers.MergeConfig(settings)}
}

// Mode implements drivers.Driver.
func (d *Driver) Mode() drivers.Mode { return drivers.ModeAsyncCallback }

// StartCapture implements drivers.Driver.
func (d *Driver) StartCapture(_ context.Context, req drivers.CaptureRequest) (drivers.CaptureResult, error) {
	ip := d.cfg.String("terminal_ip")
	port := d.cfg.Int("terminal_port", 0)
	if ip == "" || port == 0 {
		return drivers.Failed(drivers.ModeAsyncCallback, "terminal_ip and terminal_port are required for Network TCP driver."), nil
	}
	return drivers.CaptureResult{
		Status:    domain.StatusPending,
		Mode:      drivers.ModeAsyncCallback,
		Transport: "TCP",
		Message:   "Network TCP driver stub. Implement protocol for your terminal vendor.",
		Payload: map[string]any{
			"uuid":          req.SessionToken,
			"terminal_ip":   ip,
			"terminal_port": port,
			"amount":        req.Amount.String(),
			"currency":      req.Currency,
		},
	}, nil
}

// TestConnection implements drivers.ConnectionTester. It only validates the
// configuration.
func (d *Driver) TestConnection(context.Context) drivers.ConnectivityResult {
	if d.cfg.String("terminal_ip") == "" || d.cfg.Int("terminal_port", 0) == 0 {
		return drivers.ConnectivityResult{OK: false, Message: "terminal_ip and terminal_port are required."}
	}
	return drivers.ConnectivityResult{OK: true, Message: "Configuration looks valid (connectivity test not implemented)."}
}
