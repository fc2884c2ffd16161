// Package mqttbridge implements the agent-over-MQTT pattern: the gateway
// publishes a capture request to a topic an on-site agent subscribes to, and
// the agent posts the terminal result back to the callback endpoint.
//
// Two flavours are registered. mqtt_async_bridge is the vendor-neutral
// bridge; android_mada_mqtt targets the Android Mada agent, which expects
// the device code as topic and an invoice_number field.
package mqttbridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
)

const (
	// AsyncBridgeCode is the registry code of the generic bridge.
	AsyncBridgeCode = "mqtt_async_bridge"
	// AndroidMadaCode is the registry code of the Android Mada agent.
	AndroidMadaCode = "android_mada_mqtt"

	transport        = "MQTT"
	defaultPort      = 1883
	defaultKeepAlive = 60
	defaultQoS       = 1
)

func init() {
	drivers.Register(drivers.Registration{
		Code:         AsyncBridgeCode,
		Name:         "MQTT Async Bridge (Agent + Callback)",
		Description:  "Publishes the capture to an MQTT topic; the agent posts the result to the callback URL.",
		Mode:         drivers.ModeAsyncCallback,
		Capabilities: []string{"sale", "callback", "mqtt_publish"},
		New:          NewAsyncBridge,
	})
	drivers.Register(drivers.Registration{
		Code:         AndroidMadaCode,
		Name:         "Android Mada Agent (MQTT + Callback)",
		Description:  "Publishes to the Android agent's device topic; the agent runs Mada and posts the result back.",
		Mode:         drivers.ModeAsyncCallback,
		Capabilities: []string{"sale", "callback", "mqtt_publish"},
		New:          NewAndroidMada,
	})
}

// Driver publishes capture requests for an on-site agent.
type Driver struct {
	cfg     drivers.Config
	android bool
}

// NewAsyncBridge builds the generic bridge for settings.
func NewAsyncBridge(settings domain.TerminalSettings) drivers.Driver {
	return &Driver{cfg: drivers.MergeConfig(settings)}
}

// NewAndroidMada builds the Android Mada flavour for settings.
func NewAndroidMada(settings domain.TerminalSettings) drivers.Driver {
	return &Driver{cfg: drivers.MergeConfig(settings), android: true}
}

// Mode implements drivers.Driver.
func (d *Driver) Mode() drivers.Mode { return drivers.ModeAsyncCallback }

// StartCapture implements drivers.Driver. The request is published only when
// publish_from_erp is set; otherwise the payload is returned for an external
// publisher.
func (d *Driver) StartCapture(ctx context.Context, req drivers.CaptureRequest) (drivers.CaptureResult, error) {
	payload, topic := d.agentPayload(req)
	message := "Request prepared. Await device callback to complete."
	if d.android {
		message = "Android agent should execute Mada and POST callback to ERP."
	}

	if d.cfg.Flag("publish_from_erp") {
		host := d.cfg.String("broker_host")
		if host == "" || topic == "" {
			return d.failed("Missing broker_host/topic in config.", payload), nil
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return d.failed(err.Error(), payload), nil
		}
		b := Broker{
			Host:      host,
			Port:      d.cfg.Int("broker_port", defaultPort),
			Username:  d.cfg.String("username"),
			Password:  d.cfg.String("password"),
			UseTLS:    d.cfg.Flag("use_ssl"),
			KeepAlive: time.Duration(d.cfg.Int("keepalive", defaultKeepAlive)) * time.Second,
		}
		if err := publish(ctx, b, topic, byte(d.cfg.Int("qos", defaultQoS)), body); err != nil {
			return d.failed(err.Error(), payload), nil
		}
		message = "Request published to " + topic + ". Await device callback to complete."
	}

	return drivers.CaptureResult{
		Status:    domain.StatusPending,
		Mode:      drivers.ModeAsyncCallback,
		Transport: transport,
		Message:   message,
		Payload:   payload,
	}, nil
}

func (d *Driver) failed(msg string, payload map[string]any) drivers.CaptureResult {
	res := drivers.Failed(drivers.ModeAsyncCallback, msg)
	res.Transport = transport
	res.Payload = payload
	return res
}

// agentPayload builds the message the agent receives and the topic to use.
func (d *Driver) agentPayload(req drivers.CaptureRequest) (map[string]any, string) {
	correlation := drivers.FirstNonEmpty(req.SessionToken, req.IdempotencyKey)
	currency := drivers.FirstNonEmpty(req.Currency, d.cfg.String("currency"), "SAR")
	callback := drivers.FirstNonEmpty(d.cfg.String("callback_url"), req.CallbackURL)

	if d.android {
		device := d.cfg.String("device_code")
		topic := drivers.FirstNonEmpty(d.cfg.String("topic"), device)
		return map[string]any{
			"uuid":           correlation,
			"amount":         req.Amount.String(),
			"currency":       currency,
			"invoice_number": req.ReferenceName,
			"callback_url":   callback,
			"device_code":    device,
			"topic":          topic,
			"merchant_id":    d.cfg.String("merchant_id"),
			"terminal_id":    d.cfg.String("terminal_id"),
			"operation":      drivers.FirstNonEmpty(d.cfg.String("operation"), "SALE"),
		}, topic
	}

	if correlation == "" {
		correlation = uuid.NewString()
	}
	return map[string]any{
		"uuid":              correlation,
		"amount":            req.Amount.String(),
		"currency":          currency,
		"mode_of_payment":   req.ModeOfPayment,
		"reference_doctype": req.ReferenceDoctype,
		"reference_name":    req.ReferenceName,
		"callback_url":      callback,
		"merchant_id":       d.cfg.String("merchant_id"),
		"terminal_id":       d.cfg.String("terminal_id"),
	}, d.cfg.String("topic")
}

// TestConnection implements drivers.ConnectionTester by validating the
// broker settings when publishing from the gateway is enabled.
func (d *Driver) TestConnection(context.Context) drivers.ConnectivityResult {
	if !d.cfg.Flag("publish_from_erp") {
		return drivers.ConnectivityResult{OK: true, Message: "Publishing is delegated to an external agent."}
	}
	_, topic := d.agentPayload(drivers.CaptureRequest{})
	if d.cfg.String("broker_host") == "" || topic == "" {
		return drivers.ConnectivityResult{OK: false, Message: "Missing broker_host/topic in config."}
	}
	return drivers.ConnectivityResult{OK: true, Message: "Broker configuration looks valid."}
}
