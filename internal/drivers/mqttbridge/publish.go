package mqttbridge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Broker holds the connection settings read from the config blob.
type Broker struct {
	Host      string
	Port      int
	Username  string
	Password  string
	UseTLS    bool
	KeepAlive time.Duration
}

// URL renders the broker address in paho's scheme://host:port form.
func (b Broker) URL() string {
	scheme := "tcp"
	if b.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

const (
	connectTimeout = 10 * time.Second
	quiesceMillis  = 250
)

// publish sends one message and disconnects. Tests replace it.
var publish = pahoPublish

func pahoPublish(ctx context.Context, b Broker, topic string, qos byte, payload []byte) error {
	opts := mqtt.NewClientOptions().
		AddBroker(b.URL()).
		SetClientID("terminal-gateway-" + uuid.NewString()[:8]).
		SetKeepAlive(b.KeepAlive).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false)
	if b.Username != "" {
		opts.SetUsername(b.Username)
		opts.SetPassword(b.Password)
	}
	if b.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	client := mqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", b.URL(), err)
	}
	defer client.Disconnect(quiesceMillis)

	if err := wait(ctx, client.Publish(topic, qos, false, payload)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// wait blocks until tok completes or ctx is done.
func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return errors.Join(errors.New("mqtt operation did not complete"), ctx.Err())
	}
}
