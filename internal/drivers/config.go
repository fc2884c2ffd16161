package drivers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/sysutil"
)

// Config is the merged view of a settings record that drivers read from.
type Config map[string]any

// MergeConfig flattens the explicit connection fields of s and then lets the
// free-form config blob override them. Empty fields are omitted.
func MergeConfig(s domain.TerminalSettings) Config {
	cfg := Config{}
	put := func(k string, v any) {
		switch x := v.(type) {
		case string:
			if strings.TrimSpace(x) == "" {
				return
			}
		case int:
			if x == 0 {
				return
			}
		}
		cfg[k] = v
	}
	put("endpoint_url", s.EndpointURL)
	put("terminal_ip", s.TerminalIP)
	put("terminal_port", s.TerminalPort)
	put("timeout_seconds", s.TimeoutSeconds)
	put("merchant_id", s.MerchantID)
	put("terminal_id", s.TerminalID)
	put("provider", s.Provider)

	for k, v := range s.Config {
		cfg[k] = v
	}
	return cfg
}

// String returns the value at key rendered as a trimmed string, or "".
func (c Config) String(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// Int returns the value at key as an int, or def when missing or unparsable.
func (c Config) Int(key string, def int) int {
	switch x := c[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
			return n
		}
	}
	return def
}

// Flag reports whether key holds a truthy value (1, true, "1", "yes", "on").
func (c Config) Flag(key string) bool {
	switch x := c[key].(type) {
	case bool:
		return x
	case string:
		return sysutil.IsTruthy(x)
	}
	return c.Int(key, 0) == 1
}

// Timeout returns timeout_seconds as a duration, or def when unset.
func (c Config) Timeout(def time.Duration) time.Duration {
	if n := c.Int("timeout_seconds", 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// FirstNonEmpty returns the first non-empty string of vals.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
