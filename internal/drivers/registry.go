package drivers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
)

// NewFunc builds a driver for one settings record.
type NewFunc func(settings domain.TerminalSettings) Driver

// Registration describes a built-in driver and how to construct it.
// Code doubles as the handler name that catalog entries refer to.
type Registration struct {
	Code         string
	Name         string
	Description  string
	Mode         Mode
	Capabilities []string
	New          NewFunc
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Registration)
)

// Register adds a driver constructor to the registry.
// This is called from each driver package's init() function. A second
// registration under the same code is ignored.
func Register(r Registration) {
	if strings.TrimSpace(r.Code) == "" || r.New == nil {
		panic("drivers: Register requires a code and a constructor")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[r.Code]; exists {
		return
	}
	registry[r.Code] = r
}

// Lookup returns the registration for handler code.
func Lookup(code string) (Registration, bool) {
	mu.RLock()
	defer mu.RUnlock()
	r, ok := registry[code]
	return r, ok
}

// Registrations returns every registered driver ordered by code.
func Registrations() []Registration {
	mu.RLock()
	out := make([]Registration, 0, len(registry))
	for _, r := range registry {
		out = append(out, r)
	}
	mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// DefaultDriver is used when settings carry neither a driver reference nor a
// known legacy provider.
const DefaultDriver = "simulator"

// legacyProviders maps the old provider select values to driver codes.
var legacyProviders = map[string]string{
	"Generic REST":             "generic_rest",
	"Local Bridge (localhost)": "local_bridge",
	"Network TCP":              "network_tcp",
}

// CatalogLookup fetches a catalog entry by code. It returns (nil, nil) when
// no entry exists.
type CatalogLookup func(ctx context.Context, code string) (*domain.DriverDescriptor, error)

// Resolved is a driver instance together with the code it was resolved to.
type Resolved struct {
	Code   string
	Driver Driver
}

// Resolve maps settings to a fresh driver instance.
//
// An explicit DriverCode goes through the catalog: the entry must exist, be
// active, and name a registered handler. Otherwise the legacy Provider value
// picks a built-in driver, defaulting to the simulator. Every failure wraps
// ErrConfiguration.
func Resolve(ctx context.Context, settings domain.TerminalSettings, lookup CatalogLookup) (Resolved, error) {
	handler := ""
	code := strings.TrimSpace(settings.DriverCode)
	if code != "" {
		if lookup == nil {
			return Resolved{}, fmt.Errorf("%w: no driver catalog available for %q", ErrConfiguration, code)
		}
		d, err := lookup(ctx, code)
		if err != nil {
			return Resolved{}, fmt.Errorf("%w: load driver %q: %v", ErrConfiguration, code, err)
		}
		if d == nil {
			return Resolved{}, fmt.Errorf("%w: driver %q is not in the catalog", ErrConfiguration, code)
		}
		if !d.Active {
			return Resolved{}, fmt.Errorf("%w: driver %q is deactivated", ErrConfiguration, code)
		}
		handler = strings.TrimSpace(d.Handler)
	} else {
		code = DefaultDriver
		if mapped, ok := legacyProviders[strings.TrimSpace(settings.Provider)]; ok {
			code = mapped
		}
		handler = code
	}

	reg, ok := Lookup(handler)
	if !ok {
		return Resolved{}, fmt.Errorf("%w: handler %q for driver %q is not registered", ErrConfiguration, handler, code)
	}
	drv := reg.New(settings)
	if drv == nil {
		return Resolved{}, fmt.Errorf("%w: handler %q returned no driver", ErrContractViolation, handler)
	}
	return Resolved{Code: code, Driver: drv}, nil
}
