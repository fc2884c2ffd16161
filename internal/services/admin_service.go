// Package services – AdminService
//
// AdminService is the operator surface: terminal settings, mode-of-payment
// routing, and the driver catalog. It also runs connection tests and
// exposes the client-safe part of a driver's configuration. Settings are
// returned with secrets redacted.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
)

// Redacted replaces secret config values in API responses.
const Redacted = "********"

// AdminService manages configuration records.
type AdminService struct {
	DB *gorm.DB
	// TestTimeout bounds one connection test. Zero means 30s.
	TestTimeout time.Duration
}

// ListDrivers returns the active catalog in display order.
func (s *AdminService) ListDrivers(ctx context.Context) ([]domain.DriverDescriptor, error) {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "ListDrivers")
	defer span.End()

	return repo.ListActiveDrivers(ctx, s.DB)
}

// UpsertDriver validates and stores a catalog entry. Handler defaults to the
// code and must name a registered driver.
func (s *AdminService) UpsertDriver(ctx context.Context, d *domain.DriverDescriptor) error {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "UpsertDriver", trace.WithAttributes(attribute.String("driver.code", d.Code)))
	defer span.End()

	d.Code = strings.TrimSpace(d.Code)
	d.Name = strings.TrimSpace(d.Name)
	d.Handler = strings.TrimSpace(d.Handler)
	if d.Code == "" || d.Name == "" {
		return fmt.Errorf("%w: code and name are required", ErrInvalidInput)
	}
	if d.Handler == "" {
		d.Handler = d.Code
	}
	reg, ok := drivers.Lookup(d.Handler)
	if !ok {
		return fmt.Errorf("%w: handler %q is not registered", drivers.ErrConfiguration, d.Handler)
	}
	if d.Mode == "" {
		d.Mode = string(reg.Mode)
	}
	if !drivers.Mode(d.Mode).Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, d.Mode)
	}
	return repo.UpsertDriver(ctx, s.DB, d)
}

// SeedCatalog inserts a catalog entry for every registered driver that has
// none yet. Existing entries keep operator edits. It returns the number of
// entries added.
func (s *AdminService) SeedCatalog(ctx context.Context) (int64, error) {
	regs := drivers.Registrations()
	entries := make([]domain.DriverDescriptor, 0, len(regs))
	for i, r := range regs {
		entries = append(entries, domain.DriverDescriptor{
			Code:         r.Code,
			Name:         r.Name,
			Description:  r.Description,
			Mode:         string(r.Mode),
			Capabilities: datatypes.JSONSlice[string](r.Capabilities),
			Handler:      r.Code,
			Active:       true,
			SortOrder:    (i + 1) * 10,
		})
	}
	return repo.SeedDrivers(ctx, s.DB, entries)
}

// UpsertSettings stores a settings record. An explicit driver code must be
// resolvable through the catalog.
func (s *AdminService) UpsertSettings(ctx context.Context, st *domain.TerminalSettings) (*domain.TerminalSettings, error) {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "UpsertSettings", trace.WithAttributes(attribute.String("settings.name", st.Name)))
	defer span.End()

	st.Name = strings.TrimSpace(st.Name)
	st.DriverCode = strings.TrimSpace(st.DriverCode)
	if st.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if st.TimeoutSeconds < 0 || st.TerminalPort < 0 {
		return nil, fmt.Errorf("%w: timeout_seconds and terminal_port must not be negative", ErrInvalidInput)
	}
	if st.DriverCode != "" {
		if _, err := drivers.Resolve(ctx, *st, catalogLookup(s.DB)); err != nil {
			return nil, err
		}
	}
	if err := repo.UpsertSettings(ctx, s.DB, st); err != nil {
		return nil, err
	}
	return redact(st), nil
}

// GetSettings returns a settings record with secrets redacted.
func (s *AdminService) GetSettings(ctx context.Context, name string) (*domain.TerminalSettings, error) {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "GetSettings", trace.WithAttributes(attribute.String("settings.name", name)))
	defer span.End()

	st, err := s.settings(ctx, name)
	if err != nil {
		return nil, err
	}
	return redact(st), nil
}

// UpsertModeOfPayment stores a routing record. A non-empty settings name
// must exist.
func (s *AdminService) UpsertModeOfPayment(ctx context.Context, m *domain.ModeOfPayment) error {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "UpsertModeOfPayment", trace.WithAttributes(attribute.String("mode_of_payment", m.Name)))
	defer span.End()

	m.Name = strings.TrimSpace(m.Name)
	m.SettingsName = strings.TrimSpace(m.SettingsName)
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if m.SettingsName != "" {
		if _, err := s.settings(ctx, m.SettingsName); err != nil {
			return err
		}
	}
	return repo.UpsertModeOfPayment(ctx, s.DB, m)
}

// TestConnection runs the driver connection test for a settings record.
// Resolution failures are reported as a failed result, not an error.
func (s *AdminService) TestConnection(ctx context.Context, name string) (drivers.ConnectivityResult, error) {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "TestConnection", trace.WithAttributes(attribute.String("settings.name", name)))
	defer span.End()

	st, err := s.settings(ctx, name)
	if err != nil {
		return drivers.ConnectivityResult{}, err
	}
	resolved, err := drivers.Resolve(ctx, *st, catalogLookup(s.DB))
	if err != nil {
		return drivers.ConnectivityResult{OK: false, Message: configMessage(err)}, nil
	}

	limit := s.TestTimeout
	if limit <= 0 {
		limit = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	res := drivers.TestConnection(ctx, resolved.Driver)
	span.SetAttributes(attribute.Bool("ok", res.OK))
	return res, nil
}

// ClientConfig returns the client-safe configuration of the settings' driver.
func (s *AdminService) ClientConfig(ctx context.Context, name string) (map[string]any, error) {
	tr := otel.Tracer("services/AdminService")
	ctx, span := tr.Start(ctx, "ClientConfig", trace.WithAttributes(attribute.String("settings.name", name)))
	defer span.End()

	st, err := s.settings(ctx, name)
	if err != nil {
		return nil, err
	}
	resolved, err := drivers.Resolve(ctx, *st, catalogLookup(s.DB))
	if err != nil {
		return nil, err
	}
	return drivers.ClientConfig(resolved.Driver), nil
}

func (s *AdminService) settings(ctx context.Context, name string) (*domain.TerminalSettings, error) {
	st, err := repo.GetSettings(ctx, s.DB, strings.TrimSpace(name))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSettingsNotFound
	}
	return st, err
}

// redact returns a copy of st whose config blob hides secret values.
func redact(st *domain.TerminalSettings) *domain.TerminalSettings {
	out := *st
	out.CallbackSecret = ""
	if st.Config != nil {
		out.Config = make(datatypes.JSONMap, len(st.Config))
		for k, v := range st.Config {
			if isSecretKey(k) {
				v = Redacted
			}
			out.Config[k] = v
		}
	}
	return &out
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	if k == "public_key" || k == "publishable_key" {
		return false
	}
	for _, frag := range []string{"secret", "password", "private", "api_key", "token"} {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}
