// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// operator-owned configuration: terminal settings, mode-of-payment routing
// and the driver catalog.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. Missing rows surface as ErrNotFound.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetSettings fetches a TerminalSettings record by name.
func GetSettings(ctx context.Context, db *gorm.DB, name string) (*domain.TerminalSettings, error) {
	var s domain.TerminalSettings
	if err := db.WithContext(ctx).Where("name = ?", name).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSettings inserts s or replaces every non-key column of an existing
// record with the same name.
func UpsertSettings(ctx context.Context, db *gorm.DB, s *domain.TerminalSettings) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, UpdateAll: true}).
		Create(s).Error
}

// GetModeOfPayment fetches the routing record for a mode of payment.
func GetModeOfPayment(ctx context.Context, db *gorm.DB, name string) (*domain.ModeOfPayment, error) {
	var m domain.ModeOfPayment
	if err := db.WithContext(ctx).Where("name = ?", name).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertModeOfPayment inserts or replaces a routing record.
func UpsertModeOfPayment(ctx context.Context, db *gorm.DB, m *domain.ModeOfPayment) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, UpdateAll: true}).
		Create(m).Error
}

// ListModesOfPayment returns the routing records with the given names.
func ListModesOfPayment(ctx context.Context, db *gorm.DB, names []string) ([]domain.ModeOfPayment, error) {
	var out []domain.ModeOfPayment
	if len(names) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("name IN ?", names).Find(&out).Error
	return out, err
}

// GetDriver fetches a catalog entry by code.
func GetDriver(ctx context.Context, db *gorm.DB, code string) (*domain.DriverDescriptor, error) {
	var d domain.DriverDescriptor
	if err := db.WithContext(ctx).Where("code = ?", code).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListActiveDrivers returns active catalog entries ordered by sort order, then code.
func ListActiveDrivers(ctx context.Context, db *gorm.DB) ([]domain.DriverDescriptor, error) {
	var out []domain.DriverDescriptor
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("sort_order asc").
		Order("code asc").
		Find(&out).Error
	return out, err
}

// UpsertDriver inserts or replaces a catalog entry.
func UpsertDriver(ctx context.Context, db *gorm.DB, d *domain.DriverDescriptor) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, UpdateAll: true}).
		Create(d).Error
}

// SeedDrivers inserts the given entries, leaving existing codes untouched so
// operator edits (deactivation, renames) survive restarts. It returns the
// number of rows inserted.
func SeedDrivers(ctx context.Context, db *gorm.DB, entries []domain.DriverDescriptor) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&entries)
	return res.RowsAffected, res.Error
}
