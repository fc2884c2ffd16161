// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model used to implement safe-retry semantics for capture starts.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (actor, scope, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, actor, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("actor = ? AND scope = ? AND idem_key = ? AND expires_at > ?", actor, scope, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// IdempotencyEntry is the data recorded for one idempotent call.
type IdempotencyEntry struct {
	Actor       string
	Scope       string
	Key         string
	RequestHash string
	Status      int
	Response    datatypes.JSON
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
// Expired records for the same tuple are purged first so a key can be reused
// once its TTL has passed.
func CreateIdempotency(ctx context.Context, db *gorm.DB, e IdempotencyEntry, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	db = db.WithContext(ctx)
	if err := db.
		Where("actor = ? AND scope = ? AND idem_key = ? AND expires_at <= ?", e.Actor, e.Scope, e.Key, now).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}

	rec := &domain.Idempotency{
		ID:             uuid.NewString(),
		Actor:          e.Actor,
		Scope:          e.Scope,
		Key:            e.Key,
		RequestHash:    e.RequestHash,
		ResponseStatus: e.Status,
		Response:       e.Response,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
	if err := db.Create(rec).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// IsDuplicate detects unique-constraint violations across drivers that may
// not map to gorm.ErrDuplicatedKey.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite: "UNIQUE constraint failed"; Postgres: "duplicate key value";
	// MySQL: "Duplicate entry".
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key") ||
		strings.Contains(low, "duplicate entry")
}
