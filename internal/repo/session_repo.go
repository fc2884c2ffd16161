// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// TerminalSession model.
//
// Sessions are an audit trail: rows are created once and never deleted.
// Status changes go through FinalizeSession, a compare-and-swap on
// status='PENDING', so concurrent finalizers cannot move a session twice.
package repo

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
)

// CreateSession inserts a new session row.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.TerminalSession) error {
	return db.WithContext(ctx).Create(s).Error
}

// GetSessionByToken fetches a session by its correlation token.
func GetSessionByToken(ctx context.Context, db *gorm.DB, token string) (*domain.TerminalSession, error) {
	var s domain.TerminalSession
	if err := db.WithContext(ctx).Where("correlation_token = ?", token).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// FindSessionByIdempotencyKey returns the oldest session created for
// (modeOfPayment, key), or ErrNotFound.
func FindSessionByIdempotencyKey(ctx context.Context, db *gorm.DB, modeOfPayment, key string) (*domain.TerminalSession, error) {
	var s domain.TerminalSession
	err := db.WithContext(ctx).
		Where("mode_of_payment = ? AND idempotency_key = ?", modeOfPayment, key).
		Order("started_on asc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSessionRequest stores the outbound payload sent to the driver. It
// returns ErrNotFound when no session has the token.
func SetSessionRequest(ctx context.Context, db *gorm.DB, token string, payload datatypes.JSON) error {
	res := db.WithContext(ctx).
		Model(&domain.TerminalSession{}).
		Where("correlation_token = ?", token).
		Update("request_payload", payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FinalizeSession moves a PENDING session to status and records the response
// and completion time. It reports false when the session was not PENDING
// (already finalized by another path) or does not exist.
func FinalizeSession(ctx context.Context, db *gorm.DB, token string, status domain.Status, response datatypes.JSON, completedOn time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.TerminalSession{}).
		Where("correlation_token = ? AND status = ?", token, domain.StatusPending).
		Updates(map[string]any{
			"status":           status,
			"response_payload": response,
			"completed_on":     completedOn,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdatePendingResponse records a progress payload on a session that is
// still PENDING. Finalized sessions are left untouched.
func UpdatePendingResponse(ctx context.Context, db *gorm.DB, token string, response datatypes.JSON) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.TerminalSession{}).
		Where("correlation_token = ? AND status = ?", token, domain.StatusPending).
		Update("response_payload", response)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// LinkSessionTransaction records the ledger row created for a session.
func LinkSessionTransaction(ctx context.Context, db *gorm.DB, token, transactionID string) error {
	return db.WithContext(ctx).
		Model(&domain.TerminalSession{}).
		Where("correlation_token = ?", token).
		Update("transaction_id", transactionID).Error
}
