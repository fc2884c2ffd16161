// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// CardTransaction ledger.
//
// The ledger is append-only: InsertTransaction always creates a new row and
// nothing here updates or deletes one. Uniqueness of (reference, mode of
// payment) is not a database constraint; callers check with the existence
// helpers before logging.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
)

// TransactionFilter narrows ledger listings. Empty fields are ignored.
type TransactionFilter struct {
	ReferenceDoctype string
	ReferenceName    string
	ModeOfPayment    string
	Status           string
}

func (f TransactionFilter) apply(q *gorm.DB) *gorm.DB {
	if f.ReferenceDoctype != "" {
		q = q.Where("reference_doctype = ?", f.ReferenceDoctype)
	}
	if f.ReferenceName != "" {
		q = q.Where("reference_name = ?", f.ReferenceName)
	}
	if f.ModeOfPayment != "" {
		q = q.Where("mode_of_payment = ?", f.ModeOfPayment)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// InsertTransaction appends tx to the ledger, assigning an ID and creation
// time when unset.
func InsertTransaction(ctx context.Context, db *gorm.DB, tx *domain.CardTransaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(tx).Error
}

// GetTransaction fetches a ledger row by ID.
func GetTransaction(ctx context.Context, db *gorm.DB, id string) (*domain.CardTransaction, error) {
	var tx domain.CardTransaction
	if err := db.WithContext(ctx).Where("id = ?", id).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindTransactionForSession returns the ledger row logged for a session
// token, or ErrNotFound.
func FindTransactionForSession(ctx context.Context, db *gorm.DB, token string) (*domain.CardTransaction, error) {
	var tx domain.CardTransaction
	err := db.WithContext(ctx).
		Where("session_token = ?", token).
		Order("created_at asc").
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CountTransactions returns the number of ledger rows matching f.
func CountTransactions(ctx context.Context, db *gorm.DB, f TransactionFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.CardTransaction{})).Count(&total).Error
	return total, err
}

// ListTransactionsPage returns a page of ledger rows matching f, newest first.
func ListTransactionsPage(ctx context.Context, db *gorm.DB, f TransactionFilter, offset, limit int) ([]domain.CardTransaction, error) {
	var out []domain.CardTransaction
	err := f.apply(db.WithContext(ctx)).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListTransactions returns every ledger row matching f, oldest first.
func ListTransactions(ctx context.Context, db *gorm.DB, f TransactionFilter) ([]domain.CardTransaction, error) {
	var out []domain.CardTransaction
	err := f.apply(db.WithContext(ctx)).Order("created_at asc").Find(&out).Error
	return out, err
}
