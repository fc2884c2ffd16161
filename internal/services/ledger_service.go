// Package services – LedgerService
//
// LedgerService appends CardTransaction rows. Rows are never updated after
// insert; the only follow-up write is linking the row back to its session.
// When a row names a session that is still PENDING, the session is finalized
// from the row's own status so callers that log directly still close the
// session. A session gets at most one ledger row, and that row must carry a
// final status.
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
	"github.com/tbourn/card-terminal-gateway/internal/events"
	"github.com/tbourn/card-terminal-gateway/internal/observability"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
)

// LedgerService writes the permanent transaction ledger.
type LedgerService struct {
	DB     *gorm.DB
	Events events.Publisher

	// DefaultCurrency fills rows whose payload carries no currency.
	DefaultCurrency string
}

// Log records an arbitrary terminal payload. Recognized fields are copied
// into the row and the complete body is stored verbatim as the raw response.
func (s *LedgerService) Log(ctx context.Context, actor string, raw []byte) (*domain.CardTransaction, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "Log", trace.WithAttributes(attribute.String("user.id", actor)))
	defer span.End()

	payload, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	t := transactionFromPayload(payload)
	t.RawResponse = datatypes.JSON(raw)
	t.CreatedBy = actor
	if err := s.Record(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Record appends t in its own database transaction and then publishes the
// ledger event.
func (s *LedgerService) Record(ctx context.Context, t *domain.CardTransaction) error {
	err := s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return s.write(ctx, db, t)
	})
	if err != nil {
		return err
	}
	s.published(ctx, t)
	return nil
}

// write inserts t through db, applies the session safety net and links the
// session. It does not publish; callers do so after commit.
func (s *LedgerService) write(ctx context.Context, db *gorm.DB, t *domain.CardTransaction) error {
	if t.Currency == "" {
		t.Currency = s.DefaultCurrency
	}
	if len(t.RawResponse) == 0 {
		t.RawResponse = datatypes.JSON("{}")
	}
	token := strings.TrimSpace(t.SessionToken)
	st := domain.NormalizeStatus(t.Status)
	if token != "" {
		if !st.IsTerminal() {
			return fmt.Errorf("%w: status %q cannot close session %s", ErrInvalidInput, t.Status, token)
		}
		existing, err := repo.FindTransactionForSession(ctx, db, token)
		switch {
		case err == nil:
			return fmt.Errorf("%w: session %s has transaction %s", ErrAlreadyLogged, token, existing.ID)
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}
	}

	if err := repo.InsertTransaction(ctx, db, t); err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	if _, err := repo.FinalizeSession(ctx, db, token, st, t.RawResponse, t.CreatedAt); err != nil {
		return err
	}
	return repo.LinkSessionTransaction(ctx, db, token, t.ID)
}

// published counts the row and emits its event. Publishing failures are
// logged and swallowed.
func (s *LedgerService) published(ctx context.Context, t *domain.CardTransaction) {
	observability.ObserveLedgerEntry(t.Status)
	if s.Events == nil {
		return
	}
	if err := s.Events.TransactionLogged(ctx, t); err != nil {
		softFail(loggerFrom(ctx), "publish_ledger_event", t.SessionToken, err)
	}
}

// now is shared by the services so tests can pin the clock.
var now = func() time.Time { return time.Now().UTC() }

// ListPage returns one page of ledger rows matching f, newest first, with the
// total match count.
func (s *LedgerService) ListPage(ctx context.Context, f repo.TransactionFilter, page, pageSize int) ([]domain.CardTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	total, err := repo.CountTransactions(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CardTransaction{}, 0, nil
	}
	items, err := repo.ListTransactionsPage(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	return items, total, err
}
