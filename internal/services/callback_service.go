// Package services – CallbackService
//
// CallbackService applies an inbound terminal notification to its session.
// It is the only unauthenticated network surface, so every delivery is
// authenticated against the raw body before the payload is even parsed.
//
// Flow: locate the session by correlation token, verify the HMAC signature
// (and any driver specific check), normalize the reported status, then
// either record a progress payload or finalize the session. Only the
// delivery that wins the PENDING compare-and-swap writes the ledger, so a
// repeated delivery is acknowledged without a second ledger row.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
	"github.com/tbourn/card-terminal-gateway/internal/observability"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
)

// CallbackService ingests asynchronous terminal results.
type CallbackService struct {
	DB     *gorm.DB
	Ledger *LedgerService

	// RequireSignature rejects callbacks when the session's settings have no
	// signing secret. When false such callbacks are accepted unverified.
	RequireSignature bool
}

// CallbackAck is the acknowledgement returned to the agent.
type CallbackAck struct {
	OK               bool          `json:"ok"`
	CorrelationToken string        `json:"correlation_token"`
	Status           domain.Status `json:"status"`
	TransactionID    string        `json:"transaction_id,omitempty"`
	Duplicate        bool          `json:"duplicate,omitempty"`
}

// Handle authenticates and applies one callback delivery.
//
// Errors: ErrSessionNotFound for an unknown token, an ErrAuthentication
// wrapper for signature failures, ErrInvalidInput for a body that is not a
// JSON object. None of them mutate the session.
func (s *CallbackService) Handle(ctx context.Context, token string, raw []byte, header http.Header) (*CallbackAck, error) {
	tr := otel.Tracer("services/CallbackService")
	ctx, span := tr.Start(ctx, "Handle", trace.WithAttributes(attribute.String("session.token", token)))
	defer span.End()

	token = strings.TrimSpace(token)
	sess, err := repo.GetSessionByToken(ctx, s.DB, token)
	if errors.Is(err, repo.ErrNotFound) {
		observability.ObserveCallback(observability.CallbackNotFound)
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.authenticate(ctx, sess, raw, header); err != nil {
		observability.ObserveCallback(observability.CallbackUnauthorized)
		loggerFrom(ctx).Warn().Err(err).Str("correlation_token", token).Msg("callback rejected")
		return nil, err
	}

	payload, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	status := domain.NormalizeStatus(field(payload, "status", "result"))
	span.SetAttributes(attribute.String("status", string(status)))
	body := datatypes.JSON(raw)

	if status == domain.StatusPending {
		updated, err := repo.UpdatePendingResponse(ctx, s.DB, token, body)
		if err != nil {
			return nil, err
		}
		ack := &CallbackAck{OK: true, CorrelationToken: token, Status: domain.StatusPending}
		if !updated {
			// Late progress after the verdict; report where the session is.
			ack.Status = sess.Status
			if cur, err := repo.GetSessionByToken(ctx, s.DB, token); err == nil {
				ack.Status = cur.Status
			}
		}
		observability.ObserveCallback(observability.CallbackProgress)
		return ack, nil
	}

	var t *domain.CardTransaction
	if status.IsOutcome() && s.Ledger != nil {
		t = transactionFromPayload(payload)
		t.Status = status.LedgerLabel()
		if t.Amount.IsZero() {
			t.Amount = sess.Amount
		}
		t.Currency = drivers.FirstNonEmpty(t.Currency, sess.Currency)
		t.ReferenceDoctype = drivers.FirstNonEmpty(t.ReferenceDoctype, sess.ReferenceDoctype)
		t.ReferenceName = drivers.FirstNonEmpty(t.ReferenceName, sess.ReferenceName)
		t.ModeOfPayment = sess.ModeOfPayment
		t.SessionToken = token
		t.RawResponse = body
		t.CreatedBy = sess.CreatedBy
	}

	won := false
	err = s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var err error
		won, err = repo.FinalizeSession(ctx, db, token, status, body, now())
		if err != nil || !won || t == nil {
			return err
		}
		return s.Ledger.write(ctx, db, t)
	})
	if err != nil {
		return nil, err
	}

	if !won {
		cur, err := repo.GetSessionByToken(ctx, s.DB, token)
		if err != nil {
			return nil, err
		}
		observability.ObserveCallback(observability.CallbackDuplicate)
		return &CallbackAck{
			OK:               true,
			CorrelationToken: token,
			Status:           cur.Status,
			TransactionID:    cur.TransactionID,
			Duplicate:        true,
		}, nil
	}

	ack := &CallbackAck{OK: true, CorrelationToken: token, Status: status}
	if t != nil {
		s.Ledger.published(ctx, t)
		ack.TransactionID = t.ID
	}
	observability.ObserveCallback(observability.CallbackApplied)
	return ack, nil
}

// authenticate runs the shared HMAC check and the driver's own check.
func (s *CallbackService) authenticate(ctx context.Context, sess *domain.TerminalSession, raw []byte, header http.Header) error {
	var settings domain.TerminalSettings
	if sess.SettingsName != "" {
		st, err := repo.GetSettings(ctx, s.DB, sess.SettingsName)
		switch {
		case err == nil:
			settings = *st
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}
	}

	secret := drivers.FirstNonEmpty(drivers.MergeConfig(settings).String("callback_secret"), settings.CallbackSecret)
	switch {
	case secret != "":
		if err := VerifySignature(secret, raw, header.Get(SignatureHeader)); err != nil {
			return err
		}
	case s.RequireSignature:
		return fmt.Errorf("%w: no callback secret configured for settings %q", ErrMissingSignature, settings.Name)
	default:
		loggerFrom(ctx).Warn().Str("correlation_token", sess.CorrelationToken).Msg("accepting unsigned callback")
	}

	if sess.SettingsName == "" {
		return nil
	}
	resolved, err := drivers.Resolve(ctx, settings, catalogLookup(s.DB))
	if err != nil {
		// The driver may have been removed since the session opened; the
		// HMAC check above still applies.
		loggerFrom(ctx).Warn().Err(err).Str("correlation_token", sess.CorrelationToken).Msg("callback driver unavailable")
		return nil
	}
	if v := drivers.VerifyCallback(resolved.Driver, raw, header); !v.OK {
		msg := v.Message
		if msg == "" {
			msg = "rejected by driver"
		}
		return fmt.Errorf("%w: %s", ErrInvalidSignature, msg)
	}
	return nil
}
