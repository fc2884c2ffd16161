// Package services – CaptureService
//
// CaptureService turns a capture intent into a driver invocation and
// reconciles the immediate outcome. Configuration and driver failures come
// back as ERROR results, never as errors, so a capture call cannot break the
// calling workflow. Session bookkeeping is best-effort: failures are logged
// and attached to the outcome while the driver result stays authoritative.
//
// It also owns session creation for async-first flows and the session status
// query.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
	"github.com/tbourn/card-terminal-gateway/internal/observability"
	"github.com/tbourn/card-terminal-gateway/internal/repo"
)

// CaptureIdempotencyScope namespaces capture keys in the idempotency table.
const CaptureIdempotencyScope = "captures"

// CaptureService coordinates drivers, sessions and the ledger.
type CaptureService struct {
	DB     *gorm.DB
	Ledger *LedgerService

	DefaultCurrency string
	// DriverTimeout bounds one StartCapture call. Zero means 60s.
	DriverTimeout time.Duration
	// CallbackBaseURL, when set, is joined with the session token to give
	// async drivers a callback_url.
	CallbackBaseURL string
	// IdempotencyTTL is how long a stored capture result can be replayed.
	// Zero means 24h.
	IdempotencyTTL time.Duration
}

// CaptureInput is one capture intent.
type CaptureInput struct {
	ModeOfPayment    string          `json:"mode_of_payment"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency,omitempty"`
	ReferenceDoctype string          `json:"reference_doctype,omitempty"`
	ReferenceName    string          `json:"reference_name,omitempty"`
	SettingsName     string          `json:"settings_name,omitempty"`
	SessionToken     string          `json:"session_token,omitempty"`
	IdempotencyKey   string          `json:"idempotency_key,omitempty"`
	Actor            string          `json:"-"`
}

// CaptureOutcome is the driver result plus what the gateway did with it.
type CaptureOutcome struct {
	drivers.CaptureResult
	Driver        string       `json:"driver,omitempty"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Replayed      bool         `json:"replayed,omitempty"`
	BestEffort    []BestEffort `json:"best_effort,omitempty"`
}

// normalize trims input and applies defaults. It reports invalid input.
func (in *CaptureInput) normalize(defaultCurrency string) error {
	in.ModeOfPayment = strings.TrimSpace(in.ModeOfPayment)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.ReferenceDoctype = strings.TrimSpace(in.ReferenceDoctype)
	in.ReferenceName = strings.TrimSpace(in.ReferenceName)
	in.SettingsName = strings.TrimSpace(in.SettingsName)
	in.SessionToken = strings.TrimSpace(in.SessionToken)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.Currency == "" {
		in.Currency = defaultCurrency
	}
	if in.ModeOfPayment == "" {
		return fmt.Errorf("%w: mode_of_payment is required", ErrInvalidInput)
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// requestHash fingerprints the parts of a capture that must match on replay.
func (in CaptureInput) requestHash() string {
	h := sha256.New()
	for _, part := range []string{
		in.ModeOfPayment, in.Amount.String(), in.Currency,
		in.ReferenceDoctype, in.ReferenceName, in.SettingsName, in.SessionToken,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *CaptureService) timeout() time.Duration {
	if s.DriverTimeout > 0 {
		return s.DriverTimeout
	}
	return 60 * time.Second
}

func (s *CaptureService) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

// Start runs one capture attempt.
//
// The returned error is non-nil only for invalid input, idempotency
// conflicts, storage failures before the driver ran, and driver contract
// violations. Everything else, including "not configured", is an ERROR
// result.
func (s *CaptureService) Start(ctx context.Context, in CaptureInput) (*CaptureOutcome, error) {
	tr := otel.Tracer("services/CaptureService")
	ctx, span := tr.Start(ctx, "Start",
		trace.WithAttributes(
			attribute.String("mode_of_payment", in.ModeOfPayment),
			attribute.String("session.token", in.SessionToken),
			attribute.String("user.id", in.Actor),
		),
	)
	defer span.End()

	if err := in.normalize(s.DefaultCurrency); err != nil {
		return nil, err
	}

	hash := in.requestHash()
	if in.IdempotencyKey != "" {
		rec, err := repo.GetIdempotency(ctx, s.DB, in.Actor, CaptureIdempotencyScope, in.IdempotencyKey, now())
		switch {
		case err == nil:
			if rec.RequestHash != hash {
				return nil, ErrIdempotencyMismatch
			}
			var out CaptureOutcome
			if err := json.Unmarshal(rec.Response, &out); err != nil {
				return nil, err
			}
			out.Replayed = true
			return &out, nil
		case !errors.Is(err, repo.ErrNotFound):
			return nil, err
		}
	}

	out, err := s.run(ctx, in)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("driver", out.Driver), attribute.String("status", string(out.Status)))
	observability.ObserveCapture(out.Driver, string(out.Status))

	if in.IdempotencyKey != "" && out.Status != domain.StatusError {
		_, err := repo.CreateIdempotency(ctx, s.DB, repo.IdempotencyEntry{
			Actor:       in.Actor,
			Scope:       CaptureIdempotencyScope,
			Key:         in.IdempotencyKey,
			RequestHash: hash,
			Status:      200,
			Response:    asJSON(out),
		}, s.idempotencyTTL())
		if err != nil && !errors.Is(err, repo.ErrDuplicate) {
			out.BestEffort = append(out.BestEffort, softFail(loggerFrom(ctx), "store_idempotency", in.SessionToken, err))
		}
	}
	return out, nil
}

func (s *CaptureService) run(ctx context.Context, in CaptureInput) (*CaptureOutcome, error) {
	settings, err := loadSettings(ctx, s.DB, in.SettingsName, in.ModeOfPayment)
	if errors.Is(err, drivers.ErrConfiguration) {
		return &CaptureOutcome{CaptureResult: drivers.Failed("", configMessage(err))}, nil
	}
	if err != nil {
		return nil, err
	}

	resolved, err := drivers.Resolve(ctx, *settings, catalogLookup(s.DB))
	switch {
	case errors.Is(err, drivers.ErrContractViolation):
		return nil, err
	case err != nil:
		return &CaptureOutcome{CaptureResult: drivers.Failed("", configMessage(err))}, nil
	}

	req := drivers.CaptureRequest{
		ModeOfPayment:    in.ModeOfPayment,
		Amount:           in.Amount,
		Currency:         in.Currency,
		ReferenceDoctype: in.ReferenceDoctype,
		ReferenceName:    in.ReferenceName,
		IdempotencyKey:   in.IdempotencyKey,
		SessionToken:     in.SessionToken,
	}
	if in.SessionToken != "" && s.CallbackBaseURL != "" {
		req.CallbackURL = strings.TrimRight(s.CallbackBaseURL, "/") + "/" + in.SessionToken
	}

	out := &CaptureOutcome{Driver: resolved.Code}
	l := loggerFrom(ctx).With().Str("driver", resolved.Code).Str("correlation_token", in.SessionToken).Logger()

	if in.SessionToken != "" {
		if err := repo.SetSessionRequest(ctx, s.DB, in.SessionToken, asJSON(req)); err != nil {
			out.BestEffort = append(out.BestEffort, softFail(&l, "store_session_request", in.SessionToken, err))
		}
	}

	res := s.invoke(ctx, resolved.Driver, req)
	out.CaptureResult = res

	if !res.Status.IsTerminal() {
		return out, nil
	}

	txID, sessionMissing, err := s.settle(ctx, in, settings, res)
	if err != nil {
		out.BestEffort = append(out.BestEffort, softFail(&l, "settle_capture", in.SessionToken, err))
	}
	if sessionMissing {
		out.BestEffort = append(out.BestEffort, softFail(&l, "finalize_session", in.SessionToken, ErrSessionNotFound))
	}
	out.TransactionID = txID
	return out, nil
}

// invoke calls the driver under the driver timeout. A panic, a timeout, a
// driver error or a status the driver may not return all become ERROR
// results; the last two are logged as contract violations.
func (s *CaptureService) invoke(ctx context.Context, d drivers.Driver, req drivers.CaptureRequest) drivers.CaptureResult {
	limit := s.timeout()
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type reply struct {
		res drivers.CaptureResult
		err error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- reply{res: drivers.Failed(d.Mode(), fmt.Sprintf("Driver failed: %v", p))}
			}
		}()
		res, err := d.StartCapture(ctx, req)
		done <- reply{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return contractViolation(ctx, d, r.err)
		}
		st, ok := domain.ParseStatus(string(r.res.Status))
		if !ok || st == domain.StatusCancelled {
			return contractViolation(ctx, d, fmt.Errorf("driver returned status %q", r.res.Status))
		}
		r.res.Status = st
		if r.res.Mode == "" {
			r.res.Mode = d.Mode()
		}
		return r.res
	case <-ctx.Done():
		return drivers.Failed(d.Mode(), fmt.Sprintf("Driver timed out after %s.", limit))
	}
}

func contractViolation(ctx context.Context, d drivers.Driver, cause error) drivers.CaptureResult {
	err := fmt.Errorf("%w: %v", drivers.ErrContractViolation, cause)
	loggerFrom(ctx).Error().Err(err).Str("mode", string(d.Mode())).Msg("driver broke the capture contract")
	return drivers.Failed(d.Mode(), fmt.Sprintf("Driver failed: %v", cause))
}

// settle finalizes the session for a terminal result and, for an approval
// or decline, writes the ledger row. With a session only the caller that
// wins the PENDING compare-and-swap writes the ledger. An unknown session
// token does not block the row; sessionMissing reports it instead.
func (s *CaptureService) settle(ctx context.Context, in CaptureInput, settings *domain.TerminalSettings, res drivers.CaptureResult) (txID string, sessionMissing bool, err error) {
	t := &domain.CardTransaction{}
	if res.Status.IsOutcome() && s.Ledger != nil {
		t = transactionFromPayload(res.Response)
		t.Status = res.Status.LedgerLabel()
		t.Amount = in.Amount
		t.Currency = in.Currency
		t.ReferenceDoctype = in.ReferenceDoctype
		t.ReferenceName = in.ReferenceName
		t.ModeOfPayment = in.ModeOfPayment
		t.SessionToken = in.SessionToken
		t.TerminalID = drivers.FirstNonEmpty(t.TerminalID, settings.TerminalID)
		t.MerchantID = drivers.FirstNonEmpty(t.MerchantID, settings.MerchantID)
		t.RawResponse = asJSON(res.Response)
		t.CreatedBy = in.Actor
	}
	write := t.Status != ""

	err = s.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if in.SessionToken != "" {
			won, err := repo.FinalizeSession(ctx, db, in.SessionToken, res.Status, asJSON(res.Response), now())
			if err != nil {
				return err
			}
			if !won {
				_, err := repo.GetSessionByToken(ctx, db, in.SessionToken)
				switch {
				case errors.Is(err, gorm.ErrRecordNotFound):
					sessionMissing = true
				case err != nil:
					return err
				default:
					write = false
					return nil
				}
			}
		}
		if !write {
			return nil
		}
		return s.Ledger.write(ctx, db, t)
	})
	if err != nil || !write {
		return "", sessionMissing, err
	}
	s.Ledger.published(ctx, t)
	return t.ID, sessionMissing, nil
}

// CreateSessionInput is the snapshot taken when an async-first flow opens a
// session.
type CreateSessionInput struct {
	ModeOfPayment    string          `json:"mode_of_payment"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency,omitempty"`
	ReferenceDoctype string          `json:"reference_doctype,omitempty"`
	ReferenceName    string          `json:"reference_name,omitempty"`
	SettingsName     string          `json:"settings_name,omitempty"`
	IdempotencyKey   string          `json:"idempotency_key,omitempty"`
	Actor            string          `json:"-"`
}

// CreateSession opens a PENDING session with a fresh correlation token.
// With an idempotency key, the session already opened for (mode of payment,
// key) is returned instead and created is false.
func (s *CaptureService) CreateSession(ctx context.Context, in CreateSessionInput) (sess *domain.TerminalSession, created bool, err error) {
	tr := otel.Tracer("services/CaptureService")
	ctx, span := tr.Start(ctx, "CreateSession",
		trace.WithAttributes(
			attribute.String("mode_of_payment", in.ModeOfPayment),
			attribute.String("user.id", in.Actor),
		),
	)
	defer span.End()

	ci := CaptureInput{
		ModeOfPayment:    in.ModeOfPayment,
		Amount:           in.Amount,
		Currency:         in.Currency,
		ReferenceDoctype: in.ReferenceDoctype,
		ReferenceName:    in.ReferenceName,
		SettingsName:     in.SettingsName,
		IdempotencyKey:   in.IdempotencyKey,
	}
	if err := ci.normalize(s.DefaultCurrency); err != nil {
		return nil, false, err
	}

	if ci.IdempotencyKey != "" {
		existing, err := repo.FindSessionByIdempotencyKey(ctx, s.DB, ci.ModeOfPayment, ci.IdempotencyKey)
		switch {
		case err == nil:
			return existing, false, nil
		case !errors.Is(err, repo.ErrNotFound):
			return nil, false, err
		}
	}

	settings, err := loadSettings(ctx, s.DB, ci.SettingsName, ci.ModeOfPayment)
	if err != nil {
		return nil, false, err
	}
	resolved, err := drivers.Resolve(ctx, *settings, catalogLookup(s.DB))
	if err != nil {
		return nil, false, err
	}

	sess = &domain.TerminalSession{
		ID:               uuid.NewString(),
		CorrelationToken: uuid.NewString(),
		Status:           domain.StatusPending,
		Amount:           ci.Amount,
		Currency:         ci.Currency,
		ModeOfPayment:    ci.ModeOfPayment,
		SettingsName:     settings.Name,
		DriverCode:       resolved.Code,
		ReferenceDoctype: ci.ReferenceDoctype,
		ReferenceName:    ci.ReferenceName,
		IdempotencyKey:   ci.IdempotencyKey,
		CreatedBy:        in.Actor,
		StartedOn:        now(),
	}
	if err := repo.CreateSession(ctx, s.DB, sess); err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.String("session.token", sess.CorrelationToken))
	return sess, true, nil
}

// SessionStatus returns the session for a correlation token.
func (s *CaptureService) SessionStatus(ctx context.Context, token string) (*domain.TerminalSession, error) {
	tr := otel.Tracer("services/CaptureService")
	ctx, span := tr.Start(ctx, "SessionStatus", trace.WithAttributes(attribute.String("session.token", token)))
	defer span.End()

	sess, err := repo.GetSessionByToken(ctx, s.DB, strings.TrimSpace(token))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// configMessage renders a configuration error for an ERROR result.
func configMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), drivers.ErrConfiguration.Error()+": ")
	if msg == "" {
		return "Terminal configuration error."
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
