// Package events publishes ledger events for downstream consumers
// (reconciliation, accounting exports). Publishing is best-effort: callers
// log failures and never roll back the ledger row because of them.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
)

// TypeTransactionLogged is the event type emitted after a ledger insert.
const TypeTransactionLogged = "card_transaction.logged"

// TransactionLogged is the JSON body of a card_transaction.logged event.
type TransactionLogged struct {
	Type             string          `json:"type"`
	TransactionID    string          `json:"transaction_id"`
	Status           string          `json:"status"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	ModeOfPayment    string          `json:"mode_of_payment"`
	ReferenceDoctype string          `json:"reference_doctype,omitempty"`
	ReferenceName    string          `json:"reference_name,omitempty"`
	SessionToken     string          `json:"session_token,omitempty"`
	RRN              string          `json:"rrn,omitempty"`
	OccurredAt       string          `json:"occurred_at"`
}

// NewTransactionLogged builds the event for a ledger row.
func NewTransactionLogged(tx *domain.CardTransaction) TransactionLogged {
	at := tx.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return TransactionLogged{
		Type:             TypeTransactionLogged,
		TransactionID:    tx.ID,
		Status:           tx.Status,
		Amount:           tx.Amount,
		Currency:         tx.Currency,
		ModeOfPayment:    tx.ModeOfPayment,
		ReferenceDoctype: tx.ReferenceDoctype,
		ReferenceName:    tx.ReferenceName,
		SessionToken:     tx.SessionToken,
		RRN:              tx.RRN,
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
}

// Publisher emits ledger events.
type Publisher interface {
	TransactionLogged(ctx context.Context, tx *domain.CardTransaction) error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

// TransactionLogged implements Publisher.
func (Nop) TransactionLogged(context.Context, *domain.CardTransaction) error { return nil }

// KafkaPublisher sends events to a Kafka topic through a sync producer.
// Messages are keyed by transaction ID.
type KafkaPublisher struct {
	Producer sarama.SyncProducer
	Topic    string
}

// TransactionLogged implements Publisher.
func (p *KafkaPublisher) TransactionLogged(ctx context.Context, tx *domain.CardTransaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(NewTransactionLogged(tx))
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.Topic,
		Key:   sarama.StringEncoder(tx.ID),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(TypeTransactionLogged)},
		},
	}
	_, _, err = p.Producer.SendMessage(msg)
	return err
}

// NewKafkaProducer builds a sync producer that waits for all in-sync
// replicas and retries transient failures.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "card-terminal-gateway"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = false
	return sarama.NewSyncProducer(brokers, cfg)
}
