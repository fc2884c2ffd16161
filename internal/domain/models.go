// Package domain defines the persistence models for terminal routing, the
// driver catalog, capture sessions, and the card transaction ledger. These
// types are mapped with GORM and shared across the repository, service, and
// transport layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ModeOfPayment routes an ERP payment method to a terminal settings record
// and carries the invoice policy flags for that method.
type ModeOfPayment struct {
	Name                    string    `json:"name"                      gorm:"type:varchar(140);primaryKey"`
	SettingsName            string    `json:"settings_name"             gorm:"type:varchar(140);index"`
	CaptureTerminalData     bool      `json:"capture_terminal_data"     gorm:"not null"`
	RequireTerminalApproval bool      `json:"require_terminal_approval" gorm:"not null"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// TableName returns the database table name for ModeOfPayment.
func (ModeOfPayment) TableName() string { return "modes_of_payment" }

// TerminalSettings is the operator-owned configuration a driver runs against.
//
// DriverCode selects a catalog entry; when empty, the legacy Provider value
// picks a built-in driver. Config is a free-form blob that drivers interpret
// and that overrides the explicit connection fields. CallbackSecret signs
// inbound callbacks and is never serialized.
type TerminalSettings struct {
	Name           string            `json:"name"            gorm:"type:varchar(140);primaryKey"`
	DriverCode     string            `json:"driver_code"     gorm:"type:varchar(64);index"`
	Provider       string            `json:"provider"        gorm:"type:varchar(64)"`
	EndpointURL    string            `json:"endpoint_url"    gorm:"type:varchar(512)"`
	TerminalIP     string            `json:"terminal_ip"     gorm:"type:varchar(64)"`
	TerminalPort   int               `json:"terminal_port"`
	MerchantID     string            `json:"merchant_id"     gorm:"type:varchar(64)"`
	TerminalID     string            `json:"terminal_id"     gorm:"type:varchar(64)"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Config         datatypes.JSONMap `json:"config"`
	CallbackSecret string            `json:"-"               gorm:"type:varchar(255)"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// TableName returns the database table name for TerminalSettings.
func (TerminalSettings) TableName() string { return "terminal_settings" }

// DriverDescriptor is a catalog entry. Handler names the registered driver
// implementation that serves this entry.
type DriverDescriptor struct {
	Code         string                      `json:"code"         gorm:"type:varchar(64);primaryKey"`
	Name         string                      `json:"name"         gorm:"type:varchar(140);not null"`
	Description  string                      `json:"description"  gorm:"type:text"`
	Mode         string                      `json:"mode"         gorm:"type:varchar(32);not null"`
	Capabilities datatypes.JSONSlice[string] `json:"capabilities"`
	Handler      string                      `json:"handler"      gorm:"type:varchar(64);not null"`
	Active       bool                        `json:"active"       gorm:"not null;index"`
	SortOrder    int                         `json:"sort_order"   gorm:"not null"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// TableName returns the database table name for DriverDescriptor.
func (DriverDescriptor) TableName() string { return "terminal_drivers" }

// TerminalSession correlates an in-flight capture with its eventual result.
//
// Status only moves from PENDING to one terminal state; CompletedOn is set
// exactly when Status is terminal. Rows are never deleted.
type TerminalSession struct {
	ID               string          `json:"id"                gorm:"type:char(36);primaryKey"`
	CorrelationToken string          `json:"correlation_token" gorm:"type:varchar(64);not null;uniqueIndex:ux_session_token"`
	Status           Status          `json:"status"            gorm:"type:varchar(32);not null;index"`
	Amount           decimal.Decimal `json:"amount"            gorm:"type:decimal(18,4);not null"`
	Currency         string          `json:"currency"          gorm:"type:varchar(3);not null"`
	ModeOfPayment    string          `json:"mode_of_payment"   gorm:"type:varchar(140);not null;index:idx_session_mop_key,priority:1"`
	SettingsName     string          `json:"settings_name"     gorm:"type:varchar(140)"`
	DriverCode       string          `json:"driver_code"       gorm:"type:varchar(64)"`
	ReferenceDoctype string          `json:"reference_doctype" gorm:"type:varchar(140)"`
	ReferenceName    string          `json:"reference_name"    gorm:"type:varchar(140)"`
	IdempotencyKey   string          `json:"idempotency_key"   gorm:"type:varchar(200);index:idx_session_mop_key,priority:2"`
	RequestPayload   datatypes.JSON  `json:"request_payload"`
	ResponsePayload  datatypes.JSON  `json:"response_payload"`
	TransactionID    string          `json:"transaction_id"    gorm:"type:char(36)"`
	CreatedBy        string          `json:"created_by"        gorm:"type:varchar(140)"`
	StartedOn        time.Time       `json:"started_on"        gorm:"not null;index"`
	CompletedOn      *time.Time      `json:"completed_on"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName returns the database table name for TerminalSession.
func (TerminalSession) TableName() string { return "terminal_sessions" }

// CardTransaction is an append-only ledger row for one completed capture.
//
// (reference, mode of payment) uniqueness is an application-level check only.
type CardTransaction struct {
	ID               string          `json:"id"                gorm:"type:char(36);primaryKey"`
	Status           string          `json:"status"            gorm:"type:varchar(32);not null;index"`
	Amount           decimal.Decimal `json:"amount"            gorm:"type:decimal(18,4);not null"`
	Currency         string          `json:"currency"          gorm:"type:varchar(3)"`
	ReferenceDoctype string          `json:"reference_doctype" gorm:"type:varchar(140);index:idx_tx_reference,priority:1"`
	ReferenceName    string          `json:"reference_name"    gorm:"type:varchar(140);index:idx_tx_reference,priority:2"`
	ModeOfPayment    string          `json:"mode_of_payment"   gorm:"type:varchar(140);index:idx_tx_reference,priority:3"`
	TerminalID       string          `json:"terminal_id"       gorm:"type:varchar(64)"`
	MerchantID       string          `json:"merchant_id"       gorm:"type:varchar(64)"`
	RRN              string          `json:"rrn"               gorm:"column:rrn;type:varchar(64)"`
	AuthCode         string          `json:"auth_code"         gorm:"type:varchar(32)"`
	ResponseCode     string          `json:"response_code"     gorm:"type:varchar(16)"`
	ResponseMessage  string          `json:"response_message"  gorm:"type:varchar(255)"`
	RawResponse      datatypes.JSON  `json:"raw_response"`
	SessionToken     string          `json:"session_token"     gorm:"type:varchar(64);index"`
	CreatedBy        string          `json:"created_by"        gorm:"type:varchar(140)"`
	CreatedAt        time.Time       `json:"created_at"        gorm:"index"`
}

// TableName returns the database table name for CardTransaction.
func (CardTransaction) TableName() string { return "card_transactions" }
