package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Idempotency records the result of a capture start keyed by
// (actor, scope, key). RequestHash detects key reuse with a different body;
// Response is replayed verbatim while the record is unexpired.
type Idempotency struct {
	ID             string         `gorm:"type:char(36);primaryKey"`
	Actor          string         `gorm:"type:varchar(140);not null;uniqueIndex:ux_actor_scope_key,priority:1"`
	Scope          string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_actor_scope_key,priority:2"`
	Key            string         `gorm:"column:idem_key;type:varchar(200);not null;uniqueIndex:ux_actor_scope_key,priority:3"`
	RequestHash    string         `gorm:"type:char(64);not null"`
	ResponseStatus int            `gorm:"not null"`
	Response       datatypes.JSON `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime"`
	ExpiresAt      time.Time      `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
