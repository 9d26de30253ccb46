package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EscrowPayment tracks funds held for a conversation. The net amount is
// always gross - fee, computed where displayed and never stored.
type EscrowPayment struct {
	gorm.Model
	ConversationID uint            `gorm:"not null;index" json:"conversation_id"`
	GrossAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"gross_amount"`
	ZurboFee       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"zurbo_fee"`
	Status         string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// Opaque reference into the payment provider, set once the provider
	// reports on the charge.
	ProviderRef string `gorm:"type:varchar(120)" json:"provider_ref"`

	AutoReleaseAt *time.Time `gorm:"index" json:"auto_release_at,omitempty"`
	AuthorizedAt  *time.Time `json:"authorized_at,omitempty"`
	CapturedAt    *time.Time `json:"captured_at,omitempty"`
}

// Dispute requires administrative resolution; the escrow stays disputed
// until an admin captures or fails it.
type Dispute struct {
	gorm.Model
	EscrowID    uint   `gorm:"not null;index" json:"escrow_id"`
	InitiatorID uint   `gorm:"not null" json:"initiator_id"`
	Reason      string `gorm:"type:text;not null" json:"reason"`
	Status      string `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	Resolution  string `gorm:"type:text" json:"resolution"`
	ResolvedBy  uint   `gorm:"default:0" json:"resolved_by"`
}
