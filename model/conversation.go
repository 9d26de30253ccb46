package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Conversation is the negotiation thread between one client and one provider
// for one requested service. Parties are immutable after creation. The
// partial unique index keeps at most one non-terminal conversation per pair.
type Conversation struct {
	gorm.Model
	ClientID   uint `gorm:"not null;index;uniqueIndex:ux_active_pair,where:status <> 'rejected' AND status <> 'completed' AND status <> 'cancelled' AND status <> 'blocked'"`
	ProviderID uint `gorm:"not null;index;uniqueIndex:ux_active_pair,where:status <> 'rejected' AND status <> 'completed' AND status <> 'cancelled' AND status <> 'blocked'"`
	Client     User `gorm:"not null; foreignKey:ClientID" json:"client"`
	Provider   User `gorm:"not null; foreignKey:ProviderID" json:"provider"`

	ServiceDescription string              `gorm:"type:text;not null" json:"service_description"`
	Price              decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price"`
	Status             string              `gorm:"type:varchar(20);not null;default:'awaiting_price';index" json:"status"`
	LastMessagePreview string              `gorm:"type:varchar(140)" json:"last_message_preview"`

	// Optimistic concurrency token, bumped by every status transition.
	Version uint `gorm:"not null;default:0" json:"version"`
}

// Message belongs to exactly one conversation, append-only, ordered by id.
// Type decides which of Content / ImageID is populated. System messages are
// only ever written by transition handlers (SenderID 0).
type Message struct {
	gorm.Model
	ConversationID uint   `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint   `gorm:"not null;default:0" json:"sender_id"`
	Type           string `gorm:"type:varchar(10);not null" json:"type"`
	Content        string `gorm:"type:text" json:"content"`
	ImageID        uint   `gorm:"default:0" json:"image_id"`
	Read           bool   `gorm:"not null;default:false" json:"read"`
}

// Report blocks a conversation for both parties.
type Report struct {
	gorm.Model
	ConversationID uint   `gorm:"not null;index" json:"conversation_id"`
	ReporterID     uint   `gorm:"not null" json:"reporter_id"`
	Reason         string `gorm:"type:varchar(20);not null" json:"reason"`
	Description    string `gorm:"type:text" json:"description"`
}

// ChatImage holds uploaded attachment data, served by id.
type ChatImage struct {
	gorm.Model
	UserID uint   `gorm:"not null;index" json:"user_id"`
	Data   string `gorm:"type:text;not null" json:"data"`
}
