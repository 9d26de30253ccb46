package model

import (
	"time"

	"gorm.io/gorm"
)

// Idempotency records the outcome of a processed transition request, keyed
// by (user, conversation, key), so a retried request returns the original
// outcome without re-executing side effects.
type Idempotency struct {
	gorm.Model
	UserID         uint      `gorm:"not null;uniqueIndex:ux_user_conv_key,priority:1"`
	ConversationID uint      `gorm:"not null;uniqueIndex:ux_user_conv_key,priority:2"`
	Key            string    `gorm:"type:varchar(80);not null;uniqueIndex:ux_user_conv_key,priority:3"`
	StatusCode     int       `gorm:"not null"`
	Body           string    `gorm:"type:text"`
	ExpiresAt      time.Time `gorm:"not null;index"`
}
