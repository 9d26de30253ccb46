package escrow

import (
	"log"
	"time"

	"gorm.io/gorm"

	"zurbo-service/lifecycle"
	"zurbo-service/model"
)

// StartAutoRelease periodically captures authorized payments whose
// auto-release date has passed and that have no open dispute, completing the
// conversation and narrating the release in the chat log. Runs until the
// process exits; start it with go.
func StartAutoRelease(db *gorm.DB, interval time.Duration, onRelease func(model.EscrowPayment)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		released, err := ReleaseDue(db, time.Now())
		if err != nil {
			log.Printf("escrow auto-release sweep: %v", err)
			continue
		}
		for _, payment := range released {
			if onRelease != nil {
				onRelease(payment)
			}
		}
	}
}

// ReleaseDue captures every eligible payment, one transaction per payment so
// a bad row cannot wedge the whole sweep.
func ReleaseDue(db *gorm.DB, now time.Time) ([]model.EscrowPayment, error) {
	due := []model.EscrowPayment{}
	err := db.
		Where("status = ? AND auto_release_at <= ?", StatusAuthorized, now).
		Where("NOT EXISTS (SELECT 1 FROM disputes WHERE disputes.escrow_id = escrow_payments.id AND disputes.status = 'open' AND disputes.deleted_at IS NULL)").
		Find(&due).Error
	if err != nil {
		return nil, err
	}

	released := []model.EscrowPayment{}
	for i := range due {
		payment := due[i]
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := Capture(&payment, now); err != nil {
				return err
			}
			if err := tx.Save(&payment).Error; err != nil {
				return err
			}

			conversation := model.Conversation{}
			if err := tx.First(&conversation, payment.ConversationID).Error; err != nil {
				return err
			}
			// Capture the money regardless; only narrate completion when
			// the conversation can still reach it (a blocked thread keeps
			// its status).
			if lifecycle.Guard(lifecycle.Status(conversation.Status), lifecycle.StatusCompleted, lifecycle.RoleSystem) == nil {
				text := lifecycle.SystemMessage(lifecycle.StatusCompleted)
				result := tx.Model(&model.Conversation{}).
					Where("id = ? AND version = ?", conversation.ID, conversation.Version).
					Updates(map[string]interface{}{
						"status":               string(lifecycle.StatusCompleted),
						"version":              conversation.Version + 1,
						"last_message_preview": text,
					})
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected == 0 {
					return gorm.ErrInvalidTransaction
				}
				message := model.Message{
					ConversationID: conversation.ID,
					SenderID:       0,
					Type:           "system",
					Content:        text,
				}
				if err := tx.Create(&message).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Printf("escrow auto-release payment %d: %v", payment.ID, err)
			continue
		}
		released = append(released, payment)
	}
	return released, nil
}
