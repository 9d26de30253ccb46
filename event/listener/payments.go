// Package listener consumes queue events and applies them to the database.
package listener

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"zurbo-service/config"
	"zurbo-service/database"
	"zurbo-service/escrow"
	"zurbo-service/event"
	"zurbo-service/lifecycle"
	"zurbo-service/model"
	"zurbo-service/socketio"
)

var (
	PaymentsChannel = make(chan event.EventChannelData)
)

// PaymentEvent is the payload the payment provider integration publishes on
// the payments queue.
type PaymentEvent struct {
	ConversationID uint   `json:"conversation_id"`
	ProviderRef    string `json:"provider_ref"`
	Reason         string `json:"reason,omitempty"`
}

// Payments applies provider outcomes to escrow rows: authorized funds move
// the conversation into the paid flow, failures surface in the chat log.
func Payments() {
	for message := range PaymentsChannel {
		payload := PaymentEvent{}
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			log.Printf("payments listener: bad payload for %s: %v", message.Action, err)
			continue
		}

		var err error
		switch message.Action {
		case "payment.authorized":
			err = applyAuthorized(payload)
		case "payment.failed":
			err = applyFailed(payload)
		default:
			log.Printf("payments listener: ignoring unknown action %q", message.Action)
			continue
		}
		if err != nil {
			log.Printf("payments listener: %s conversation %d: %v", message.Action, payload.ConversationID, err)
		}
	}
}

// applyAuthorized marks the funds held, stamps the auto-release date and
// advances the conversation accepted -> paid_escrow -> in_progress, all in
// one transaction.
func applyAuthorized(payload PaymentEvent) error {
	holdDays := config.ConfigInt("ESCROW_RELEASE_DAYS", 7)
	conversation := model.Conversation{}

	err := database.Postgres.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&conversation, payload.ConversationID).Error; err != nil {
			return err
		}

		from := lifecycle.Status(conversation.Status)
		if err := lifecycle.Guard(from, lifecycle.StatusPaidEscrow, lifecycle.RoleSystem); err != nil {
			return err
		}
		if err := lifecycle.Guard(lifecycle.StatusPaidEscrow, lifecycle.StatusInProgress, lifecycle.RoleSystem); err != nil {
			return err
		}

		payment := model.EscrowPayment{}
		if err := tx.
			Where(&model.EscrowPayment{ConversationID: conversation.ID, Status: escrow.StatusPending}).
			Order("id desc").
			First(&payment).Error; err != nil {
			return err
		}
		if err := escrow.Authorize(&payment, payload.ProviderRef, time.Now(), holdDays); err != nil {
			return err
		}
		if err := tx.Save(&payment).Error; err != nil {
			return err
		}

		for _, text := range []string{
			lifecycle.SystemMessage(lifecycle.StatusPaidEscrow),
			lifecycle.SystemMessage(lifecycle.StatusInProgress),
		} {
			systemMessage := model.Message{
				ConversationID: conversation.ID,
				SenderID:       0,
				Type:           "system",
				Content:        text,
			}
			if err := tx.Create(&systemMessage).Error; err != nil {
				return err
			}
		}

		result := tx.Model(&model.Conversation{}).
			Where("id = ? AND version = ?", conversation.ID, conversation.Version).
			Updates(map[string]interface{}{
				"status":               string(lifecycle.StatusInProgress),
				"version":              conversation.Version + 1,
				"last_message_preview": lifecycle.SystemMessage(lifecycle.StatusInProgress),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrInvalidTransaction
		}

		return tx.First(&conversation, conversation.ID).Error
	})
	if err != nil {
		return err
	}

	emitConversation(&conversation)
	return nil
}

// applyFailed records the provider failure; the conversation stays accepted
// so the client can retry the payment.
func applyFailed(payload PaymentEvent) error {
	conversation := model.Conversation{}

	err := database.Postgres.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&conversation, payload.ConversationID).Error; err != nil {
			return err
		}

		payment := model.EscrowPayment{}
		if err := tx.
			Where(&model.EscrowPayment{ConversationID: conversation.ID, Status: escrow.StatusPending}).
			Order("id desc").
			First(&payment).Error; err != nil {
			return err
		}
		if err := escrow.MarkFailed(&payment); err != nil {
			return err
		}
		if err := tx.Save(&payment).Error; err != nil {
			return err
		}

		systemMessage := model.Message{
			ConversationID: conversation.ID,
			SenderID:       0,
			Type:           "system",
			Content:        "Falha no pagamento. Tente novamente.",
		}
		return tx.Create(&systemMessage).Error
	})
	if err != nil {
		return err
	}

	emitConversation(&conversation)
	return nil
}

func emitConversation(conversation *model.Conversation) {
	payload := map[string]interface{}{
		"conversation_id": conversation.ID,
		"status":          conversation.Status,
		"preview":         conversation.LastMessagePreview,
	}
	for _, id := range []uint{conversation.ClientID, conversation.ProviderID} {
		socketio.Emit(strconv.FormatUint(uint64(id), 10), "conversation_update", payload)
	}

	data, _ := json.Marshal(payload)
	event.Emit("notifications", "conversation.status", data, true)
}
