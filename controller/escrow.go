package controller

import (
	"errors"
	"time"

	"zurbo-service/database"
	"zurbo-service/escrow"
	"zurbo-service/lifecycle"
	"zurbo-service/model"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type DisputeInput struct {
	Reason string `json:"reason"`
}

type DisputeResolveInput struct {
	Action     string `json:"action"` // release | refund
	Resolution string `json:"resolution"`
}

func escrowJSON(payment *model.EscrowPayment) fiber.Map {
	out := fiber.Map{
		"id":              payment.ID,
		"created":         payment.CreatedAt.Unix(),
		"conversation_id": payment.ConversationID,
		"gross_amount":    payment.GrossAmount.StringFixed(2),
		"zurbo_fee":       payment.ZurboFee.StringFixed(2),
		"net_amount":      escrow.Net(payment.GrossAmount, payment.ZurboFee).StringFixed(2),
		"status":          payment.Status,
	}
	if payment.AutoReleaseAt != nil {
		out["auto_release_at"] = payment.AutoReleaseAt.Unix()
	}
	return out
}

// loadConversationPayment resolves the conversation and its latest escrow
// row for the caller. When it returns handled=true the response has already
// been written and the handler must return nil.
func loadConversationPayment(c *fiber.Ctx) (*model.Conversation, *model.EscrowPayment, bool) {
	id, err := conversationParam(c)
	if err != nil {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid conversation id",
			"data":    nil,
		})
		return nil, nil, true
	}

	conversation := &model.Conversation{}
	if err := database.Postgres.First(conversation, id).Error; err != nil {
		transitionError(c, err)
		return nil, nil, true
	}
	if _, ok := roleIn(conversation, currentUserID(c)); !ok {
		transitionError(c, errNotParticipant)
		return nil, nil, true
	}

	payment := &model.EscrowPayment{}
	if err := database.Postgres.
		Where(&model.EscrowPayment{ConversationID: conversation.ID}).
		Order("id desc").
		First(payment).Error; err != nil {
		c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "No escrow payment for this conversation",
			"data":    nil,
		})
		return nil, nil, true
	}
	return conversation, payment, false
}

func EscrowDetail(c *fiber.Ctx) error {
	_, payment, handled := loadConversationPayment(c)
	if handled {
		return nil
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    escrowJSON(payment),
	})
}

// EscrowCapture is the client confirming completion: the conversation goes
// in_progress -> completed and the held funds are released to the provider,
// both in the same transaction.
func EscrowCapture(c *fiber.Ctx) error {
	id, err := conversationParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid conversation id",
			"data":    nil,
		})
	}

	return withIdempotency(c, id, func() error {
		payment := &model.EscrowPayment{}
		conversation, message, err := transition(
			id, currentUserID(c),
			lifecycle.StatusCompleted,
			lifecycle.SystemMessage(lifecycle.StatusCompleted),
			nil,
			func(tx *gorm.DB, conversation *model.Conversation) error {
				if err := tx.
					Where(&model.EscrowPayment{ConversationID: conversation.ID}).
					Order("id desc").
					First(payment).Error; err != nil {
					return err
				}
				if err := escrow.Capture(payment, time.Now()); err != nil {
					return err
				}
				return tx.Save(payment).Error
			},
		)
		if err != nil {
			if errors.Is(err, escrow.ErrInvalidTransition) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{
					"status":  "error",
					"message": "Escrow payment cannot be captured in its current status",
					"data":    nil,
				})
			}
			return transitionError(c, err)
		}

		notifyParticipants(conversation, message, "escrow.captured")
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": nil,
			"data":    escrowJSON(payment),
		})
	})
}

// EscrowDispute freezes the payment until an admin resolves it. The
// conversation status is untouched; only the money is contested.
func EscrowDispute(c *fiber.Ctx) error {
	input := new(DisputeInput)
	if err := c.BodyParser(input); err != nil || input.Reason == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "A dispute reason is required",
			"data":    nil,
		})
	}

	conversation, payment, handled := loadConversationPayment(c)
	if handled {
		return nil
	}

	err := database.Postgres.Transaction(func(tx *gorm.DB) error {
		if err := escrow.MarkDisputed(payment); err != nil {
			return err
		}
		if err := tx.Save(payment).Error; err != nil {
			return err
		}
		dispute := model.Dispute{
			EscrowID:    payment.ID,
			InitiatorID: currentUserID(c),
			Reason:      input.Reason,
		}
		if err := tx.Create(&dispute).Error; err != nil {
			return err
		}
		message := model.Message{
			ConversationID: conversation.ID,
			SenderID:       0,
			Type:           "system",
			Content:        lifecycle.MsgDisputed,
		}
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", conversation.ID).
			Update("last_message_preview", lifecycle.MsgDisputed).Error
	})
	if err != nil {
		if errors.Is(err, escrow.ErrInvalidTransition) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"status":  "error",
				"message": "Escrow payment cannot be disputed in its current status",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}

	notifyParticipants(conversation, nil, "escrow.disputed")
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    escrowJSON(payment),
	})
}

// AdminDisputes lists open disputes for back-office review.
func AdminDisputes(c *fiber.Ctx) error {
	disputes := []model.Dispute{}
	if err := database.Postgres.
		Where(&model.Dispute{Status: "open"}).
		Order("id asc").
		Find(&disputes).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    disputes,
	})
}

// AdminDisputeResolve settles a dispute: release captures the funds to the
// provider, refund fails the payment back to the client.
func AdminDisputeResolve(c *fiber.Ctx) error {
	input := new(DisputeResolveInput)
	if err := c.BodyParser(input); err != nil || (input.Action != "release" && input.Action != "refund") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Action must be release or refund",
			"data":    nil,
		})
	}

	dispute := model.Dispute{}
	if err := database.Postgres.First(&dispute, c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "Dispute not found",
			"data":    nil,
		})
	}
	if dispute.Status != "open" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status":  "error",
			"message": "Dispute already resolved",
			"data":    nil,
		})
	}

	payment := model.EscrowPayment{}
	if err := database.Postgres.First(&payment, dispute.EscrowID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}

	err := database.Postgres.Transaction(func(tx *gorm.DB) error {
		if input.Action == "release" {
			if err := escrow.Capture(&payment, time.Now()); err != nil {
				return err
			}
		} else {
			if err := escrow.MarkFailed(&payment); err != nil {
				return err
			}
		}
		if err := tx.Save(&payment).Error; err != nil {
			return err
		}

		dispute.Status = "resolved"
		dispute.Resolution = input.Resolution
		dispute.ResolvedBy = currentUserID(c)
		return tx.Save(&dispute).Error
	})
	if err != nil {
		if errors.Is(err, escrow.ErrInvalidTransition) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"status":  "error",
				"message": "Escrow payment cannot be resolved in its current status",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data": fiber.Map{
			"dispute": dispute,
			"escrow":  escrowJSON(&payment),
		},
	})
}
