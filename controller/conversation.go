package controller

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"zurbo-service/config"
	"zurbo-service/database"
	"zurbo-service/escrow"
	"zurbo-service/event"
	"zurbo-service/lifecycle"
	"zurbo-service/model"
	"zurbo-service/socketio"
	"zurbo-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ConversationCreateInput struct {
	ProviderID         uint   `json:"provider_id"`
	ServiceDescription string `json:"service_description"`
}

type ConversationPriceInput struct {
	Price string `json:"price"`
}

type ConversationReportInput struct {
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

var (
	errNotParticipant  = errors.New("user is not a participant of this conversation")
	errVersionConflict = errors.New("conversation was modified concurrently")
)

func currentUserID(c *fiber.Ctx) uint {
	user := c.Locals("user").(*jwt.Token)
	claims := user.Claims.(jwt.MapClaims)
	return utils.UserID(claims)
}

// roleIn resolves the caller's role relative to one conversation. Roles are
// fixed per conversation at creation.
func roleIn(conversation *model.Conversation, userID uint) (lifecycle.Role, bool) {
	switch userID {
	case conversation.ClientID:
		return lifecycle.RoleClient, true
	case conversation.ProviderID:
		return lifecycle.RoleProvider, true
	}
	return "", false
}

func conversationJSON(conversation *model.Conversation) fiber.Map {
	price := interface{}(nil)
	if conversation.Price.Valid {
		price = conversation.Price.Decimal.StringFixed(2)
	}
	return fiber.Map{
		"id":                   conversation.ID,
		"created":              conversation.CreatedAt.Unix(),
		"client_id":            conversation.ClientID,
		"provider_id":          conversation.ProviderID,
		"service_description":  conversation.ServiceDescription,
		"price":                price,
		"status":               conversation.Status,
		"last_message_preview": conversation.LastMessagePreview,
		"version":              conversation.Version,
	}
}

func messageJSON(message *model.Message) fiber.Map {
	return fiber.Map{
		"id":              message.ID,
		"created":         message.CreatedAt.Unix(),
		"conversation_id": message.ConversationID,
		"sender_id":       message.SenderID,
		"type":            message.Type,
		"content":         message.Content,
		"image_id":        message.ImageID,
	}
}

// notifyParticipants pushes a realtime update to both parties' rooms and
// fans a push notification out over the notifications queue.
func notifyParticipants(conversation *model.Conversation, message *model.Message, action string) {
	payload := fiber.Map{
		"conversation": conversationJSON(conversation),
	}
	if message != nil {
		payload["message"] = messageJSON(message)
	}
	for _, id := range []uint{conversation.ClientID, conversation.ProviderID} {
		socketio.Emit(strconv.FormatUint(uint64(id), 10), "conversation_update", payload)
	}

	data, _ := json.Marshal(fiber.Map{
		"conversation_id": conversation.ID,
		"client_id":       conversation.ClientID,
		"provider_id":     conversation.ProviderID,
		"status":          conversation.Status,
		"preview":         conversation.LastMessagePreview,
	})
	event.Emit("notifications", action, data, true)
}

// transition moves a conversation to a new status, appends the system
// message, and runs extra writes, all inside one transaction guarded by the
// version column.
func transition(conversationID, actorID uint, to lifecycle.Status, systemText string, extra map[string]interface{}, also func(tx *gorm.DB, conversation *model.Conversation) error) (*model.Conversation, *model.Message, error) {
	conversation := &model.Conversation{}
	message := &model.Message{}

	err := database.Postgres.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(conversation, conversationID).Error; err != nil {
			return err
		}

		role, ok := roleIn(conversation, actorID)
		if !ok {
			return errNotParticipant
		}
		if err := lifecycle.Guard(lifecycle.Status(conversation.Status), to, role); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":               string(to),
			"version":              conversation.Version + 1,
			"last_message_preview": systemText,
		}
		for column, value := range extra {
			updates[column] = value
		}
		result := tx.Model(&model.Conversation{}).
			Where("id = ? AND version = ?", conversation.ID, conversation.Version).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errVersionConflict
		}

		*message = model.Message{
			ConversationID: conversation.ID,
			SenderID:       0,
			Type:           "system",
			Content:        systemText,
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		if also != nil {
			if err := also(tx, conversation); err != nil {
				return err
			}
		}

		return tx.First(conversation, conversationID).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return conversation, message, nil
}

func transitionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "Conversation not found",
			"data":    nil,
		})
	case errors.Is(err, errNotParticipant), errors.Is(err, lifecycle.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "You may not perform this action on this conversation",
			"data":    nil,
		})
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrInvalidStatus):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status":  "error",
			"message": "Action not allowed in the current conversation status",
			"data":    nil,
		})
	case errors.Is(err, errVersionConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status":  "error",
			"message": "Conversation changed concurrently, refetch and retry",
			"data":    nil,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"status":  "error",
		"message": "Internal server error",
		"data":    nil,
	})
}

// withIdempotency replays a stored outcome when the caller retries a
// transition with the same Idempotency-Key, instead of re-executing it.
func withIdempotency(c *fiber.Ctx, conversationID uint, run func() error) error {
	key := c.Get("Idempotency-Key")
	if key == "" {
		return run()
	}

	userID := currentUserID(c)
	record := model.Idempotency{}
	err := database.Postgres.
		Where("user_id = ? AND conversation_id = ? AND key = ? AND expires_at > ?",
			userID, conversationID, key, time.Now()).
		First(&record).Error
	if err == nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(record.StatusCode).SendString(record.Body)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}

	if err := run(); err != nil {
		return err
	}

	// Only successful outcomes are replayable; a failed attempt with the
	// same key may legitimately succeed on retry.
	if c.Response().StatusCode() >= fiber.StatusMultipleChoices {
		return nil
	}
	database.Postgres.Create(&model.Idempotency{
		UserID:         userID,
		ConversationID: conversationID,
		Key:            key,
		StatusCode:     c.Response().StatusCode(),
		Body:           string(c.Response().Body()),
		ExpiresAt:      time.Now().Add(24 * time.Hour),
	})
	return nil
}

// purgeExpiredIdempotency hard-deletes records past their retention window;
// replays already refuse them, this keeps the table from growing forever.
func purgeExpiredIdempotency(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Unscoped().
		Where("expires_at <= ?", now).
		Delete(&model.Idempotency{})
}

// StartIdempotencyPurge deletes expired idempotency records on an interval.
// Runs until the process exits; start it with go.
func StartIdempotencyPurge(db *gorm.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := purgeExpiredIdempotency(db, time.Now()).Error; err != nil {
			log.Printf("idempotency purge: %v", err)
		}
	}
}

func conversationParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	return uint(id), err
}

// ConversationCreate starts (or returns) the conversation between the
// calling client and a provider. The partial unique index backs the
// lookup-before-insert against races.
func ConversationCreate(c *fiber.Ctx) error {
	input := new(ConversationCreateInput)
	if err := c.BodyParser(input); err != nil || input.ProviderID == 0 || input.ServiceDescription == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Provider and service description are required",
			"data":    nil,
		})
	}

	clientID := currentUserID(c)
	if clientID == input.ProviderID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "You cannot open a conversation with yourself",
			"data":    nil,
		})
	}

	provider := model.User{}
	if err := database.Postgres.First(&provider, input.ProviderID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": "Provider not found",
			"data":    nil,
		})
	}

	existing := model.Conversation{}
	err := database.Postgres.
		Where("client_id = ? AND provider_id = ? AND status NOT IN ?",
			clientID, input.ProviderID,
			[]string{string(lifecycle.StatusRejected), string(lifecycle.StatusCompleted), string(lifecycle.StatusCancelled), string(lifecycle.StatusBlocked)}).
		First(&existing).Error
	if err == nil {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": nil,
			"data":    conversationJSON(&existing),
		})
	}

	conversation := model.Conversation{
		ClientID:           clientID,
		ProviderID:         input.ProviderID,
		ServiceDescription: input.ServiceDescription,
		Status:             string(lifecycle.StatusAwaitingPrice),
	}
	if err := database.Postgres.Create(&conversation).Error; err != nil {
		// Unique index hit: a concurrent create won, return the winner.
		if err := database.Postgres.
			Where("client_id = ? AND provider_id = ? AND status NOT IN ?",
				clientID, input.ProviderID,
				[]string{string(lifecycle.StatusRejected), string(lifecycle.StatusCompleted), string(lifecycle.StatusCancelled), string(lifecycle.StatusBlocked)}).
			First(&existing).Error; err == nil {
			return c.JSON(fiber.Map{
				"status":  "success",
				"message": nil,
				"data":    conversationJSON(&existing),
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
		"data":    conversationJSON(&conversation),
	})
}

func ConversationList(c *fiber.Ctx) error {
	userID := currentUserID(c)
	conversations := []model.Conversation{}
	if err := database.Postgres.
		Where("client_id = ? OR provider_id = ?", userID, userID).
		Order("updated_at desc").
		Find(&conversations).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}

	list := []fiber.Map{}
	for i := range conversations {
		list = append(list, conversationJSON(&conversations[i]))
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    list,
	})
}

// ConversationDetail is also the reconciliation fetch: the realtime channel
// is at-most-once, a full refetch squares the client back up.
func ConversationDetail(c *fiber.Ctx) error {
	id, err := conversationParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid conversation id",
			"data":    nil,
		})
	}

	conversation := model.Conversation{}
	if err := database.Postgres.First(&conversation, id).Error; err != nil {
		return transitionError(c, err)
	}
	if _, ok := roleIn(&conversation, currentUserID(c)); !ok {
		return transitionError(c, errNotParticipant)
	}

	messages := []model.Message{}
	if err := database.Postgres.
		Where(&model.Message{ConversationID: conversation.ID}).
		Order("id asc").
		Find(&messages).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Internal server error",
			"data":    nil,
		})
	}

	list := []fiber.Map{}
	for i := range messages {
		list = append(list, messageJSON(&messages[i]))
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data": fiber.Map{
			"conversation": conversationJSON(&conversation),
			"messages":     list,
		},
	})
}

// ConversationSetPrice is provider-only: awaiting_price|price_set -> price_set.
func ConversationSetPrice(c *fiber.Ctx) error {
	id, err := conversationParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid conversation id",
			"data":    nil,
		})
	}

	input := new(ConversationPriceInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Review your input",
			"data":    nil,
		})
	}
	price, err := decimal.NewFromString(input.Price)
	if err != nil || !price.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Price must be a positive decimal",
			"data":    nil,
		})
	}

	return withIdempotency(c, id, func() error {
		conversation, message, err := transition(
			id, currentUserID(c),
			lifecycle.StatusPriceSet,
			lifecycle.PriceSetMessage(price),
			map[string]interface{}{"price": price},
			nil,
		)
		if err != nil {
			return transitionError(c, err)
		}

		notifyParticipants(conversation, message, "conversation.price_set")
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": nil,
			"data":    conversationJSON(conversation),
		})
	})
}

// ConversationAccept is client-only: price_set -> accepted. The escrow row
// is created in the same transaction as the status change.
func ConversationAccept(c *fiber.Ctx) error {
	id, err := conversationParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid conversation id",
			"data":    nil,
		})
	}

	return withIdempotency(c, id, func() error {
		feePercent, err := decimal.NewFromString(config.Config("ZURBO_FEE_PERCENT"))
		if err != nil {
			feePercent = decimal.NewFromInt(10)
		}

		conversation, message, err := transition(
			id, currentUserID(c),
			lifecycle.StatusAccepted,
			lifecycle.SystemMessage(lifecycle.StatusAccepted),
			nil,
			func(tx *gorm.DB, conversation *model.Conversation) error {
				if !conversation.Price.Valid {
					return lifecycle.ErrInvalidTransition
				}
				gross := conversation.Price.Decimal
				payment := model.EscrowPayment{
					ConversationID: conversation.ID,
					GrossAmount:    gross,
					ZurboFee:       escrow.Fee(gross, feePercent),
					Status:         escrow.StatusPending,
				}
				return tx.Create(&payment).Error
			},
		)
		if err != nil {
			return transitionError(c, err)
		}

		notifyParticipants(conversation, message, "conversation.accepted")
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": nil,
			"data":    conversationJSON(conversation),
		})
	})
}

// ConversationReject is client-only: price_set -> rejected. The record is
// kept and regular messages stay allowed.
func ConversationReject(c *fiber.Ctx) error {
	id, err := conversationParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid conversation id",
			"data":    nil,
		})
	}

	return withIdempotency(c, id, func() error {
		conversation, message, err := transition(
			id, currentUserID(c),
			lifecycle.StatusRejected,
			lifecycle.SystemMessage(lifecycle.StatusRejected),
			nil,
			nil,
		)
		if err != nil {
			return transitionError(c, err)
		}

		notifyParticipants(conversation, message, "conversation.rejected")
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": nil,
			"data":    conversationJSON(conversation),
		})
	})
}

// ConversationReport blocks the conversation for both parties from any
// non-terminal status. The reported user gets no side effect beyond the
// block.
func ConversationReport(c *fiber.Ctx) error {
	id, err := conversationParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid conversation id",
			"data":    nil,
		})
	}

	input := new(ConversationReportInput)
	if err := c.BodyParser(input); err != nil || !lifecycle.ValidReason(input.Reason) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Report reason must be one of: spam, harassment, inappropriate, fraud, other",
			"data":    nil,
		})
	}

	reporterID := currentUserID(c)
	return withIdempotency(c, id, func() error {
		conversation, message, err := transition(
			id, reporterID,
			lifecycle.StatusBlocked,
			lifecycle.SystemMessage(lifecycle.StatusBlocked),
			nil,
			func(tx *gorm.DB, conversation *model.Conversation) error {
				report := model.Report{
					ConversationID: conversation.ID,
					ReporterID:     reporterID,
					Reason:         input.Reason,
					Description:    input.Description,
				}
				return tx.Create(&report).Error
			},
		)
		if err != nil {
			return transitionError(c, err)
		}

		notifyParticipants(conversation, message, "conversation.blocked")
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": nil,
			"data":    conversationJSON(conversation),
		})
	})
}
