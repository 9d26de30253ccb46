package router

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"zurbo-service/bridge"
	"zurbo-service/database"
	"zurbo-service/event"
	"zurbo-service/lifecycle"
	"zurbo-service/model"
	"zurbo-service/socketio"
	"zurbo-service/utils"

	"github.com/zishang520/socket.io/v2/socket"
)

type InitConnection struct {
	Conversations []ConversationSummary `json:"conversations"`
	UserStatus    []UserStatus          `json:"userStatus"`
}

type ConversationSummary struct {
	Id         uint      `json:"id"`
	Created    time.Time `json:"created"`
	ClientId   uint      `json:"client_id"`
	ProviderId uint      `json:"provider_id"`
	Service    string    `json:"service_description"`
	Price      string    `json:"price"`
	Status     string    `json:"status"`
	Preview    string    `json:"preview"`
}

type ChatMessage struct {
	Id           uint      `json:"id"`
	Created      time.Time `json:"created"`
	Conversation uint      `json:"conversation"`
	Sender       uint      `json:"sender"`
	Type         string    `json:"type"`
	Content      string    `json:"content"`
	ImageId      uint      `json:"image_id"`
	Read         bool      `json:"read"`
}

type ConversationHistory struct {
	Details  ConversationSummary `json:"details"`
	Messages []ChatMessage       `json:"messages"`
}

type UserStatus struct {
	Id     uint `json:"id"`
	Status bool `json:"status"`
}

type SendRefused struct {
	Conversation uint   `json:"conversation"`
	Reason       string `json:"reason"`
}

func summarize(conversation *model.Conversation) ConversationSummary {
	price := ""
	if conversation.Price.Valid {
		price = conversation.Price.Decimal.StringFixed(2)
	}
	return ConversationSummary{
		Id:         conversation.ID,
		Created:    conversation.CreatedAt,
		ClientId:   conversation.ClientID,
		ProviderId: conversation.ProviderID,
		Service:    conversation.ServiceDescription,
		Price:      price,
		Status:     conversation.Status,
		Preview:    conversation.LastMessagePreview,
	}
}

func chatMessage(message *model.Message) ChatMessage {
	return ChatMessage{
		Id:           message.ID,
		Created:      message.CreatedAt,
		Conversation: message.ConversationID,
		Sender:       message.SenderID,
		Type:         message.Type,
		Content:      message.Content,
		ImageId:      message.ImageID,
		Read:         message.Read,
	}
}

func socketUserID(client *socket.Socket) (uint, bool) {
	if client.Data() == nil {
		return 0, false
	}
	id, err := strconv.Atoi(client.Data().(*utils.TokenMetadata).Id)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func peerOf(conversation *model.Conversation, userID uint) uint {
	if conversation.ClientID == userID {
		return conversation.ProviderID
	}
	return conversation.ClientID
}

func isParticipant(conversation *model.Conversation, userID uint) bool {
	return conversation.ClientID == userID || conversation.ProviderID == userID
}

// stringArg reads one string argument of a client event; malformed events
// must not take the connection down.
func stringArg(args []interface{}, index int) (string, bool) {
	if index >= len(args) {
		return "", false
	}
	value, ok := args[index].(string)
	return value, ok
}

// truncatePreview shortens a preview to at most max runes, never splitting a
// multibyte character.
func truncatePreview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func Socket(server *socket.Server) {
	server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		// One dispatcher per connection: requests and native responses are
		// relayed to the user's own room (the shell and the web content share
		// it); SEND_NOTIFICATION additionally fans out over the queue.
		dispatcher := bridge.NewDispatcher()
		relay := func(envelope bridge.Envelope) {
			userID, ok := socketUserID(client)
			if !ok {
				return
			}
			raw := map[string]json.RawMessage{}
			for field, value := range envelope.Payload {
				raw[field] = value
			}
			raw["type"], _ = json.Marshal(envelope.Type)
			socketio.Emit(strconv.FormatUint(uint64(userID), 10), "bridge", raw)
		}
		for _, envelopeType := range []string{
			bridge.TypeRequestLocation,
			bridge.TypeRequestCamera,
			bridge.TypeRequestNotificationPermission,
			bridge.TypeLocationResponse,
			bridge.TypeCameraResponse,
			bridge.TypeNotificationPermissionResponse,
		} {
			dispatcher.Handle(envelopeType, relay)
		}
		dispatcher.Handle(bridge.TypeSendNotification, func(envelope bridge.Envelope) {
			userID, ok := socketUserID(client)
			if !ok {
				return
			}
			notification, err := envelope.Notification()
			if err != nil {
				return
			}
			data, _ := json.Marshal(map[string]interface{}{
				"user_id": userID,
				"title":   notification.Title,
				"body":    notification.Body,
				"data":    notification.Data,
			})
			event.Emit("notifications", "notification.push", data, true)
		})

		client.On("init", func(args ...interface{}) {
			rooms := server.Sockets().Adapter().Rooms().Keys()

			userStatus := []UserStatus{}
			conversations := []ConversationSummary{}
			if userID, ok := socketUserID(client); ok {
				rawConversations := []model.Conversation{}
				database.Postgres.
					Where("client_id = ? OR provider_id = ?", userID, userID).
					Order("updated_at desc").
					Find(&rawConversations)

				for i := range rawConversations {
					conversation := rawConversations[i]
					conversations = append(conversations, summarize(&conversation))

					peer := peerOf(&conversation, userID)
					online := false
					for j := range rooms {
						if rooms[j] == socket.Room(strconv.FormatUint(uint64(peer), 10)) {
							online = true
							break
						}
					}

					userStatus = append(userStatus, UserStatus{
						Id:     peer,
						Status: online,
					})
				}
			}

			// Send response
			client.Emit(
				"init",
				InitConnection{
					Conversations: conversations,
					UserStatus:    userStatus,
				},
			)
		})

		client.On("conversation_messages", func(args ...interface{}) {
			userID, ok := socketUserID(client)
			if !ok {
				return
			}
			rawID, ok := stringArg(args, 0)
			if !ok {
				return
			}
			conversationID, _ := strconv.ParseUint(rawID, 10, 64)

			conversation := model.Conversation{}
			if err := database.Postgres.First(&conversation, conversationID).Error; err != nil {
				return
			}
			if !isParticipant(&conversation, userID) {
				return
			}

			messages := []ChatMessage{}
			rawMessages := []model.Message{}
			database.Postgres.
				Order("ID asc").
				Where(&model.Message{ConversationID: conversation.ID}).
				Find(&rawMessages)

			for i := range rawMessages {
				messages = append(messages, chatMessage(&rawMessages[i]))
			}

			database.Postgres.Model(&model.Message{}).
				Where("conversation_id = ? AND sender_id <> ?", conversation.ID, userID).
				Update("read", true)

			client.Emit(
				"conversation_messages",
				ConversationHistory{
					Details:  summarize(&conversation),
					Messages: messages,
				},
			)
		})

		client.On("send_message", func(args ...interface{}) {
			userID, ok := socketUserID(client)
			if !ok {
				return
			}
			rawID, ok := stringArg(args, 0)
			if !ok {
				return
			}
			messageType, ok := stringArg(args, 1)
			if !ok {
				return
			}
			data, ok := stringArg(args, 2)
			if !ok {
				return
			}
			conversationID, _ := strconv.ParseUint(rawID, 10, 64)

			conversation := model.Conversation{}
			if err := database.Postgres.First(&conversation, conversationID).Error; err != nil {
				return
			}
			if !isParticipant(&conversation, userID) {
				return
			}

			// System messages are written by transitions only, never by a
			// party; blocked conversations refuse sends for both parties.
			if messageType != "text" && messageType != "image" {
				client.Emit("send_refused", SendRefused{
					Conversation: conversation.ID,
					Reason:       "unsupported message type",
				})
				return
			}
			if !lifecycle.CanSendMessage(lifecycle.Status(conversation.Status)) {
				client.Emit("send_refused", SendRefused{
					Conversation: conversation.ID,
					Reason:       "conversation is blocked",
				})
				return
			}

			message := model.Message{
				ConversationID: conversation.ID,
				SenderID:       userID,
				Type:           messageType,
			}
			preview := ""
			switch messageType {
			case "text":
				message.Content = data
				preview = data
			case "image":
				imageID, err := strconv.ParseUint(data, 10, 64)
				if err != nil {
					return
				}
				image := model.ChatImage{}
				if err := database.Postgres.First(&image, imageID).Error; err != nil {
					return
				}
				message.ImageID = uint(imageID)
				preview = "[imagem]"
			}

			if err := database.Postgres.Create(&message).Error; err != nil {
				return
			}
			preview = truncatePreview(preview, 140)
			if err := database.Postgres.Model(&model.Conversation{}).
				Where("id = ?", conversation.ID).
				Update("last_message_preview", preview).Error; err != nil {
				log.Printf("conversation %d preview update: %v", conversation.ID, err)
			}

			payload := chatMessage(&message)
			client.Emit("message", payload)
			socketio.Emit(
				strconv.FormatUint(uint64(peerOf(&conversation, userID)), 10),
				"message",
				payload,
			)

			notification, _ := json.Marshal(map[string]interface{}{
				"conversation_id": conversation.ID,
				"to":              peerOf(&conversation, userID),
				"preview":         preview,
			})
			event.Emit("notifications", "message.new", notification, true)
		})

		client.On("bridge", func(args ...interface{}) {
			raw, ok := stringArg(args, 0)
			if !ok {
				return
			}
			// Malformed envelopes are dropped, matching the protocol's
			// no-ack, no-retry contract.
			_ = dispatcher.Dispatch([]byte(raw))
		})
	})
}
