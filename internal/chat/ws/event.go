package ws

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventJoinChat       = "join-chat"
	EventSendMessage    = "send-message"
	EventTypingStart    = "typing-start"
	EventTypingStop     = "typing-stop"
	EventMarkRead       = "mark-messages-read"
	EventLeaveChat      = "leave-chat"
	EventGetOnlineUsers = "get-online-users"
)

// Outbound event names.
const (
	EventNewMessage          = "new-message"
	EventMessageNotification = "message-notification"
	EventChatJoined          = "chat-joined"
	EventUserTyping          = "user-typing"
	EventUserStoppedTyping   = "user-stopped-typing"
	EventMessagesRead        = "messages-read"
	EventUserOnline          = "user-online"
	EventUserOffline         = "user-offline"
	EventOnlineUsers         = "online-users"
	EventError               = "error"
)

// Envelope is the wire frame: an event name plus an event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TargetPayload covers the inbound events that only carry a peer user id.
type TargetPayload struct {
	TargetUserID string `json:"targetUserId"`
}

type SendMessagePayload struct {
	TargetUserID string `json:"targetUserId"`
	Content      string `json:"content"`
	MessageType  string `json:"messageType,omitempty"`
}

// MessageSender is the sender summary embedded in delivered messages.
type MessageSender struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// MessageData is the payload of new-message and message-notification events.
type MessageData struct {
	ID          string        `json:"id"`
	Sender      MessageSender `json:"sender"`
	Receiver    string        `json:"receiver"`
	Content     string        `json:"content"`
	MessageType string        `json:"messageType"`
	CreatedAt   time.Time     `json:"createdAt"`
	RoomID      string        `json:"roomId"`
	From        string        `json:"from,omitempty"` // set on notifications only
}

// PresencePayload announces a user coming online or going offline.
type PresencePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

type ChatJoinedPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type MessagesReadPayload struct {
	ReadBy string    `json:"readBy"`
	ReadAt time.Time `json:"readAt"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// encodeEvent marshals an envelope for the wire. Marshal failures cannot
// happen for our payload types, so the error is swallowed.
func encodeEvent(event string, data any) []byte {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	b, _ := json.Marshal(Envelope{Event: event, Data: raw})
	return b
}
