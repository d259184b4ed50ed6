package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/vtype/vtype/internal/chat/domain"
	"github.com/vtype/vtype/internal/chat/metrics"
	"github.com/vtype/vtype/internal/chat/service"
	"github.com/vtype/vtype/pkg/slogx"
)

// Session owns the event handling for one connection. Frames arrive from the
// read pump one at a time, so handlers never race each other and the
// persist-then-fanout order of send-message holds per sender.
type Session struct {
	ctx      context.Context
	client   *Client
	hub      *Hub
	messages *service.MessageService
	log      *slog.Logger
}

func NewSession(ctx context.Context, client *Client, hub *Hub, messages *service.MessageService) *Session {
	return &Session{
		ctx:      ctx,
		client:   client,
		hub:      hub,
		messages: messages,
		log: slogx.FromContext(ctx).With(
			slog.String("user_id", client.user.ID),
			slog.String("username", client.user.Username),
		),
	}
}

// Handle dispatches a single inbound frame. Unknown events and undecodable
// frames are dropped.
func (s *Session) Handle(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Debug("dropping undecodable frame")
		return
	}

	metrics.WsEventsTotal.WithLabelValues(env.Event).Inc()

	switch env.Event {
	case EventJoinChat:
		var p TargetPayload
		if json.Unmarshal(env.Data, &p) == nil && p.TargetUserID != "" {
			s.handleJoinChat(p.TargetUserID)
		}
	case EventSendMessage:
		var p SendMessagePayload
		if json.Unmarshal(env.Data, &p) == nil {
			s.handleSendMessage(p)
		}
	case EventTypingStart:
		var p TargetPayload
		if json.Unmarshal(env.Data, &p) == nil && p.TargetUserID != "" {
			s.handleTyping(p.TargetUserID, true)
		}
	case EventTypingStop:
		var p TargetPayload
		if json.Unmarshal(env.Data, &p) == nil && p.TargetUserID != "" {
			s.handleTyping(p.TargetUserID, false)
		}
	case EventMarkRead:
		var p TargetPayload
		if json.Unmarshal(env.Data, &p) == nil && p.TargetUserID != "" {
			s.handleMarkRead(p.TargetUserID)
		}
	case EventLeaveChat:
		var p TargetPayload
		if json.Unmarshal(env.Data, &p) == nil && p.TargetUserID != "" {
			s.hub.Leave(s.client, RoomID(s.client.user.ID, p.TargetUserID))
		}
	case EventGetOnlineUsers:
		s.client.enqueue(encodeEvent(EventOnlineUsers, s.hub.OnlineUserIDs(s.client.user.ID)))
	default:
		s.log.Debug("dropping unknown event", slog.String("event", env.Event))
	}
}

// handleJoinChat enrolls the connection in the pair room. If the peer is
// online but not yet a member, they are enrolled too and told about it, so
// the first joiner's messages reach them as room traffic.
func (s *Session) handleJoinChat(targetUserID string) {
	roomID := RoomID(s.client.user.ID, targetUserID)
	s.hub.Join(s.client, roomID)

	peer := s.hub.Lookup(targetUserID)
	if peer == nil || s.hub.InRoom(peer, roomID) {
		return
	}
	s.hub.Join(peer, roomID)
	peer.enqueue(encodeEvent(EventChatJoined, ChatJoinedPayload{
		RoomID:   roomID,
		UserID:   s.client.user.ID,
		Username: s.client.user.Username,
	}))
}

func (s *Session) handleSendMessage(p SendMessagePayload) {
	msg, err := s.messages.Send(
		s.ctx,
		s.client.user.ID,
		p.TargetUserID,
		domain.MessageType(p.MessageType),
		p.Content,
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReceiverNotFound):
			s.client.enqueue(encodeEvent(EventError, ErrorPayload{Message: "Target user not found"}))
		case errors.Is(err, service.ErrInvalidMessage):
			s.client.enqueue(encodeEvent(EventError, ErrorPayload{Message: "Invalid message"}))
		default:
			s.log.Error("failed to persist message", slog.Any("error", err))
			s.client.enqueue(encodeEvent(EventError, ErrorPayload{Message: "Failed to send message"}))
		}
		return
	}

	roomID := RoomID(msg.SenderID, msg.ReceiverID)
	data := MessageData{
		ID: msg.ID,
		Sender: MessageSender{
			ID:             s.client.user.ID,
			Username:       s.client.user.Username,
			ProfilePicture: s.client.user.ProfilePicture,
		},
		Receiver:    msg.ReceiverID,
		Content:     msg.Content,
		MessageType: string(msg.Type),
		CreatedAt:   msg.CreatedAt,
		RoomID:      roomID,
	}

	frame := encodeEvent(EventNewMessage, data)
	for _, member := range s.hub.Members(roomID) {
		member.enqueue(frame)
	}
	metrics.WsMessagesTotal.Inc()

	// An online receiver outside the room gets a personal notification
	// instead of room traffic.
	if peer := s.hub.Lookup(msg.ReceiverID); peer != nil && !s.hub.InRoom(peer, roomID) {
		notification := data
		notification.From = s.client.user.Username
		peer.enqueue(encodeEvent(EventMessageNotification, notification))
	}
}

func (s *Session) handleTyping(targetUserID string, typing bool) {
	roomID := RoomID(s.client.user.ID, targetUserID)

	var frame []byte
	if typing {
		frame = encodeEvent(EventUserTyping, PresencePayload{
			UserID:   s.client.user.ID,
			Username: s.client.user.Username,
		})
	} else {
		frame = encodeEvent(EventUserStoppedTyping, PresencePayload{
			UserID: s.client.user.ID,
		})
	}

	for _, member := range s.hub.Members(roomID) {
		if member != s.client {
			member.enqueue(frame)
		}
	}
}

func (s *Session) handleMarkRead(targetUserID string) {
	if _, err := s.messages.MarkRead(s.ctx, s.client.user.ID, targetUserID); err != nil {
		s.log.Error("failed to mark messages read", slog.Any("error", err))
		return
	}

	if peer := s.hub.Lookup(targetUserID); peer != nil {
		peer.enqueue(encodeEvent(EventMessagesRead, MessagesReadPayload{
			ReadBy: s.client.user.ID,
			ReadAt: time.Now().UTC(),
		}))
	}
}

func (s *Session) handleDisconnect() {
	s.hub.Unregister(s.client)
	s.log.Info("websocket disconnected")
}
