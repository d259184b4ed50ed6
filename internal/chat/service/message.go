package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vtype/vtype/internal/chat/domain"
	"github.com/vtype/vtype/internal/chat/store"
	"github.com/vtype/vtype/pkg/idx"
)

const maxMessageLength = 4096

type MessageService struct {
	Store store.Store
}

// Send validates and persists a direct message. The message is durable
// before any delivery fanout happens; callers deliver the returned message
// afterwards.
func (s *MessageService) Send(
	ctx context.Context,
	senderID, receiverID string,
	msgType domain.MessageType,
	content string,
) (domain.Message, error) {
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if !msgType.Valid() {
		return domain.Message{}, ErrInvalidMessage
	}
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxMessageLength {
		return domain.Message{}, ErrInvalidMessage
	}
	if receiverID == "" || receiverID == senderID {
		return domain.Message{}, ErrInvalidMessage
	}

	receiver, err := s.Store.Users().GetUserByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Message{}, ErrReceiverNotFound
		}
		return domain.Message{}, err
	}
	if !receiver.IsActive {
		return domain.Message{}, ErrReceiverNotFound
	}

	msg := domain.Message{
		ID:         idx.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Type:       msgType,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Store.Messages().CreateMessage(ctx, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// MarkRead marks every unread message from senderID to readerID as read and
// returns how many were affected. Marking an already read conversation is a
// no-op returning zero.
func (s *MessageService) MarkRead(ctx context.Context, readerID, senderID string) (int64, error) {
	return s.Store.Messages().MarkConversationRead(ctx, readerID, senderID, time.Now())
}

// History returns one page of the conversation between userID and partnerID.
// Paging walks back from the newest message; the page reads oldest first.
func (s *MessageService) History(
	ctx context.Context,
	userID, partnerID string,
	limit, offset int,
) ([]domain.Message, error) {
	return s.Store.Messages().ListBetween(ctx, userID, partnerID, limit, offset)
}

// Contacts returns the user's conversation list with last message and unread
// counts, newest first.
func (s *MessageService) Contacts(ctx context.Context, userID string) ([]domain.Contact, error) {
	return s.Store.Messages().ListContacts(ctx, userID)
}

// UnreadCount returns the total unread messages addressed to the user.
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.Store.Messages().CountUnread(ctx, userID)
}
