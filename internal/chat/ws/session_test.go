package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vtype/vtype/internal/chat/domain"
	"github.com/vtype/vtype/internal/chat/service"
	"github.com/vtype/vtype/internal/chat/store"
	"github.com/vtype/vtype/internal/chat/store/drivers/sqlite"
	"github.com/vtype/vtype/pkg/idx"
)

type sessionFixture struct {
	hub      *Hub
	store    store.Store
	messages *service.MessageService

	alice, bob         domain.User
	aliceConn, bobConn *Client
	aliceSess, bobSess *Session
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	f := &sessionFixture{
		hub:      NewHub(),
		store:    st,
		messages: &service.MessageService{Store: st},
	}

	f.alice = f.seedUser(t, "alice")
	f.bob = f.seedUser(t, "bob")

	f.aliceConn = newClient(nil, f.alice.Public())
	f.bobConn = newClient(nil, f.bob.Public())
	f.hub.Register(f.aliceConn)
	f.hub.Register(f.bobConn)
	drain(f.aliceConn)
	drain(f.bobConn)

	f.aliceSess = NewSession(ctx, f.aliceConn, f.hub, f.messages)
	f.bobSess = NewSession(ctx, f.bobConn, f.hub, f.messages)
	return f
}

func (f *sessionFixture) seedUser(t *testing.T, username string) domain.User {
	t.Helper()
	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, f.store.Users().CreateUser(context.Background(), u))
	return u
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	b, err := json.Marshal(Envelope{Event: event, Data: raw})
	require.NoError(t, err)
	return b
}

func TestJoinChatAutoEnrollsPeer(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)

	f.aliceSess.Handle(frame(t, EventJoinChat, TargetPayload{TargetUserID: f.bob.ID}))

	room := RoomID(f.alice.ID, f.bob.ID)
	require.True(t, f.hub.InRoom(f.aliceConn, room))
	require.True(t, f.hub.InRoom(f.bobConn, room))

	env := nextEvent(t, f.bobConn)
	require.Equal(t, EventChatJoined, env.Event)
	var p ChatJoinedPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Equal(t, room, p.RoomID)
	require.Equal(t, f.alice.ID, p.UserID)
	require.Equal(t, "alice", p.Username)

	// Rejoining does not re-announce to an already enrolled peer.
	f.aliceSess.Handle(frame(t, EventJoinChat, TargetPayload{TargetUserID: f.bob.ID}))
	requireNoEvent(t, f.bobConn)
}

func TestSendMessageFansOutToRoom(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)

	f.aliceSess.Handle(frame(t, EventJoinChat, TargetPayload{TargetUserID: f.bob.ID}))
	drain(f.bobConn)

	f.aliceSess.Handle(frame(t, EventSendMessage, SendMessagePayload{
		TargetUserID: f.bob.ID,
		Content:      "hey bob",
	}))

	// Both room members see new-message; the enrolled receiver gets no
	// extra notification.
	for _, c := range []*Client{f.aliceConn, f.bobConn} {
		env := nextEvent(t, c)
		require.Equal(t, EventNewMessage, env.Event)
		var data MessageData
		require.NoError(t, json.Unmarshal(env.Data, &data))
		require.Equal(t, "hey bob", data.Content)
		require.Equal(t, "text", data.MessageType)
		require.Equal(t, f.alice.ID, data.Sender.ID)
		require.Equal(t, f.bob.ID, data.Receiver)
		require.Empty(t, data.From)
	}
	requireNoEvent(t, f.bobConn)

	// Durable before fanout: the message is in the store.
	msgs, err := f.messages.History(context.Background(), f.alice.ID, f.bob.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hey bob", msgs[0].Content)
}

func TestSendMessageNotifiesReceiverOutsideRoom(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)

	// Alice is alone in the room; bob is online but never joined.
	room := RoomID(f.alice.ID, f.bob.ID)
	f.hub.Join(f.aliceConn, room)

	f.aliceSess.Handle(frame(t, EventSendMessage, SendMessagePayload{
		TargetUserID: f.bob.ID,
		Content:      "you there?",
	}))

	env := nextEvent(t, f.aliceConn)
	require.Equal(t, EventNewMessage, env.Event)

	env = nextEvent(t, f.bobConn)
	require.Equal(t, EventMessageNotification, env.Event)
	var data MessageData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "you there?", data.Content)
	require.Equal(t, "alice", data.From)
	requireNoEvent(t, f.bobConn)
}

func TestSendMessageUnknownReceiver(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)

	f.aliceSess.Handle(frame(t, EventSendMessage, SendMessagePayload{
		TargetUserID: idx.New().String(),
		Content:      "hello?",
	}))

	env := nextEvent(t, f.aliceConn)
	require.Equal(t, EventError, env.Event)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Equal(t, "Target user not found", p.Message)
	requireNoEvent(t, f.bobConn)

	// Nothing was persisted.
	msgs, err := f.messages.History(context.Background(), f.alice.ID, f.bob.ID, 0, 0)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestTypingExcludesSender(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)

	f.aliceSess.Handle(frame(t, EventJoinChat, TargetPayload{TargetUserID: f.bob.ID}))
	drain(f.bobConn)

	f.aliceSess.Handle(frame(t, EventTypingStart, TargetPayload{TargetUserID: f.bob.ID}))
	env := nextEvent(t, f.bobConn)
	require.Equal(t, EventUserTyping, env.Event)
	requireNoEvent(t, f.aliceConn)

	f.aliceSess.Handle(frame(t, EventTypingStop, TargetPayload{TargetUserID: f.bob.ID}))
	env = nextEvent(t, f.bobConn)
	require.Equal(t, EventUserStoppedTyping, env.Event)
	var p PresencePayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Equal(t, f.alice.ID, p.UserID)
	require.Empty(t, p.Username)
}

func TestMarkMessagesRead(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.messages.Send(ctx, f.alice.ID, f.bob.ID, domain.MessageTypeText, "one")
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, f.alice.ID, f.bob.ID, domain.MessageTypeText, "two")
	require.NoError(t, err)

	f.bobSess.Handle(frame(t, EventMarkRead, TargetPayload{TargetUserID: f.alice.ID}))

	env := nextEvent(t, f.aliceConn)
	require.Equal(t, EventMessagesRead, env.Event)
	var p MessagesReadPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Equal(t, f.bob.ID, p.ReadBy)
	require.False(t, p.ReadAt.IsZero())

	unread, err := f.messages.UnreadCount(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Zero(t, unread)
}

func TestGetOnlineUsers(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)

	f.aliceSess.Handle(frame(t, EventGetOnlineUsers, nil))

	env := nextEvent(t, f.aliceConn)
	require.Equal(t, EventOnlineUsers, env.Event)
	var ids []string
	require.NoError(t, json.Unmarshal(env.Data, &ids))
	require.Equal(t, []string{f.bob.ID}, ids)
}

func TestUnknownEventIsIgnored(t *testing.T) {
	t.Parallel()
	f := newSessionFixture(t)

	f.aliceSess.Handle([]byte(`{"event":"self-destruct"}`))
	f.aliceSess.Handle([]byte(`not json`))
	requireNoEvent(t, f.aliceConn)
	requireNoEvent(t, f.bobConn)
}
