package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vtype/vtype/internal/chat/domain"
)

func newTestClient(id, username string) *Client {
	return newClient(nil, domain.PublicUser{ID: id, Username: username})
}

// nextEvent pops the next buffered frame off a client, failing if none is
// queued.
func nextEvent(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatal("no frame queued")
		return Envelope{}
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame queued: %s", frame)
	default:
	}
}

func TestRoomIDSymmetric(t *testing.T) {
	t.Parallel()

	require.Equal(t, RoomID("alice", "bob"), RoomID("bob", "alice"))
	require.Equal(t, "alice-bob", RoomID("bob", "alice"))
}

func TestRegisterBroadcastsOnline(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	alice := newTestClient("u1", "alice")
	bob := newTestClient("u2", "bob")

	hub.Register(alice)
	requireNoEvent(t, alice) // nobody else online yet

	hub.Register(bob)
	env := nextEvent(t, alice)
	require.Equal(t, EventUserOnline, env.Event)

	var p PresencePayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Equal(t, "u2", p.UserID)
	require.Equal(t, "bob", p.Username)

	requireNoEvent(t, bob) // no self-announcement
}

func TestLastConnectWins(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	first := newTestClient("u1", "alice")
	second := newTestClient("u1", "alice")
	watcher := newTestClient("u2", "bob")

	hub.Register(watcher)
	hub.Register(first)
	nextEvent(t, watcher) // user-online for u1

	hub.Register(second)
	require.Same(t, second, hub.Lookup("u1"))

	// The superseded connection's disconnect must not knock the fresh
	// connection offline.
	hub.Unregister(first)
	require.Same(t, second, hub.Lookup("u1"))
	requireNoEvent(t, watcher) // no user-offline, u1 is still online

	hub.Unregister(second)
	require.Nil(t, hub.Lookup("u1"))

	nextEvent(t, watcher) // user-online for the second connection
	env := nextEvent(t, watcher)
	require.Equal(t, EventUserOffline, env.Event)
}

func TestUnregisterClearsRoomMembership(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	alice := newTestClient("u1", "alice")
	bob := newTestClient("u2", "bob")
	hub.Register(alice)
	hub.Register(bob)

	room := RoomID("u1", "u2")
	hub.Join(alice, room)
	hub.Join(bob, room)
	require.True(t, hub.InRoom(alice, room))

	hub.Unregister(alice)
	require.False(t, hub.InRoom(alice, room))
	require.True(t, hub.InRoom(bob, room))
	require.Len(t, hub.Members(room), 1)
}

func TestOnlineUserIDsExcludesSelf(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	hub.Register(newTestClient("u1", "alice"))
	hub.Register(newTestClient("u2", "bob"))
	hub.Register(newTestClient("u3", "carol"))

	require.Equal(t, []string{"u2", "u3"}, hub.OnlineUserIDs("u1"))
	require.Equal(t, 3, hub.Online())
}

func TestLeaveRoom(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	alice := newTestClient("u1", "alice")
	hub.Register(alice)

	room := RoomID("u1", "u2")
	hub.Join(alice, room)
	hub.Leave(alice, room)
	require.False(t, hub.InRoom(alice, room))
	require.Empty(t, hub.Members(room))
}
