package ws

import (
	"sort"
	"strings"
	"sync"

	"github.com/vtype/vtype/internal/chat/metrics"
)

// RoomID returns the stable room identifier for a pair of users: the two ids
// sorted and joined with a dash, so both sides always compute the same room.
func RoomID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "-")
}

// Hub is the in-memory presence registry and room router. One connection per
// user (last connect wins); rooms are ephemeral sets of live connections.
// All mutations happen under a single mutex, so membership changes are
// serialized and broadcasts see a consistent snapshot.
type Hub struct {
	mu     sync.Mutex
	byUser map[string]*Client
	rooms  map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		byUser: make(map[string]*Client),
		rooms:  make(map[string]map[*Client]struct{}),
	}
}

// Register adds a connection to the presence registry, superseding any prior
// connection for the same user, and announces the user to everyone else.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.byUser[c.user.ID] = c
	others := h.othersLocked(c.user.ID)
	h.mu.Unlock()

	metrics.WsConnections.Inc()

	frame := encodeEvent(EventUserOnline, PresencePayload{
		UserID:   c.user.ID,
		Username: c.user.Username,
	})
	for _, other := range others {
		other.enqueue(frame)
	}
}

// Unregister removes a connection. The presence entry is only dropped when it
// still belongs to this connection, so a stale disconnect after a reconnect
// does not knock the fresh connection offline. Room membership always dies
// with the connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.byUser[c.user.ID] == c
	if removed {
		delete(h.byUser, c.user.ID)
	}
	for roomID, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	var others []*Client
	if removed {
		others = h.othersLocked(c.user.ID)
	}
	h.mu.Unlock()

	metrics.WsConnections.Dec()

	if removed {
		frame := encodeEvent(EventUserOffline, PresencePayload{
			UserID:   c.user.ID,
			Username: c.user.Username,
		})
		for _, other := range others {
			other.enqueue(frame)
		}
	}
}

// Lookup returns the live connection for a user, or nil.
func (h *Hub) Lookup(userID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.byUser[userID]
}

// OnlineUserIDs returns every online user id except the given one.
func (h *Hub) OnlineUserIDs(exclude string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.byUser))
	for id := range h.byUser {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Join adds a connection to a room.
func (h *Hub) Join(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomID] = members
	}
	members[c] = struct{}{}
}

// Leave removes a connection from a room.
func (h *Hub) Leave(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// InRoom reports whether a connection is a member of a room.
func (h *Hub) InRoom(c *Client, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.rooms[roomID][c]
	return ok
}

// Members returns a snapshot of a room's connections.
func (h *Hub) Members(roomID string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		members = append(members, c)
	}
	return members
}

// Online returns the number of users currently connected.
func (h *Hub) Online() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byUser)
}

func (h *Hub) othersLocked(exclude string) []*Client {
	others := make([]*Client, 0, len(h.byUser))
	for id, c := range h.byUser {
		if id != exclude {
			others = append(others, c)
		}
	}
	return others
}
