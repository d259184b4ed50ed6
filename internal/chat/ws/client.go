package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/vtype/vtype/internal/chat/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 64 << 10
	sendBufferSize = 256
)

// Client is one live websocket connection for an authenticated user.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	user domain.PublicUser
}

func newClient(conn *websocket.Conn, user domain.PublicUser) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		user: user,
	}
}

// UserID returns the id of the user behind this connection.
func (c *Client) UserID() string { return c.user.ID }

// enqueue hands a frame to the write pump without blocking. Frames to a
// connection whose buffer is full are dropped; the slow connection will be
// torn down by its own ping timeout rather than stalling the sender.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// readPump reads frames and hands each one to the session sequentially, so a
// message is persisted and fanned out before the next frame is looked at.
func (c *Client) readPump(s *Session) {
	defer func() {
		s.handleDisconnect()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		s.Handle(data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
