package hub

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

// Client mediates between one WebSocket connection and the Hub. A user may
// hold several clients at once (multi-device).
type Client struct {
	id   string
	User *domain.User
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	// joined tracks room keys for disconnect cleanup. Guarded by the
	// RoomSet mutex; only the RoomSet touches it.
	joined map[string]bool
}

// ID returns the connection id (distinct from the user id).
func (c *Client) ID() string {
	return c.id
}

// Enqueue marshals an event onto the client's send queue without blocking.
// It reports false when the queue is full or closed; the caller decides
// whether that matters.
func (c *Client) Enqueue(env domain.Envelope) (ok bool) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("marshal %s event for %s: %v", env.Type, c.User.Username, err)
		return false
	}
	// Send may be closed by the hub loop while we enqueue.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.Send <- data:
		return true
	default:
		log.Printf("send queue full for %s (conn %s), dropping %s", c.User.Username, c.id, env.Type)
		return false
	}
}

// readPump reads events from the WebSocket and routes them. One goroutine
// per connection; events from a single connection are handled in order.
func (c *Client) readPump() {
	defer func() {
		c.Hub.Disconnect(c)
		c.Conn.Close()
	}()

	for {
		var env domain.RawEnvelope
		if err := c.Conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("readPump ReadJSON error (user: %s): %v", c.User.Username, err)
			}
			break
		}
		c.Hub.route(c, env)
	}
}

// writePump drains the Send channel onto the WebSocket, serializing writes.
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("writePump error (user: %s): %v", c.User.Username, err)
			return
		}
	}
}

// sendError reports a request failure back to this connection only.
func (c *Client) sendError(message string) {
	c.Enqueue(domain.Envelope{Type: domain.EventError, Payload: domain.ErrorPayload{Message: message}})
}
