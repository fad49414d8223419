// Package network manages the client side of the realtime connection.
package network

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

// Handler consumes one event's raw payload.
type Handler func(payload json.RawMessage)

// Client manages the WebSocket connection. Outbound events go through the
// Send channel so only one goroutine ever writes to the socket.
type Client struct {
	Conn *websocket.Conn
	Send chan domain.Envelope

	mu        sync.Mutex
	handlers  map[string]map[int]Handler
	nextID    int
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new network client.
func NewClient() *Client {
	return &Client{
		Send:     make(chan domain.Envelope, 256),
		handlers: make(map[string]map[int]Handler),
		done:     make(chan struct{}),
	}
}

// Connect dials the server's /ws endpoint with the session token and starts
// the read and write pumps.
func (c *Client) Connect(serverURL, token string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	c.Conn = conn

	go c.readPump()
	go c.writePump()
	return nil
}

// Close shuts the connection down.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	if c.Conn != nil {
		c.Conn.Close()
	}
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// On subscribes a handler to an event type and returns its detach function.
// Detach is guaranteed to remove exactly this subscription; callers defer it
// so listeners never leak across reconnects.
func (c *Client) On(eventType string, fn Handler) (off func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs, ok := c.handlers[eventType]
	if !ok {
		subs = make(map[int]Handler)
		c.handlers[eventType] = subs
	}
	id := c.nextID
	c.nextID++
	subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(subs, id)
	}
}

func (c *Client) dispatch(env domain.RawEnvelope) {
	c.mu.Lock()
	fns := make([]Handler, 0, len(c.handlers[env.Type]))
	for _, fn := range c.handlers[env.Type] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(env.Payload)
	}
}

// readPump reads server events and fans them out to subscribers.
func (c *Client) readPump() {
	defer func() {
		c.closeOnce.Do(func() { close(c.done) })
		c.Conn.Close()
	}()

	for {
		var env domain.RawEnvelope
		if err := c.Conn.ReadJSON(&env); err != nil {
			log.Printf("Connection closed: %v", err)
			return
		}
		c.dispatch(env)
	}
}

// writePump drains the Send channel onto the socket.
func (c *Client) writePump() {
	defer c.Conn.Close()
	for {
		select {
		case env := <-c.Send:
			if err := c.Conn.WriteJSON(env); err != nil {
				log.Printf("Write error: %v", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// SendMessage submits a message. tempID is the correlation id of the
// client's optimistic entry.
func (c *Client) SendMessage(receiverID uuid.UUID, content, senderContent, tempID string) {
	c.Send <- domain.Envelope{Type: domain.EventSendMessage, Payload: domain.SendMessagePayload{
		ReceiverID:    receiverID,
		Content:       content,
		SenderContent: senderContent,
		Kind:          domain.KindText,
		TempID:        tempID,
	}}
}

// MarkRead reports that this user has read a message.
func (c *Client) MarkRead(messageID string, senderID uuid.UUID) {
	c.Send <- domain.Envelope{Type: domain.EventMessageRead, Payload: domain.MessageReadPayload{
		MessageID: messageID,
		SenderID:  senderID,
	}}
}

// JoinConversation scopes this connection to the conversation with the
// other user.
func (c *Client) JoinConversation(otherUserID uuid.UUID) {
	c.Send <- domain.Envelope{Type: domain.EventJoinConversation, Payload: domain.ConversationPayload{OtherUserID: otherUserID}}
}

// LeaveConversation leaves the conversation's broadcast scope.
func (c *Client) LeaveConversation(otherUserID uuid.UUID) {
	c.Send <- domain.Envelope{Type: domain.EventLeaveConversation, Payload: domain.ConversationPayload{OtherUserID: otherUserID}}
}

// SetTyping reports this user's typing state to the open conversation.
func (c *Client) SetTyping(receiverID uuid.UUID, typing bool) {
	eventType := domain.EventTypingStop
	if typing {
		eventType = domain.EventTypingStart
	}
	c.Send <- domain.Envelope{Type: eventType, Payload: domain.TypingRequestPayload{ReceiverID: receiverID}}
}

// RequestStatus asks for a presence snapshot of the given users.
func (c *Client) RequestStatus(userIDs []uuid.UUID) {
	c.Send <- domain.Envelope{Type: domain.EventGetUserStatus, Payload: domain.UserStatusRequestPayload{UserIDs: userIDs}}
}
