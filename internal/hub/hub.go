package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/robaro12345/SafeTalk/internal/delivery"
	"github.com/robaro12345/SafeTalk/internal/domain"
	"github.com/robaro12345/SafeTalk/internal/presence"
	"github.com/robaro12345/SafeTalk/internal/receipt"
	"github.com/robaro12345/SafeTalk/internal/service"
)

// Hub owns the set of live WebSocket clients and routes their events to the
// delivery pipeline, the receipt tracker and the presence registry. It also
// implements presence.Notifier to fan presence transitions out to everyone
// else.
type Hub struct {
	mu          sync.RWMutex
	connections map[*Client]bool
	usernames   map[uuid.UUID]string

	presence *presence.Registry
	rooms    *RoomSet
	pipeline *delivery.Pipeline
	tracker  *receipt.Tracker
	users    service.IUserService
}

// NewHub wires the hub into the registry as its transition notifier.
func NewHub(registry *presence.Registry, rooms *RoomSet, pipeline *delivery.Pipeline, tracker *receipt.Tracker, users service.IUserService) *Hub {
	h := &Hub{
		connections: make(map[*Client]bool),
		usernames:   make(map[uuid.UUID]string),
		presence:    registry,
		rooms:       rooms,
		pipeline:    pipeline,
		tracker:     tracker,
		users:       users,
	}
	registry.SetNotifier(h)
	return h
}

// ServeWs attaches an authenticated WebSocket connection to the hub and
// starts its pumps. The first connection for a user makes them online.
func (h *Hub) ServeWs(conn *websocket.Conn, user *domain.User) {
	client := &Client{
		id:     uuid.NewString(),
		User:   user,
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		joined: make(map[string]bool),
	}

	h.mu.Lock()
	h.connections[client] = true
	h.usernames[user.ID] = user.Username
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()

	h.presence.Register(user.ID, client)
	log.Printf("user connected: %s (conn %s)", user.Username, client.id)
}

// Disconnect tears a client down: presence first (so the offline transition
// fires while the connection set is still coherent), then room membership,
// then the send queue.
func (h *Hub) Disconnect(client *Client) {
	h.presence.Unregister(client.User.ID, client)
	h.rooms.LeaveAll(client)

	h.mu.Lock()
	if _, ok := h.connections[client]; ok {
		delete(h.connections, client)
		close(client.Send)
	}
	h.mu.Unlock()
	log.Printf("user disconnected: %s (conn %s)", client.User.Username, client.id)
}

// UserOnline implements presence.Notifier. Broadcast goes to everyone except
// the user's own connections.
func (h *Hub) UserOnline(userID uuid.UUID) {
	h.broadcastPresence(domain.Envelope{
		Type:    domain.EventUserOnline,
		Payload: domain.PresencePayload{UserID: userID, Username: h.username(userID)},
	}, userID)
}

// UserOffline implements presence.Notifier. The last-seen timestamp is
// handed off to the persistent user record.
func (h *Hub) UserOffline(userID uuid.UUID, lastSeen time.Time) {
	seen := lastSeen
	h.broadcastPresence(domain.Envelope{
		Type:    domain.EventUserOffline,
		Payload: domain.PresencePayload{UserID: userID, Username: h.username(userID), LastSeen: &seen},
	}, userID)

	go func() {
		if err := h.users.TouchLastSeen(userID, lastSeen); err != nil {
			log.Printf("persist last-seen for %s: %v", userID, err)
		}
	}()
}

func (h *Hub) username(userID uuid.UUID) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.usernames[userID]
}

func (h *Hub) broadcastPresence(env domain.Envelope, except uuid.UUID) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.connections))
	for client := range h.connections {
		if client.User.ID != except {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.Enqueue(env)
	}
}

// route dispatches one inbound event. Runs on the client's read goroutine,
// so events from a single connection are handled in order.
func (h *Hub) route(c *Client, env domain.RawEnvelope) {
	ctx := context.Background()

	switch env.Type {
	case domain.EventSendMessage:
		var p domain.SendMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.Enqueue(domain.Envelope{Type: domain.EventMessageError, Payload: domain.MessageErrorPayload{Message: "invalid send_message payload"}})
			return
		}
		// The pipeline emits message_sent / message_error itself.
		if _, err := h.pipeline.Send(ctx, c, c.User, p); err != nil {
			log.Printf("send from %s failed: %v", c.User.Username, err)
		}

	case domain.EventMessageRead:
		var p domain.MessageReadPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.MessageID == "" {
			return
		}
		if _, err := h.tracker.Advance(ctx, p.MessageID, c.User.ID, domain.StatusRead); err != nil {
			log.Printf("message_read %s by %s: %v", p.MessageID, c.User.Username, err)
		}

	case domain.EventJoinConversation:
		var p domain.ConversationPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.OtherUserID == uuid.Nil {
			c.sendError("other user ID is required")
			return
		}
		key := RoomKey(c.User.ID, p.OtherUserID)
		h.rooms.Join(c, key)
		c.Enqueue(domain.Envelope{
			Type:    domain.EventConversationJoined,
			Payload: domain.ConversationJoinedPayload{RoomName: key, OtherUserID: p.OtherUserID},
		})

	case domain.EventLeaveConversation:
		var p domain.ConversationPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.OtherUserID == uuid.Nil {
			return
		}
		h.rooms.Leave(c, RoomKey(c.User.ID, p.OtherUserID))

	case domain.EventTypingStart, domain.EventTypingStop:
		var p domain.TypingRequestPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.ReceiverID == uuid.Nil {
			return
		}
		h.rooms.ToConversation(c.User.ID, p.ReceiverID, domain.Envelope{
			Type: domain.EventUserTyping,
			Payload: domain.TypingPayload{
				UserID:   c.User.ID,
				Username: c.User.Username,
				IsTyping: env.Type == domain.EventTypingStart,
			},
		}, c.ID())

	case domain.EventGetUserStatus:
		var p domain.UserStatusRequestPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.sendError("invalid get_user_status payload")
			return
		}
		c.Enqueue(domain.Envelope{
			Type:    domain.EventUserStatusList,
			Payload: h.presence.StatusBatch(p.UserIDs),
		})

	default:
		c.sendError(fmt.Sprintf("unknown event type: %s", env.Type))
	}
}
