package hub

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

func newTestClient(t *testing.T, username string) *Client {
	t.Helper()
	return &Client{
		id:     uuid.NewString(),
		User:   &domain.User{ID: uuid.New(), Username: username},
		Send:   make(chan []byte, 16),
		joined: make(map[string]bool),
	}
}

func drainOne(t *testing.T, c *Client) domain.RawEnvelope {
	t.Helper()
	select {
	case data := <-c.Send:
		var env domain.RawEnvelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	default:
		t.Fatalf("expected an event queued for %s", c.User.Username)
		return domain.RawEnvelope{}
	}
}

func TestRoomKey_Symmetric(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	assert.Equal(t, RoomKey(a, b), RoomKey(b, a))
	assert.NotEqual(t, RoomKey(a, b), RoomKey(a, uuid.New()))
}

func TestRoomSet_BroadcastExceptSender(t *testing.T) {
	rs := NewRoomSet()
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")

	key := RoomKey(alice.User.ID, bob.User.ID)
	rs.Join(alice, key)
	rs.Join(bob, key)

	env := domain.Envelope{Type: domain.EventConversationMessage, Payload: map[string]string{"id": "m1"}}
	rs.ToConversation(alice.User.ID, bob.User.ID, env, alice.ID())

	got := drainOne(t, bob)
	assert.Equal(t, domain.EventConversationMessage, got.Type)
	assert.Empty(t, alice.Send, "sender's own connection must be excluded")
}

func TestRoomSet_BroadcastToEmptyRoomIsNoop(t *testing.T) {
	rs := NewRoomSet()
	rs.ToConversation(uuid.New(), uuid.New(), domain.Envelope{Type: domain.EventUserTyping}, "")
}

func TestRoomSet_LeaveStopsDelivery(t *testing.T) {
	rs := NewRoomSet()
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")

	key := RoomKey(alice.User.ID, bob.User.ID)
	rs.Join(alice, key)
	rs.Join(bob, key)
	rs.Leave(bob, key)

	rs.ToConversation(alice.User.ID, bob.User.ID, domain.Envelope{Type: domain.EventUserTyping}, "")
	assert.Empty(t, bob.Send)
	assert.False(t, bob.joined[key])
}

func TestRoomSet_LeaveAllClearsEveryRoom(t *testing.T) {
	rs := NewRoomSet()
	alice := newTestClient(t, "alice")
	bob := newTestClient(t, "bob")
	carol := newTestClient(t, "carol")

	keyAB := RoomKey(alice.User.ID, bob.User.ID)
	keyAC := RoomKey(alice.User.ID, carol.User.ID)
	rs.Join(alice, keyAB)
	rs.Join(alice, keyAC)
	rs.Join(bob, keyAB)

	rs.LeaveAll(alice)
	assert.Empty(t, alice.joined)

	rs.ToConversation(alice.User.ID, bob.User.ID, domain.Envelope{Type: domain.EventUserTyping}, "")
	assert.Empty(t, alice.Send)
	drainOne(t, bob)

	// The alice/carol room emptied and was dropped.
	rs.mu.RLock()
	_, ok := rs.rooms[keyAC]
	rs.mu.RUnlock()
	assert.False(t, ok)
}

func TestClient_EnqueueDropsWhenQueueFull(t *testing.T) {
	c := newTestClient(t, "slow")
	c.Send = make(chan []byte, 1)

	env := domain.Envelope{Type: domain.EventUserTyping, Payload: domain.TypingPayload{Username: "x"}}
	assert.True(t, c.Enqueue(env))
	assert.False(t, c.Enqueue(env), "full queue must drop, not block")
}

func TestClient_EnqueueOnClosedQueue(t *testing.T) {
	c := newTestClient(t, "gone")
	close(c.Send)

	assert.False(t, c.Enqueue(domain.Envelope{Type: domain.EventUserTyping}))
}
