package hub

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

// RoomKey derives the canonical conversation room name for a pair of users.
// It is symmetric: RoomKey(a, b) == RoomKey(b, a). The separator cannot
// appear in a canonical UUID string, so keys never collide across pairs.
func RoomKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	if ids[1] < ids[0] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	return strings.Join(ids, "_")
}

// RoomSet scopes connections to conversation rooms for broadcast. Rooms are
// pure broadcast scopes: nothing is persisted and membership lives only as
// long as the connection. A connection may sit in many rooms at once, one
// per open conversation.
type RoomSet struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

// NewRoomSet creates an empty RoomSet.
func NewRoomSet() *RoomSet {
	return &RoomSet{rooms: make(map[string]map[*Client]bool)}
}

// Join adds a client to a room, creating the room on first join.
func (rs *RoomSet) Join(client *Client, key string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	room, ok := rs.rooms[key]
	if !ok {
		room = make(map[*Client]bool)
		rs.rooms[key] = room
	}
	room[client] = true
	client.joined[key] = true
}

// Leave removes a client from a room, dropping the room when it empties.
func (rs *RoomSet) Leave(client *Client, key string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.leaveLocked(client, key)
}

// LeaveAll removes a client from every room it joined. Called on disconnect.
func (rs *RoomSet) LeaveAll(client *Client) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for key := range client.joined {
		rs.leaveLocked(client, key)
	}
}

func (rs *RoomSet) leaveLocked(client *Client, key string) {
	if room, ok := rs.rooms[key]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(rs.rooms, key)
		}
	}
	delete(client.joined, key)
}

// ToConversation broadcasts an event to every connection joined to the pair's
// room, except the connection identified by exceptConnID. A member whose send
// queue is full is skipped; room broadcast is a best-effort UI sync, not a
// durability path.
func (rs *RoomSet) ToConversation(a, b uuid.UUID, env domain.Envelope, exceptConnID string) {
	key := RoomKey(a, b)

	rs.mu.RLock()
	room, ok := rs.rooms[key]
	if !ok {
		rs.mu.RUnlock()
		return
	}
	members := make([]*Client, 0, len(room))
	for client := range room {
		members = append(members, client)
	}
	rs.mu.RUnlock()

	for _, client := range members {
		if client.ID() == exceptConnID {
			continue
		}
		client.Enqueue(env)
	}
}
