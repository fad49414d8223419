// Package presence tracks which users currently hold live connections.
package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

// Conn is the handle the registry keeps per live connection. The hub's
// websocket client satisfies it; tests use in-memory fakes.
type Conn interface {
	// ID uniquely identifies the connection (not the user).
	ID() string
	// Enqueue offers an event to the connection's outbound queue without
	// blocking. It reports false when the connection cannot accept it.
	Enqueue(env domain.Envelope) bool
}

// Notifier observes first-connection and last-connection transitions. Calls
// are made while the registry lock is held so that membership change and
// notification are atomic; implementations must not call back into the
// registry.
type Notifier interface {
	UserOnline(userID uuid.UUID)
	UserOffline(userID uuid.UUID, lastSeen time.Time)
}

type entry struct {
	conns map[string]Conn
}

// Registry is the in-memory presence table. It is the single shared mutable
// structure of the real-time core and is safe for concurrent use. An
// instance is injected wherever presence is consulted; there is no package
// level singleton.
type Registry struct {
	mu       sync.Mutex
	entries  map[uuid.UUID]*entry
	lastSeen map[uuid.UUID]time.Time
	notifier Notifier
	now      func() time.Time
}

// NewRegistry creates an empty registry. notifier may be nil.
func NewRegistry(notifier Notifier) *Registry {
	return &Registry{
		entries:  make(map[uuid.UUID]*entry),
		lastSeen: make(map[uuid.UUID]time.Time),
		notifier: notifier,
		now:      time.Now,
	}
}

// SetNotifier installs the transition observer. Called once during wiring,
// before any connection registers.
func (r *Registry) SetNotifier(n Notifier) {
	r.notifier = n
}

// SetClock overrides the registry clock. Tests only.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Register adds a connection for a user. Registering the same connection
// handle twice is idempotent. The first connection for a user emits exactly
// one online notification; additional connections emit none.
func (r *Registry) Register(userID uuid.UUID, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		e = &entry{conns: make(map[string]Conn)}
		r.entries[userID] = e
	}
	first := len(e.conns) == 0
	e.conns[c.ID()] = c
	delete(r.lastSeen, userID)

	if first && r.notifier != nil {
		r.notifier.UserOnline(userID)
	}
}

// Unregister removes a connection for a user. Removing the last connection
// records the user's last-seen time and emits exactly one offline
// notification. Unknown handles are ignored.
func (r *Registry) Unregister(userID uuid.UUID, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return
	}
	if _, ok := e.conns[c.ID()]; !ok {
		return
	}
	delete(e.conns, c.ID())
	if len(e.conns) > 0 {
		return
	}

	delete(r.entries, userID)
	seen := r.now()
	r.lastSeen[userID] = seen
	if r.notifier != nil {
		r.notifier.UserOffline(userID, seen)
	}
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	return ok && len(e.conns) > 0
}

// ConnectionsFor returns the user's live connection handles. The slice is a
// snapshot; an empty slice means offline.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		return nil
	}
	conns := make([]Conn, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	return conns
}

// StatusBatch resolves presence for a list of users in one pass. It touches
// only in-memory state and never blocks on I/O. Last-seen is reported for
// users observed disconnecting during this process's lifetime; nil otherwise.
func (r *Registry) StatusBatch(userIDs []uuid.UUID) []domain.UserStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]domain.UserStatus, 0, len(userIDs))
	for _, id := range userIDs {
		s := domain.UserStatus{UserID: id}
		if e, ok := r.entries[id]; ok && len(e.conns) > 0 {
			s.IsOnline = true
		} else if seen, ok := r.lastSeen[id]; ok {
			t := seen
			s.LastSeen = &t
		}
		statuses = append(statuses, s)
	}
	return statuses
}
