package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []domain.Envelope
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Enqueue(env domain.Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, env)
	return true
}

type recordingNotifier struct {
	mu      sync.Mutex
	online  []uuid.UUID
	offline []uuid.UUID
	seen    []time.Time
}

func (n *recordingNotifier) UserOnline(userID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.online = append(n.online, userID)
}

func (n *recordingNotifier) UserOffline(userID uuid.UUID, lastSeen time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = append(n.offline, userID)
	n.seen = append(n.seen, lastSeen)
}

func TestRegistry_FirstAndLastConnectionNotify(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	userID := uuid.New()

	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")

	reg.Register(userID, c1)
	require.Len(t, notifier.online, 1, "first connection must emit exactly one online event")

	// Additional connections for an already-online user must not notify.
	reg.Register(userID, c2)
	reg.Register(userID, c2) // duplicate registration is idempotent
	assert.Len(t, notifier.online, 1)
	assert.Len(t, reg.ConnectionsFor(userID), 2)

	reg.Unregister(userID, c1)
	assert.Empty(t, notifier.offline, "user still has a live connection")
	assert.True(t, reg.IsOnline(userID))

	reg.Unregister(userID, c2)
	require.Len(t, notifier.offline, 1, "last connection must emit exactly one offline event")
	assert.False(t, reg.IsOnline(userID))
	assert.Empty(t, reg.ConnectionsFor(userID))
}

func TestRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	userID := uuid.New()

	reg.Unregister(userID, newFakeConn("ghost"))
	assert.Empty(t, notifier.offline)
}

func TestRegistry_StatusBatch(t *testing.T) {
	reg := NewRegistry(nil)
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	reg.SetClock(func() time.Time { return now })

	online := uuid.New()
	wentOffline := uuid.New()
	neverSeen := uuid.New()

	reg.Register(online, newFakeConn("a"))
	offConn := newFakeConn("b")
	reg.Register(wentOffline, offConn)
	reg.Unregister(wentOffline, offConn)

	statuses := reg.StatusBatch([]uuid.UUID{online, wentOffline, neverSeen})
	require.Len(t, statuses, 3)

	assert.True(t, statuses[0].IsOnline)
	assert.Nil(t, statuses[0].LastSeen)

	assert.False(t, statuses[1].IsOnline)
	require.NotNil(t, statuses[1].LastSeen)
	assert.Equal(t, now, *statuses[1].LastSeen)

	assert.False(t, statuses[2].IsOnline)
	assert.Nil(t, statuses[2].LastSeen)
}

func TestRegistry_ReconnectClearsLastSeen(t *testing.T) {
	reg := NewRegistry(nil)
	userID := uuid.New()

	c := newFakeConn("c")
	reg.Register(userID, c)
	reg.Unregister(userID, c)
	reg.Register(userID, newFakeConn("c2"))

	statuses := reg.StatusBatch([]uuid.UUID{userID})
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].IsOnline)
	assert.Nil(t, statuses[0].LastSeen)
}

func TestRegistry_ConcurrentRegisterSingleOnlineEvent(t *testing.T) {
	notifier := &recordingNotifier{}
	reg := NewRegistry(notifier)
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.Register(userID, newFakeConn(string(rune('a'+i))))
		}(i)
	}
	wg.Wait()

	assert.Len(t, notifier.online, 1, "concurrent first connections must collapse to one online event")
	assert.Len(t, reg.ConnectionsFor(userID), 32)
}
