package receipt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robaro12345/SafeTalk/internal/domain"
	"github.com/robaro12345/SafeTalk/internal/presence"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []domain.Envelope
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Enqueue(env domain.Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, env)
	return true
}

type fakeStore struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
	// raceWinner, when set, makes the next UpdateStatus report no swap and
	// land that status instead, as a concurrent advance would.
	raceWinner domain.MessageStatus
	updateErr  error
	readBatch  []string
	batchErr   error
	updates    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[string]*domain.Message)}
}

func (f *fakeStore) put(m *domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *m
	f.messages[m.ID] = &stored
}

func (f *fakeStore) Insert(ctx context.Context, message *domain.Message) error { return nil }

func (f *fakeStore) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, from []domain.MessageStatus, to domain.MessageStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return false, f.updateErr
	}
	m, ok := f.messages[id]
	if !ok {
		return false, nil
	}
	if f.raceWinner != "" {
		m.Status = f.raceWinner
		return false, nil
	}
	for _, s := range from {
		if m.Status == s {
			m.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FindConversation(ctx context.Context, a, b uuid.UUID, page, limit int64) ([]*domain.Message, error) {
	return nil, nil
}

func (f *fakeStore) MarkConversationRead(ctx context.Context, sender, receiver uuid.UUID) ([]string, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return f.readBatch, nil
}

func (f *fakeStore) FindRecentPerCounterparty(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error) {
	return nil, nil
}

func (f *fakeStore) SoftDelete(ctx context.Context, id string, requester uuid.UUID) (bool, error) {
	return false, nil
}

type trackerFixture struct {
	tracker  *Tracker
	store    *fakeStore
	registry *presence.Registry
	sender   uuid.UUID
	receiver uuid.UUID
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	t.Helper()
	fx := &trackerFixture{
		store:    newFakeStore(),
		registry: presence.NewRegistry(nil),
		sender:   uuid.New(),
		receiver: uuid.New(),
	}
	fx.tracker = NewTracker(fx.store, fx.registry)
	return fx
}

func (fx *trackerFixture) seed(id string, status domain.MessageStatus) {
	fx.store.put(&domain.Message{
		ID:         id,
		SenderID:   fx.sender,
		ReceiverID: fx.receiver,
		Payload:    domain.Payload{ForReceiver: "x"},
		Kind:       domain.KindText,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	})
}

func TestTracker_AdvanceRejectsUnknownStatus(t *testing.T) {
	fx := newTrackerFixture(t)

	_, err := fx.tracker.Advance(context.Background(), "m1", fx.receiver, domain.MessageStatus("archived"))
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestTracker_AdvanceUnknownMessage(t *testing.T) {
	fx := newTrackerFixture(t)

	_, err := fx.tracker.Advance(context.Background(), "nope", fx.receiver, domain.StatusRead)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestTracker_OnlyReceiverMayAdvance(t *testing.T) {
	fx := newTrackerFixture(t)
	fx.seed("m1", domain.StatusSent)

	_, err := fx.tracker.Advance(context.Background(), "m1", fx.sender, domain.StatusRead)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = fx.tracker.Advance(context.Background(), "m1", uuid.New(), domain.StatusRead)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	got, err := fx.store.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status, "rejected advances must not touch the store")
}

func TestTracker_BackwardAndRepeatedAdvancesAreNoops(t *testing.T) {
	fx := newTrackerFixture(t)
	fx.seed("m1", domain.StatusRead)

	for _, target := range []domain.MessageStatus{domain.StatusSent, domain.StatusDelivered, domain.StatusRead} {
		status, err := fx.tracker.Advance(context.Background(), "m1", fx.receiver, target)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRead, status)
	}
	assert.Zero(t, fx.store.updates, "no-op advances never reach the conditional update")
}

func TestTracker_ReadEmitsReceiptToOnlineSender(t *testing.T) {
	fx := newTrackerFixture(t)
	fx.seed("m1", domain.StatusDelivered)

	readAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	fx.tracker.now = func() time.Time { return readAt }

	senderConn := &fakeConn{id: "s1"}
	fx.registry.Register(fx.sender, senderConn)

	status, err := fx.tracker.Advance(context.Background(), "m1", fx.receiver, domain.StatusRead)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, status)

	require.Len(t, senderConn.events, 1)
	assert.Equal(t, domain.EventMessageReadReceipt, senderConn.events[0].Type)
	receipt := senderConn.events[0].Payload.(domain.ReadReceiptPayload)
	assert.Equal(t, "m1", receipt.MessageID)
	assert.Equal(t, fx.receiver, receipt.ReadBy)
	assert.Equal(t, readAt, receipt.ReadAt)
}

func TestTracker_ReadWithOfflineSenderStillAdvances(t *testing.T) {
	fx := newTrackerFixture(t)
	fx.seed("m1", domain.StatusSent)

	status, err := fx.tracker.Advance(context.Background(), "m1", fx.receiver, domain.StatusRead)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, status)

	got, _ := fx.store.GetByID(context.Background(), "m1")
	assert.Equal(t, domain.StatusRead, got.Status)
}

func TestTracker_DeliveredDoesNotEmitReceipt(t *testing.T) {
	fx := newTrackerFixture(t)
	fx.seed("m1", domain.StatusSent)

	senderConn := &fakeConn{id: "s1"}
	fx.registry.Register(fx.sender, senderConn)

	status, err := fx.tracker.Advance(context.Background(), "m1", fx.receiver, domain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, status)
	assert.Empty(t, senderConn.events, "only the read transition carries a receipt")
}

func TestTracker_LostRaceReportsWinner(t *testing.T) {
	fx := newTrackerFixture(t)
	fx.seed("m1", domain.StatusSent)

	// A concurrent read lands between our load and our conditional update;
	// the advance must report what actually won, not its own target.
	fx.store.raceWinner = domain.StatusRead

	status, err := fx.tracker.Advance(context.Background(), "m1", fx.receiver, domain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRead, status)
	assert.Equal(t, 1, fx.store.updates)
}

func TestTracker_UpdateErrorSurfaces(t *testing.T) {
	fx := newTrackerFixture(t)
	fx.seed("m1", domain.StatusSent)
	fx.store.updateErr = errors.New("connection reset")

	_, err := fx.tracker.Advance(context.Background(), "m1", fx.receiver, domain.StatusRead)
	assert.Error(t, err)
}

func TestTracker_ReadConversationBatchesSingleEvent(t *testing.T) {
	fx := newTrackerFixture(t)
	fx.store.readBatch = []string{"m1", "m2", "m3"}

	readAt := time.Date(2025, 6, 1, 9, 45, 0, 0, time.UTC)
	fx.tracker.now = func() time.Time { return readAt }

	counterpartyConn := &fakeConn{id: "c1"}
	fx.registry.Register(fx.sender, counterpartyConn)

	n, err := fx.tracker.ReadConversation(context.Background(), fx.receiver, fx.sender)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, counterpartyConn.events, 1, "one batched event, not one per message")
	assert.Equal(t, domain.EventMessagesRead, counterpartyConn.events[0].Type)
	batch := counterpartyConn.events[0].Payload.(domain.MessagesReadPayload)
	assert.Equal(t, fx.receiver, batch.ReadBy)
	assert.Equal(t, []string{"m1", "m2", "m3"}, batch.MessageIDs)
	assert.Equal(t, readAt, batch.ReadAt)
}

func TestTracker_ReadConversationNothingUnread(t *testing.T) {
	fx := newTrackerFixture(t)

	counterpartyConn := &fakeConn{id: "c1"}
	fx.registry.Register(fx.sender, counterpartyConn)

	n, err := fx.tracker.ReadConversation(context.Background(), fx.receiver, fx.sender)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, counterpartyConn.events, "no event when nothing became read")
}
