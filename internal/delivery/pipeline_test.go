package delivery

import (
	"context"
	"errors"
	"fmt"
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
	reject bool
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Enqueue(env domain.Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	f.events = append(f.events, env)
	return true
}

func (f *fakeConn) eventsOfType(eventType string) []domain.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Envelope
	for _, e := range f.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeUsers struct {
	users map[uuid.UUID]*domain.User
}

func (f *fakeUsers) Register(username, email, password, publicKey string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUsers) Login(username, password string) (*domain.User, string, error) {
	return nil, "", errors.New("not implemented")
}

func (f *fakeUsers) GetUserByID(id uuid.UUID) (*domain.User, error) {
	return f.users[id], nil
}

func (f *fakeUsers) GetUserByUsername(username string) (*domain.User, error) {
	return nil, nil
}

func (f *fakeUsers) TouchLastSeen(id uuid.UUID, seen time.Time) error { return nil }

type statusChange struct {
	id   string
	from []domain.MessageStatus
	to   domain.MessageStatus
}

type fakeStore struct {
	mu        sync.Mutex
	messages  map[string]*domain.Message
	nextID    int
	insertErr error
	updateErr error
	changes   []statusChange
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[string]*domain.Message)}
}

func (f *fakeStore) Insert(ctx context.Context, message *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.nextID++
	message.ID = fmt.Sprintf("m%d", f.nextID)
	stored := *message
	f.messages[message.ID] = &stored
	return nil
}

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
	f.changes = append(f.changes, statusChange{id: id, from: from, to: to})
	if f.updateErr != nil {
		return false, f.updateErr
	}
	m, ok := f.messages[id]
	if !ok {
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
	return nil, nil
}

func (f *fakeStore) FindRecentPerCounterparty(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error) {
	return nil, nil
}

func (f *fakeStore) SoftDelete(ctx context.Context, id string, requester uuid.UUID) (bool, error) {
	return false, nil
}

type fakeRooms struct {
	mu     sync.Mutex
	casts  []domain.Envelope
	except []string
}

func (f *fakeRooms) ToConversation(a, b uuid.UUID, env domain.Envelope, exceptConnID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.casts = append(f.casts, env)
	f.except = append(f.except, exceptConnID)
}

type pipelineFixture struct {
	pipeline *Pipeline
	store    *fakeStore
	registry *presence.Registry
	rooms    *fakeRooms
	sender   *domain.User
	receiver *domain.User
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	sender := &domain.User{ID: uuid.New(), Username: "alice", IsActive: true}
	receiver := &domain.User{ID: uuid.New(), Username: "bob", IsActive: true}

	store := newFakeStore()
	registry := presence.NewRegistry(nil)
	rooms := &fakeRooms{}
	users := &fakeUsers{users: map[uuid.UUID]*domain.User{
		sender.ID:   sender,
		receiver.ID: receiver,
	}}

	return &pipelineFixture{
		pipeline: NewPipeline(users, store, registry, rooms),
		store:    store,
		registry: registry,
		rooms:    rooms,
		sender:   sender,
		receiver: receiver,
	}
}

func TestPipeline_RejectsEmptyContent(t *testing.T) {
	fx := newPipelineFixture(t)
	senderConn := &fakeConn{id: "s1"}

	_, err := fx.pipeline.Send(context.Background(), senderConn, fx.sender, domain.SendMessagePayload{
		ReceiverID: fx.receiver.ID,
		TempID:     "tmp-1",
	})
	require.ErrorIs(t, err, ErrEmptyContent)

	errs := senderConn.eventsOfType(domain.EventMessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "tmp-1", errs[0].Payload.(domain.MessageErrorPayload).TempID)
	assert.Empty(t, fx.store.messages, "nothing persists before validation passes")
}

func TestPipeline_RejectsSelfSend(t *testing.T) {
	fx := newPipelineFixture(t)

	_, err := fx.pipeline.Send(context.Background(), &fakeConn{id: "s1"}, fx.sender, domain.SendMessagePayload{
		ReceiverID: fx.sender.ID,
		Content:    "hi me",
	})
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.Empty(t, fx.store.messages, "a rejected send creates no message")
}

func TestPipeline_RejectsUnknownAndInactiveRecipient(t *testing.T) {
	fx := newPipelineFixture(t)

	_, err := fx.pipeline.Send(context.Background(), nil, fx.sender, domain.SendMessagePayload{
		ReceiverID: uuid.New(),
		Content:    "hello?",
	})
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	fx.receiver.IsActive = false
	_, err = fx.pipeline.Send(context.Background(), nil, fx.sender, domain.SendMessagePayload{
		ReceiverID: fx.receiver.ID,
		Content:    "hello?",
	})
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestPipeline_OfflineReceiverStaysSent(t *testing.T) {
	fx := newPipelineFixture(t)
	senderConn := &fakeConn{id: "s1"}

	msg, err := fx.pipeline.Send(context.Background(), senderConn, fx.sender, domain.SendMessagePayload{
		ReceiverID:    fx.receiver.ID,
		Content:       "cipher-for-bob",
		SenderContent: "cipher-for-alice",
		TempID:        "tmp-7",
	})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	assert.Equal(t, domain.StatusSent, msg.Status)
	assert.Empty(t, fx.store.changes, "no delivery advance for an offline receiver")

	confirms := senderConn.eventsOfType(domain.EventMessageSent)
	require.Len(t, confirms, 1)
	view := confirms[0].Payload.(domain.View)
	assert.Equal(t, "tmp-7", view.TempID)
	assert.Equal(t, "cipher-for-alice", view.Content, "sender sees their own payload variant")
	assert.Equal(t, domain.StatusSent, view.Status)
}

func TestPipeline_OnlineReceiverGetsDelivered(t *testing.T) {
	fx := newPipelineFixture(t)
	senderConn := &fakeConn{id: "s1"}
	recvConn1 := &fakeConn{id: "r1"}
	recvConn2 := &fakeConn{id: "r2"}
	fx.registry.Register(fx.receiver.ID, recvConn1)
	fx.registry.Register(fx.receiver.ID, recvConn2)

	msg, err := fx.pipeline.Send(context.Background(), senderConn, fx.sender, domain.SendMessagePayload{
		ReceiverID:    fx.receiver.ID,
		Content:       "cipher-for-bob",
		SenderContent: "cipher-for-alice",
		TempID:        "tmp-9",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, msg.Status)

	require.Len(t, fx.store.changes, 1)
	assert.Equal(t, []domain.MessageStatus{domain.StatusSent}, fx.store.changes[0].from)
	assert.Equal(t, domain.StatusDelivered, fx.store.changes[0].to)

	// Every one of the receiver's connections gets the push, with the
	// receiver's payload variant.
	for _, conn := range []*fakeConn{recvConn1, recvConn2} {
		pushes := conn.eventsOfType(domain.EventNewMessage)
		require.Len(t, pushes, 1)
		view := pushes[0].Payload.(domain.View)
		assert.Equal(t, "cipher-for-bob", view.Content)
		assert.Equal(t, domain.StatusDelivered, view.Status)
		assert.Equal(t, msg.ID, view.ID)
	}

	// The open-conversation broadcast skips the sender's own connection.
	fx.rooms.mu.Lock()
	defer fx.rooms.mu.Unlock()
	require.Len(t, fx.rooms.casts, 1)
	assert.Equal(t, domain.EventConversationMessage, fx.rooms.casts[0].Type)
	assert.Equal(t, "s1", fx.rooms.except[0])
}

func TestPipeline_PersistFailureEmitsMessageError(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.store.insertErr = errors.New("write concern timeout")
	senderConn := &fakeConn{id: "s1"}
	recvConn := &fakeConn{id: "r1"}
	fx.registry.Register(fx.receiver.ID, recvConn)

	_, err := fx.pipeline.Send(context.Background(), senderConn, fx.sender, domain.SendMessagePayload{
		ReceiverID: fx.receiver.ID,
		Content:    "lost",
		TempID:     "tmp-3",
	})
	require.Error(t, err)

	errs := senderConn.eventsOfType(domain.EventMessageError)
	require.Len(t, errs, 1)
	assert.Equal(t, "tmp-3", errs[0].Payload.(domain.MessageErrorPayload).TempID)
	assert.Empty(t, senderConn.eventsOfType(domain.EventMessageSent))
	assert.Empty(t, recvConn.events, "nothing reaches the receiver before the durability boundary")
}

func TestPipeline_DeliveryAdvanceFailureIsNonFatal(t *testing.T) {
	fx := newPipelineFixture(t)
	fx.store.updateErr = errors.New("transient")
	recvConn := &fakeConn{id: "r1"}
	fx.registry.Register(fx.receiver.ID, recvConn)

	msg, err := fx.pipeline.Send(context.Background(), nil, fx.sender, domain.SendMessagePayload{
		ReceiverID: fx.receiver.ID,
		Content:    "still goes out",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, msg.Status, "message stays durable at sent")

	pushes := recvConn.eventsOfType(domain.EventNewMessage)
	require.Len(t, pushes, 1, "push still happens; status reconciles on next fetch")
}

func TestPipeline_FullReceiverQueueDoesNotFailSend(t *testing.T) {
	fx := newPipelineFixture(t)
	recvConn := &fakeConn{id: "r1", reject: true}
	fx.registry.Register(fx.receiver.ID, recvConn)

	msg, err := fx.pipeline.Send(context.Background(), nil, fx.sender, domain.SendMessagePayload{
		ReceiverID: fx.receiver.ID,
		Content:    "dropped push",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, msg.Status)
}

func TestPipeline_RESTSendWithoutConnection(t *testing.T) {
	fx := newPipelineFixture(t)

	msg, err := fx.pipeline.Send(context.Background(), nil, fx.sender, domain.SendMessagePayload{
		ReceiverID: fx.receiver.ID,
		Content:    "via http",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, msg.Status)

	_, err = fx.pipeline.Send(context.Background(), nil, fx.sender, domain.SendMessagePayload{
		ReceiverID: fx.sender.ID,
		Content:    "self",
	})
	assert.ErrorIs(t, err, ErrInvalidRecipient, "REST errors travel on the return value alone")
}
