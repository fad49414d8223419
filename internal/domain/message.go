package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the lifecycle state of a message. Transitions are
// monotonic: sent -> delivered -> read, with read terminal.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// rank orders statuses for monotonicity checks. Unknown statuses rank lowest.
func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// Valid reports whether s is a known lifecycle status.
func (s MessageStatus) Valid() bool {
	return s.rank() > 0
}

// Advances reports whether moving from s to target is a forward transition.
// Equal or backward targets are no-ops, never errors.
func (s MessageStatus) Advances(target MessageStatus) bool {
	return target.rank() > s.rank()
}

// MessageKind distinguishes text from file and image messages.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindFile  MessageKind = "file"
	KindImage MessageKind = "image"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	return k == KindText || k == KindFile || k == KindImage
}

// Payload carries the (possibly end-to-end encrypted) content of a message.
// Because content may be encrypted per-recipient, two variants of the same
// logical content can exist: one the receiver can decrypt and, optionally,
// one the sender can decrypt to redisplay their own message. The server never
// inspects either; both are opaque strings.
type Payload struct {
	ForReceiver string
	ForSender   string
}

// Message is a persisted direct message between two users. The repository
// layer owns the stored representation; status is mutated only through the
// receipt tracker once the delivery pipeline hands the message off.
type Message struct {
	ID         string
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Payload    Payload
	Kind       MessageKind
	Status     MessageStatus
	IsDeleted  bool
	CreatedAt  time.Time
}

// ErrSelfMessage is returned when a user addresses a message to themselves.
var ErrSelfMessage = errors.New("sender and receiver must differ")

// NewMessage builds an unsent message. The store assigns the ID on insert.
func NewMessage(sender, receiver uuid.UUID, payload Payload, kind MessageKind) (*Message, error) {
	if sender == receiver {
		return nil, ErrSelfMessage
	}
	if kind == "" {
		kind = KindText
	}
	return &Message{
		SenderID:   sender,
		ReceiverID: receiver,
		Payload:    payload,
		Kind:       kind,
		Status:     StatusSent,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Content selects the payload variant for the requesting party. The sender
// sees their own-encrypted variant when one was stored; without one they fall
// back to the receiver-encrypted ciphertext, which will not decrypt for them.
// That fallback is accepted, not an error. Everyone else (the receiver
// included) sees the receiver variant.
func (m *Message) Content(requester uuid.UUID) string {
	if requester == m.SenderID && m.Payload.ForSender != "" {
		return m.Payload.ForSender
	}
	return m.Payload.ForReceiver
}

// View is the wire representation of a message with the payload variant
// already selected for one requesting party.
type View struct {
	ID        string        `json:"id"`
	Sender    UserRef       `json:"sender"`
	Receiver  UserRef       `json:"receiver"`
	Content   string        `json:"content"`
	Kind      MessageKind   `json:"messageType"`
	Status    MessageStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	TempID    string        `json:"tempId,omitempty"`
}

// ViewFor renders the message for one requesting party. sender carries the
// username when known; a zero UserRef with just the ID is acceptable.
func (m *Message) ViewFor(requester uuid.UUID, sender UserRef, tempID string) View {
	return View{
		ID:        m.ID,
		Sender:    sender,
		Receiver:  UserRef{ID: m.ReceiverID},
		Content:   m.Content(requester),
		Kind:      m.Kind,
		Status:    m.Status,
		Timestamp: m.CreatedAt,
		TempID:    tempID,
	}
}

// ConversationSummary is one row of the per-counterparty conversation list:
// the most recent message exchanged with that user plus how many of their
// messages remain unread.
type ConversationSummary struct {
	Counterparty uuid.UUID
	Username     string
	LastMessage  *Message
	UnreadCount  int64
}
