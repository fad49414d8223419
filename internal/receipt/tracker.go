// Package receipt advances message lifecycle state and notifies senders of
// read receipts.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/robaro12345/SafeTalk/internal/domain"
	"github.com/robaro12345/SafeTalk/internal/presence"
	"github.com/robaro12345/SafeTalk/internal/service"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotAuthorized is returned when anyone but the message's receiver
	// tries to advance its status. A sender cannot mark their own message
	// read.
	ErrNotAuthorized = errors.New("only the receiver may update message status")
	ErrUnknownStatus = errors.New("unknown message status")
)

// Tracker is the only component that mutates message status after the
// delivery pipeline hands a message off.
type Tracker struct {
	store    service.IMessageRepository
	presence *presence.Registry
	now      func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(store service.IMessageRepository, registry *presence.Registry) *Tracker {
	return &Tracker{store: store, presence: registry, now: time.Now}
}

// Advance moves a message's status forward. Transitions are monotonic:
// a lower-or-equal target is a silent no-op returning the unchanged status.
// Racing advances are serialized by the store's conditional update. On a
// transition to read, a read receipt is pushed to the sender if they are
// online; an offline sender simply observes the status on their next fetch.
func (t *Tracker) Advance(ctx context.Context, messageID string, requester uuid.UUID, target domain.MessageStatus) (domain.MessageStatus, error) {
	if !target.Valid() {
		return "", ErrUnknownStatus
	}

	msg, err := t.store.GetByID(ctx, messageID)
	if err != nil {
		return "", fmt.Errorf("load message: %w", err)
	}
	if msg == nil {
		return "", ErrMessageNotFound
	}
	if msg.ReceiverID != requester {
		return "", ErrNotAuthorized
	}
	if !msg.Status.Advances(target) {
		return msg.Status, nil
	}

	from := []domain.MessageStatus{domain.StatusSent, domain.StatusDelivered}
	changed, err := t.store.UpdateStatus(ctx, messageID, from, target)
	if err != nil {
		return "", fmt.Errorf("update status: %w", err)
	}
	if !changed {
		// Lost the race to a concurrent advance; report what won.
		current, err := t.store.GetByID(ctx, messageID)
		if err != nil || current == nil {
			return msg.Status, err
		}
		return current.Status, nil
	}

	if target == domain.StatusRead {
		t.emitReceipt(msg.SenderID, domain.Envelope{
			Type: domain.EventMessageReadReceipt,
			Payload: domain.ReadReceiptPayload{
				MessageID: messageID,
				ReadBy:    requester,
				ReadAt:    t.now(),
			},
		})
	}
	return target, nil
}

// ReadConversation advances every unread message from counterparty to reader
// in a single batch, as happens when the reader opens the conversation. One
// batched messages_read event goes to the counterparty instead of a receipt
// per message. Returns how many messages became read.
func (t *Tracker) ReadConversation(ctx context.Context, reader, counterparty uuid.UUID) (int, error) {
	ids, err := t.store.MarkConversationRead(ctx, counterparty, reader)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	t.emitReceipt(counterparty, domain.Envelope{
		Type: domain.EventMessagesRead,
		Payload: domain.MessagesReadPayload{
			ReadBy:     reader,
			MessageIDs: ids,
			ReadAt:     t.now(),
		},
	})
	return len(ids), nil
}

// emitReceipt pushes to every live connection of the sender, isolating
// per-connection failures.
func (t *Tracker) emitReceipt(sender uuid.UUID, env domain.Envelope) {
	for _, conn := range t.presence.ConnectionsFor(sender) {
		if !conn.Enqueue(env) {
			log.Printf("receipt push to conn %s failed", conn.ID())
		}
	}
}
