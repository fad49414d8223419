// Package delivery implements the message delivery pipeline: validation,
// persistence, liveness resolution and event emission for outbound messages.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/robaro12345/SafeTalk/internal/domain"
	"github.com/robaro12345/SafeTalk/internal/presence"
	"github.com/robaro12345/SafeTalk/internal/service"
)

// Typed send failures, surfaced to REST callers; socket callers receive the
// equivalent message_error event.
var (
	ErrInvalidRecipient  = errors.New("cannot send message to yourself")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrEmptyContent      = errors.New("missing required message data")
)

// RoomBroadcaster fans an event out to every connection viewing a
// conversation. Implemented by the hub's RoomSet.
type RoomBroadcaster interface {
	ToConversation(a, b uuid.UUID, env domain.Envelope, exceptConnID string)
}

// Pipeline validates, persists and delivers outbound messages.
type Pipeline struct {
	users    service.IUserService
	store    service.IMessageRepository
	presence *presence.Registry
	rooms    RoomBroadcaster
}

// NewPipeline creates a Pipeline.
func NewPipeline(users service.IUserService, store service.IMessageRepository, registry *presence.Registry, rooms RoomBroadcaster) *Pipeline {
	return &Pipeline{users: users, store: store, presence: registry, rooms: rooms}
}

// Send runs one message through the pipeline:
//
//  1. validate (self-send, empty content, unknown recipient)
//  2. persist with status sent — the durability boundary; nothing is
//     emitted before this succeeds
//  3. confirm to the sender (message_sent, sender payload variant, tempId)
//  4. push to the receiver's live connections and advance to delivered;
//     an offline receiver sees the message on their next fetch
//  5. best-effort broadcast to the open conversation room
//
// sender is the connection the request arrived on; nil for REST sends, in
// which case confirmation and errors travel on the return values alone.
// Emission failures after the persist are non-fatal: the message stays
// durable and each connection's failure is isolated.
func (p *Pipeline) Send(ctx context.Context, sender presence.Conn, from *domain.User, req domain.SendMessagePayload) (*domain.Message, error) {
	fail := func(reason string) {
		if sender != nil {
			sender.Enqueue(domain.Envelope{
				Type:    domain.EventMessageError,
				Payload: domain.MessageErrorPayload{TempID: req.TempID, Message: reason},
			})
		}
	}

	if req.Content == "" {
		fail("missing required message data")
		return nil, ErrEmptyContent
	}
	if req.ReceiverID == from.ID {
		fail("cannot send message to yourself")
		return nil, ErrInvalidRecipient
	}

	receiver, err := p.users.GetUserByID(req.ReceiverID)
	if err != nil {
		fail("failed to resolve recipient")
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}
	if receiver == nil || !receiver.IsActive {
		fail("recipient not found")
		return nil, ErrRecipientNotFound
	}

	msg, err := domain.NewMessage(from.ID, req.ReceiverID, domain.Payload{
		ForReceiver: req.Content,
		ForSender:   req.SenderContent,
	}, req.Kind)
	if err != nil {
		fail(err.Error())
		return nil, ErrInvalidRecipient
	}

	if err := p.store.Insert(ctx, msg); err != nil {
		fail("failed to send message")
		return nil, fmt.Errorf("persist message: %w", err)
	}

	senderRef := from.Ref()

	if sender != nil {
		sender.Enqueue(domain.Envelope{
			Type:    domain.EventMessageSent,
			Payload: msg.ViewFor(from.ID, senderRef, req.TempID),
		})
	}

	conns := p.presence.ConnectionsFor(msg.ReceiverID)
	if len(conns) > 0 {
		ok, err := p.store.UpdateStatus(ctx, msg.ID, []domain.MessageStatus{domain.StatusSent}, domain.StatusDelivered)
		if err != nil {
			// Non-fatal: the message is durable at sent and will be
			// reconciled on the receiver's next fetch.
			log.Printf("advance %s to delivered: %v", msg.ID, err)
		} else if ok {
			msg.Status = domain.StatusDelivered
		}

		view := domain.Envelope{
			Type:    domain.EventNewMessage,
			Payload: msg.ViewFor(msg.ReceiverID, senderRef, req.TempID),
		}
		for _, conn := range conns {
			if !conn.Enqueue(view) {
				log.Printf("push %s to conn %s failed, receiver will fetch", msg.ID, conn.ID())
			}
		}
	}

	exceptConn := ""
	if sender != nil {
		exceptConn = sender.ID()
	}
	p.rooms.ToConversation(from.ID, msg.ReceiverID, domain.Envelope{
		Type:    domain.EventConversationMessage,
		Payload: msg.ViewFor(from.ID, senderRef, req.TempID),
	}, exceptConn)

	return msg, nil
}
