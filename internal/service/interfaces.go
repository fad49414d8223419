package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

// --- Service Interfaces ---

// IUserService defines the interface for user-related business logic.
type IUserService interface {
	Register(username, email, password, publicKey string) (*domain.User, error)
	Login(username, password string) (*domain.User, string, error)
	GetUserByID(id uuid.UUID) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	TouchLastSeen(id uuid.UUID, seen time.Time) error
}

// IAuthService validates connection handshake tokens. The real-time core
// trusts this result and does not re-verify credentials.
type IAuthService interface {
	Authenticate(token string) (*domain.User, error)
}

// --- Repository Interfaces ---

// IUserRepository defines the interface for user persistence.
type IUserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByUsername(username string) (*domain.User, error)
	GetUserByID(id uuid.UUID) (*domain.User, error)
	UpdateLastSeen(id uuid.UUID, seen time.Time) error
}

// ITokenRepository defines the interface for session token persistence.
type ITokenRepository interface {
	CreateToken(token string, userID uuid.UUID, expiresAt time.Time) error
	GetUserIDByToken(token string) (uuid.UUID, error)
	DeleteToken(token string) error
}

// IMessageRepository defines the interface for message persistence. The
// store provides single-document atomicity; UpdateStatus is the conditional
// write that serializes status transitions per message.
type IMessageRepository interface {
	Insert(ctx context.Context, message *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	// UpdateStatus moves the message to the target status only if its
	// current status is one of from. It reports whether a document changed.
	UpdateStatus(ctx context.Context, id string, from []domain.MessageStatus, to domain.MessageStatus) (bool, error)
	// FindConversation returns one page of the conversation between two
	// users, oldest first, soft-deleted messages excluded.
	FindConversation(ctx context.Context, a, b uuid.UUID, page, limit int64) ([]*domain.Message, error)
	// MarkConversationRead advances every sent/delivered message from
	// sender to receiver to read in one batch, returning the affected ids.
	MarkConversationRead(ctx context.Context, sender, receiver uuid.UUID) ([]string, error)
	// FindRecentPerCounterparty returns the latest message and unread count
	// per counterparty for the conversation list.
	FindRecentPerCounterparty(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationSummary, error)
	// SoftDelete flags a message deleted if the requester participates in it.
	SoftDelete(ctx context.Context, id string, requester uuid.UUID) (bool, error)
}
