package service

import (
	"errors"

	"github.com/google/uuid"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// AuthService resolves handshake tokens to identities. Everything past this
// boundary trusts the resolved identity.
type AuthService struct {
	userRepo  IUserRepository
	tokenRepo ITokenRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo IUserRepository, tokenRepo ITokenRepository) *AuthService {
	return &AuthService{userRepo: userRepo, tokenRepo: tokenRepo}
}

// Authenticate resolves a session token to its active user.
func (s *AuthService) Authenticate(token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	userID, err := s.tokenRepo.GetUserIDByToken(token)
	if err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidToken
	}
	return user, nil
}
