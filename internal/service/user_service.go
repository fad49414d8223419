package service

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

// Session token lifetime. Expired tokens fail the websocket handshake and
// REST auth alike.
const tokenTTL = 7 * 24 * time.Hour

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService provides user-related services.
type UserService struct {
	userRepo  IUserRepository
	tokenRepo ITokenRepository
}

// NewUserService creates a new UserService.
func NewUserService(userRepo IUserRepository, tokenRepo ITokenRepository) *UserService {
	return &UserService{userRepo: userRepo, tokenRepo: tokenRepo}
}

// Register creates a new user account.
func (s *UserService) Register(username, email, password, publicKey string) (*domain.User, error) {
	existing, err := s.userRepo.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("username is already taken")
	}

	newUser, err := domain.NewUser(username, email, password, publicKey)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.CreateUser(newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

// Login authenticates a user and issues an opaque session token. The token
// is what the websocket handshake and REST requests present.
func (s *UserService) Login(username, password string) (*domain.User, string, error) {
	user, err := s.userRepo.GetUserByUsername(username)
	if err != nil {
		return nil, "", err
	}
	if user == nil || !user.IsActive {
		return nil, "", ErrInvalidCredentials
	}
	if !user.CheckPassword(password) {
		return nil, "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := s.tokenRepo.CreateToken(token, user.ID, time.Now().Add(tokenTTL)); err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUserByID retrieves a user by their ID.
func (s *UserService) GetUserByID(id uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetUserByID(id)
}

// GetUserByUsername retrieves a user by their username.
func (s *UserService) GetUserByUsername(username string) (*domain.User, error) {
	return s.userRepo.GetUserByUsername(username)
}

// TouchLastSeen records when the user's last connection closed.
func (s *UserService) TouchLastSeen(id uuid.UUID, seen time.Time) error {
	return s.userRepo.UpdateLastSeen(id, seen)
}
