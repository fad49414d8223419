package domain

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User represents a registered account in the system.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Do not expose password hash
	PublicKey    string     `json:"publicKey,omitempty"`
	IsActive     bool       `json:"isActive"`
	LastSeen     *time.Time `json:"lastSeen,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// NewUser creates a new user with a hashed password. The public key is the
// PEM-encoded key other users encrypt message payloads with; the server never
// uses it beyond storage.
func NewUser(username, email, password, publicKey string) (*User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		PublicKey:    publicKey,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}, nil
}

// CheckPassword compares a plaintext password with the user's hashed password.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// UserRef is the compact user projection embedded in message payloads.
type UserRef struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username,omitempty"`
}

// Ref returns the compact projection of the user.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username}
}
