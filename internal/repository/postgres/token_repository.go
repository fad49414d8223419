package postgres

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TokenRepository handles database operations for session tokens.
type TokenRepository struct {
	DB *sql.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

// CreateToken stores a session token for a user.
func (r *TokenRepository) CreateToken(token string, userID uuid.UUID, expiresAt time.Time) error {
	query := `INSERT INTO session_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`
	_, err := r.DB.Exec(query, token, userID, expiresAt)
	return err
}

// GetUserIDByToken resolves an unexpired token to its user. An unknown or
// expired token yields uuid.Nil with no error.
func (r *TokenRepository) GetUserIDByToken(token string) (uuid.UUID, error) {
	var userID uuid.UUID
	query := `SELECT user_id FROM session_tokens WHERE token = $1 AND expires_at > NOW()`
	err := r.DB.QueryRow(query, token).Scan(&userID)
	if err == sql.ErrNoRows {
		return uuid.Nil, nil
	}
	return userID, err
}

// DeleteToken revokes a session token.
func (r *TokenRepository) DeleteToken(token string) error {
	query := `DELETE FROM session_tokens WHERE token = $1`
	_, err := r.DB.Exec(query, token)
	return err
}
