package postgres

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/robaro12345/SafeTalk/internal/domain"
)

// UserRepository handles database operations for users.
type UserRepository struct {
	DB *sql.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// CreateUser inserts a new user into the database.
func (r *UserRepository) CreateUser(user *domain.User) error {
	query := `INSERT INTO users (id, username, email, password_hash, public_key, is_active, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.Exec(query, user.ID, user.Username, user.Email, user.PasswordHash, user.PublicKey, user.IsActive, user.CreatedAt)
	return err
}

// GetUserByUsername retrieves a user by their username.
func (r *UserRepository) GetUserByUsername(username string) (*domain.User, error) {
	query := `SELECT id, username, email, password_hash, public_key, is_active, last_seen, created_at
	          FROM users WHERE username = $1`
	return r.scanUser(r.DB.QueryRow(query, username))
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(id uuid.UUID) (*domain.User, error) {
	query := `SELECT id, username, email, password_hash, public_key, is_active, last_seen, created_at
	          FROM users WHERE id = $1`
	return r.scanUser(r.DB.QueryRow(query, id))
}

// UpdateLastSeen records the time the user's last connection closed.
func (r *UserRepository) UpdateLastSeen(id uuid.UUID, seen time.Time) error {
	query := `UPDATE users SET last_seen = $2 WHERE id = $1`
	_, err := r.DB.Exec(query, id, seen)
	return err
}

func (r *UserRepository) scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var lastSeen sql.NullTime
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.PublicKey, &user.IsActive, &lastSeen, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No user found is not an application error
		}
		return nil, err
	}
	if lastSeen.Valid {
		user.LastSeen = &lastSeen.Time
	}
	return user, nil
}
