package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/poolfund/lending-service/internal/lending"
	"github.com/poolfund/lending-service/internal/models"
)

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(user *models.User) error {
	query := `
		INSERT INTO lending.users (username, email, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRow(query, user.Username, user.Email, user.Role, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, role, password_hash, created_at
		FROM lending.users
		WHERE email = $1`
	err := r.db.QueryRow(query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByID retrieves a user by id
func (r *Repository) FindUserByID(id int64) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, role, password_hash, created_at
		FROM lending.users
		WHERE id = $1`
	err := r.db.QueryRow(query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// InsertEvent journals an engine event as an audit record
func (r *Repository) InsertEvent(ev lending.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	query := `
		INSERT INTO lending.events (kind, payload, occurred_at)
		VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(query, ev.Kind, payload, ev.At); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// CreateDisbursement journals an outgoing payment
func (r *Repository) CreateDisbursement(d *models.Disbursement) error {
	query := `
		INSERT INTO lending.disbursements (reference, recipient, amount, kind, hmac, created_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRow(query, d.Reference, d.Recipient, d.Amount, d.Kind, d.HMAC).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create disbursement: %w", err)
	}
	return nil
}
