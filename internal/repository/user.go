package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pair-collection-backend/internal/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

const userColumns = `id, display_name, email, photo_url, couple_id, pending_invite_code,
		notify_new_items, notify_status, notify_comments, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.DisplayName, &user.Email, &user.PhotoURL,
		&user.CoupleID, &user.PendingInviteCode,
		&user.NotifyNewItems, &user.NotifyStatus, &user.NotifyComments,
		&user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, display_name, email, photo_url, couple_id, pending_invite_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.DisplayName, user.Email, user.PhotoURL,
		user.CoupleID, user.PendingInviteCode, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// UpdateProfile refreshes identity fields from the auth provider without
// touching couple_id or pending_invite_code.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, displayName, email, photoURL *string) error {
	query := `UPDATE users SET display_name = $1, email = $2, photo_url = $3 WHERE id = $4`
	_, err := r.db.Exec(ctx, query, displayName, email, photoURL, id)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// SetPendingInviteCode sets or clears the user's pending invite code
func (r *UserRepository) SetPendingInviteCode(ctx context.Context, id string, code *string) error {
	query := `UPDATE users SET pending_invite_code = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, code, id)
	if err != nil {
		return fmt.Errorf("failed to set pending invite code: %w", err)
	}
	return nil
}

// SetCouple assigns the user to a couple and clears any pending invite code
func (r *UserRepository) SetCouple(ctx context.Context, id, coupleID string) error {
	query := `UPDATE users SET couple_id = $1, pending_invite_code = NULL WHERE id = $2`
	_, err := r.db.Exec(ctx, query, coupleID, id)
	if err != nil {
		return fmt.Errorf("failed to set couple: %w", err)
	}
	return nil
}

// UpdateNotificationPreferences updates the user's push preference flags
func (r *UserRepository) UpdateNotificationPreferences(ctx context.Context, id string, newItems, status, comments bool) error {
	query := `
		UPDATE users
		SET notify_new_items = $1, notify_status = $2, notify_comments = $3
		WHERE id = $4
	`
	_, err := r.db.Exec(ctx, query, newItems, status, comments, id)
	if err != nil {
		return fmt.Errorf("failed to update notification preferences: %w", err)
	}
	return nil
}
