package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pair-collection-backend/internal/models"
)

// InviteRepository handles database operations for invites
type InviteRepository struct {
	db DBTX
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db DBTX) *InviteRepository {
	return &InviteRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *InviteRepository) WithTx(tx pgx.Tx) *InviteRepository {
	return &InviteRepository{db: tx}
}

// Create inserts a new invite. A unique violation on the code means another
// invite already holds it; callers treat that as a collision.
func (r *InviteRepository) Create(ctx context.Context, invite *models.Invite) error {
	query := `
		INSERT INTO invites (code, creator_id, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		invite.Code, invite.CreatorID, invite.Status, invite.CreatedAt, invite.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

// GetByCode retrieves an invite by its code
func (r *InviteRepository) GetByCode(ctx context.Context, code string) (*models.Invite, error) {
	query := `
		SELECT code, creator_id, status, created_at, expires_at, claimed_by, couple_id
		FROM invites
		WHERE code = $1
	`
	var invite models.Invite
	err := r.db.QueryRow(ctx, query, code).Scan(
		&invite.Code, &invite.CreatorID, &invite.Status,
		&invite.CreatedAt, &invite.ExpiresAt, &invite.ClaimedBy, &invite.CoupleID,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("invite not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return &invite, nil
}

// Exists checks if an invite row exists for the code
func (r *InviteRepository) Exists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM invites WHERE code = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check invite existence: %w", err)
	}
	return exists, nil
}

// SetStatus updates the invite status
func (r *InviteRepository) SetStatus(ctx context.Context, code, status string) error {
	query := `UPDATE invites SET status = $1 WHERE code = $2`
	_, err := r.db.Exec(ctx, query, status, code)
	if err != nil {
		return fmt.Errorf("failed to set invite status: %w", err)
	}
	return nil
}

// Claim marks the invite claimed and records the joiner and resulting couple
func (r *InviteRepository) Claim(ctx context.Context, code, claimedBy, coupleID string) error {
	query := `
		UPDATE invites
		SET status = $1, claimed_by = $2, couple_id = $3
		WHERE code = $4
	`
	_, err := r.db.Exec(ctx, query, models.InviteStatusClaimed, claimedBy, coupleID, code)
	if err != nil {
		return fmt.Errorf("failed to claim invite: %w", err)
	}
	return nil
}
