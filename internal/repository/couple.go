package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pair-collection-backend/internal/models"
)

// CoupleRepository handles database operations for couples
type CoupleRepository struct {
	db DBTX
}

// NewCoupleRepository creates a new couple repository
func NewCoupleRepository(db DBTX) *CoupleRepository {
	return &CoupleRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *CoupleRepository) WithTx(tx pgx.Tx) *CoupleRepository {
	return &CoupleRepository{db: tx}
}

// Create creates a new couple
func (r *CoupleRepository) Create(ctx context.Context, couple *models.Couple) error {
	query := `
		INSERT INTO couples (id, member_a, member_b, invite_code, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query,
		couple.ID, couple.MemberA, couple.MemberB, couple.InviteCode, couple.Title, couple.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create couple: %w", err)
	}
	return nil
}

// GetByID retrieves a couple by ID
func (r *CoupleRepository) GetByID(ctx context.Context, id string) (*models.Couple, error) {
	query := `
		SELECT id, member_a, member_b, invite_code, title, created_at
		FROM couples
		WHERE id = $1
	`
	var couple models.Couple
	err := r.db.QueryRow(ctx, query, id).Scan(
		&couple.ID, &couple.MemberA, &couple.MemberB,
		&couple.InviteCode, &couple.Title, &couple.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("couple not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get couple: %w", err)
	}
	return &couple, nil
}

// UpdateTitle sets the couple's display title
func (r *CoupleRepository) UpdateTitle(ctx context.Context, id string, title *string) error {
	query := `UPDATE couples SET title = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, title, id)
	if err != nil {
		return fmt.Errorf("failed to update couple title: %w", err)
	}
	return nil
}
