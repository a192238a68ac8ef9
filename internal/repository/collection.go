package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pair-collection-backend/internal/models"
)

// CollectionRepository handles database operations for collections
type CollectionRepository struct {
	db DBTX
}

// NewCollectionRepository creates a new collection repository
func NewCollectionRepository(db DBTX) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *CollectionRepository) WithTx(tx pgx.Tx) *CollectionRepository {
	return &CollectionRepository{db: tx}
}

// Create creates a new collection
func (r *CollectionRepository) Create(ctx context.Context, collection *models.Collection) error {
	query := `
		INSERT INTO collections (id, couple_id, name, emoji, created_by, item_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		collection.ID, collection.CoupleID, collection.Name, collection.Emoji,
		collection.CreatedBy, collection.ItemCount, collection.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// GetByID retrieves a collection scoped to a couple
func (r *CollectionRepository) GetByID(ctx context.Context, coupleID, id string) (*models.Collection, error) {
	query := `
		SELECT id, couple_id, name, emoji, created_by, item_count, created_at
		FROM collections
		WHERE couple_id = $1 AND id = $2
	`
	var collection models.Collection
	err := r.db.QueryRow(ctx, query, coupleID, id).Scan(
		&collection.ID, &collection.CoupleID, &collection.Name, &collection.Emoji,
		&collection.CreatedBy, &collection.ItemCount, &collection.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("collection not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &collection, nil
}

// ListByCouple retrieves all collections for a couple, newest first
func (r *CollectionRepository) ListByCouple(ctx context.Context, coupleID string) ([]*models.Collection, error) {
	query := `
		SELECT id, couple_id, name, emoji, created_by, item_count, created_at
		FROM collections
		WHERE couple_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, coupleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := []*models.Collection{}
	for rows.Next() {
		var collection models.Collection
		if err := rows.Scan(
			&collection.ID, &collection.CoupleID, &collection.Name, &collection.Emoji,
			&collection.CreatedBy, &collection.ItemCount, &collection.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, &collection)
	}
	return collections, rows.Err()
}

// AdjustItemCount adds delta to the collection's denormalized item counter
func (r *CollectionRepository) AdjustItemCount(ctx context.Context, coupleID, id string, delta int) error {
	query := `UPDATE collections SET item_count = item_count + $1 WHERE couple_id = $2 AND id = $3`
	tag, err := r.db.Exec(ctx, query, delta, coupleID, id)
	if err != nil {
		return fmt.Errorf("failed to adjust item count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("collection not found: %w", pgx.ErrNoRows)
	}
	return nil
}

// SetItemCount overwrites the denormalized counter, used by the repair path
func (r *CollectionRepository) SetItemCount(ctx context.Context, coupleID, id string, count int) error {
	query := `UPDATE collections SET item_count = $1 WHERE couple_id = $2 AND id = $3`
	tag, err := r.db.Exec(ctx, query, count, coupleID, id)
	if err != nil {
		return fmt.Errorf("failed to set item count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("collection not found: %w", pgx.ErrNoRows)
	}
	return nil
}

// Delete deletes a collection scoped to a couple
func (r *CollectionRepository) Delete(ctx context.Context, coupleID, id string) error {
	query := `DELETE FROM collections WHERE couple_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, coupleID, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("collection not found: %w", pgx.ErrNoRows)
	}
	return nil
}
