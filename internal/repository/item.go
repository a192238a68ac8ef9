package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pair-collection-backend/internal/models"
)

// ItemRepository handles database operations for items
type ItemRepository struct {
	db DBTX
}

// NewItemRepository creates a new item repository
func NewItemRepository(db DBTX) *ItemRepository {
	return &ItemRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *ItemRepository) WithTx(tx pgx.Tx) *ItemRepository {
	return &ItemRepository{db: tx}
}

const itemColumns = `id, couple_id, collection_id, url, title, note, status,
		created_by, comment_count, created_at`

func scanItem(row pgx.Row) (*models.Item, error) {
	var item models.Item
	err := row.Scan(
		&item.ID, &item.CoupleID, &item.CollectionID, &item.URL,
		&item.Title, &item.Note, &item.Status,
		&item.CreatedBy, &item.CommentCount, &item.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("item not found: %w", err)
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	return &item, nil
}

// Create creates a new item
func (r *ItemRepository) Create(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (id, couple_id, collection_id, url, title, note, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		item.ID, item.CoupleID, item.CollectionID, item.URL,
		item.Title, item.Note, item.Status, item.CreatedBy, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// GetByID retrieves an item scoped to a couple
func (r *ItemRepository) GetByID(ctx context.Context, coupleID, id string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE couple_id = $1 AND id = $2`
	return scanItem(r.db.QueryRow(ctx, query, coupleID, id))
}

// ListByCollection retrieves items in a collection (real or INBOX), newest first
func (r *ItemRepository) ListByCollection(ctx context.Context, coupleID, collectionID string) ([]*models.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE couple_id = $1 AND collection_id = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, coupleID, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []*models.Item{}
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(
			&item.ID, &item.CoupleID, &item.CollectionID, &item.URL,
			&item.Title, &item.Note, &item.Status,
			&item.CreatedBy, &item.CommentCount, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// CountByCollection counts items currently in a collection
func (r *ItemRepository) CountByCollection(ctx context.Context, coupleID, collectionID string) (int, error) {
	query := `SELECT COUNT(*) FROM items WHERE couple_id = $1 AND collection_id = $2`
	var count int
	if err := r.db.QueryRow(ctx, query, coupleID, collectionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// SetCollection moves an item to another collection
func (r *ItemRepository) SetCollection(ctx context.Context, coupleID, id, collectionID string) error {
	query := `UPDATE items SET collection_id = $1 WHERE couple_id = $2 AND id = $3`
	tag, err := r.db.Exec(ctx, query, collectionID, coupleID, id)
	if err != nil {
		return fmt.Errorf("failed to move item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item not found: %w", pgx.ErrNoRows)
	}
	return nil
}

// SetStatus updates the item status
func (r *ItemRepository) SetStatus(ctx context.Context, coupleID, id, status string) error {
	query := `UPDATE items SET status = $1 WHERE couple_id = $2 AND id = $3`
	tag, err := r.db.Exec(ctx, query, status, coupleID, id)
	if err != nil {
		return fmt.Errorf("failed to set item status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item not found: %w", pgx.ErrNoRows)
	}
	return nil
}

// AdjustCommentCount adds delta to the item's denormalized comment counter
func (r *ItemRepository) AdjustCommentCount(ctx context.Context, coupleID, id string, delta int) error {
	query := `UPDATE items SET comment_count = comment_count + $1 WHERE couple_id = $2 AND id = $3`
	tag, err := r.db.Exec(ctx, query, delta, coupleID, id)
	if err != nil {
		return fmt.Errorf("failed to adjust comment count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item not found: %w", pgx.ErrNoRows)
	}
	return nil
}

// Delete deletes an item scoped to a couple
func (r *ItemRepository) Delete(ctx context.Context, coupleID, id string) error {
	query := `DELETE FROM items WHERE couple_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, coupleID, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item not found: %w", pgx.ErrNoRows)
	}
	return nil
}

// MoveAllToInbox re-homes every item in a collection to the inbox and
// returns how many moved
func (r *ItemRepository) MoveAllToInbox(ctx context.Context, coupleID, collectionID string) (int, error) {
	query := `UPDATE items SET collection_id = $1 WHERE couple_id = $2 AND collection_id = $3`
	tag, err := r.db.Exec(ctx, query, models.InboxCollectionID, coupleID, collectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to move items to inbox: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAllInCollection deletes every item in a collection and returns how
// many were deleted; comments go with them via cascade
func (r *ItemRepository) DeleteAllInCollection(ctx context.Context, coupleID, collectionID string) (int, error) {
	query := `DELETE FROM items WHERE couple_id = $1 AND collection_id = $2`
	tag, err := r.db.Exec(ctx, query, coupleID, collectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
