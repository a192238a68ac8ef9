package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pair-collection-backend/internal/models"
)

// CommentRepository handles database operations for comments
type CommentRepository struct {
	db DBTX
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db DBTX) *CommentRepository {
	return &CommentRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *CommentRepository) WithTx(tx pgx.Tx) *CommentRepository {
	return &CommentRepository{db: tx}
}

// Create creates a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, item_id, author_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		comment.ID, comment.ItemID, comment.AuthorID, comment.Text, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListByItem retrieves all comments on an item, oldest first
func (r *CommentRepository) ListByItem(ctx context.Context, itemID string) ([]*models.Comment, error) {
	query := `
		SELECT id, item_id, author_id, text, created_at
		FROM comments
		WHERE item_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		var comment models.Comment
		if err := rows.Scan(
			&comment.ID, &comment.ItemID, &comment.AuthorID, &comment.Text, &comment.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

// Delete deletes a comment scoped to an item
func (r *CommentRepository) Delete(ctx context.Context, itemID, id string) error {
	query := `DELETE FROM comments WHERE item_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, itemID, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("comment not found: %w", pgx.ErrNoRows)
	}
	return nil
}
