package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pair-collection-backend/internal/models"
)

// DeviceTokenRepository handles database operations for push device tokens
type DeviceTokenRepository struct {
	db DBTX
}

// NewDeviceTokenRepository creates a new device token repository
func NewDeviceTokenRepository(db DBTX) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *DeviceTokenRepository) WithTx(tx pgx.Tx) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: tx}
}

// Upsert registers a device token for a user
func (r *DeviceTokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) error {
	query := `
		INSERT INTO device_tokens (user_id, token, platform, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, token) DO UPDATE SET platform = EXCLUDED.platform
	`
	_, err := r.db.Exec(ctx, query, token.UserID, token.Token, token.Platform, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert device token: %w", err)
	}
	return nil
}

// ListByUser retrieves all device tokens registered by a user
func (r *DeviceTokenRepository) ListByUser(ctx context.Context, userID string) ([]*models.DeviceToken, error) {
	query := `
		SELECT user_id, token, platform, created_at
		FROM device_tokens
		WHERE user_id = $1
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	tokens := []*models.DeviceToken{}
	for rows.Next() {
		var token models.DeviceToken
		if err := rows.Scan(&token.UserID, &token.Token, &token.Platform, &token.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, &token)
	}
	return tokens, rows.Err()
}

// Delete removes a device token for a user
func (r *DeviceTokenRepository) Delete(ctx context.Context, userID, token string) error {
	query := `DELETE FROM device_tokens WHERE user_id = $1 AND token = $2`
	_, err := r.db.Exec(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("failed to delete device token: %w", err)
	}
	return nil
}
