package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/pictor/internal/storage"
	"github.com/scrypster/pictor/pkg/types"
)

// Record appends a used-image record for a known user.
func (s *Store) Record(ctx context.Context, rec *types.UsedImageRecord) error {
	if rec == nil {
		return storage.ErrInvalidInput
	}
	if rec.UserID == "" {
		return fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if rec.ImageURL == "" {
		return fmt.Errorf("%w: image URL is required", storage.ErrInvalidInput)
	}

	usedAt := rec.UsedAt
	if usedAt.IsZero() {
		usedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO used_images (user_id, image_url, query, used_at)
		VALUES ($1, $2, $3, $4)
	`, rec.UserID, rec.ImageURL, rec.Query, usedAt)
	if err != nil {
		return fmt.Errorf("failed to record used image: %w", err)
	}

	return nil
}

// RecentURLs returns up to limit most recently used image URLs for the user,
// newest first.
func (s *Store) RecentURLs(ctx context.Context, userID string, limit int) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT image_url
		FROM used_images
		WHERE user_id = $1
		ORDER BY used_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query used images: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan used image row: %w", err)
		}
		urls = append(urls, url)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate used images: %w", err)
	}

	return urls, nil
}

// Cleanup trims the user's history to the keepN most recent records.
// Returns the number of rows deleted.
func (s *Store) Cleanup(ctx context.Context, userID string, keepN int) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if keepN < 0 {
		return 0, fmt.Errorf("%w: keepN must be non-negative", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM used_images
		WHERE user_id = $1
		AND id NOT IN (
			SELECT id FROM used_images
			WHERE user_id = $1
			ORDER BY used_at DESC, id DESC
			LIMIT $2
		)
	`, userID, keepN)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up used images: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return int(deleted), nil
}

// Users returns every user ID with at least one used-image record.
// Used by the maintenance CLI to prune each user's history.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM used_images ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// Compile-time assertion.
var _ storage.UsedImageStore = (*Store)(nil)
