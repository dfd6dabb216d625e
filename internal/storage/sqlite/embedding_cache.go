package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/scrypster/pictor/internal/storage"
)

// PutAll upserts a batch of image embeddings inside one transaction.
func (s *Store) PutAll(ctx context.Context, entries []storage.CachedEmbedding) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO image_embeddings (image_url, embedding, dimension, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(image_url) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.URL == "" || len(e.Embedding) == 0 {
			return fmt.Errorf("%w: cached embedding requires url and vector", storage.ErrInvalidInput)
		}
		if _, err := stmt.ExecContext(ctx, e.URL, serializeEmbedding(e.Embedding), len(e.Embedding)); err != nil {
			return fmt.Errorf("failed to upsert embedding for %s: %w", e.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit embedding batch: %w", err)
	}

	return nil
}

// Get retrieves the cached embedding for an image URL.
func (s *Store) Get(ctx context.Context, url string) ([]float32, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: image URL is required", storage.ErrInvalidInput)
	}

	var blob []byte
	var dimension int

	err := s.db.QueryRowContext(ctx, `
		SELECT embedding, dimension FROM image_embeddings WHERE image_url = ?
	`, url).Scan(&blob, &dimension)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}

	vec, err := deserializeEmbedding(blob, dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize embedding: %w", err)
	}

	return vec, nil
}

// LoadAll returns up to limit cached entries, newest first.
func (s *Store) LoadAll(ctx context.Context, limit int) ([]storage.CachedEmbedding, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT image_url, embedding, dimension
		FROM image_embeddings
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	defer rows.Close()

	var entries []storage.CachedEmbedding
	for rows.Next() {
		var url string
		var blob []byte
		var dimension int
		if err := rows.Scan(&url, &blob, &dimension); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}

		vec, err := deserializeEmbedding(blob, dimension)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize embedding for %s: %w", url, err)
		}
		entries = append(entries, storage.CachedEmbedding{URL: url, Embedding: vec})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embeddings: %w", err)
	}

	return entries, nil
}

// EvictOldest deletes the oldest entries beyond maxEntries.
// Returns the number of rows deleted.
func (s *Store) EvictOldest(ctx context.Context, maxEntries int) (int, error) {
	if maxEntries < 0 {
		return 0, fmt.Errorf("%w: maxEntries must be non-negative", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM image_embeddings
		WHERE image_url NOT IN (
			SELECT image_url FROM image_embeddings
			ORDER BY created_at DESC
			LIMIT ?
		)
	`, maxEntries)
	if err != nil {
		return 0, fmt.Errorf("failed to evict embeddings: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return int(deleted), nil
}

// serializeEmbedding converts a float32 slice to little-endian bytes
// (4 bytes per component).
func serializeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding converts little-endian bytes back to a float32 slice.
// dimension validates the buffer size.
func deserializeEmbedding(buf []byte, dimension int) ([]float32, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*4 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}

	vec := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

// Compile-time assertion.
var _ storage.EmbeddingCacheStore = (*Store)(nil)
