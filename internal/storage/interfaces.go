// Package storage provides composable storage interfaces for the Pictor
// image selection engine.
//
// Two concerns are persisted: the per-user history of chosen image URLs
// (consulted to build duplicate-exclusion lists, pruned to a retention cap)
// and the cache of computed image embeddings (so an image seen in an earlier
// run is never re-downloaded and re-embedded). Both have SQLite and
// PostgreSQL implementations selected by configuration.
package storage

import (
	"context"
	"errors"

	"github.com/scrypster/pictor/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// UsedImageStore persists the per-user history of chosen images.
// Anonymous callers (empty user ID) are never recorded; implementations
// return ErrInvalidInput for them.
type UsedImageStore interface {
	// Record appends a used-image record. Called synchronously after each
	// successful selection so later slides and later presentations see it.
	Record(ctx context.Context, rec *types.UsedImageRecord) error

	// RecentURLs returns up to limit most recently used image URLs for the
	// user, newest first. An unknown user yields an empty slice, not an error.
	RecentURLs(ctx context.Context, userID string, limit int) ([]string, error)

	// Cleanup trims the user's history to the keepN most recent records
	// and returns the number of rows deleted.
	Cleanup(ctx context.Context, userID string, keepN int) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// CachedEmbedding is one persisted image-URL → embedding pair.
type CachedEmbedding struct {
	URL       string
	Embedding []float32
}

// EmbeddingCacheStore persists computed image embeddings keyed by source URL.
// The table is bounded: EvictOldest keeps it at the configured entry cap.
type EmbeddingCacheStore interface {
	// PutAll upserts a batch of embeddings. Used by the periodic flush so
	// a burst of new embeddings costs one round trip.
	PutAll(ctx context.Context, entries []CachedEmbedding) error

	// Get retrieves the embedding for an image URL.
	// Returns ErrNotFound when the URL has not been cached.
	Get(ctx context.Context, url string) ([]float32, error)

	// LoadAll returns up to limit cached entries, newest first. Used to
	// warm the in-memory cache at startup.
	LoadAll(ctx context.Context, limit int) ([]CachedEmbedding, error)

	// EvictOldest deletes the oldest entries beyond maxEntries and returns
	// the number of rows deleted.
	EvictOldest(ctx context.Context, maxEntries int) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
