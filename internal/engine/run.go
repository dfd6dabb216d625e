// Package engine composes query building, fetching, matching, and duplicate
// tracking into the per-presentation image selection pipeline.
package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/scrypster/pictor/internal/storage"
)

// Run scopes duplicate tracking to one presentation request. It owns the
// set of URLs chosen for earlier slides in this run, and carries a
// snapshot of the user's historical used URLs loaded once at run start.
type Run struct {
	id         string
	userID     string
	used       map[string]bool
	historical map[string]bool
}

// NewRun starts a presentation run for a user. Anonymous callers (empty
// userID) get an empty history and are never recorded.
func NewRun(ctx context.Context, store storage.UsedImageStore, userID string, historyLimit int) (*Run, error) {
	r := &Run{
		id:         uuid.New().String(),
		userID:     userID,
		used:       make(map[string]bool),
		historical: make(map[string]bool),
	}

	if userID == "" || store == nil {
		return r, nil
	}

	urls, err := store.RecentURLs(ctx, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load used-image history: %w", err)
	}
	for _, u := range urls {
		r.historical[u] = true
	}

	log.Printf("engine: run %s started for user %s with %d historical exclusions", r.id, userID, len(urls))
	return r, nil
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// UserID returns the user the run belongs to, empty for anonymous runs.
func (r *Run) UserID() string { return r.userID }

// Exclusions returns the merged view of in-run and historical used URLs.
// The returned map is a copy: selection code may read it freely while the
// run advances, and mutating it never affects the run.
func (r *Run) Exclusions() map[string]bool {
	merged := make(map[string]bool, len(r.used)+len(r.historical))
	for u := range r.historical {
		merged[u] = true
	}
	for u := range r.used {
		merged[u] = true
	}
	return merged
}

// MarkUsed records a URL as chosen in this run.
func (r *Run) MarkUsed(url string) {
	if url != "" {
		r.used[url] = true
	}
}

// UsedCount returns how many images this run has chosen so far.
func (r *Run) UsedCount() int { return len(r.used) }
