package providers

import (
	"context"

	"github.com/scrypster/pictor/pkg/types"
)

// CuratedPool is a lookup into a hand-picked image pool, consulted before
// any provider search. It currently always misses; the type exists so the
// pipeline has a stable seam if a curated pool is ever populated.
type CuratedPool struct{}

// NewCuratedPool creates an empty curated pool.
func NewCuratedPool() *CuratedPool {
	return &CuratedPool{}
}

// Search always returns no candidates.
func (p *CuratedPool) Search(ctx context.Context, query string, count int) ([]types.ImageCandidate, error) {
	return nil, nil
}
