// Package matcher ranks image candidates against a slide's textual context
// using embedding similarity, with a deterministic fallback when embeddings
// are unavailable.
package matcher

import (
	"context"
	"log"
	"sort"

	"github.com/scrypster/pictor/internal/embedding"
	"github.com/scrypster/pictor/pkg/types"
)

// Embedder is the slice of the embedding service the matcher needs.
type Embedder interface {
	Available(ctx context.Context) bool
	TextEmbedding(ctx context.Context, text string) ([]float32, error)
}

// GatePolicy controls how the top-ranked candidate is accepted.
type GatePolicy struct {
	// Strict rejects the top candidate when its score is below Threshold.
	// Soft (false) always returns the top candidate; similarity only
	// orders, never blocks.
	Strict bool

	// Threshold is the minimum acceptable similarity in strict mode.
	Threshold float64
}

// Scored is a candidate with its similarity to the slide context.
type Scored struct {
	Candidate  types.ImageCandidate
	Similarity float64
}

// Matcher selects the best-fitting image candidate for a slide.
type Matcher struct {
	embedder Embedder
}

// New creates a matcher over the given embedder.
func New(embedder Embedder) *Matcher {
	return &Matcher{embedder: embedder}
}

// PickBest ranks candidates against contextText and returns the winner
// under the gate policy, or nil when no candidate is acceptable.
//
// Candidates whose URL appears in exclude are never returned. When the
// embedder is unavailable the first non-excluded candidate wins; a missing
// model must not block the pipeline. slideTitle is the last resort of the
// description fallback chain.
func (m *Matcher) PickBest(ctx context.Context, contextText, slideTitle string, candidates []types.ImageCandidate, exclude map[string]bool, policy GatePolicy) *Scored {
	remaining := make([]types.ImageCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.URL == "" || exclude[c.URL] {
			continue
		}
		remaining = append(remaining, c)
	}
	if len(remaining) == 0 {
		return nil
	}

	if !m.embedder.Available(ctx) {
		return &Scored{Candidate: remaining[0]}
	}

	scored := m.score(ctx, contextText, slideTitle, remaining)
	if scored == nil {
		return &Scored{Candidate: remaining[0]}
	}

	top := scored[0]
	if policy.Strict && top.Similarity < policy.Threshold {
		log.Printf("matcher: top score %.3f below threshold %.3f, rejecting", top.Similarity, policy.Threshold)
		return nil
	}
	return &top
}

// RankByRelevance returns up to k candidates ordered by descending
// similarity to contextText. With the embedder unavailable the input
// order is preserved.
func (m *Matcher) RankByRelevance(ctx context.Context, contextText, slideTitle string, candidates []types.ImageCandidate, k int) []Scored {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	var ranked []Scored
	if m.embedder.Available(ctx) {
		ranked = m.score(ctx, contextText, slideTitle, candidates)
	}
	if ranked == nil {
		ranked = make([]Scored, len(candidates))
		for i, c := range candidates {
			ranked[i] = Scored{Candidate: c}
		}
	}

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// score embeds the context once and every candidate's matching text, then
// sorts by descending similarity. Returns nil when the context embedding
// fails.
func (m *Matcher) score(ctx context.Context, contextText, slideTitle string, candidates []types.ImageCandidate) []Scored {
	contextVec, err := m.embedder.TextEmbedding(ctx, contextText)
	if err != nil {
		log.Printf("matcher: context embedding failed, using first candidate: %v", err)
		return nil
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		text := matchText(c, slideTitle)
		vec, err := m.embedder.TextEmbedding(ctx, text)
		if err != nil {
			log.Printf("matcher: skipping %s: %v", c.URL, err)
			continue
		}
		scored = append(scored, Scored{
			Candidate:  c,
			Similarity: embedding.CosineSimilarity(contextVec, vec),
		})
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	return scored
}

// matchText picks the text that stands in for a candidate during scoring:
// description, then attribution, then author, then the slide title.
func matchText(c types.ImageCandidate, slideTitle string) string {
	switch {
	case c.Description != "":
		return c.Description
	case c.Attribution != "":
		return c.Attribution
	case c.Author != "":
		return c.Author
	default:
		return slideTitle
	}
}
