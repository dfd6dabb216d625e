package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/scrypster/pictor/internal/matcher"
	"github.com/scrypster/pictor/internal/storage"
	"github.com/scrypster/pictor/pkg/types"
)

// ImageSource searches providers for candidates, filtering excluded URLs.
type ImageSource interface {
	GetImagesExcluding(ctx context.Context, query string, count int, exclude map[string]bool) []types.ImageCandidate
}

// CuratedSource is a hand-picked pool consulted before provider search.
type CuratedSource interface {
	Search(ctx context.Context, query string, count int) ([]types.ImageCandidate, error)
}

// ImageDownloader fetches the bytes of a chosen image.
type ImageDownloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// CandidatePicker ranks candidates against the slide context.
type CandidatePicker interface {
	PickBest(ctx context.Context, contextText, slideTitle string, candidates []types.ImageCandidate, exclude map[string]bool, policy matcher.GatePolicy) *matcher.Scored
}

// AvailabilityProber reports whether semantic ranking can run.
type AvailabilityProber interface {
	Available(ctx context.Context) bool
}

// CacheFlusher persists pending embedding-cache writes.
type CacheFlusher interface {
	Flush(ctx context.Context) error
}

// SelectorConfig holds the pipeline configuration.
type SelectorConfig struct {
	// Mode selects the pipeline variant.
	Mode types.SelectionMode

	// Threshold is the strict-gate similarity floor (default: 0.25).
	Threshold float64

	// MaxCandidates is how many candidates each search requests
	// (default: 20).
	MaxCandidates int

	// MinCandidates is the pool floor below which semantic ranking is
	// skipped (default: 8).
	MinCandidates int

	// HistoryKeep is the per-user retention cap applied by FinishRun
	// (default: 100).
	HistoryKeep int
}

// Selector runs the image selection pipeline for one slide at a time.
type Selector struct {
	cfg        SelectorConfig
	queries    *QueryBuilder
	source     ImageSource
	curated    CuratedSource
	downloader ImageDownloader
	picker     CandidatePicker
	embedder   AvailabilityProber
	flusher    CacheFlusher
	store      storage.UsedImageStore
	now        func() time.Time
}

// NewSelector wires the pipeline. curated, flusher, and store may be nil.
func NewSelector(cfg SelectorConfig, queries *QueryBuilder, source ImageSource, curated CuratedSource,
	downloader ImageDownloader, picker CandidatePicker, embedder AvailabilityProber,
	flusher CacheFlusher, store storage.UsedImageStore) *Selector {

	if cfg.Threshold == 0 {
		cfg.Threshold = 0.25
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 20
	}
	if cfg.MinCandidates <= 0 {
		cfg.MinCandidates = 8
	}
	if cfg.HistoryKeep <= 0 {
		cfg.HistoryKeep = 100
	}

	return &Selector{
		cfg:        cfg,
		queries:    queries,
		source:     source,
		curated:    curated,
		downloader: downloader,
		picker:     picker,
		embedder:   embedder,
		flusher:    flusher,
		store:      store,
		now:        time.Now,
	}
}

// StartRun begins a presentation run, loading the user's history into the
// exclusion scope.
func (s *Selector) StartRun(ctx context.Context, userID string) (*Run, error) {
	return NewRun(ctx, s.store, userID, s.cfg.HistoryKeep)
}

// SelectForSlide picks an unused image for one slide. It returns the
// selection and true on success, or nil and false when no suitable unused
// image exists; the slide is then rendered without an image.
//
// Never returns an error: every failure inside the pipeline degrades to
// the next query or candidate.
func (s *Selector) SelectForSlide(ctx context.Context, run *Run, slide types.SlideContext) (*types.Selection, bool) {
	primary := s.queries.Primary(ctx, slide, s.cfg.Mode)
	if primary == "" {
		primary = strings.TrimSpace(slide.Topic)
	}
	exclude := run.Exclusions()

	if sel := s.tryCurated(ctx, run, primary, exclude); sel != nil {
		return sel, true
	}

	if sel := s.trySemantic(ctx, run, slide, primary, exclude); sel != nil {
		return sel, true
	}

	if sel := s.tryKeywordChain(ctx, run, slide, primary, exclude); sel != nil {
		return sel, true
	}

	log.Printf("engine: no unused image found for slide %q", slide.Title)
	return nil, false
}

// tryCurated consults the curated pool before any provider search.
func (s *Selector) tryCurated(ctx context.Context, run *Run, query string, exclude map[string]bool) *types.Selection {
	if s.curated == nil {
		return nil
	}

	candidates, err := s.curated.Search(ctx, query, s.cfg.MaxCandidates)
	if err != nil || len(candidates) == 0 {
		return nil
	}
	for _, c := range candidates {
		if exclude[c.URL] {
			continue
		}
		if sel := s.finalize(ctx, run, c, query, 0); sel != nil {
			return sel
		}
	}
	return nil
}

// trySemantic ranks a provider candidate pool by similarity to the slide
// context. It returns nil when the embedder is unavailable, the pool is
// below the minimum floor, the strict gate rejects the top candidate, or
// no ranked candidate downloads.
func (s *Selector) trySemantic(ctx context.Context, run *Run, slide types.SlideContext, query string, exclude map[string]bool) *types.Selection {
	if !s.embedder.Available(ctx) {
		return nil
	}

	candidates := s.source.GetImagesExcluding(ctx, query, s.cfg.MaxCandidates, exclude)
	if len(candidates) < s.cfg.MinCandidates {
		if len(candidates) > 0 {
			log.Printf("engine: pool of %d below floor %d, skipping semantic ranking", len(candidates), s.cfg.MinCandidates)
		}
		return nil
	}

	policy := matcher.GatePolicy{Strict: s.cfg.Mode.StrictGate(), Threshold: s.cfg.Threshold}
	contextText := s.matchContext(slide)

	// Failed downloads mask the candidate and re-rank, so the next best
	// image gets a chance.
	masked := make(map[string]bool, len(exclude))
	for u := range exclude {
		masked[u] = true
	}

	for attempts := 0; attempts < len(candidates); attempts++ {
		scored := s.picker.PickBest(ctx, contextText, slide.Title, candidates, masked, policy)
		if scored == nil {
			return nil
		}
		if sel := s.finalize(ctx, run, scored.Candidate, query, scored.Similarity); sel != nil {
			return sel
		}
		masked[scored.Candidate.URL] = true
	}
	return nil
}

// tryKeywordChain is the degraded path: a fixed list of query attempts,
// first candidate that downloads wins.
func (s *Selector) tryKeywordChain(ctx context.Context, run *Run, slide types.SlideContext, primary string, exclude map[string]bool) *types.Selection {
	attempts := []string{
		primary,
		s.queries.Translated(ctx, primary, slide),
		strings.TrimSpace(slide.Title),
		strings.TrimSpace(slide.Topic),
	}

	tried := make(map[string]bool)
	for _, query := range attempts {
		if query == "" || tried[query] {
			continue
		}
		tried[query] = true

		candidates := s.source.GetImagesExcluding(ctx, query, s.cfg.MaxCandidates, exclude)
		for _, c := range candidates {
			if sel := s.finalize(ctx, run, c, query, 0); sel != nil {
				return sel
			}
		}
	}
	return nil
}

// finalize downloads the candidate and records the selection. A failed or
// oversized download returns nil so the caller tries the next candidate.
func (s *Selector) finalize(ctx context.Context, run *Run, c types.ImageCandidate, query string, similarity float64) *types.Selection {
	data, err := s.downloader.Download(ctx, c.URL)
	if err != nil {
		log.Printf("engine: download failed for %s: %v", c.URL, err)
		return nil
	}

	run.MarkUsed(c.URL)
	if run.UserID() != "" && s.store != nil {
		rec := &types.UsedImageRecord{
			UserID:   run.UserID(),
			ImageURL: c.URL,
			Query:    query,
			UsedAt:   s.now(),
		}
		if err := s.store.Record(ctx, rec); err != nil {
			log.Printf("engine: failed to record used image: %v", err)
		}
	}

	return &types.Selection{
		Candidate:  c,
		ImageData:  data,
		Query:      query,
		Similarity: similarity,
	}
}

// matchContext is the text candidates are ranked against.
func (s *Selector) matchContext(slide types.SlideContext) string {
	if s.cfg.Mode.UsesPrompt() && slide.ImagePrompt != "" {
		return slide.ImagePrompt
	}

	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(slide.Title); t != "" {
		parts = append(parts, t)
	}
	if c := strings.TrimSpace(slide.Content); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, ". ")
}

// FinishRun flushes pending embedding-cache writes and prunes the user's
// used-image history to the retention cap.
func (s *Selector) FinishRun(ctx context.Context, run *Run) {
	if s.flusher != nil {
		if err := s.flusher.Flush(ctx); err != nil {
			log.Printf("engine: embedding cache flush failed: %v", err)
		}
	}

	if run.UserID() == "" || s.store == nil {
		return
	}
	deleted, err := s.store.Cleanup(ctx, run.UserID(), s.cfg.HistoryKeep)
	if err != nil {
		log.Printf("engine: history cleanup failed for user %s: %v", run.UserID(), err)
		return
	}
	if deleted > 0 {
		log.Printf("engine: run %s pruned %d old used-image records", run.ID(), deleted)
	}
}
