package providers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/scrypster/pictor/pkg/types"
)

// FetcherConfig holds the fetcher's strategy and retry settings.
type FetcherConfig struct {
	// Mode selects the provider strategy: "pexels", "unsplash", or
	// "mixed" (default). Mixed tries Pexels first and falls back to
	// Unsplash only when Pexels returns no candidates.
	Mode string

	// Retries is the number of additional attempts after an HTTP 429
	// (default: 2).
	Retries int

	// Backoff is the fixed delay between 429 retries (default: 1s).
	Backoff time.Duration
}

// Fetcher queries stock-photo providers under a shared sliding-window
// budget. All failures are absorbed: an exhausted budget, a missing key,
// a timeout, or a non-200 all yield an empty candidate list so the
// pipeline can move on to the next query variant.
type Fetcher struct {
	cfg      FetcherConfig
	window   *Window
	pexels   SearchProvider
	unsplash SearchProvider
	sleep    func(time.Duration)
}

// NewFetcher creates a fetcher over the given providers and rate window.
func NewFetcher(cfg FetcherConfig, window *Window, pexels, unsplash SearchProvider) *Fetcher {
	if cfg.Mode == "" {
		cfg.Mode = "mixed"
	}
	if cfg.Retries == 0 {
		cfg.Retries = 2
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Second
	}
	return &Fetcher{
		cfg:      cfg,
		window:   window,
		pexels:   pexels,
		unsplash: unsplash,
		sleep:    time.Sleep,
	}
}

// Fetch queries one provider, consuming rate budget per attempt.
// HTTP 429 is retried up to retries times with a fixed backoff; every
// retry consumes budget too. Any other failure returns an empty list
// immediately.
func (f *Fetcher) Fetch(ctx context.Context, provider SearchProvider, query string, count, retries int) []types.ImageCandidate {
	if provider == nil || query == "" || count <= 0 {
		return nil
	}

	for attempt := 0; attempt <= retries; attempt++ {
		if !f.window.Allow(provider.Name()) {
			log.Printf("providers: %s over budget, skipping %q", provider.Name(), query)
			return nil
		}

		candidates, err := provider.Search(ctx, query, count)
		if err == nil {
			return candidates
		}

		if errors.Is(err, ErrRateLimited) && attempt < retries {
			log.Printf("providers: %s rate limited on %q, retry %d/%d", provider.Name(), query, attempt+1, retries)
			f.sleep(f.cfg.Backoff)
			continue
		}

		if errors.Is(err, ErrMissingCredentials) {
			log.Printf("providers: %s has no credentials, skipping", provider.Name())
		} else {
			log.Printf("providers: %s search failed for %q: %v", provider.Name(), query, err)
		}
		return nil
	}

	return nil
}

// GetImages applies the provider strategy for one query.
func (f *Fetcher) GetImages(ctx context.Context, query string, count int) []types.ImageCandidate {
	switch f.cfg.Mode {
	case "pexels":
		return f.Fetch(ctx, f.pexels, query, count, f.cfg.Retries)
	case "unsplash":
		return f.Fetch(ctx, f.unsplash, query, count, f.cfg.Retries)
	default: // mixed
		candidates := f.Fetch(ctx, f.pexels, query, count, f.cfg.Retries)
		if len(candidates) > 0 {
			return candidates
		}
		return f.Fetch(ctx, f.unsplash, query, count, f.cfg.Retries)
	}
}

// Configured reports whether at least one provider has credentials.
func (f *Fetcher) Configured() bool {
	return f.pexels != nil || f.unsplash != nil
}

// WindowCounts reports the recorded calls per provider in the current
// rate window.
func (f *Fetcher) WindowCounts() map[string]int {
	counts := make(map[string]int)
	for _, p := range []SearchProvider{f.pexels, f.unsplash} {
		if p != nil {
			counts[p.Name()] = f.window.Count(p.Name())
		}
	}
	return counts
}

// GetImagesExcluding applies the provider strategy and drops any candidate
// whose URL is in the exclusion set. The exclusion set is read-only here.
func (f *Fetcher) GetImagesExcluding(ctx context.Context, query string, count int, exclude map[string]bool) []types.ImageCandidate {
	candidates := f.GetImages(ctx, query, count)
	if len(exclude) == 0 {
		return candidates
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if !exclude[c.URL] {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
