// Package providers implements the rate-limited multi-provider stock photo
// fetcher: typed clients for Pexels and Unsplash, a sliding-window call
// budget per provider, retry-on-429 fetch logic, the provider strategy
// (pexels, unsplash, or mixed), and the size-capped image downloader.
package providers

import (
	"context"
	"errors"

	"github.com/scrypster/pictor/pkg/types"
)

var (
	// ErrRateLimited indicates the provider answered HTTP 429.
	// The fetcher retries these with a short fixed backoff.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrMissingCredentials indicates the provider has no API key
	// configured. Never fatal: the strategy skips the provider.
	ErrMissingCredentials = errors.New("provider credentials missing")
)

// SearchProvider is one stock-photo search backend.
type SearchProvider interface {
	// Search returns up to count candidates for the query.
	// Returns ErrRateLimited on HTTP 429 and ErrMissingCredentials when
	// no API key is configured; any other failure is returned as-is and
	// treated by the fetcher as "no results, do not retry".
	Search(ctx context.Context, query string, count int) ([]types.ImageCandidate, error)

	// Name returns the provider name used for rate-limit windows,
	// candidate sourcing, and logs.
	Name() string
}
