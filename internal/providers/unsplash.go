package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/scrypster/pictor/pkg/types"
)

// UnsplashConfig holds configuration for the Unsplash client.
type UnsplashConfig struct {
	AccessKey string
	BaseURL   string        // default: https://api.unsplash.com
	Timeout   time.Duration // default: 10s
}

// UnsplashClient implements SearchProvider using the Unsplash search API.
type UnsplashClient struct {
	cfg    UnsplashConfig
	client *http.Client
}

// NewUnsplashClient creates a new Unsplash client with the given configuration.
func NewUnsplashClient(cfg UnsplashConfig) *UnsplashClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.unsplash.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &UnsplashClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// unsplashSearchResponse is the response body from GET /search/photos.
type unsplashSearchResponse struct {
	Results []struct {
		AltDescription string `json:"alt_description"`
		Description    string `json:"description"`
		URLs           struct {
			Regular string `json:"regular"`
		} `json:"urls"`
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	} `json:"results"`
}

// Name returns the provider name.
func (c *UnsplashClient) Name() string {
	return "unsplash"
}

// Search queries Unsplash for landscape photos matching the query.
func (c *UnsplashClient) Search(ctx context.Context, query string, count int) ([]types.ImageCandidate, error) {
	if c.cfg.AccessKey == "" {
		return nil, ErrMissingCredentials
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(count))
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.cfg.AccessKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unsplash returned status %d", resp.StatusCode)
	}

	var respData unsplashSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	candidates := make([]types.ImageCandidate, 0, len(respData.Results))
	for _, r := range respData.Results {
		if r.URLs.Regular == "" {
			continue
		}
		description := r.AltDescription
		if description == "" {
			description = r.Description
		}
		candidates = append(candidates, types.ImageCandidate{
			URL:         r.URLs.Regular,
			Author:      r.User.Name,
			Source:      "unsplash",
			Attribution: fmt.Sprintf("Photo by %s on Unsplash", r.User.Name),
			Description: description,
		})
	}

	return candidates, nil
}

// Compile-time assertion.
var _ SearchProvider = (*UnsplashClient)(nil)
