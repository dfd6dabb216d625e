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

// PexelsConfig holds configuration for the Pexels client.
type PexelsConfig struct {
	APIKey  string
	BaseURL string        // default: https://api.pexels.com
	Timeout time.Duration // default: 10s
}

// PexelsClient implements SearchProvider using the Pexels photo search API.
type PexelsClient struct {
	cfg    PexelsConfig
	client *http.Client
}

// NewPexelsClient creates a new Pexels client with the given configuration.
func NewPexelsClient(cfg PexelsConfig) *PexelsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pexels.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PexelsClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// pexelsSearchResponse is the response body from GET /v1/search.
type pexelsSearchResponse struct {
	Photos []struct {
		Alt          string `json:"alt"`
		Photographer string `json:"photographer"`
		Src          struct {
			Large string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// Name returns the provider name.
func (c *PexelsClient) Name() string {
	return "pexels"
}

// Search queries Pexels for landscape photos matching the query.
func (c *PexelsClient) Search(ctx context.Context, query string, count int) ([]types.ImageCandidate, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(count))
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/v1/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels returned status %d", resp.StatusCode)
	}

	var respData pexelsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	candidates := make([]types.ImageCandidate, 0, len(respData.Photos))
	for _, p := range respData.Photos {
		if p.Src.Large == "" {
			continue
		}
		candidates = append(candidates, types.ImageCandidate{
			URL:         p.Src.Large,
			Author:      p.Photographer,
			Source:      "pexels",
			Attribution: fmt.Sprintf("Photo by %s on Pexels", p.Photographer),
			Description: p.Alt,
		})
	}

	return candidates, nil
}

// Compile-time assertion.
var _ SearchProvider = (*PexelsClient)(nil)
