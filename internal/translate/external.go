package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExternalConfig holds settings for a generic hosted translation API that
// accepts the same request shape as LibreTranslate but requires bearer
// authentication.
type ExternalConfig struct {
	// Endpoint is the full translation URL.
	Endpoint string

	// APIKey is sent as a bearer token.
	APIKey string

	// Timeout for translation requests (default: 10s).
	Timeout time.Duration
}

// ExternalClient talks to a hosted translation API.
type ExternalClient struct {
	config     ExternalConfig
	httpClient *http.Client
}

// NewExternalClient creates an external translation backend.
func NewExternalClient(config ExternalConfig) *ExternalClient {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &ExternalClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Translate converts text from source to target language.
func (c *ExternalClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if c.config.Endpoint == "" {
		return "", fmt.Errorf("external translation endpoint not configured")
	}
	if source == "" {
		source = "auto"
	}

	jsonData, err := json.Marshal(map[string]string{
		"q":      text,
		"source": source,
		"target": target,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translation API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return result.TranslatedText, nil
}

var _ Backend = (*ExternalClient)(nil)
