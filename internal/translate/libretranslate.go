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

// LibreTranslateConfig holds settings for a self-hosted LibreTranslate
// instance.
type LibreTranslateConfig struct {
	// BaseURL is the instance root (default: http://localhost:5000).
	BaseURL string

	// APIKey is sent with each request when the instance requires one.
	APIKey string

	// Timeout for translation requests (default: 10s).
	Timeout time.Duration
}

// LibreTranslateClient talks to a LibreTranslate instance.
type LibreTranslateClient struct {
	config     LibreTranslateConfig
	httpClient *http.Client
}

// NewLibreTranslateClient creates a LibreTranslate backend.
func NewLibreTranslateClient(config LibreTranslateConfig) *LibreTranslateClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:5000"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &LibreTranslateClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Translate converts text from source to target via POST /translate.
func (c *LibreTranslateClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}

	reqBody := map[string]string{
		"q":      text,
		"source": source,
		"target": target,
	}
	if c.config.APIKey != "" {
		reqBody["api_key"] = c.config.APIKey
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/translate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("libretranslate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("libretranslate returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return result.TranslatedText, nil
}

// Available probes GET /languages to check the instance is reachable.
func (c *LibreTranslateClient) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/languages", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

var _ Backend = (*LibreTranslateClient)(nil)
