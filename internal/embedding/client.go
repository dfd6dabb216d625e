// Package embedding provides semantic embeddings for queries and images
// via a CLIP inference sidecar, with layered caching and graceful
// degradation when the sidecar is unreachable.
package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the transport to an embedding inference backend.
type Client interface {
	// Health probes the backend and reports the served model.
	Health(ctx context.Context) (*HealthInfo, error)

	// EmbedTexts returns one embedding per input text, in order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedImages returns one embedding per input image, in order.
	EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error)
}

// HealthInfo describes the model served by the sidecar.
type HealthInfo struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// SidecarConfig holds the CLIP sidecar client configuration.
type SidecarConfig struct {
	// BaseURL is the sidecar root (default: http://localhost:8191).
	BaseURL string

	// Timeout is the request timeout (default: 10s).
	Timeout time.Duration
}

// SidecarClient talks to the CLIP inference sidecar over HTTP.
// All calls go through a circuit breaker so a dead sidecar fails fast.
type SidecarClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *Breaker
}

// NewSidecarClient creates a sidecar client with defaults for zero fields.
func NewSidecarClient(config SidecarConfig) *SidecarClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8191"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &SidecarClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		breaker: NewBreaker(BreakerConfig{}),
	}
}

type embedTextRequest struct {
	Texts []string `json:"texts"`
}

type embedImageRequest struct {
	Images []string `json:"images"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Health probes GET /health. It is not routed through the breaker: the
// probe is how availability is decided in the first place.
func (c *SidecarClient) Health(ctx context.Context) (*HealthInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sidecar health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sidecar health returned status %d", resp.StatusCode)
	}

	var info HealthInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &info, nil
}

// EmbedTexts embeds a batch of texts via POST /v1/embed/text.
func (c *SidecarClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, "/v1/embed/text", embedTextRequest{Texts: texts}, len(texts))
}

// EmbedImages embeds a batch of images via POST /v1/embed/image.
// Image bytes are base64-encoded into the request body.
func (c *SidecarClient) EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	if len(images) == 0 {
		return nil, nil
	}

	encoded := make([]string, len(images))
	for i, img := range images {
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}
	return c.embed(ctx, "/v1/embed/image", embedImageRequest{Images: encoded}, len(images))
}

func (c *SidecarClient) embed(ctx context.Context, path string, body interface{}, want int) ([][]float32, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("sidecar request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, string(respBody))
		}

		var out embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return out.Embeddings, nil
	})
	if err != nil {
		return nil, err
	}

	embeddings := result.([][]float32)
	if len(embeddings) != want {
		return nil, fmt.Errorf("sidecar returned %d embeddings, want %d", len(embeddings), want)
	}
	return embeddings, nil
}

// BreakerState exposes the circuit state for the health endpoint.
func (c *SidecarClient) BreakerState() string {
	return c.breaker.State()
}

var _ Client = (*SidecarClient)(nil)
