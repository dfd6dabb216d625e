package handlers

import (
	"context"
	"net/http"
)

// EmbeddingStatus is the slice of the embedding service the health and
// stats endpoints read.
type EmbeddingStatus interface {
	Available(ctx context.Context) bool
	Model() string
	CacheStats() (textEntries, imageEntries int)
}

// TranslationStatus reports translation-layer state.
type TranslationStatus interface {
	CacheSize() int
}

// ProviderStatus reports provider configuration and rate-limit state.
type ProviderStatus interface {
	Configured() bool
	WindowCounts() map[string]int
}

// HealthHandler serves the availability snapshot and cache statistics.
type HealthHandler struct {
	version     string
	embedding   EmbeddingStatus
	translation TranslationStatus
	providers   ProviderStatus
}

// NewHealthHandler creates the health handler. Any dependency may be nil;
// the corresponding fields then report unavailable or zero.
func NewHealthHandler(version string, embedding EmbeddingStatus, translation TranslationStatus, providers ProviderStatus) *HealthHandler {
	return &HealthHandler{
		version:     version,
		embedding:   embedding,
		translation: translation,
		providers:   providers,
	}
}

// Health serves GET /api/v1/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	resp := HealthResponse{
		Status:  "healthy",
		Version: h.version,
	}
	if h.providers != nil {
		resp.Providers = h.providers.Configured()
	}
	if h.translation != nil {
		resp.Translation = true
	}
	if h.embedding != nil && h.embedding.Available(r.Context()) {
		resp.Embedding = true
		resp.Model = h.embedding.Model()
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stats serves GET /api/v1/stats.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	resp := StatsResponse{ProviderCallsInWindow: map[string]int{}}
	if h.embedding != nil {
		resp.TextCacheEntries, resp.ImageCacheEntries = h.embedding.CacheStats()
	}
	if h.translation != nil {
		resp.TranslationCacheSize = h.translation.CacheSize()
	}
	if h.providers != nil {
		resp.ProviderCallsInWindow = h.providers.WindowCounts()
	}

	writeJSON(w, http.StatusOK, resp)
}
