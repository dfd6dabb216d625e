package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeEmbeddingStatus struct {
	available bool
	model     string
	text, img int
}

func (f *fakeEmbeddingStatus) Available(ctx context.Context) bool { return f.available }
func (f *fakeEmbeddingStatus) Model() string                      { return f.model }
func (f *fakeEmbeddingStatus) CacheStats() (int, int)             { return f.text, f.img }

type fakeTranslationStatus struct{ size int }

func (f *fakeTranslationStatus) CacheSize() int { return f.size }

type fakeProviderStatus struct {
	configured bool
	counts     map[string]int
}

func (f *fakeProviderStatus) Configured() bool             { return f.configured }
func (f *fakeProviderStatus) WindowCounts() map[string]int { return f.counts }

func TestHealthSnapshot(t *testing.T) {
	h := NewHealthHandler("1.0.0",
		&fakeEmbeddingStatus{available: true, model: "clip-vit-b32"},
		&fakeTranslationStatus{},
		&fakeProviderStatus{configured: true})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" || !resp.Embedding || !resp.Providers || !resp.Translation {
		t.Errorf("unexpected snapshot: %+v", resp)
	}
	if resp.Model != "clip-vit-b32" {
		t.Errorf("model = %q", resp.Model)
	}
}

func TestHealthDegradedEmbedding(t *testing.T) {
	h := NewHealthHandler("1.0.0", &fakeEmbeddingStatus{available: false}, nil, &fakeProviderStatus{})

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Embedding || resp.Translation || resp.Providers {
		t.Errorf("unexpected snapshot: %+v", resp)
	}
	if resp.Status != "healthy" {
		t.Errorf("service itself is still healthy, got %q", resp.Status)
	}
}

func TestStats(t *testing.T) {
	h := NewHealthHandler("1.0.0",
		&fakeEmbeddingStatus{text: 12, img: 34},
		&fakeTranslationStatus{size: 5},
		&fakeProviderStatus{counts: map[string]int{"pexels": 7}})

	w := httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	var resp StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TextCacheEntries != 12 || resp.ImageCacheEntries != 34 || resp.TranslationCacheSize != 5 {
		t.Errorf("unexpected stats: %+v", resp)
	}
	if resp.ProviderCallsInWindow["pexels"] != 7 {
		t.Errorf("provider counts = %v", resp.ProviderCallsInWindow)
	}
}
