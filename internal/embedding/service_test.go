package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/scrypster/pictor/internal/storage"
)

// fakeClient serves scripted embeddings and counts calls.
type fakeClient struct {
	healthErr  error
	vectors    map[string][]float32
	imageVec   []float32
	textCalls  int
	imageCalls int
}

func (c *fakeClient) Health(ctx context.Context) (*HealthInfo, error) {
	if c.healthErr != nil {
		return nil, c.healthErr
	}
	return &HealthInfo{Model: "clip-vit-b32", Dimension: 512}, nil
}

func (c *fakeClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	c.textCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, ok := c.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no scripted vector for %q", t)
		}
		out[i] = vec
	}
	return out, nil
}

func (c *fakeClient) EmbedImages(ctx context.Context, images [][]byte) ([][]float32, error) {
	c.imageCalls++
	out := make([][]float32, len(images))
	for i := range images {
		out[i] = c.imageVec
	}
	return out, nil
}

// fakeDownloader returns fixed bytes, failing for listed URLs.
type fakeDownloader struct {
	failing map[string]bool
	calls   int
}

func (d *fakeDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	d.calls++
	if d.failing[url] {
		return nil, errors.New("download failed")
	}
	return []byte("image-bytes"), nil
}

// memoryStore is an in-memory EmbeddingCacheStore.
type memoryStore struct {
	entries  map[string][]float32
	putCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: make(map[string][]float32)}
}

func (m *memoryStore) PutAll(ctx context.Context, embeddings []storage.CachedEmbedding) error {
	m.putCalls++
	for _, e := range embeddings {
		m.entries[e.URL] = e.Embedding
	}
	return nil
}

func (m *memoryStore) Get(ctx context.Context, url string) ([]float32, error) {
	vec, ok := m.entries[url]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return vec, nil
}

func (m *memoryStore) LoadAll(ctx context.Context, limit int) ([]storage.CachedEmbedding, error) {
	var out []storage.CachedEmbedding
	for url, vec := range m.entries {
		if len(out) >= limit {
			break
		}
		out = append(out, storage.CachedEmbedding{URL: url, Embedding: vec})
	}
	return out, nil
}

func (m *memoryStore) EvictOldest(ctx context.Context, maxEntries int) (int, error) {
	return 0, nil
}

func (m *memoryStore) Close() error { return nil }

func newTestService(t *testing.T, cfg ServiceConfig, client Client, dl Downloader, store storage.EmbeddingCacheStore) *Service {
	t.Helper()
	s, err := NewService(cfg, client, dl, store)
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}
	return s
}

func TestAvailabilityProbedOnce(t *testing.T) {
	client := &fakeClient{healthErr: errors.New("connection refused")}
	s := newTestService(t, ServiceConfig{}, client, &fakeDownloader{}, nil)

	ctx := context.Background()
	if s.Available(ctx) {
		t.Fatal("service should be unavailable when the probe fails")
	}

	// Flipping the fake to healthy must not matter: the verdict is fixed.
	client.healthErr = nil
	if s.Available(ctx) {
		t.Error("availability verdict should be permanent for the process")
	}
}

func TestKillSwitchSkipsProbe(t *testing.T) {
	client := &fakeClient{}
	s := newTestService(t, ServiceConfig{Disabled: true}, client, &fakeDownloader{}, nil)

	if s.Available(context.Background()) {
		t.Error("disabled service should report unavailable")
	}
	if s.Model() != "" {
		t.Error("disabled service should never have probed the sidecar")
	}
}

func TestTextEmbeddingCached(t *testing.T) {
	client := &fakeClient{vectors: map[string][]float32{"ocean": {3, 4}}}
	s := newTestService(t, ServiceConfig{}, client, &fakeDownloader{}, nil)

	ctx := context.Background()
	first, err := s.TextEmbedding(ctx, "ocean")
	if err != nil {
		t.Fatalf("TextEmbedding() failed: %v", err)
	}
	second, err := s.TextEmbedding(ctx, "ocean")
	if err != nil {
		t.Fatalf("second TextEmbedding() failed: %v", err)
	}

	if client.textCalls != 1 {
		t.Errorf("sidecar text calls = %d, want 1", client.textCalls)
	}
	if len(first) != 2 || first[0] != second[0] {
		t.Errorf("cached vector differs: %v vs %v", first, second)
	}
}

// TestTextEmbeddingNormalized checks the unit-norm invariant on vectors
// returned by the service.
func TestTextEmbeddingNormalized(t *testing.T) {
	client := &fakeClient{vectors: map[string][]float32{"ocean": {3, 4}}}
	s := newTestService(t, ServiceConfig{}, client, &fakeDownloader{}, nil)

	vec, err := s.TextEmbedding(context.Background(), "ocean")
	if err != nil {
		t.Fatalf("TextEmbedding() failed: %v", err)
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1.0) > 1e-6 {
		t.Errorf("squared norm = %f, want 1.0", norm)
	}
}

func TestImageEmbeddingUsesStoreBeforeSidecar(t *testing.T) {
	store := newMemoryStore()
	store.entries["https://img.example/a.jpg"] = []float32{0, 1}

	client := &fakeClient{imageVec: []float32{1, 0}}
	dl := &fakeDownloader{}
	s := newTestService(t, ServiceConfig{}, client, dl, store)

	vec, err := s.ImageEmbedding(context.Background(), "https://img.example/a.jpg")
	if err != nil {
		t.Fatalf("ImageEmbedding() failed: %v", err)
	}
	if vec[1] != 1 {
		t.Errorf("got %v, want the persisted vector", vec)
	}
	if client.imageCalls != 0 || dl.calls != 0 {
		t.Errorf("sidecar calls = %d, downloads = %d, want 0 on cache hit", client.imageCalls, dl.calls)
	}
}

func TestImageEmbeddingMissDownloadsAndEmbeds(t *testing.T) {
	client := &fakeClient{imageVec: []float32{1, 0}}
	dl := &fakeDownloader{}
	s := newTestService(t, ServiceConfig{}, client, dl, nil)

	ctx := context.Background()
	vec, err := s.ImageEmbedding(ctx, "https://img.example/new.jpg")
	if err != nil {
		t.Fatalf("ImageEmbedding() failed: %v", err)
	}
	if vec[0] != 1 {
		t.Errorf("got %v", vec)
	}

	// Second lookup hits the in-memory cache.
	if _, err := s.ImageEmbedding(ctx, "https://img.example/new.jpg"); err != nil {
		t.Fatalf("cached ImageEmbedding() failed: %v", err)
	}
	if dl.calls != 1 || client.imageCalls != 1 {
		t.Errorf("downloads = %d, sidecar calls = %d, want 1 each", dl.calls, client.imageCalls)
	}
}

func TestFlushAfterNWrites(t *testing.T) {
	store := newMemoryStore()
	client := &fakeClient{imageVec: []float32{1, 0}}
	s := newTestService(t, ServiceConfig{FlushEveryWrites: 2}, client, &fakeDownloader{}, store)

	ctx := context.Background()
	if _, err := s.ImageEmbedding(ctx, "https://img.example/1.jpg"); err != nil {
		t.Fatal(err)
	}
	if store.putCalls != 0 {
		t.Errorf("store writes after 1 insert = %d, want 0", store.putCalls)
	}

	if _, err := s.ImageEmbedding(ctx, "https://img.example/2.jpg"); err != nil {
		t.Fatal(err)
	}
	if store.putCalls != 1 {
		t.Errorf("store writes after 2 inserts = %d, want 1", store.putCalls)
	}
	if len(store.entries) != 2 {
		t.Errorf("persisted entries = %d, want 2", len(store.entries))
	}
}

func TestInMemoryCacheEvictsOldest(t *testing.T) {
	client := &fakeClient{imageVec: []float32{1, 0}}
	dl := &fakeDownloader{}
	s := newTestService(t, ServiceConfig{ImageCacheSize: 2}, client, dl, nil)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		url := fmt.Sprintf("https://img.example/%d.jpg", i)
		if _, err := s.ImageEmbedding(ctx, url); err != nil {
			t.Fatal(err)
		}
	}

	_, imageEntries := s.CacheStats()
	if imageEntries != 2 {
		t.Errorf("image cache entries = %d, want 2", imageEntries)
	}

	// The first URL was evicted, so it is downloaded again.
	before := dl.calls
	if _, err := s.ImageEmbedding(ctx, "https://img.example/1.jpg"); err != nil {
		t.Fatal(err)
	}
	if dl.calls != before+1 {
		t.Error("evicted URL should require a fresh download")
	}
}

func TestBatchImageEmbeddingsNilForFailures(t *testing.T) {
	client := &fakeClient{imageVec: []float32{1, 0}}
	dl := &fakeDownloader{failing: map[string]bool{"https://img.example/bad.jpg": true}}
	s := newTestService(t, ServiceConfig{}, client, dl, nil)

	urls := []string{"https://img.example/a.jpg", "https://img.example/bad.jpg", "https://img.example/b.jpg"}
	result := s.BatchImageEmbeddings(context.Background(), urls)

	if len(result) != 3 {
		t.Fatalf("result length = %d, want 3", len(result))
	}
	if result[0] == nil || result[2] == nil {
		t.Error("successful URLs should have embeddings")
	}
	if result[1] != nil {
		t.Error("failed download should yield a nil embedding")
	}
	if client.imageCalls != 1 {
		t.Errorf("sidecar calls = %d, want 1 batched call", client.imageCalls)
	}
}

func TestUnavailableServiceReturnsErrUnavailable(t *testing.T) {
	client := &fakeClient{healthErr: errors.New("down")}
	s := newTestService(t, ServiceConfig{}, client, &fakeDownloader{}, nil)

	if _, err := s.TextEmbedding(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}
