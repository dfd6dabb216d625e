package embedding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scrypster/pictor/internal/storage"
)

// ErrUnavailable is returned when the embedding backend is disabled or
// could not be reached during the availability probe.
var ErrUnavailable = errors.New("embedding service unavailable")

// Downloader fetches image bytes for embedding.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// ServiceConfig holds the embedding service configuration.
type ServiceConfig struct {
	// Disabled is the hard kill-switch: the service reports unavailable
	// without ever probing the sidecar.
	Disabled bool

	// TextCacheSize bounds the text-embedding LRU (default: 1000).
	TextCacheSize int

	// ImageCacheSize bounds the in-memory and persisted image-embedding
	// caches (default: 500).
	ImageCacheSize int

	// FlushEveryWrites persists dirty image embeddings to the store after
	// this many cache inserts (default: 10).
	FlushEveryWrites int
}

// Service provides text and image embeddings with layered caching.
//
// Availability is decided once per process: the first call probes the
// sidecar health endpoint, and a failed probe (or the kill-switch) marks
// the service unavailable for the remainder of the process. Callers are
// expected to degrade to keyword-based selection when unavailable.
type Service struct {
	cfg        ServiceConfig
	client     Client
	downloader Downloader
	store      storage.EmbeddingCacheStore

	probeOnce sync.Once
	available bool
	model     string

	textCache *lru.Cache[string, []float32]

	mu          sync.Mutex
	imageCache  map[string][]float32
	imageOrder  []string
	dirty       []storage.CachedEmbedding
	writeCount  int
	warmedStore bool
}

// NewService creates an embedding service. The store may be nil, in which
// case image embeddings are cached in memory only.
func NewService(cfg ServiceConfig, client Client, downloader Downloader, store storage.EmbeddingCacheStore) (*Service, error) {
	if cfg.TextCacheSize <= 0 {
		cfg.TextCacheSize = 1000
	}
	if cfg.ImageCacheSize <= 0 {
		cfg.ImageCacheSize = 500
	}
	if cfg.FlushEveryWrites <= 0 {
		cfg.FlushEveryWrites = 10
	}

	textCache, err := lru.New[string, []float32](cfg.TextCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create text cache: %w", err)
	}

	return &Service{
		cfg:        cfg,
		client:     client,
		downloader: downloader,
		store:      store,
		textCache:  textCache,
		imageCache: make(map[string][]float32),
	}, nil
}

// Available reports whether embeddings can be computed. The first call
// probes the sidecar; the result is fixed for the process lifetime.
func (s *Service) Available(ctx context.Context) bool {
	s.probeOnce.Do(func() {
		if s.cfg.Disabled {
			log.Printf("embedding: disabled by configuration")
			return
		}
		if s.client == nil {
			return
		}

		info, err := s.client.Health(ctx)
		if err != nil {
			log.Printf("embedding: sidecar unavailable, selection degrades to keyword search: %v", err)
			return
		}

		s.available = true
		s.model = info.Model
		log.Printf("embedding: sidecar ready, model=%s dimension=%d", info.Model, info.Dimension)
	})
	return s.available
}

// Model returns the sidecar model name, when known.
func (s *Service) Model() string {
	return s.model
}

// TextEmbedding returns the normalized embedding for a text, cached by the
// exact input string.
func (s *Service) TextEmbedding(ctx context.Context, text string) ([]float32, error) {
	if !s.Available(ctx) {
		return nil, ErrUnavailable
	}

	if vec, ok := s.textCache.Get(text); ok {
		return vec, nil
	}

	embeddings, err := s.client.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("text embedding failed: %w", err)
	}

	vec := Normalize(embeddings[0])
	s.textCache.Add(text, vec)
	return vec, nil
}

// ImageEmbedding returns the normalized embedding for an image URL. The
// in-memory cache is consulted first, then the persisted store; a miss
// downloads the image and embeds it via the sidecar.
func (s *Service) ImageEmbedding(ctx context.Context, url string) ([]float32, error) {
	if !s.Available(ctx) {
		return nil, ErrUnavailable
	}

	s.warmLoad(ctx)

	s.mu.Lock()
	vec, ok := s.imageCache[url]
	s.mu.Unlock()
	if ok {
		return vec, nil
	}

	if vec := s.lookupStore(ctx, url); vec != nil {
		s.remember(ctx, url, vec, false)
		return vec, nil
	}

	data, err := s.downloader.Download(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}

	embeddings, err := s.client.EmbedImages(ctx, [][]byte{data})
	if err != nil {
		return nil, fmt.Errorf("image embedding failed: %w", err)
	}

	vec = Normalize(embeddings[0])
	s.remember(ctx, url, vec, true)
	return vec, nil
}

// BatchImageEmbeddings embeds a set of image URLs with one sidecar call
// for all cache misses. The result is aligned with urls; entries are nil
// for images that could not be downloaded or embedded.
func (s *Service) BatchImageEmbeddings(ctx context.Context, urls []string) [][]float32 {
	result := make([][]float32, len(urls))
	if !s.Available(ctx) {
		return result
	}

	s.warmLoad(ctx)

	var missURLs []string
	var missData [][]byte
	var missIdx []int

	for i, url := range urls {
		s.mu.Lock()
		vec, ok := s.imageCache[url]
		s.mu.Unlock()
		if ok {
			result[i] = vec
			continue
		}

		if vec := s.lookupStore(ctx, url); vec != nil {
			s.remember(ctx, url, vec, false)
			result[i] = vec
			continue
		}

		data, err := s.downloader.Download(ctx, url)
		if err != nil {
			log.Printf("embedding: skipping %s: %v", url, err)
			continue
		}
		missURLs = append(missURLs, url)
		missData = append(missData, data)
		missIdx = append(missIdx, i)
	}

	if len(missData) == 0 {
		return result
	}

	embeddings, err := s.client.EmbedImages(ctx, missData)
	if err != nil {
		log.Printf("embedding: batch inference failed for %d images: %v", len(missData), err)
		return result
	}

	for j, vec := range embeddings {
		vec = Normalize(vec)
		s.remember(ctx, missURLs[j], vec, true)
		result[missIdx[j]] = vec
	}
	return result
}

// Flush persists all dirty image embeddings to the store and trims the
// persisted cache to its size bound.
func (s *Service) Flush(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	s.mu.Lock()
	dirty := s.dirty
	s.dirty = nil
	s.writeCount = 0
	s.mu.Unlock()

	if len(dirty) == 0 {
		return nil
	}

	if err := s.store.PutAll(ctx, dirty); err != nil {
		// Put the entries back so the next flush retries them.
		s.mu.Lock()
		s.dirty = append(dirty, s.dirty...)
		s.mu.Unlock()
		return fmt.Errorf("failed to persist embedding cache: %w", err)
	}

	if _, err := s.store.EvictOldest(ctx, s.cfg.ImageCacheSize); err != nil {
		log.Printf("embedding: cache eviction failed: %v", err)
	}
	return nil
}

// CacheStats reports cache occupancy for the stats endpoint.
func (s *Service) CacheStats() (textEntries, imageEntries int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textCache.Len(), len(s.imageCache)
}

// warmLoad populates the in-memory image cache from the store once.
func (s *Service) warmLoad(ctx context.Context) {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warmedStore {
		return
	}
	s.warmedStore = true

	cached, err := s.store.LoadAll(ctx, s.cfg.ImageCacheSize)
	if err != nil {
		log.Printf("embedding: cache warm load failed: %v", err)
		return
	}
	for _, e := range cached {
		if _, ok := s.imageCache[e.URL]; !ok {
			s.imageCache[e.URL] = e.Embedding
			s.imageOrder = append(s.imageOrder, e.URL)
		}
	}
	if len(cached) > 0 {
		log.Printf("embedding: warmed image cache with %d entries", len(cached))
	}
}

func (s *Service) lookupStore(ctx context.Context, url string) []float32 {
	if s.store == nil {
		return nil
	}
	vec, err := s.store.Get(ctx, url)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("embedding: cache lookup failed for %s: %v", url, err)
		}
		return nil
	}
	return vec
}

// remember inserts an embedding into the in-memory cache, evicting the
// oldest entry beyond the size bound. Newly computed embeddings (dirty)
// are buffered and flushed to the store every FlushEveryWrites inserts.
func (s *Service) remember(ctx context.Context, url string, vec []float32, isNew bool) {
	s.mu.Lock()
	if _, ok := s.imageCache[url]; !ok {
		s.imageCache[url] = vec
		s.imageOrder = append(s.imageOrder, url)
		for len(s.imageOrder) > s.cfg.ImageCacheSize {
			oldest := s.imageOrder[0]
			s.imageOrder = s.imageOrder[1:]
			delete(s.imageCache, oldest)
		}
	}

	var flush bool
	if isNew && s.store != nil {
		s.dirty = append(s.dirty, storage.CachedEmbedding{URL: url, Embedding: vec})
		s.writeCount++
		flush = s.writeCount >= s.cfg.FlushEveryWrites
	}
	s.mu.Unlock()

	if flush {
		if err := s.Flush(ctx); err != nil {
			log.Printf("embedding: %v", err)
		}
	}
}
