// Package translate routes image-search queries through an optional
// translation backend (a self-hosted LibreTranslate instance or a generic
// external API). Translation is strictly best-effort: any failure yields
// the original text, and successful translations are cached for the life
// of the process.
package translate

import (
	"context"
	"log"
	"regexp"
	"strings"
	"sync"
)

// Backend is one translation transport.
type Backend interface {
	// Translate converts text from source to target language.
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Config holds the translation layer configuration.
type Config struct {
	// Enabled is the master switch; when false no backend is consulted.
	Enabled bool

	// TargetLanguage is the language queries are translated into
	// (default: en).
	TargetLanguage string
}

// Service is the translation layer. A nil backend behaves like the
// "none" provider: text passes through unchanged.
type Service struct {
	cfg     Config
	backend Backend

	mu    sync.Mutex
	cache map[string]string
}

// NewService creates a translation service over the given backend.
// Pass a nil backend for the "none" provider.
func NewService(cfg Config, backend Backend) *Service {
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = "en"
	}
	return &Service{
		cfg:     cfg,
		backend: backend,
		cache:   make(map[string]string),
	}
}

var nonLetterRe = regexp.MustCompile(`[^a-zA-Z\s]`)

// TranslateForImageSearch translates text into the target language for use
// as a provider search query. The original text is returned unchanged when
// translation is disabled, no backend is configured, the source language
// already matches the target, or the backend fails in any way.
//
// cacheContext scopes the cache key (typically the presentation topic) so
// the same keyword translated under different topics is cached separately.
func (s *Service) TranslateForImageSearch(ctx context.Context, text, sourceLang, cacheContext string) string {
	if text == "" {
		return text
	}
	if !s.cfg.Enabled || s.backend == nil {
		return text
	}
	if sourceLang == s.cfg.TargetLanguage {
		return text
	}

	key := strings.ToLower(cacheContext + "|" + text)

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	translated, err := s.backend.Translate(ctx, text, sourceLang, s.cfg.TargetLanguage)
	if err != nil {
		log.Printf("translate: falling back to original text for %q: %v", text, err)
		return text
	}

	translated = sanitize(translated)
	if translated == "" {
		log.Printf("translate: empty translation for %q, using original", text)
		return text
	}

	s.mu.Lock()
	s.cache[key] = translated
	s.mu.Unlock()

	log.Printf("translate: %q -> %q", text, translated)
	return translated
}

// sanitize strips non-letter characters from a translation and collapses
// whitespace, matching what providers expect from a search query.
func sanitize(text string) string {
	text = nonLetterRe.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// CacheSize returns the number of cached translations (for the stats
// endpoint).
func (s *Service) CacheSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
