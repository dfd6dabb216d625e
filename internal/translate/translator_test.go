package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeBackend struct {
	result string
	err    error
	calls  int
}

func (b *fakeBackend) Translate(ctx context.Context, text, source, target string) (string, error) {
	b.calls++
	return b.result, b.err
}

// TestDisabledReturnsInputUnchanged covers the pass-through contract: with
// translation disabled the input text comes back untouched and no backend
// is consulted.
func TestDisabledReturnsInputUnchanged(t *testing.T) {
	backend := &fakeBackend{result: "ocean"}
	s := NewService(Config{Enabled: false}, backend)

	got := s.TranslateForImageSearch(context.Background(), "океан", "ru", "nature")
	if got != "океан" {
		t.Errorf("got %q, want input unchanged", got)
	}
	if backend.calls != 0 {
		t.Errorf("backend calls = %d, want 0 when disabled", backend.calls)
	}
}

func TestNilBackendPassesThrough(t *testing.T) {
	s := NewService(Config{Enabled: true}, nil)

	if got := s.TranslateForImageSearch(context.Background(), "океан", "ru", ""); got != "океан" {
		t.Errorf("got %q, want input unchanged with nil backend", got)
	}
}

func TestSourceMatchesTargetSkipsBackend(t *testing.T) {
	backend := &fakeBackend{result: "should not be used"}
	s := NewService(Config{Enabled: true, TargetLanguage: "en"}, backend)

	if got := s.TranslateForImageSearch(context.Background(), "ocean", "en", ""); got != "ocean" {
		t.Errorf("got %q, want input unchanged for same-language text", got)
	}
	if backend.calls != 0 {
		t.Errorf("backend calls = %d, want 0", backend.calls)
	}
}

func TestTranslateSanitizesResult(t *testing.T) {
	backend := &fakeBackend{result: "  ocean,  waves!! 123 "}
	s := NewService(Config{Enabled: true}, backend)

	got := s.TranslateForImageSearch(context.Background(), "океан волны", "ru", "")
	if got != "ocean waves" {
		t.Errorf("got %q, want %q", got, "ocean waves")
	}
}

func TestTranslateFailureFallsBackToOriginal(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	s := NewService(Config{Enabled: true}, backend)

	if got := s.TranslateForImageSearch(context.Background(), "океан", "ru", ""); got != "океан" {
		t.Errorf("got %q, want original text on backend failure", got)
	}
}

func TestEmptyTranslationFallsBackToOriginal(t *testing.T) {
	// A result of only digits sanitizes to nothing.
	backend := &fakeBackend{result: "12345"}
	s := NewService(Config{Enabled: true}, backend)

	if got := s.TranslateForImageSearch(context.Background(), "океан", "ru", ""); got != "океан" {
		t.Errorf("got %q, want original when sanitized translation is empty", got)
	}
}

func TestTranslationIsCached(t *testing.T) {
	backend := &fakeBackend{result: "ocean"}
	s := NewService(Config{Enabled: true}, backend)

	ctx := context.Background()
	first := s.TranslateForImageSearch(ctx, "океан", "ru", "nature")
	second := s.TranslateForImageSearch(ctx, "океан", "ru", "nature")

	if first != "ocean" || second != "ocean" {
		t.Fatalf("got %q, %q, want both %q", first, second, "ocean")
	}
	if backend.calls != 1 {
		t.Errorf("backend calls = %d, want 1 (second lookup served from cache)", backend.calls)
	}
	if got := s.CacheSize(); got != 1 {
		t.Errorf("CacheSize = %d, want 1", got)
	}
}

func TestCacheIsScopedByContext(t *testing.T) {
	backend := &fakeBackend{result: "ocean"}
	s := NewService(Config{Enabled: true}, backend)

	ctx := context.Background()
	s.TranslateForImageSearch(ctx, "океан", "ru", "nature")
	s.TranslateForImageSearch(ctx, "океан", "ru", "travel")

	if backend.calls != 2 {
		t.Errorf("backend calls = %d, want 2 (different contexts cache separately)", backend.calls)
	}
}

func TestLibreTranslateClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/translate":
			if r.Method != http.MethodPost {
				t.Errorf("method = %s, want POST", r.Method)
			}
			fmt.Fprint(w, `{"translatedText":"ocean"}`)
		case "/languages":
			fmt.Fprint(w, `[{"code":"en"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewLibreTranslateClient(LibreTranslateConfig{BaseURL: srv.URL})

	got, err := client.Translate(context.Background(), "океан", "ru", "en")
	if err != nil {
		t.Fatalf("Translate() failed: %v", err)
	}
	if got != "ocean" {
		t.Errorf("got %q, want %q", got, "ocean")
	}
	if !client.Available(context.Background()) {
		t.Error("Available() = false for a healthy instance")
	}
}

func TestLibreTranslateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewLibreTranslateClient(LibreTranslateConfig{BaseURL: srv.URL})

	if _, err := client.Translate(context.Background(), "x", "ru", "en"); err == nil {
		t.Error("Translate should fail on status 500")
	}
}

func TestExternalClientSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"translatedText":"ocean"}`)
	}))
	defer srv.Close()

	client := NewExternalClient(ExternalConfig{Endpoint: srv.URL, APIKey: "secret"})

	got, err := client.Translate(context.Background(), "океан", "ru", "en")
	if err != nil {
		t.Fatalf("Translate() failed: %v", err)
	}
	if got != "ocean" {
		t.Errorf("got %q, want %q", got, "ocean")
	}
}
