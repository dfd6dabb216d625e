// Package server provides HTTP server initialization and lifecycle
// management for the Pictor service.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/pictor/internal/config"
	"github.com/scrypster/pictor/internal/embedding"
	"github.com/scrypster/pictor/internal/engine"
	"github.com/scrypster/pictor/internal/matcher"
	"github.com/scrypster/pictor/internal/providers"
	"github.com/scrypster/pictor/internal/storage"
	"github.com/scrypster/pictor/internal/translate"
	"github.com/scrypster/pictor/pkg/types"
	"github.com/scrypster/pictor/web/handlers"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start builds the selection pipeline and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with
// port 0) and the progress hub for broadcasting selection events.
func Start(ctx context.Context, cfg *config.Config, usedStore storage.UsedImageStore, embeddingCache storage.EmbeddingCacheStore) (string, *handlers.ProgressHub, error) {
	fetcher := buildFetcher(cfg)
	downloader := providers.NewDownloader(providers.DownloaderConfig{
		MaxBytes: cfg.Providers.DownloadMaxBytes,
		Timeout:  cfg.ProviderTimeout(),
	})

	translator := buildTranslator(cfg)

	embeddingService, err := buildEmbeddingService(cfg, downloader, embeddingCache)
	if err != nil {
		return "", nil, fmt.Errorf("failed to build embedding service: %w", err)
	}

	mode := types.ModeFromFlags(cfg.Selection.UsePrompt, cfg.Selection.StrictGate)
	log.Printf("server: selection mode %s", mode)

	selector := engine.NewSelector(
		engine.SelectorConfig{
			Mode:          mode,
			Threshold:     cfg.Embedding.SimilarityThreshold,
			MaxCandidates: cfg.Providers.MaxCandidates,
			MinCandidates: cfg.Providers.MinCandidates,
			HistoryKeep:   cfg.Selection.HistoryKeep,
		},
		engine.NewQueryBuilder(translator),
		fetcher,
		providers.NewCuratedPool(),
		downloader,
		matcher.New(embeddingService),
		embeddingService,
		embeddingService,
		usedStore,
	)

	hub := handlers.NewProgressHub()
	go hub.Run()

	selectHandler := handlers.NewSelectHandler(selector, hub)
	healthHandler := handlers.NewHealthHandler(Version, embeddingService, translator, fetcher)

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/v1/presentations/select", selectHandler.Select)
	apiMux.HandleFunc("/api/v1/stats", healthHandler.Stats)

	mux := http.NewServeMux()
	// Health endpoint has no auth, it is used by monitoring.
	mux.HandleFunc("/api/v1/health", healthHandler.Health)
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))
	mux.Handle("/ws/progress", hub)

	rateLimiter := handlers.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst)
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // selection runs download many images
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		hub.Stop()

		// Persist any dirty embeddings before the process exits.
		if err := embeddingService.Flush(context.Background()); err != nil {
			log.Printf("Embedding cache flush on shutdown failed: %v", err)
		}
	}()

	return actualAddr, hub, nil
}

// buildFetcher wires the provider clients. Providers without credentials
// are skipped entirely.
func buildFetcher(cfg *config.Config) *providers.Fetcher {
	var pexels, unsplash providers.SearchProvider
	if cfg.Providers.PexelsAPIKey != "" {
		pexels = providers.NewPexelsClient(providers.PexelsConfig{
			APIKey:  cfg.Providers.PexelsAPIKey,
			Timeout: cfg.ProviderTimeout(),
		})
	} else {
		log.Printf("server: no Pexels API key, provider disabled")
	}
	if cfg.Providers.UnsplashAPIKey != "" {
		unsplash = providers.NewUnsplashClient(providers.UnsplashConfig{
			AccessKey: cfg.Providers.UnsplashAPIKey,
			Timeout:   cfg.ProviderTimeout(),
		})
	} else {
		log.Printf("server: no Unsplash access key, provider disabled")
	}

	return providers.NewFetcher(
		providers.FetcherConfig{
			Mode:    cfg.Providers.Mode,
			Retries: cfg.Providers.Retries,
		},
		providers.NewWindow(cfg.Providers.CallsPerMinute),
		pexels,
		unsplash,
	)
}

// buildTranslator wires the configured translation backend.
func buildTranslator(cfg *config.Config) *translate.Service {
	var backend translate.Backend
	switch cfg.Translate.Provider {
	case "libretranslate":
		backend = translate.NewLibreTranslateClient(translate.LibreTranslateConfig{
			BaseURL: cfg.Translate.LibreTranslateURL,
			Timeout: cfg.TranslateTimeout(),
		})
	case "external":
		backend = translate.NewExternalClient(translate.ExternalConfig{
			Endpoint: cfg.Translate.ExternalURL,
			APIKey:   cfg.Translate.ExternalAPIKey,
			Timeout:  cfg.TranslateTimeout(),
		})
	}

	return translate.NewService(translate.Config{
		Enabled:        cfg.Translate.Enabled,
		TargetLanguage: cfg.Translate.TargetLanguage,
	}, backend)
}

// buildEmbeddingService wires the CLIP sidecar client and caches.
func buildEmbeddingService(cfg *config.Config, downloader *providers.Downloader, cache storage.EmbeddingCacheStore) (*embedding.Service, error) {
	client := embedding.NewSidecarClient(embedding.SidecarConfig{
		BaseURL: cfg.Embedding.SidecarURL,
		Timeout: cfg.EmbeddingTimeout(),
	})

	return embedding.NewService(embedding.ServiceConfig{
		Disabled:         cfg.Embedding.Disabled,
		TextCacheSize:    cfg.Embedding.TextCacheSize,
		ImageCacheSize:   cfg.Embedding.ImageCacheSize,
		FlushEveryWrites: cfg.Embedding.FlushEveryWrites,
	}, client, downloader, cache)
}
