// Command pictor-web runs the Pictor image selection service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scrypster/pictor/internal/config"
	"github.com/scrypster/pictor/internal/server"
	"github.com/scrypster/pictor/internal/storage"
	"github.com/scrypster/pictor/internal/storage/postgres"
	"github.com/scrypster/pictor/internal/storage/sqlite"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, _, err := server.Start(ctx, cfg, store, store)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Pictor running at http://%s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	time.Sleep(1 * time.Second) // Give time for connections to close
}

// combinedStore is the full persistence surface one engine provides.
type combinedStore interface {
	storage.UsedImageStore
	storage.EmbeddingCacheStore
}

// openStore opens the configured storage engine.
func openStore(cfg *config.Config) (combinedStore, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		return postgres.Open(cfg.Storage.PostgresDSN)
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, err
		}
		return sqlite.Open(cfg.Storage.DataPath + "/pictor.db")
	}
}
