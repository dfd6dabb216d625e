// Command pictor-prune trims per-user used-image history to the retention
// cap and compacts the persisted embedding cache. Intended to run from
// cron against the same database as pictor-web.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/scrypster/pictor/internal/config"
	"github.com/scrypster/pictor/internal/storage"
	"github.com/scrypster/pictor/internal/storage/postgres"
	"github.com/scrypster/pictor/internal/storage/sqlite"
)

// maintenanceStore is the persistence surface the pruner needs.
type maintenanceStore interface {
	storage.UsedImageStore
	storage.EmbeddingCacheStore
	Users(ctx context.Context) ([]string, error)
}

func main() {
	user := flag.String("user", "", "Prune only this user's history (default: all users)")
	keep := flag.Int("keep", 0, "Used-image records to keep per user (default: from config)")
	cacheCap := flag.Int("cache-cap", 0, "Embedding cache entry cap (default: from config)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *keep <= 0 {
		*keep = cfg.Selection.HistoryKeep
	}
	if *cacheCap <= 0 {
		*cacheCap = cfg.Embedding.ImageCacheSize
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	users := []string{*user}
	if *user == "" {
		users, err = store.Users(ctx)
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
	}

	var totalDeleted int
	for _, u := range users {
		deleted, err := store.Cleanup(ctx, u, *keep)
		if err != nil {
			log.Printf("Cleanup failed for user %s: %v", u, err)
			continue
		}
		totalDeleted += deleted
	}
	log.Printf("Pruned %d used-image records across %d users (keep %d)", totalDeleted, len(users), *keep)

	evicted, err := store.EvictOldest(ctx, *cacheCap)
	if err != nil {
		log.Fatalf("Embedding cache compaction failed: %v", err)
	}
	log.Printf("Evicted %d embedding cache entries (cap %d)", evicted, *cacheCap)
}

// openStore opens the configured storage engine.
func openStore(cfg *config.Config) (maintenanceStore, error) {
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
