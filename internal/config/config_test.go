package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != 6464 {
		t.Errorf("Server.Port: got %d, want 6464", cfg.Server.Port)
	}
	if cfg.Storage.StorageEngine != "sqlite" {
		t.Errorf("Storage.StorageEngine: got %q, want %q", cfg.Storage.StorageEngine, "sqlite")
	}
	if cfg.Providers.Mode != "mixed" {
		t.Errorf("Providers.Mode: got %q, want %q", cfg.Providers.Mode, "mixed")
	}
	if cfg.Providers.MaxCandidates != 20 {
		t.Errorf("Providers.MaxCandidates: got %d, want 20", cfg.Providers.MaxCandidates)
	}
	if cfg.Providers.MinCandidates != 8 {
		t.Errorf("Providers.MinCandidates: got %d, want 8", cfg.Providers.MinCandidates)
	}
	if cfg.Providers.DownloadMaxBytes != 10*1024*1024 {
		t.Errorf("Providers.DownloadMaxBytes: got %d, want %d", cfg.Providers.DownloadMaxBytes, 10*1024*1024)
	}
	if cfg.Translate.Enabled {
		t.Error("Translate.Enabled: got true, want false")
	}
	if cfg.Translate.Provider != "none" {
		t.Errorf("Translate.Provider: got %q, want %q", cfg.Translate.Provider, "none")
	}
	if cfg.Embedding.SimilarityThreshold != 0.25 {
		t.Errorf("Embedding.SimilarityThreshold: got %v, want 0.25", cfg.Embedding.SimilarityThreshold)
	}
	if cfg.Embedding.FlushEveryWrites != 10 {
		t.Errorf("Embedding.FlushEveryWrites: got %d, want 10", cfg.Embedding.FlushEveryWrites)
	}
	if cfg.Selection.HistoryKeep != 100 {
		t.Errorf("Selection.HistoryKeep: got %d, want 100", cfg.Selection.HistoryKeep)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PICTOR_PORT", "7001")
	t.Setenv("PICTOR_PROVIDER_MODE", "pexels")
	t.Setenv("PICTOR_STRICT_GATE", "true")
	t.Setenv("PICTOR_SIMILARITY_THRESHOLD", "0.30")
	t.Setenv("PICTOR_EMBEDDING_DISABLED", "yes")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != 7001 {
		t.Errorf("Server.Port: got %d, want 7001", cfg.Server.Port)
	}
	if cfg.Providers.Mode != "pexels" {
		t.Errorf("Providers.Mode: got %q, want %q", cfg.Providers.Mode, "pexels")
	}
	if !cfg.Selection.StrictGate {
		t.Error("Selection.StrictGate: got false, want true")
	}
	if cfg.Embedding.SimilarityThreshold != 0.30 {
		t.Errorf("Embedding.SimilarityThreshold: got %v, want 0.30", cfg.Embedding.SimilarityThreshold)
	}
	if !cfg.Embedding.Disabled {
		t.Error("Embedding.Disabled: got false, want true")
	}
}

func TestLoadConfigInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("PICTOR_PORT", "not-a-number")
	t.Setenv("PICTOR_STRICT_GATE", "maybe")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != 6464 {
		t.Errorf("Server.Port: got %d, want default 6464", cfg.Server.Port)
	}
	if cfg.Selection.StrictGate {
		t.Error("Selection.StrictGate: got true, want default false")
	}
}

func TestYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pictor.yaml")

	content := []byte(`
providers:
  mode: unsplash
  max_candidates: 12
embedding:
  similarity_threshold: 0.4
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("PICTOR_CONFIG_FILE", path)
	t.Setenv("PICTOR_PEXELS_API_KEY", "env-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	// File overrides env/defaults.
	if cfg.Providers.Mode != "unsplash" {
		t.Errorf("Providers.Mode: got %q, want %q", cfg.Providers.Mode, "unsplash")
	}
	if cfg.Providers.MaxCandidates != 12 {
		t.Errorf("Providers.MaxCandidates: got %d, want 12", cfg.Providers.MaxCandidates)
	}
	if cfg.Embedding.SimilarityThreshold != 0.4 {
		t.Errorf("Embedding.SimilarityThreshold: got %v, want 0.4", cfg.Embedding.SimilarityThreshold)
	}

	// Keys absent from the file keep their env values.
	if cfg.Providers.PexelsAPIKey != "env-key" {
		t.Errorf("Providers.PexelsAPIKey: got %q, want %q", cfg.Providers.PexelsAPIKey, "env-key")
	}
}

func TestYAMLOverlayMissingFile(t *testing.T) {
	t.Setenv("PICTOR_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() with missing config file: got nil error, want error")
	}
}
