// Package config provides configuration management for Pictor.
// It loads settings from environment variables with the PICTOR_ prefix
// and provides sensible defaults for all configuration options.
//
// An optional YAML file (PICTOR_CONFIG_FILE) may override any section;
// environment variables are applied first, then the file overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Pictor service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Providers ProvidersConfig `yaml:"providers"`
	Translate TranslateConfig `yaml:"translate"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Selection SelectionConfig `yaml:"selection"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 6464)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)

	// SecurityMode: development or production (default: development).
	// Production requires a bearer token on every API call.
	SecurityMode string `yaml:"security_mode"`
	APIToken     string `yaml:"api_token"`

	// RateLimitPerSec / RateLimitBurst configure the request-rate
	// middleware (defaults: 10 req/s, burst 20).
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string `yaml:"storage_engine"` // sqlite or postgres (default: sqlite)
	DataPath      string `yaml:"data_path"`      // SQLite data directory (default: ./data)
	PostgresDSN   string `yaml:"postgres_dsn"`   // DSN when storage_engine is postgres
}

// ProvidersConfig contains stock-photo provider configuration.
type ProvidersConfig struct {
	// Mode selects the provider strategy: pexels, unsplash, or mixed
	// (default: mixed). Mixed tries Pexels first and falls back to
	// Unsplash only when Pexels returns nothing.
	Mode string `yaml:"mode"`

	PexelsAPIKey     string `yaml:"pexels_api_key"`
	UnsplashAPIKey   string `yaml:"unsplash_api_key"`
	CallsPerMinute   int    `yaml:"calls_per_minute"`   // Per-provider budget (default: 50)
	MaxCandidates    int    `yaml:"max_candidates"`     // Candidates requested per search (default: 20)
	MinCandidates    int    `yaml:"min_candidates"`     // Floor below which semantic ranking is skipped (default: 8)
	Retries          int    `yaml:"retries"`            // Retries on HTTP 429 (default: 2)
	TimeoutSeconds   int    `yaml:"timeout_seconds"`    // Per-call timeout (default: 10)
	DownloadMaxBytes int64  `yaml:"download_max_bytes"` // Image download cap (default: 10 MiB)
}

// TranslateConfig contains query translation configuration.
type TranslateConfig struct {
	Enabled bool `yaml:"enabled"` // Master switch (default: false)

	// Provider: none, libretranslate, or external (default: none).
	Provider string `yaml:"provider"`

	// LibreTranslateURL is the base URL of a self-hosted LibreTranslate
	// instance (default: http://localhost:5001).
	LibreTranslateURL string `yaml:"libretranslate_url"`

	// ExternalURL / ExternalAPIKey configure the generic external
	// translation API backend.
	ExternalURL    string `yaml:"external_url"`
	ExternalAPIKey string `yaml:"external_api_key"`

	TargetLanguage string `yaml:"target_language"` // default: en
	TimeoutSeconds int    `yaml:"timeout_seconds"` // default: 10
}

// EmbeddingConfig contains CLIP sidecar and cache configuration.
type EmbeddingConfig struct {
	// Disabled is the hard kill-switch for low-resource deployments:
	// when true the service reports unavailable without probing the
	// sidecar, and every pipeline degrades to keyword search.
	Disabled bool `yaml:"disabled"`

	// SidecarURL is the base URL of the CLIP inference sidecar
	// (default: http://localhost:8191).
	SidecarURL string `yaml:"sidecar_url"`

	SimilarityThreshold float64 `yaml:"similarity_threshold"` // Strict-gate threshold (default: 0.25)
	TextCacheSize       int     `yaml:"text_cache_size"`      // Text-embedding LRU entries (default: 1000)
	ImageCacheSize      int     `yaml:"image_cache_size"`     // Image-embedding cache entries (default: 500)
	FlushEveryWrites    int     `yaml:"flush_every_writes"`   // Persist dirty image embeddings every N writes (default: 10)
	TimeoutSeconds      int     `yaml:"timeout_seconds"`      // Sidecar call timeout (default: 10)
}

// SelectionConfig contains pipeline mode and retention configuration.
type SelectionConfig struct {
	// UsePrompt prefers the LLM image prompt over the short keyword
	// (advanced pipeline). Default: false.
	UsePrompt bool `yaml:"use_prompt"`

	// StrictGate rejects top candidates scoring below the similarity
	// threshold. Default: false.
	StrictGate bool `yaml:"strict_gate"`

	// HistoryKeep is the per-user used-image retention cap (default: 100).
	HistoryKeep int `yaml:"history_keep"`
}

// LoadConfig loads configuration from environment variables with sensible
// defaults, then applies the optional YAML overlay from PICTOR_CONFIG_FILE.
func LoadConfig() (*Config, error) {
	cfg := buildBaseConfig()

	if path := os.Getenv("PICTOR_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyFile overlays settings from a YAML file onto the config.
// Zero values in the file leave the corresponding setting untouched only
// for scalar sections loaded wholesale; the overlay decodes directly into
// the existing struct so absent keys keep their env/default values.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return nil
}

// ProviderTimeout returns the provider call timeout as a duration.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.TimeoutSeconds) * time.Second
}

// TranslateTimeout returns the translation call timeout as a duration.
func (c *Config) TranslateTimeout() time.Duration {
	return time.Duration(c.Translate.TimeoutSeconds) * time.Second
}

// EmbeddingTimeout returns the sidecar call timeout as a duration.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSeconds) * time.Second
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults.
func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvInt("PICTOR_PORT", 6464),
			Host:            getEnv("PICTOR_HOST", "127.0.0.1"),
			SecurityMode:    getEnv("PICTOR_SECURITY_MODE", "development"),
			APIToken:        getEnv("PICTOR_API_TOKEN", ""),
			RateLimitPerSec: getEnvFloat("PICTOR_RATE_LIMIT_PER_SEC", 10.0),
			RateLimitBurst:  getEnvInt("PICTOR_RATE_LIMIT_BURST", 20),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("PICTOR_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("PICTOR_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("PICTOR_POSTGRES_DSN", ""),
		},
		Providers: ProvidersConfig{
			Mode:             getEnv("PICTOR_PROVIDER_MODE", "mixed"),
			PexelsAPIKey:     getEnv("PICTOR_PEXELS_API_KEY", ""),
			UnsplashAPIKey:   getEnv("PICTOR_UNSPLASH_API_KEY", ""),
			CallsPerMinute:   getEnvInt("PICTOR_PROVIDER_CALLS_PER_MINUTE", 50),
			MaxCandidates:    getEnvInt("PICTOR_MAX_CANDIDATES", 20),
			MinCandidates:    getEnvInt("PICTOR_MIN_CANDIDATES", 8),
			Retries:          getEnvInt("PICTOR_PROVIDER_RETRIES", 2),
			TimeoutSeconds:   getEnvInt("PICTOR_PROVIDER_TIMEOUT_SECONDS", 10),
			DownloadMaxBytes: int64(getEnvInt("PICTOR_DOWNLOAD_MAX_BYTES", 10*1024*1024)),
		},
		Translate: TranslateConfig{
			Enabled:           getEnvBool("PICTOR_TRANSLATE_ENABLED", false),
			Provider:          getEnv("PICTOR_TRANSLATE_PROVIDER", "none"),
			LibreTranslateURL: getEnv("PICTOR_LIBRETRANSLATE_URL", "http://localhost:5001"),
			ExternalURL:       getEnv("PICTOR_TRANSLATE_EXTERNAL_URL", ""),
			ExternalAPIKey:    getEnv("PICTOR_TRANSLATE_EXTERNAL_API_KEY", ""),
			TargetLanguage:    getEnv("PICTOR_TRANSLATE_TARGET_LANGUAGE", "en"),
			TimeoutSeconds:    getEnvInt("PICTOR_TRANSLATE_TIMEOUT_SECONDS", 10),
		},
		Embedding: EmbeddingConfig{
			Disabled:            getEnvBool("PICTOR_EMBEDDING_DISABLED", false),
			SidecarURL:          getEnv("PICTOR_EMBEDDING_SIDECAR_URL", "http://localhost:8191"),
			SimilarityThreshold: getEnvFloat("PICTOR_SIMILARITY_THRESHOLD", 0.25),
			TextCacheSize:       getEnvInt("PICTOR_TEXT_CACHE_SIZE", 1000),
			ImageCacheSize:      getEnvInt("PICTOR_IMAGE_CACHE_SIZE", 500),
			FlushEveryWrites:    getEnvInt("PICTOR_FLUSH_EVERY_WRITES", 10),
			TimeoutSeconds:      getEnvInt("PICTOR_EMBEDDING_TIMEOUT_SECONDS", 10),
		},
		Selection: SelectionConfig{
			UsePrompt:   getEnvBool("PICTOR_USE_PROMPT", false),
			StrictGate:  getEnvBool("PICTOR_STRICT_GATE", false),
			HistoryKeep: getEnvInt("PICTOR_HISTORY_KEEP", 100),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
