package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ragline/internal/pdfutil"
)

// Config holds all configuration for the application.
type Config struct {
	// Parsing backend (unstructured-style API).
	IngestAPIURL string
	IngestAPIKey string

	// Embedding providers.
	OpenAIBaseURL string
	OpenAIAPIKey  string
	VoyageBaseURL string
	VoyageAPIKey  string

	// Pipeline behavior.
	PagesPerSection int
	RetryAttempts   int
	RetryBackoff    time.Duration
	WorkerPoolSize  int

	// Storage.
	DataDir   string
	QdrantURL string

	// Server and logging.
	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config
// struct. It applies defaults for optional fields and validates required
// fields. If a .env file exists in the current directory or project root, it
// will be loaded automatically. Environment variables already set take
// precedence over .env file values.
func Load() (*Config, error) {
	_ = godotenv.Load() // Try current directory

	// Try to find project root by looking for a .env next to go.mod.
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		IngestAPIURL:  getEnv("INGEST_API_URL", ""),
		IngestAPIKey:  getEnv("INGEST_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		VoyageBaseURL: getEnv("VOYAGE_BASE_URL", ""),
		VoyageAPIKey:  getEnv("VOYAGE_API_KEY", ""),
		DataDir:       getEnv("DATA_DIR", "./data"),
		QdrantURL:     getEnv("QDRANT_URL", "http://localhost:6333"),
		APIPort:       getEnv("API_PORT", "9000"),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	cfg.PagesPerSection, err = getEnvInt("PDF_PAGES_PER_SECTION", pdfutil.DefaultPagesPerSection)
	if err != nil {
		return nil, err
	}
	if cfg.PagesPerSection < 1 {
		return nil, fmt.Errorf("PDF_PAGES_PER_SECTION must be greater than 0")
	}

	cfg.RetryAttempts, err = getEnvInt("ACTIVITY_RETRY_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	if cfg.RetryAttempts < 1 {
		return nil, fmt.Errorf("ACTIVITY_RETRY_ATTEMPTS must be greater than 0")
	}

	backoffSeconds, err := getEnvInt("ACTIVITY_RETRY_BACKOFF_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	if backoffSeconds < 0 {
		return nil, fmt.Errorf("ACTIVITY_RETRY_BACKOFF_SECONDS must not be negative")
	}
	cfg.RetryBackoff = time.Duration(backoffSeconds) * time.Second

	cfg.WorkerPoolSize, err = getEnvInt("WORKER_POOL_SIZE", 0)
	if err != nil {
		return nil, err
	}

	switch level := strings.ToLower(getEnv("LOG_LEVEL", "info")); level {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// BlobDBPath is the badger directory holding blobs and workflow state.
func (c *Config) BlobDBPath() string {
	return filepath.Join(c.DataDir, "ragline")
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}
