// Package config provides environment-driven configuration for cobuy.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// History backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all application configuration values.
type Config struct {
	DatabaseURL    Secret
	Port           string
	ListenHost     string
	MetricsPort    string
	CORSOrigins    []string
	LogLevel       string
	DBMaxConns     int
	HistoryBackend string
	SQLitePath     string
	ArtifactDir    string
	ListenSales    bool

	EmbeddingDim   int
	TrainEpochs    int
	TrainBatchSize int
	LearningRate   float64
	NegativeRatio  float64
	MaxSamples     int
	TrainTimeout   time.Duration
	TrainWorkers   int
	TrainQueueSize int
	TrainSeed      uint64
	RecommendTopN  int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    Secret(envOrDefault("DATABASE_URL", "")),
		Port:           envOrDefault("PORT", "3040"),
		ListenHost:     envOrDefault("LISTEN_HOST", "127.0.0.1"),
		MetricsPort:    envOrDefault("METRICS_PORT", "9092"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		HistoryBackend: envOrDefault("HISTORY_BACKEND", BackendPostgres),
		SQLitePath:     envOrDefault("SQLITE_PATH", "cobuy.db"),
		ArtifactDir:    envOrDefault("ARTIFACT_DIR", "data/models"),
		ListenSales:    envOrDefault("LISTEN_SALES", "true") == "true",
	}

	ints := []struct {
		key      string
		fallback string
		lo, hi   int
		dst      *int
	}{
		{"DB_MAX_CONNS", "10", 2, 200, &cfg.DBMaxConns},
		{"EMBEDDING_DIM", "64", 1, 1024, &cfg.EmbeddingDim},
		{"TRAIN_EPOCHS", "3", 1, 100, &cfg.TrainEpochs},
		{"TRAIN_BATCH_SIZE", "32", 1, 4096, &cfg.TrainBatchSize},
		{"MAX_SAMPLES", "1000", 1, 1_000_000, &cfg.MaxSamples},
		{"TRAIN_WORKERS", "2", 1, 16, &cfg.TrainWorkers},
		{"TRAIN_QUEUE_SIZE", "256", 1, 100_000, &cfg.TrainQueueSize},
		{"RECOMMEND_TOP_N", "2", 1, 20, &cfg.RecommendTopN},
	}
	for _, field := range ints {
		v, err := strconv.Atoi(envOrDefault(field.key, field.fallback))
		if err != nil || v < field.lo || v > field.hi {
			return nil, fmt.Errorf("%s must be an integer between %d and %d", field.key, field.lo, field.hi)
		}
		*field.dst = v
	}

	var err error
	if cfg.LearningRate, err = strconv.ParseFloat(envOrDefault("LEARNING_RATE", "0.01"), 64); err != nil {
		return nil, fmt.Errorf("LEARNING_RATE must be a number: %w", err)
	}
	if cfg.NegativeRatio, err = strconv.ParseFloat(envOrDefault("NEGATIVE_RATIO", "0.5"), 64); err != nil {
		return nil, fmt.Errorf("NEGATIVE_RATIO must be a number: %w", err)
	}
	if cfg.TrainTimeout, err = time.ParseDuration(envOrDefault("TRAIN_TIMEOUT", "60s")); err != nil {
		return nil, fmt.Errorf("TRAIN_TIMEOUT must be a duration: %w", err)
	}
	if cfg.TrainSeed, err = strconv.ParseUint(envOrDefault("TRAIN_SEED", "0"), 10, 64); err != nil {
		return nil, fmt.Errorf("TRAIN_SEED must be a non-negative integer: %w", err)
	}

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3000")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MetricsAddr returns the metrics listener address in host:port format.
func (c *Config) MetricsAddr() string {
	return c.ListenHost + ":" + c.MetricsPort
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
