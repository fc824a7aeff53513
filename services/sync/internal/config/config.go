package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultRequestTimeout = 5 * time.Minute
	defaultRetryDelay     = 30 * time.Second
	defaultMaxProcPixels  = 25000
)

// Config holds runtime configuration for the sync service.
type Config struct {
	DatabaseURL    string
	ProviderURL    string
	DataDir        string
	RequestTimeout time.Duration
	RetryDelay     time.Duration
	MaxProcPixels  int
	DryRun         bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.ProviderURL = strings.TrimSpace(os.Getenv("PROVIDER_URL"))
	if cfg.ProviderURL == "" {
		return cfg, errors.New("PROVIDER_URL is required")
	}

	cfg.DataDir = strings.TrimSpace(os.Getenv("SYNC_DATA_DIR"))
	if cfg.DataDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return cfg, err
		}
		cfg.DataDir = wd
	}

	cfg.RequestTimeout = defaultRequestTimeout
	if v := strings.TrimSpace(os.Getenv("SYNC_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SYNC_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	cfg.RetryDelay = defaultRetryDelay
	if v := strings.TrimSpace(os.Getenv("SYNC_RETRY_DELAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SYNC_RETRY_DELAY: %w", err)
		}
		cfg.RetryDelay = d
	}

	cfg.MaxProcPixels = defaultMaxProcPixels
	if v := strings.TrimSpace(os.Getenv("SYNC_MAX_PROC_PIXELS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid SYNC_MAX_PROC_PIXELS: %q", v)
		}
		cfg.MaxProcPixels = n
	}

	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	return cfg, nil
}
