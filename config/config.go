// Package config loads service configuration from the environment.
//
// Every value has a sensible development default; environment variables
// override them one by one. Load validates the assembled configuration with
// struct tags before the process wires anything up.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds every setting the service consumes.
type Config struct {
	ListenAddr string `validate:"required"`

	// Redis backs both the rate limiter's counters and the cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"min=0,max=15"`

	// Rate limiting.
	RateLimitEnabled bool
	RateLimitCount   int           `validate:"min=1"`
	RateLimitWindow  time.Duration `validate:"min=1s"`

	// Upload admission control.
	UploadConcurrency    int           `validate:"min=1"`
	UploadAcquireTimeout time.Duration `validate:"min=1ms"`
	MaxUploadBytes       int64         `validate:"min=1"`

	// Cache.
	CacheEnabled   bool
	CacheTTL       time.Duration `validate:"min=1s"`
	CacheKeyPrefix string        `validate:"required"`

	// Storage.
	StorageBackend        string `validate:"oneof=local minio"`
	StoragePath           string
	StorageStartupTimeout time.Duration `validate:"min=1s"`
	MinioEndpoint         string
	MinioAccessKey        string
	MinioSecretKey        string
	MinioBucket           string
	MinioUseSSL           bool

	// Metadata database.
	MetadataDBPath string `validate:"required"`
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		ListenAddr:            ":8080",
		RedisAddr:             "localhost:6379",
		RedisDB:               0,
		RateLimitEnabled:      true,
		RateLimitCount:        60,
		RateLimitWindow:       time.Minute,
		UploadConcurrency:     4,
		UploadAcquireTimeout:  5 * time.Second,
		MaxUploadBytes:        10 << 20,
		CacheEnabled:          true,
		CacheTTL:              5 * time.Minute,
		CacheKeyPrefix:        "snapvault",
		StorageBackend:        "local",
		StoragePath:           "./uploads",
		StorageStartupTimeout: 10 * time.Second,
		MinioBucket:           "snapvault-images",
		MetadataDBPath:        "./data/snapvault.db",
	}
}

// Load builds the configuration from defaults plus environment overrides and
// validates it.
func Load(environ []string) (Config, error) {
	cfg := Default()
	if err := applyEnvOverrides(&cfg, environ); err != nil {
		return Config{}, err
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
