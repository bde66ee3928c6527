package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func applyEnvOverrides(cfg *Config, environ []string) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	values := envMap(environ)
	if value, ok := values["SNAPVAULT_LISTEN_ADDR"]; ok {
		cfg.ListenAddr = value
	}
	if value, ok := values["SNAPVAULT_REDIS_ADDR"]; ok {
		cfg.RedisAddr = value
	}
	if value, ok := values["SNAPVAULT_REDIS_PASSWORD"]; ok {
		cfg.RedisPassword = value
	}
	if value, ok := values["SNAPVAULT_REDIS_DB"]; ok {
		parsed, err := parseIntEnv("SNAPVAULT_REDIS_DB", value)
		if err != nil {
			return err
		}
		cfg.RedisDB = int(parsed)
	}
	if value, ok := values["SNAPVAULT_RATELIMIT_ENABLED"]; ok {
		parsed, err := parseBoolEnv("SNAPVAULT_RATELIMIT_ENABLED", value)
		if err != nil {
			return err
		}
		cfg.RateLimitEnabled = parsed
	}
	if value, ok := values["SNAPVAULT_RATELIMIT_COUNT"]; ok {
		parsed, err := parseIntEnv("SNAPVAULT_RATELIMIT_COUNT", value)
		if err != nil {
			return err
		}
		cfg.RateLimitCount = int(parsed)
	}
	if value, ok := values["SNAPVAULT_RATELIMIT_WINDOW_SECONDS"]; ok {
		parsed, err := parseIntEnv("SNAPVAULT_RATELIMIT_WINDOW_SECONDS", value)
		if err != nil {
			return err
		}
		cfg.RateLimitWindow = time.Duration(parsed) * time.Second
	}
	if value, ok := values["SNAPVAULT_UPLOAD_CONCURRENCY"]; ok {
		parsed, err := parseIntEnv("SNAPVAULT_UPLOAD_CONCURRENCY", value)
		if err != nil {
			return err
		}
		cfg.UploadConcurrency = int(parsed)
	}
	if value, ok := values["SNAPVAULT_UPLOAD_ACQUIRE_TIMEOUT_MS"]; ok {
		parsed, err := parseIntEnv("SNAPVAULT_UPLOAD_ACQUIRE_TIMEOUT_MS", value)
		if err != nil {
			return err
		}
		cfg.UploadAcquireTimeout = time.Duration(parsed) * time.Millisecond
	}
	if value, ok := values["SNAPVAULT_MAX_UPLOAD_BYTES"]; ok {
		parsed, err := parseIntEnv("SNAPVAULT_MAX_UPLOAD_BYTES", value)
		if err != nil {
			return err
		}
		cfg.MaxUploadBytes = parsed
	}
	if value, ok := values["SNAPVAULT_CACHE_ENABLED"]; ok {
		parsed, err := parseBoolEnv("SNAPVAULT_CACHE_ENABLED", value)
		if err != nil {
			return err
		}
		cfg.CacheEnabled = parsed
	}
	if value, ok := values["SNAPVAULT_CACHE_TTL_SECONDS"]; ok {
		parsed, err := parseIntEnv("SNAPVAULT_CACHE_TTL_SECONDS", value)
		if err != nil {
			return err
		}
		cfg.CacheTTL = time.Duration(parsed) * time.Second
	}
	if value, ok := values["SNAPVAULT_CACHE_KEY_PREFIX"]; ok {
		cfg.CacheKeyPrefix = value
	}
	if value, ok := values["SNAPVAULT_STORAGE_BACKEND"]; ok {
		cfg.StorageBackend = value
	}
	if value, ok := values["SNAPVAULT_STORAGE_PATH"]; ok {
		cfg.StoragePath = value
	}
	if value, ok := values["SNAPVAULT_STORAGE_STARTUP_TIMEOUT_SECONDS"]; ok {
		parsed, err := parseIntEnv("SNAPVAULT_STORAGE_STARTUP_TIMEOUT_SECONDS", value)
		if err != nil {
			return err
		}
		cfg.StorageStartupTimeout = time.Duration(parsed) * time.Second
	}
	if value, ok := values["SNAPVAULT_MINIO_ENDPOINT"]; ok {
		cfg.MinioEndpoint = value
	}
	if value, ok := values["SNAPVAULT_MINIO_ACCESS_KEY"]; ok {
		cfg.MinioAccessKey = value
	}
	if value, ok := values["SNAPVAULT_MINIO_SECRET_KEY"]; ok {
		cfg.MinioSecretKey = value
	}
	if value, ok := values["SNAPVAULT_MINIO_BUCKET"]; ok {
		cfg.MinioBucket = value
	}
	if value, ok := values["SNAPVAULT_MINIO_USE_SSL"]; ok {
		parsed, err := parseBoolEnv("SNAPVAULT_MINIO_USE_SSL", value)
		if err != nil {
			return err
		}
		cfg.MinioUseSSL = parsed
	}
	if value, ok := values["SNAPVAULT_METADATA_DB_PATH"]; ok {
		cfg.MetadataDBPath = value
	}
	return nil
}

func envMap(environ []string) map[string]string {
	values := make(map[string]string)
	for _, entry := range environ {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		values[parts[0]] = parts[1]
	}
	return values
}

func parseBoolEnv(name, value string) (bool, error) {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", name, value)
	}
	return parsed, nil
}

func parseIntEnv(name, value string) (int64, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, value)
	}
	return parsed, nil
}
