package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if !cfg.RateLimitEnabled || cfg.RateLimitCount != 60 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("rate limit defaults = (%v, %v, %v)", cfg.RateLimitEnabled, cfg.RateLimitCount, cfg.RateLimitWindow)
	}
	if cfg.StorageBackend != "local" {
		t.Errorf("StorageBackend = %q, want local", cfg.StorageBackend)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	environ := []string{
		"SNAPVAULT_LISTEN_ADDR=:9090",
		"SNAPVAULT_RATELIMIT_ENABLED=false",
		"SNAPVAULT_RATELIMIT_COUNT=10",
		"SNAPVAULT_RATELIMIT_WINDOW_SECONDS=30",
		"SNAPVAULT_UPLOAD_CONCURRENCY=8",
		"SNAPVAULT_UPLOAD_ACQUIRE_TIMEOUT_MS=2500",
		"SNAPVAULT_CACHE_TTL_SECONDS=120",
		"SNAPVAULT_STORAGE_BACKEND=minio",
		"SNAPVAULT_MINIO_ENDPOINT=minio:9000",
		"SNAPVAULT_MINIO_BUCKET=photos",
		"SNAPVAULT_MINIO_USE_SSL=true",
		"UNRELATED=ignored",
	}

	cfg, err := Load(environ)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.ListenAddr)
	}
	if cfg.RateLimitEnabled {
		t.Error("RateLimitEnabled = true, want false")
	}
	if cfg.RateLimitCount != 10 || cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("rate limit = (%v, %v), want (10, 30s)", cfg.RateLimitCount, cfg.RateLimitWindow)
	}
	if cfg.UploadConcurrency != 8 || cfg.UploadAcquireTimeout != 2500*time.Millisecond {
		t.Errorf("upload admission = (%v, %v), want (8, 2.5s)", cfg.UploadConcurrency, cfg.UploadAcquireTimeout)
	}
	if cfg.CacheTTL != 2*time.Minute {
		t.Errorf("CacheTTL = %v, want 2m", cfg.CacheTTL)
	}
	if cfg.StorageBackend != "minio" || cfg.MinioEndpoint != "minio:9000" ||
		cfg.MinioBucket != "photos" || !cfg.MinioUseSSL {
		t.Errorf("storage config = %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
	}{
		{
			name:    "non-numeric count",
			environ: []string{"SNAPVAULT_RATELIMIT_COUNT=sixty"},
		},
		{
			name:    "non-boolean flag",
			environ: []string{"SNAPVAULT_CACHE_ENABLED=maybe"},
		},
		{
			name:    "unknown storage backend",
			environ: []string{"SNAPVAULT_STORAGE_BACKEND=ftp"},
		},
		{
			name:    "zero concurrency",
			environ: []string{"SNAPVAULT_UPLOAD_CONCURRENCY=0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.environ); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}
