// Command snapvault runs the media-hosting backend: the HTTP API plus the
// background cleanup worker, sharing one Redis connection for rate-limit
// counters, cache entries, and the task queue.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/snapvault/snapvault/admission"
	"github.com/snapvault/snapvault/api"
	"github.com/snapvault/snapvault/cache"
	"github.com/snapvault/snapvault/config"
	"github.com/snapvault/snapvault/health"
	"github.com/snapvault/snapvault/metadata"
	"github.com/snapvault/snapvault/ratelimit"
	"github.com/snapvault/snapvault/ratelimit/store"
	"github.com/snapvault/snapvault/storage"
	"github.com/snapvault/snapvault/tasks"
)

func main() {
	if err := run(); err != nil {
		slog.Error("snapvault exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Environ())
	if err != nil {
		return err
	}

	// One shared client backs the limiter counters and the cache. Redis
	// being down is survivable: both components fail open.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable at boot, rate limiting and caching degraded", "error", err)
	}

	counterStore := store.NewRedisWithClient(redisClient, cfg.CacheKeyPrefix+":ratelimit:")
	limiter := ratelimit.New(counterStore, cfg.RateLimitCount, cfg.RateLimitWindow,
		ratelimit.WithEnabled(cfg.RateLimitEnabled))

	metaCache := cache.New(redisClient, cache.Config{
		Prefix:     cfg.CacheKeyPrefix,
		DefaultTTL: cfg.CacheTTL,
		Enabled:    cfg.CacheEnabled,
	})

	uploads := admission.New(cfg.UploadConcurrency, cfg.UploadAcquireTimeout)

	blobs, err := storage.New(ctx, storage.Config{
		Backend:        cfg.StorageBackend,
		LocalPath:      cfg.StoragePath,
		Endpoint:       cfg.MinioEndpoint,
		AccessKey:      cfg.MinioAccessKey,
		SecretKey:      cfg.MinioSecretKey,
		Bucket:         cfg.MinioBucket,
		UseSSL:         cfg.MinioUseSSL,
		StartupTimeout: cfg.StorageStartupTimeout,
	})
	if err != nil {
		return err
	}

	meta, err := metadata.Open(cfg.MetadataDBPath)
	if err != nil {
		return err
	}
	defer meta.Close()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	worker := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 2})
	mux := asynq.NewServeMux()
	tasks.NewHandler(blobs, metaCache).Register(mux)
	go func() {
		if err := worker.Run(mux); err != nil {
			slog.Error("task worker stopped", "error", err)
		}
	}()
	defer worker.Shutdown()

	monitor := health.NewMonitor(
		func(ctx context.Context) health.Status {
			if !cfg.RateLimitEnabled {
				return health.NewStatus("ratelimit", health.StateDisabled, "")
			}
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return health.NewStatus("ratelimit", health.StateDisconnected, err.Error())
			}
			return health.NewStatus("ratelimit", health.StateConnected, "")
		},
		func(ctx context.Context) health.Status {
			if !metaCache.Enabled() {
				return health.NewStatus("cache", health.StateDisabled, "")
			}
			if !metaCache.Connected(ctx) {
				return health.NewStatus("cache", health.StateDisconnected, "")
			}
			return health.NewStatus("cache", health.StateConnected, "")
		},
		func(ctx context.Context) health.Status {
			if _, err := blobs.Exists(ctx, "healthcheck"); err != nil {
				return health.NewStatus("storage", health.StateDisconnected, err.Error())
			}
			return health.NewStatus("storage", health.StateConnected, "")
		},
		func(ctx context.Context) health.Status {
			if err := meta.Ping(ctx); err != nil {
				return health.NewStatus("metadata", health.StateDisconnected, err.Error())
			}
			return health.NewStatus("metadata", health.StateConnected, "")
		},
	)

	server := api.NewServer(api.Deps{
		Metadata:       meta,
		Blobs:          blobs,
		Cache:          metaCache,
		Limiter:        limiter,
		Uploads:        uploads,
		Enqueuer:       asynqClient,
		Monitor:        monitor,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.ListenAddr, "storage", cfg.StorageBackend)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
