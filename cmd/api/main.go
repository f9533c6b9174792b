package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"codetrack/internal/api"
	"codetrack/internal/config"
	"codetrack/internal/db"
	"codetrack/internal/logging"
	"codetrack/internal/platform"
	"codetrack/internal/redis"
	"codetrack/internal/storage"
	"codetrack/internal/store"
	"codetrack/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_api", "service", "codetrack-api", "http_addr", cfg.HTTPAddr)

	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	gateway := store.NewPostgres(dbConn)
	if err := gateway.Init(ctx); err != nil {
		logger.Error("schema_init_failed", "error", err)
		os.Exit(1)
	}

	registry := platform.NewRegistry(platform.RegistryConfig{
		GitHubToken:      cfg.GitHubToken,
		StackOverflowKey: cfg.StackOverflowKey,
	})
	if cfg.GitHubToken != "" {
		logger.Info("github_token_configured", "token", logging.MaskSecret(cfg.GitHubToken))
	}
	limiter := platform.NewRateLimiter(platform.DefaultLimits(), cfg.RateLimitWait)

	orch := syncer.New(logger, registry, limiter, gateway, syncer.Options{
		FetchTimeout: cfg.FetchTimeout,
		Concurrency:  cfg.SyncConcurrency,
		Archiver:     newArchiver(logger, cfg),
	})

	srv := api.NewServer(logger, cfg, gateway, redisClient, orch)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_started", "addr", cfg.HTTPAddr, "platforms", len(registry.ListSupported()))

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	}
	dbConn.Close()
	logger.Info("api_stopped")
}

// newArchiver builds the S3 snapshot client when a bucket is configured,
// otherwise the simulator.
func newArchiver(logger *slog.Logger, cfg config.Config) storage.Archiver {
	if cfg.SnapshotEndpoint != "" && cfg.SnapshotBucket != "" {
		var keys map[string]string
		if err := json.Unmarshal([]byte(cfg.SnapshotKeysRaw), &keys); err == nil {
			s3Client, err := storage.NewS3Client(storage.S3Config{
				Endpoint:        cfg.SnapshotEndpoint,
				AccessKeyID:     keys["access_key_id"],
				SecretAccessKey: keys["secret_access_key"],
				Bucket:          cfg.SnapshotBucket,
				Region:          "auto",
			})
			if err == nil {
				logger.Info("using_s3_snapshots", "endpoint", cfg.SnapshotEndpoint)
				return s3Client
			}
			logger.Warn("s3_init_failed", "error", err)
		}
	}
	logger.Info("using_snapshot_simulator")
	return storage.NewSimulator(cfg.SnapshotBucket)
}
