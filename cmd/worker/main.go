package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codetrack/internal/config"
	"codetrack/internal/db"
	"codetrack/internal/logging"
	"codetrack/internal/platform"
	"codetrack/internal/storage"
	"codetrack/internal/store"
	"codetrack/internal/syncer"
)

const staleBatchSize = 50

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_worker", "service", "codetrack-worker", "interval", cfg.SyncInterval.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dbConn *db.DB
	for i := 0; i < 5; i++ {
		dbConn, err = db.New(ctx, cfg.DBDSN)
		if err == nil {
			break
		}
		logger.Warn("db_connect_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	gateway := store.NewPostgres(dbConn)
	if err := gateway.Init(ctx); err != nil {
		logger.Error("schema_init_failed", "error", err)
		os.Exit(1)
	}

	registry := platform.NewRegistry(platform.RegistryConfig{
		GitHubToken:      cfg.GitHubToken,
		StackOverflowKey: cfg.StackOverflowKey,
	})
	limiter := platform.NewRateLimiter(platform.DefaultLimits(), cfg.RateLimitWait)

	orch := syncer.New(logger, registry, limiter, gateway, syncer.Options{
		FetchTimeout: cfg.FetchTimeout,
		Concurrency:  cfg.SyncConcurrency,
		Archiver:     newArchiver(logger, cfg),
	})

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	logger.Info("worker_started")
	resyncStale(ctx, logger, gateway, orch, cfg.SyncInterval)

	for {
		select {
		case <-ticker.C:
			resyncStale(ctx, logger, gateway, orch, cfg.SyncInterval)
		case <-stop:
			logger.Info("shutting_down")
			cancel()
			dbConn.Close()
			logger.Info("worker_stopped")
			return
		}
	}
}

// resyncStale refreshes accounts whose last sync predates the interval.
// Never-synced accounts go first.
func resyncStale(ctx context.Context, logger *slog.Logger, gateway store.Gateway, orch *syncer.Orchestrator, interval time.Duration) {
	cutoff := time.Now().UTC().Add(-interval)
	accounts, err := gateway.ListStale(ctx, cutoff, staleBatchSize)
	if err != nil {
		logger.Error("list_stale_failed", "error", err)
		return
	}
	if len(accounts) == 0 {
		logger.Info("no_stale_accounts")
		return
	}

	results, err := orch.SyncAll(ctx, accounts)
	if err != nil {
		logger.Error("resync_failed", "error", err)
		return
	}

	failed := 0
	for i := range results {
		if !results[i].Success {
			failed++
		}
	}
	logger.Info("resync_pass_done", "total", len(results), "failed", failed)
}

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
