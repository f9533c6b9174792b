package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBDSN    string
	RedisDSN string
	HTTPAddr string
	LogLevel string

	CORSOrigins []string

	// raw secrets kept in-memory only; never log these
	GitHubToken      string
	StackOverflowKey string

	// snapshot archive (R2/S3); simulator is used when bucket is empty
	SnapshotEndpoint string
	SnapshotBucket   string
	SnapshotKeysRaw  string

	SyncInterval    time.Duration
	SyncConcurrency int
	FetchTimeout    time.Duration
	RateLimitWait   time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:            os.Getenv("DB_DSN"),
		RedisDSN:         getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		StackOverflowKey: os.Getenv("STACKOVERFLOW_KEY"),
		SnapshotEndpoint: getenvDefault("SNAPSHOT_ENDPOINT", ""),
		SnapshotBucket:   getenvDefault("SNAPSHOT_BUCKET", ""),
		SnapshotKeysRaw:  os.Getenv("SNAPSHOT_KEYS"),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	// light validation: keys must be valid json if set
	if cfg.SnapshotKeysRaw != "" {
		var tmp any
		if err := json.Unmarshal([]byte(cfg.SnapshotKeysRaw), &tmp); err != nil {
			return Config{}, errors.New("SNAPSHOT_KEYS must be valid json")
		}
	}

	cfg.SyncInterval = getenvDuration("SYNC_INTERVAL", 30*time.Minute)
	cfg.FetchTimeout = getenvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.RateLimitWait = getenvDuration("RATE_LIMIT_WAIT", 15*time.Second)

	cfg.SyncConcurrency = 4
	if v := os.Getenv("SYNC_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, errors.New("SYNC_CONCURRENCY must be a positive integer")
		}
		cfg.SyncConcurrency = n
	}

	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
