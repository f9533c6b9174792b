package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"codetrack/internal/models"
	"codetrack/internal/platform"
	"codetrack/internal/storage"
	"codetrack/internal/store"
)

// ErrEmptyAccountList is the only wholesale failure SyncAll can return.
var ErrEmptyAccountList = errors.New("empty_account_list")

// Resolver is the adapter lookup the orchestrator needs; *platform.Registry
// satisfies it.
type Resolver interface {
	Resolve(platformID string) (platform.Adapter, error)
	Supported(platformID string) bool
	ListSupported() []platform.Capability
}

// Orchestrator drives one-account and all-accounts synchronization. Each
// account sync is isolated: rate-limit gate, adapter fetch, normalize,
// persist. Failures are returned as data, never propagated to siblings.
type Orchestrator struct {
	log      *slog.Logger
	registry Resolver
	limiter  *platform.RateLimiter
	store    store.Gateway
	archiver storage.Archiver // optional; raw payloads of successful syncs

	fetchTimeout time.Duration
	concurrency  int

	breakers map[string]*platform.CircuitBreaker

	mu       sync.Mutex
	inflight map[string]struct{}
}

type Options struct {
	FetchTimeout time.Duration // per adapter call, default 10s
	Concurrency  int           // fan-out bound, default 4
	Archiver     storage.Archiver
}

func New(log *slog.Logger, registry Resolver, limiter *platform.RateLimiter, gw store.Gateway, opts Options) *Orchestrator {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}

	breakers := make(map[string]*platform.CircuitBreaker)
	for _, cap := range registry.ListSupported() {
		breakers[cap.ID] = platform.NewCircuitBreaker()
	}

	return &Orchestrator{
		log:          log,
		registry:     registry,
		limiter:      limiter,
		store:        gw,
		archiver:     opts.Archiver,
		fetchTimeout: opts.FetchTimeout,
		concurrency:  opts.Concurrency,
		breakers:     breakers,
		inflight:     make(map[string]struct{}),
	}
}

// Supported exposes the registry's capability table.
func (o *Orchestrator) Supported() []platform.Capability {
	return o.registry.ListSupported()
}

func accountKey(ownerID, platformID, username string) string {
	return ownerID + "/" + platformID + "/" + strings.ToLower(username)
}

func (o *Orchestrator) tryLock(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[key]; busy {
		return false
	}
	o.inflight[key] = struct{}{}
	return true
}

func (o *Orchestrator) unlock(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, key)
}

// fetch resolves the adapter, passes the rate-limit gate and circuit breaker,
// and runs the upstream call under the per-call timeout.
func (o *Orchestrator) fetch(ctx context.Context, platformID, username string) (platform.RawProfile, *models.CanonicalProfile, error) {
	adapter, err := o.registry.Resolve(platformID)
	if err != nil {
		return nil, nil, err
	}

	if err := o.limiter.Acquire(ctx, platformID); err != nil {
		return nil, nil, err
	}

	breaker := o.breakers[platformID]
	if breaker != nil && !breaker.Allow() {
		return nil, nil, platform.Errf(platform.KindUpstreamUnavailable, "%s: circuit open", platformID)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	defer cancel()

	raw, err := adapter.FetchProfile(fetchCtx, username)
	if breaker != nil {
		switch {
		case err == nil:
			breaker.RecordSuccess()
		case platform.KindOf(err) == platform.KindUpstreamUnavailable,
			platform.KindOf(err) == platform.KindTimeout:
			breaker.RecordFailure()
		}
	}
	if err != nil {
		return nil, nil, err
	}

	profile, err := platform.Normalize(platformID, raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, profile, nil
}

// Connect verifies a username with one live fetch and stores the account.
// Connecting the same (platform, username) again updates the existing record.
func (o *Orchestrator) Connect(ctx context.Context, ownerID, platformID, username string) (*models.PlatformAccount, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username_required")
	}
	if !o.registry.Supported(platformID) {
		return nil, platform.Errf(platform.KindUnsupportedPlatform, "unknown platform: %s", platformID)
	}

	key := accountKey(ownerID, platformID, username)
	if !o.tryLock(key) {
		return nil, platform.Errf(platform.KindSyncInProgress, "account busy")
	}
	defer o.unlock(key)

	raw, profile, err := o.fetch(ctx, platformID, username)
	if err != nil {
		o.log.Warn("connect_fetch_failed", "platform", platformID, "username", username, "error", err)
		return nil, err
	}

	now := time.Now().UTC()
	account, err := o.store.Upsert(ctx, &models.PlatformAccount{
		OwnerID:          ownerID,
		Platform:         platformID,
		PlatformUsername: username,
		IsVerified:       true,
		LastSyncedAt:     &now,
		ProfileData:      profile,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert_failed: %w", err)
	}

	o.archive(ctx, platformID, username, raw)
	o.log.Info("account_connected", "platform", platformID, "username", username, "account_id", account.ID)
	return account, nil
}

// Disconnect removes a connected account.
func (o *Orchestrator) Disconnect(ctx context.Context, accountID int64, ownerID string) error {
	if err := o.store.Delete(ctx, accountID, ownerID); err != nil {
		return err
	}
	o.log.Info("account_disconnected", "account_id", accountID)
	return nil
}

// SyncOne refreshes one account. A failed sync leaves the stored profile and
// verification flag untouched and reports the failure as data.
func (o *Orchestrator) SyncOne(ctx context.Context, account *models.PlatformAccount) models.SyncResult {
	result := models.SyncResult{
		Platform:  account.Platform,
		AccountID: account.ID,
	}

	key := accountKey(account.OwnerID, account.Platform, account.PlatformUsername)
	if !o.tryLock(key) {
		result.ErrorKind = string(platform.KindSyncInProgress)
		result.Error = "sync already running for this account"
		return result
	}
	defer o.unlock(key)

	raw, profile, err := o.fetch(ctx, account.Platform, account.PlatformUsername)
	if err != nil {
		kind := platform.KindOf(err)
		o.log.Warn("sync_failed",
			"platform", account.Platform,
			"account_id", account.ID,
			"kind", string(kind),
			"error", err,
		)
		result.ErrorKind = string(kind)
		result.Error = err.Error()
		return result
	}

	now := time.Now().UTC()
	if _, err := o.store.Upsert(ctx, &models.PlatformAccount{
		OwnerID:          account.OwnerID,
		Platform:         account.Platform,
		PlatformUsername: account.PlatformUsername,
		IsVerified:       true,
		LastSyncedAt:     &now,
		ProfileData:      profile,
	}); err != nil {
		o.log.Error("sync_upsert_failed", "account_id", account.ID, "error", err)
		result.ErrorKind = string(platform.KindInternal)
		result.Error = "failed to persist profile"
		return result
	}

	o.archive(ctx, account.Platform, account.PlatformUsername, raw)

	result.Success = true
	result.Data = profile
	o.log.Info("sync_ok", "platform", account.Platform, "account_id", account.ID)
	return result
}

// SyncAll fans out SyncOne across all accounts with bounded concurrency.
// Every account yields exactly one result at its input index; one account's
// failure never cancels or blocks siblings.
func (o *Orchestrator) SyncAll(ctx context.Context, accounts []models.PlatformAccount) ([]models.SyncResult, error) {
	if len(accounts) == 0 {
		return nil, ErrEmptyAccountList
	}

	results := make([]models.SyncResult, len(accounts))
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	for i := range accounts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = o.SyncOne(ctx, &accounts[i])
		}(i)
	}
	wg.Wait()

	failed := 0
	for i := range results {
		if !results[i].Success {
			failed++
		}
	}
	o.log.Info("sync_all_done", "total", len(accounts), "failed", failed)
	return results, nil
}

// archive uploads the raw payload best-effort; sync success never depends on it.
func (o *Orchestrator) archive(ctx context.Context, platformID, username string, raw platform.RawProfile) {
	if o.archiver == nil {
		return
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return
	}
	if _, err := o.archiver.ArchiveSnapshot(ctx, platformID, username, payload); err != nil {
		o.log.Warn("snapshot_archive_failed", "platform", platformID, "error", err)
	}
}
