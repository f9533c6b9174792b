package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"codetrack/internal/config"
	"codetrack/internal/models"
	"codetrack/internal/platform"
	"codetrack/internal/store"
	"codetrack/internal/syncer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer wires the handlers against the in-memory store. Routes that
// reach upstream platforms are exercised only up to their validation.
func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()
	gw := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := platform.NewRegistry(platform.RegistryConfig{})
	limiter := platform.NewRateLimiter(nil, time.Second)
	orch := syncer.New(logger, registry, limiter, gw, syncer.Options{})
	cfg := config.Config{CORSOrigins: []string{"*"}}
	return NewServer(logger, cfg, gw, nil, orch), gw
}

func seedAccount(t *testing.T, gw *store.Memory, owner, platformID, username string, profile *models.CanonicalProfile) {
	t.Helper()
	now := time.Now().UTC()
	_, err := gw.Upsert(context.Background(), &models.PlatformAccount{
		OwnerID:          owner,
		Platform:         platformID,
		PlatformUsername: username,
		IsVerified:       true,
		LastSyncedAt:     &now,
		ProfileData:      profile,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func doRequest(s *Server, method, path, owner string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestListSupported(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, "GET", "/api/v1/platforms/supported", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Platforms []map[string]any `json:"platforms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Platforms) != 6 {
		t.Errorf("expected 6 platforms, got %d", len(resp.Platforms))
	}
}

func TestListAccounts_ScopedToHeaderUser(t *testing.T) {
	s, gw := newTestServer(t)
	seedAccount(t, gw, "alice", "codeforces", "tourist", nil)
	seedAccount(t, gw, "bob", "leetcode", "someone", nil)

	w := doRequest(s, "GET", "/api/v1/platforms", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Accounts []models.PlatformAccount `json:"accounts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Accounts) != 1 || resp.Accounts[0].Platform != "codeforces" {
		t.Errorf("expected only alice's account, got %+v", resp.Accounts)
	}
}

func TestListAccounts_DefaultsToDemoUser(t *testing.T) {
	s, gw := newTestServer(t)
	seedAccount(t, gw, "demo_user", "github", "octocat", nil)

	w := doRequest(s, "GET", "/api/v1/platforms", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "octocat") {
		t.Errorf("expected demo_user account in response, got %s", w.Body.String())
	}
}

func TestConnect_RequestValidation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"empty body", `{}`, http.StatusBadRequest},
		{"missing username", `{"platform":"codeforces"}`, http.StatusBadRequest},
		{"missing platform", `{"username":"tourist"}`, http.StatusBadRequest},
		{"unknown platform", `{"platform":"topcoder","username":"tourist"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(s, "POST", "/api/v1/platforms", "alice", tt.body)
			if w.Code != tt.expected {
				t.Errorf("expected %d, got %d (%s)", tt.expected, w.Code, w.Body.String())
			}
		})
	}
}

func TestDisconnect(t *testing.T) {
	s, gw := newTestServer(t)
	seedAccount(t, gw, "alice", "codeforces", "tourist", nil)

	if w := doRequest(s, "DELETE", "/api/v1/platforms/abc", "alice", ""); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: expected 400, got %d", w.Code)
	}
	if w := doRequest(s, "DELETE", "/api/v1/platforms/999", "alice", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: expected 404, got %d", w.Code)
	}
	if w := doRequest(s, "DELETE", "/api/v1/platforms/1", "bob", ""); w.Code != http.StatusNotFound {
		t.Errorf("other owner's id: expected 404, got %d", w.Code)
	}
	if w := doRequest(s, "DELETE", "/api/v1/platforms/1", "alice", ""); w.Code != http.StatusOK {
		t.Errorf("owner delete: expected 200, got %d", w.Code)
	}
}

func TestSyncAccount_UnknownID(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, "POST", "/api/v1/platforms/42/sync", "alice", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSyncAll_NoAccounts(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, "POST", "/api/v1/platforms/sync-all", "alice", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "no_accounts") {
		t.Errorf("expected no_accounts error code, got %s", w.Body.String())
	}
}

func TestAnalytics_Streak(t *testing.T) {
	s, gw := newTestServer(t)
	seedAccount(t, gw, "alice", "codeforces", "tourist", &models.CanonicalProfile{
		RecentSubmissions: []models.SubmissionEntry{
			{ProblemID: "1A", Status: models.StatusSolved, Timestamp: time.Now().UTC()},
		},
	})

	w := doRequest(s, "GET", "/api/v1/analytics/streak", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		StreakDays int `json:"streak_days"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.StreakDays != 1 {
		t.Errorf("expected streak 1, got %d", resp.StreakDays)
	}
}

func TestAnalytics_HeatmapValidation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		query    string
		expected int
	}{
		{"", http.StatusOK},
		{"?days=30", http.StatusOK},
		{"?days=0", http.StatusBadRequest},
		{"?days=9999", http.StatusBadRequest},
		{"?days=abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		w := doRequest(s, "GET", "/api/v1/analytics/heatmap"+tt.query, "alice", "")
		if w.Code != tt.expected {
			t.Errorf("days %q: expected %d, got %d", tt.query, tt.expected, w.Code)
		}
	}
}

func TestAnalytics_HeatmapWindowSize(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, "GET", "/api/v1/analytics/heatmap?days=7", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		WindowDays int                    `json:"window_days"`
		Heatmap    []models.DailyActivity `json:"heatmap"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Heatmap) != 8 {
		t.Errorf("expected 8 zero-filled days, got %d", len(resp.Heatmap))
	}
}

func TestAnalytics_Topics(t *testing.T) {
	s, gw := newTestServer(t)
	ts := time.Now().UTC()
	seedAccount(t, gw, "alice", "codeforces", "tourist", &models.CanonicalProfile{
		RecentSubmissions: []models.SubmissionEntry{
			{ProblemID: "1A", Status: models.StatusSolved, Tags: []string{"dp", "graphs"}, Timestamp: ts},
			{ProblemID: "2B", Status: models.StatusSolved, Tags: []string{"dp"}, Timestamp: ts},
		},
	})

	w := doRequest(s, "GET", "/api/v1/analytics/topics", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Topics []models.TopicStat `json:"topics"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(resp.Topics) != 2 || resp.Topics[0].Topic != "dp" || resp.Topics[0].Solved != 2 {
		t.Errorf("unexpected breakdown: %+v", resp.Topics)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(s, "GET", "/api/v1/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"healthy"`) {
		t.Errorf("expected healthy status, got %s", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	req, _ := http.NewRequest("OPTIONS", "/api/v1/platforms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected origin echoed, got %q", got)
	}
}

// fakeCache is an in-memory analyticsCache.
type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := value.(string); ok {
		f.data[key] = s
	}
	return nil
}

func (f *fakeCache) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

// scriptedAdapter lets sync-route tests run without an upstream.
type scriptedAdapter struct {
	id    string
	fetch func(username string) (platform.RawProfile, error)
}

func (a *scriptedAdapter) Capability() platform.Capability {
	return platform.Capability{ID: a.id, Name: a.id, APIType: "official", HasRating: true}
}

func (a *scriptedAdapter) FetchProfile(_ context.Context, username string) (platform.RawProfile, error) {
	return a.fetch(username)
}

type scriptedResolver struct {
	adapter *scriptedAdapter
}

func (r *scriptedResolver) Resolve(platformID string) (platform.Adapter, error) {
	if platformID != r.adapter.id {
		return nil, platform.Errf(platform.KindUnsupportedPlatform, "unknown platform: %s", platformID)
	}
	return r.adapter, nil
}

func (r *scriptedResolver) Supported(platformID string) bool {
	return platformID == r.adapter.id
}

func (r *scriptedResolver) ListSupported() []platform.Capability {
	return []platform.Capability{r.adapter.Capability()}
}

func newScriptedServer(t *testing.T, adapter *scriptedAdapter) (*Server, *store.Memory) {
	t.Helper()
	gw := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := platform.NewRateLimiter(nil, time.Second)
	orch := syncer.New(logger, &scriptedResolver{adapter: adapter}, limiter, gw, syncer.Options{})
	s := NewServer(logger, config.Config{CORSOrigins: []string{"*"}}, gw, nil, orch)
	s.cache = newFakeCache()
	return s, gw
}

func TestAnalytics_CacheKeyedByWindow(t *testing.T) {
	s, gw := newTestServer(t)
	s.cache = newFakeCache()
	seedAccount(t, gw, "alice", "codeforces", "tourist", &models.CanonicalProfile{
		RecentSubmissions: []models.SubmissionEntry{
			{ProblemID: "1A", Status: models.StatusSolved, Timestamp: time.Now().UTC()},
		},
	})

	type heatmapResp struct {
		WindowDays int                    `json:"window_days"`
		Heatmap    []models.DailyActivity `json:"heatmap"`
	}

	w := doRequest(s, "GET", "/api/v1/analytics/heatmap", "alice", "")
	if w.Code != http.StatusOK || w.Header().Get("X-Cache") == "HIT" {
		t.Fatalf("first request must compute fresh, got %d %q", w.Code, w.Header().Get("X-Cache"))
	}
	var full heatmapResp
	if err := json.Unmarshal(w.Body.Bytes(), &full); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(full.Heatmap) != 366 {
		t.Fatalf("expected default 365-day window, got %d entries", len(full.Heatmap))
	}

	if w := doRequest(s, "GET", "/api/v1/analytics/heatmap", "alice", ""); w.Header().Get("X-Cache") != "HIT" {
		t.Error("repeat request with the same window must hit the cache")
	}

	// a different window must never be served the cached 365-day payload
	w = doRequest(s, "GET", "/api/v1/analytics/heatmap?days=7", "alice", "")
	if w.Header().Get("X-Cache") == "HIT" {
		t.Error("different window must not share a cache entry")
	}
	var small heatmapResp
	if err := json.Unmarshal(w.Body.Bytes(), &small); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if small.WindowDays != 7 || len(small.Heatmap) != 8 {
		t.Errorf("expected a fresh 7-day payload, got window %d with %d entries", small.WindowDays, len(small.Heatmap))
	}
}

func TestSync_CacheInvalidationFollowsOutcome(t *testing.T) {
	adapter := &scriptedAdapter{id: "codeforces", fetch: func(string) (platform.RawProfile, error) {
		return platform.RawProfile{"rating": 1500, "problemsSolved": 10}, nil
	}}
	s, gw := newScriptedServer(t, adapter)
	seedAccount(t, gw, "alice", "codeforces", "tourist", nil)

	doRequest(s, "GET", "/api/v1/analytics/streak", "alice", "")
	if w := doRequest(s, "GET", "/api/v1/analytics/streak", "alice", ""); w.Header().Get("X-Cache") != "HIT" {
		t.Fatal("expected a warm cache before syncing")
	}

	// a failed sync changes no stored data; the cache stays warm
	adapter.fetch = func(string) (platform.RawProfile, error) {
		return nil, platform.Errf(platform.KindUpstreamUnavailable, "codeforces is down")
	}
	if w := doRequest(s, "POST", "/api/v1/platforms/1/sync", "alice", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for failed sync, got %d", w.Code)
	}
	if w := doRequest(s, "GET", "/api/v1/analytics/streak", "alice", ""); w.Header().Get("X-Cache") != "HIT" {
		t.Error("failed sync must not evict cached analytics")
	}

	// a successful sync rewrites stored data and evicts
	adapter.fetch = func(string) (platform.RawProfile, error) {
		return platform.RawProfile{"rating": 1600, "problemsSolved": 11}, nil
	}
	if w := doRequest(s, "POST", "/api/v1/platforms/1/sync", "alice", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for successful sync, got %d", w.Code)
	}
	if w := doRequest(s, "GET", "/api/v1/analytics/streak", "alice", ""); w.Header().Get("X-Cache") == "HIT" {
		t.Error("successful sync must invalidate cached analytics")
	}
}
