package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"codetrack/internal/analytics"
	"codetrack/internal/models"
	"codetrack/internal/platform"
	"codetrack/internal/store"
	"codetrack/internal/syncer"
)

func errStatus(err error) (int, string) {
	switch platform.KindOf(err) {
	case platform.KindNotFound:
		return http.StatusNotFound, "not_found"
	case platform.KindUnsupportedPlatform:
		return http.StatusBadRequest, "unsupported_platform"
	case platform.KindRateLimited:
		return http.StatusTooManyRequests, "rate_limited"
	case platform.KindTimeout:
		return http.StatusGatewayTimeout, "timeout"
	case platform.KindSyncInProgress:
		return http.StatusConflict, "sync_in_progress"
	case platform.KindSchemaMismatch, platform.KindUpstreamUnavailable:
		return http.StatusBadGateway, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func fail(c *gin.Context, err error) {
	status, code := errStatus(err)
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": err.Error()}})
}

func (s *Server) listSupported(c *gin.Context) {
	caps := s.sync.Supported()
	out := make([]gin.H, 0, len(caps))
	for _, cap := range caps {
		out = append(out, gin.H{
			"id":              cap.ID,
			"name":            cap.Name,
			"api_type":        cap.APIType,
			"has_rating":      cap.HasRating,
			"has_contests":    cap.HasContests,
			"has_submissions": cap.HasSubmissions,
		})
	}
	c.JSON(http.StatusOK, gin.H{"platforms": out})
}

func (s *Server) listAccounts(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	accounts, err := s.store.ListByOwner(ctx, ownerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "db_error", "message": "failed to list accounts"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (s *Server) connectAccount(c *gin.Context) {
	var req struct {
		Platform string `json:"platform" binding:"required"`
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_request", "message": err.Error()}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	account, err := s.sync.Connect(ctx, ownerID(c), req.Platform, req.Username)
	if err != nil {
		fail(c, err)
		return
	}

	s.invalidateAnalytics(c, ownerID(c))
	c.JSON(http.StatusCreated, gin.H{"account": account})
}

func (s *Server) disconnectAccount(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_id", "message": "account id must be numeric"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	if err := s.sync.Disconnect(ctx, id, ownerID(c)); err != nil {
		if errors.Is(err, store.ErrNoAccount) {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "account not connected"}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "db_error", "message": "failed to disconnect"}})
		return
	}

	s.invalidateAnalytics(c, ownerID(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) syncAccount(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_id", "message": "account id must be numeric"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	account, err := s.store.GetByID(ctx, id, ownerID(c))
	if err != nil {
		if errors.Is(err, store.ErrNoAccount) {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "not_found", "message": "account not connected"}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "db_error", "message": "failed to load account"}})
		return
	}

	result := s.sync.SyncOne(ctx, account)

	status := http.StatusOK
	if result.Success {
		// stored data only changed on success; a failed sync keeps the cache warm
		s.invalidateAnalytics(c, ownerID(c))
	} else {
		status, _ = errStatus(platform.Errf(platform.ErrorKind(result.ErrorKind), "%s", result.Error))
	}
	c.JSON(status, gin.H{"result": result})
}

func (s *Server) syncAllAccounts(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	owner := ownerID(c)
	accounts, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "db_error", "message": "failed to list accounts"}})
		return
	}

	results, err := s.sync.SyncAll(ctx, accounts)
	if err != nil {
		if errors.Is(err, syncer.ErrEmptyAccountList) {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "no_accounts", "message": "no platform accounts connected"}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal_error", "message": "sync failed"}})
		return
	}

	succeeded := 0
	for i := range results {
		if results[i].Success {
			succeeded++
		}
	}
	if succeeded > 0 {
		s.invalidateAnalytics(c, owner)
	}
	c.JSON(http.StatusOK, gin.H{
		"total":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
		"results":   results,
	})
}

// loadActivity pulls the owner's accounts and folds submissions into the
// per-day view the analytics endpoints share.
func (s *Server) loadActivity(c *gin.Context) ([]models.PlatformAccount, []models.DailyActivity, bool) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	accounts, err := s.store.ListByOwner(ctx, ownerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "db_error", "message": "failed to list accounts"}})
		return nil, nil, false
	}
	return accounts, analytics.DailyFromAccounts(accounts), true
}

// analyticsCache is the slice of the redis client the analytics handlers
// need; tests substitute an in-memory one.
type analyticsCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// analyticsCacheKey builds the cache key for one owner, kind and window. The
// owner's version counter is folded in so a single Incr invalidates every
// kind and window combination at once; stale entries age out on their TTL.
func (s *Server) analyticsCacheKey(ctx context.Context, owner, kind string) string {
	version := "0"
	if v, err := s.cache.Get(ctx, "analytics:ver:"+owner); err == nil && v != "" {
		version = v
	}
	return fmt.Sprintf("analytics:%s:v%s:%s", owner, version, kind)
}

// analyticsCached serves a cached analytics payload when one exists,
// otherwise computes via build and caches the response for a minute. The
// kind must carry any query parameter that shapes the payload.
func (s *Server) analyticsCached(c *gin.Context, kind string, build func() (gin.H, bool)) {
	var cacheKey string
	if s.cache != nil {
		cacheKey = s.analyticsCacheKey(c.Request.Context(), ownerID(c), kind)
		if cached, err := s.cache.Get(c.Request.Context(), cacheKey); err == nil && cached != "" {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json", []byte(cached))
			return
		}
	}

	response, ok := build()
	if !ok {
		return
	}

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			_ = s.cache.Set(c.Request.Context(), cacheKey, string(payload), time.Minute)
		}
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) invalidateAnalytics(c *gin.Context, owner string) {
	if s.cache == nil {
		return
	}
	_, _ = s.cache.Incr(c.Request.Context(), "analytics:ver:"+owner)
}

func (s *Server) heatmap(c *gin.Context) {
	days := 365
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 730 {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_parameter", "message": "days must be between 1 and 730"}})
			return
		}
		days = parsed
	}

	s.analyticsCached(c, fmt.Sprintf("heatmap:%d", days), func() (gin.H, bool) {
		_, activity, ok := s.loadActivity(c)
		if !ok {
			return nil, false
		}
		return gin.H{
			"window_days": days,
			"heatmap":     s.engine.Heatmap(activity, days),
		}, true
	})
}

func (s *Server) streak(c *gin.Context) {
	s.analyticsCached(c, "streak", func() (gin.H, bool) {
		_, activity, ok := s.loadActivity(c)
		if !ok {
			return nil, false
		}
		return gin.H{"streak_days": s.engine.Streak(activity)}, true
	})
}

func (s *Server) consistency(c *gin.Context) {
	weeks := 4
	if raw := c.Query("weeks"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 52 {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_parameter", "message": "weeks must be between 1 and 52"}})
			return
		}
		weeks = parsed
	}

	s.analyticsCached(c, fmt.Sprintf("consistency:%d", weeks), func() (gin.H, bool) {
		_, activity, ok := s.loadActivity(c)
		if !ok {
			return nil, false
		}
		return gin.H{
			"weeks": weeks,
			"score": s.engine.ConsistencyScore(activity, weeks),
		}, true
	})
}

func (s *Server) topics(c *gin.Context) {
	weak := c.Query("weak") == "true"
	kind := "topics"
	if weak {
		kind = "topics:weak"
	}

	s.analyticsCached(c, kind, func() (gin.H, bool) {
		accounts, _, ok := s.loadActivity(c)
		if !ok {
			return nil, false
		}
		subs := analytics.SubmissionsFromAccounts(accounts)
		if weak {
			return gin.H{"topics": analytics.WeakTopics(subs, 5)}, true
		}
		return gin.H{"topics": analytics.TopicBreakdown(subs)}, true
	})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	status := "healthy"

	dbStatus := "connected"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = "disconnected"
		status = "unhealthy"
	}

	redisStatus := "not_configured"
	if s.redis != nil {
		redisStatus = "connected"
		if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
			redisStatus = "disconnected"
			status = "unhealthy"
		}
	}

	response := gin.H{
		"status":    status,
		"database":  dbStatus,
		"redis":     redisStatus,
		"platforms": len(s.sync.Supported()),
	}

	if status == "unhealthy" {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}
