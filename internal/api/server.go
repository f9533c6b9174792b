package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"codetrack/internal/analytics"
	"codetrack/internal/config"
	"codetrack/internal/redis"
	"codetrack/internal/store"
	"codetrack/internal/syncer"
)

type Server struct {
	log    *slog.Logger
	cfg    config.Config
	store  store.Gateway
	redis  *redis.Client  // optional; rate limit and health degrade without it
	cache  analyticsCache // optional; analytics responses computed fresh without it
	sync   *syncer.Orchestrator
	engine *analytics.Engine
	router *gin.Engine
}

func NewServer(log *slog.Logger, cfg config.Config, gw store.Gateway, redisClient *redis.Client, orch *syncer.Orchestrator) *Server {
	s := &Server{
		log:    log,
		cfg:    cfg,
		store:  gw,
		redis:  redisClient,
		sync:   orch,
		engine: analytics.NewEngine(),
		router: gin.New(),
	}
	if redisClient != nil {
		s.cache = redisClient
	}

	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/platforms", s.listAccounts)
		v1.POST("/platforms", s.connectAccount)
		v1.GET("/platforms/supported", s.listSupported)
		v1.DELETE("/platforms/:id", s.disconnectAccount)
		v1.POST("/platforms/:id/sync", s.syncAccount)
		v1.POST("/platforms/sync-all", s.syncAllAccounts)

		v1.GET("/analytics/heatmap", s.heatmap)
		v1.GET("/analytics/streak", s.streak)
		v1.GET("/analytics/consistency", s.consistency)
		v1.GET("/analytics/topics", s.topics)

		v1.GET("/health", s.health)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 30*time.Second)
}

// ownerID reads the acting user from the X-User-ID header. Requests without
// one fall back to the shared demo user.
func ownerID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return "demo_user"
}
