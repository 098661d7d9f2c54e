// Package api wires together all HTTP routes for the board service.
//
// Route grouping philosophy:
//   - Reads of public content (published boards, templates, comments) carry
//     optional auth: an anonymous visitor browsing a shared board is a
//     first-class caller, but a bearer token still resolves so owners see
//     their own private boards through the same routes.
//   - Every mutating route requires a bearer JWT and then passes the
//     admission middleware for its logical operation before the handler
//     runs. In front of all of it sits the Redis edge limiter.
package api

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/openboard/openboard/internal/admission"
	"github.com/openboard/openboard/internal/audit"
	"github.com/openboard/openboard/internal/api/boards"
	"github.com/openboard/openboard/internal/api/cards"
	"github.com/openboard/openboard/internal/api/media"
	"github.com/openboard/openboard/internal/api/social"
	"github.com/openboard/openboard/internal/authz"
	"github.com/openboard/openboard/internal/cascade"
	"github.com/openboard/openboard/internal/config"
	"github.com/openboard/openboard/internal/db/repositories"
	"github.com/openboard/openboard/internal/jobs"
	"github.com/openboard/openboard/internal/labels"
	"github.com/openboard/openboard/internal/middleware"
	"github.com/openboard/openboard/internal/ordering"
	"github.com/openboard/openboard/internal/storage"

	// Import storage backends to register them
	_ "github.com/openboard/openboard/internal/storage/azure"
	_ "github.com/openboard/openboard/internal/storage/gcs"
	_ "github.com/openboard/openboard/internal/storage/local"
	_ "github.com/openboard/openboard/internal/storage/s3"
)

// BackgroundServices holds resources that must be released during graceful
// shutdown, plus the handle through which the config watcher applies
// reloaded rate limits to a running router.
type BackgroundServices struct {
	edgeLimiter *middleware.EdgeRateLimiter
	limits      *middleware.LimitSource
	trail       *audit.Trail
	stopJobs    context.CancelFunc
}

// ApplyRateLimits swaps in reloaded admission limits. Called from the config
// watcher; safe under concurrent traffic.
func (bg *BackgroundServices) ApplyRateLimits(limits *config.RateLimitsConfig) {
	bg.limits.Update(limits)
	slog.Info("rate limits reloaded")
}

// Shutdown releases background resources. Call after the HTTP server has
// drained in-flight requests.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	bg.stopJobs()
	if err := bg.edgeLimiter.Close(); err != nil {
		slog.Warn("failed to close edge limiter", "error", err)
	}
	if err := bg.trail.Close(); err != nil {
		slog.Warn("failed to close audit trail", "error", err)
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, conn *sqlx.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize storage backend
	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	log.Printf("Initialized storage backend: %s", cfg.Storage.DefaultBackend)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(conn)
	boardRepo := repositories.NewBoardRepository(conn)
	cardRepo := repositories.NewCardRepository(conn)
	socialRepo := repositories.NewSocialRepository(conn)
	rateLimitRepo := repositories.NewRateLimitRepository(conn)

	// Core services
	resolver := authz.NewResolver(userRepo)
	labelIndex := labels.NewIndex(cardRepo)
	orderer := ordering.NewService(cardRepo)
	admissionCtrl := admission.NewController(rateLimitRepo)
	deleter := cascade.NewCoordinator(boardRepo, cardRepo, storageBackend, resolver, slog.Default())

	trail, err := audit.NewTrail(cfg.Audit)
	if err != nil {
		log.Fatalf("Failed to initialize audit trail: %v", err)
	}

	// Handlers
	authHandlers, err := NewAuthHandlers(cfg, userRepo, trail)
	if err != nil {
		log.Fatalf("Failed to initialize auth handlers: %v", err)
	}
	boardHandlers := boards.NewHandlers(boardRepo, cardRepo, userRepo, socialRepo, resolver, deleter)
	cardHandlers := cards.NewHandlers(boardRepo, cardRepo, resolver, labelIndex, orderer)
	socialHandlers := social.NewHandlers(boardRepo, socialRepo, resolver)
	mediaHandlers := media.NewHandlers(storageBackend)

	limits := middleware.NewLimitSource(&cfg.RateLimits)
	admit := func(op string) gin.HandlerFunc {
		return middleware.Admission(admissionCtrl, limits, op)
	}
	audited := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(trail, action, resource)
	}

	edgeLimiter := middleware.NewEdgeRateLimiter(&cfg.Security.Edge, slog.Default())

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.EdgeRateLimitMiddleware(edgeLimiter))

	// Probes
	router.GET("/healthz", healthCheckHandler(conn))
	router.GET("/readyz", readinessHandler(conn, storageBackend))
	router.GET("/version", versionHandler())

	// Login flow (pre-auth by nature)
	router.GET("/v1/auth/login", authHandlers.LoginHandler())
	router.GET("/v1/auth/callback", authHandlers.CallbackHandler())

	// Card media. Anonymous like the rest of the public read surface; the
	// local backend's GetURL points back at this route.
	router.GET("/v1/media/*path", mediaHandlers.Serve)

	// Public reads: anonymous welcome, bearer tokens still resolved so
	// owners can read their private boards through the same routes.
	public := router.Group("/v1")
	public.Use(middleware.OptionalAuthMiddleware(userRepo))
	{
		public.GET("/templates", boardHandlers.ListTemplates)
		public.GET("/boards/public", boardHandlers.ListPublic)
		public.GET("/boards/:id", boardHandlers.Get)
		public.GET("/boards/:id/cards", cardHandlers.List)
		public.GET("/boards/:id/comments", socialHandlers.ListComments)
	}

	// Authenticated surface. Admission runs after auth so limits are
	// keyed by user, not by IP.
	authed := router.Group("/v1")
	authed.Use(middleware.AuthMiddleware(userRepo))
	{
		authed.GET("/auth/me", authHandlers.MeHandler())

		authed.GET("/boards", boardHandlers.ListMine)
		authed.POST("/boards", admit("create-board"), boardHandlers.Create)
		authed.PUT("/boards/:id", admit("update-board"), boardHandlers.Update)
		authed.POST("/boards/:id/publish", admit("publish-board"), audited("board.publish", "board"), boardHandlers.Publish)
		authed.POST("/boards/:id/clone", admit("clone-board"), audited("board.clone", "board"), boardHandlers.Clone)
		authed.DELETE("/boards/:id", admit("delete-board"), audited("board.delete", "board"), boardHandlers.Delete)

		authed.POST("/boards/:id/cards", admit("create-card"), cardHandlers.Create)
		authed.POST("/boards/:id/cards/batch", admit("batch-create-cards"), cardHandlers.CreateBatch)
		authed.PUT("/boards/:id/order", admit("reorder-cards"), cardHandlers.Reorder)
		authed.PUT("/cards/:id", admit("update-card"), cardHandlers.Update)
		authed.POST("/cards/:id/move", admit("move-card"), cardHandlers.Move)
		authed.DELETE("/cards/:id", admit("delete-card"), audited("card.delete", "card"), cardHandlers.Delete)

		authed.POST("/boards/:id/comments", admit("comment"), socialHandlers.AddComment)
		authed.POST("/boards/:id/like", admit("like"), socialHandlers.Like)
		authed.DELETE("/boards/:id/like", admit("like"), socialHandlers.Unlike)
	}

	// Deterministic counter retention alongside the controller's
	// opportunistic sweeps.
	jobCtx, stopJobs := context.WithCancel(context.Background())
	jobs.NewRetentionJob(rateLimitRepo, slog.Default()).Start(jobCtx)

	bg := &BackgroundServices{
		edgeLimiter: edgeLimiter,
		limits:      limits,
		trail:       trail,
		stopJobs:    stopJobs,
	}
	return router, bg
}

func healthCheckHandler(conn *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := conn.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/healthz), this also checks the blob store so a
// readiness gate fails when media uploads and downloads would error.
func readinessHandler(conn *sqlx.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := conn.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Check storage backend — probe with a known-absent sentinel path.
		// Exists() exercises authentication and network connectivity without
		// creating any state.
		if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
