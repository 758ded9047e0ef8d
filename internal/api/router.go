// Package api wires together all HTTP routes for the plugin registry.
//
// Route grouping philosophy:
//   - Plugin discovery routes (/api/v1/plugins/...) are intentionally
//     unauthenticated so that editors can search and install plugins without
//     supplying credentials.
//   - Session routes use the session cookie; /me and publish routes require
//     either the session cookie (browser flows) or a bearer API token (CLI).
package api

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/auth"
	"github.com/plugin-registry/plugin-registry/internal/config"
	"github.com/plugin-registry/plugin-registry/internal/db"
	"github.com/plugin-registry/plugin-registry/internal/db/repositories"
	"github.com/plugin-registry/plugin-registry/internal/middleware"
	"github.com/plugin-registry/plugin-registry/internal/publish"
	"github.com/plugin-registry/plugin-registry/internal/session"
	"github.com/plugin-registry/plugin-registry/internal/storage"

	// Import storage backends to register them
	_ "github.com/plugin-registry/plugin-registry/internal/storage/gcs"
	_ "github.com/plugin-registry/plugin-registry/internal/storage/local"
	_ "github.com/plugin-registry/plugin-registry/internal/storage/s3"
)

// BackgroundServices holds resources that must be stopped during graceful
// shutdown. The caller (cmd/server) calls Shutdown() after the HTTP server
// has drained in-flight requests.
type BackgroundServices struct {
	sessionStore session.Store
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines and closes the session store.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.sessionStore != nil {
		if err := bg.sessionStore.Close(); err != nil {
			slog.Warn("session store close failed", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, pool *db.Pool) (*gin.Engine, *BackgroundServices) {
	router := gin.New()
	router.Use(gin.Recovery())

	// Initialize storage backend
	storageBackend, err := storage.NewBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	// Initialize session store
	sessionStore, err := session.New(cfg.Session)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	slog.Info("initialized session store", "backend", cfg.Session.Backend)

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(pool.Write)
	tokenRepo := repositories.NewTokenRepository(pool.Write)
	pluginRepo := repositories.NewPluginRepository(pool.Write, pool.Read())

	// Initialize the publish pipeline
	pipeline := publish.NewPipeline(storageBackend, pluginRepo, cfg.Publish.MaxArchiveSize)

	// Initialize GitHub OAuth
	github := auth.NewGitHubAuthenticator(cfg.GitHub, cfg.Server.GetPublicURL()+"/api/v1/session/authorize")

	// Initialize handlers
	cookieMaxAge := int(cfg.Session.TTL / time.Second)
	sessionHandlers := NewSessionHandlers(sessionStore, github, accountRepo, cfg.Session.CookieSecure, cookieMaxAge)
	accountHandlers := NewAccountHandlers(tokenRepo)
	pluginHandlers := NewPluginHandlers(pluginRepo, pipeline, storageBackend, cfg.Publish.DownloadURLTTL)

	// Initialize rate limiters
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	sessionRateLimiter := middleware.NewRateLimiter(middleware.SessionRateLimitConfig())
	publishRateLimiter := middleware.NewRateLimiter(middleware.PublishRateLimitConfig())

	// Global middleware, in the documented order
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(loggerMiddleware())

	// Health check endpoint
	router.GET("/healthz", healthCheckHandler(pool, storageBackend))

	apiV1 := router.Group("/api/v1")
	{
		// OAuth session endpoints (no auth, stricter rate limit)
		sessionGroup := apiV1.Group("/session")
		sessionGroup.Use(middleware.RateLimitMiddleware(sessionRateLimiter))
		{
			sessionGroup.GET("", sessionHandlers.Begin)
			sessionGroup.GET("/authorize", sessionHandlers.Authorize)
			sessionGroup.DELETE("", sessionHandlers.Logout)
		}

		// Public discovery endpoints (no auth)
		publicGroup := apiV1.Group("")
		publicGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			publicGroup.GET("/plugins", pluginHandlers.Search)
			publicGroup.GET("/plugins/:author/:name/:version", pluginHandlers.GetPlugin)
			publicGroup.GET("/plugins/:author/:name/:version/download", pluginHandlers.Download)
			publicGroup.GET("/plugins/:author/:name/:version/readme", pluginHandlers.Readme)
			publicGroup.GET("/plugins/:author/:name/:version/icon", pluginHandlers.Icon)
		}

		// Session-authenticated account endpoints
		meGroup := apiV1.Group("/me")
		meGroup.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		meGroup.Use(middleware.SessionAuth(sessionStore, accountRepo))
		{
			meGroup.GET("", accountHandlers.Me)
			meGroup.GET("/tokens", accountHandlers.ListTokens)
			meGroup.POST("/tokens", accountHandlers.CreateToken)
			meGroup.DELETE("/tokens/:id", accountHandlers.RevokeToken)
		}

		// Bearer-token endpoints used by the publishing CLI
		cliGroup := apiV1.Group("/me/plugins")
		cliGroup.Use(middleware.RateLimitMiddleware(publishRateLimiter))
		cliGroup.Use(middleware.TokenAuth(tokenRepo, accountRepo))
		{
			cliGroup.PUT("/new", pluginHandlers.Publish)
			cliGroup.PUT("/:name/:version/yank", pluginHandlers.Yank)
			cliGroup.PUT("/:name/:version/unyank", pluginHandlers.Unyank)
		}

		// File serving for the local storage backend; presigning backends
		// redirect clients straight to the object store instead.
		apiV1.GET("/files/*filepath", serveFileHandler(storageBackend))
	}

	bg := &BackgroundServices{
		sessionStore: sessionStore,
		rateLimiters: []*middleware.RateLimiter{generalRateLimiter, sessionRateLimiter, publishRateLimiter},
	}

	return router, bg
}

// healthCheckHandler reports database and storage backend health.
func healthCheckHandler(pool *db.Pool, storageBackend storage.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := pool.Write.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		// Probe with a known-absent sentinel path. Exists() exercises
		// authentication and connectivity without creating any state.
		if _, err := storageBackend.Exists(c.Request.Context(), ".health-probe"); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "storage backend not ready",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// serveFileHandler streams objects for the local backend, whose GetURL
// points back at this route.
func serveFileHandler(storageBackend storage.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("filepath")
		if len(key) > 0 && key[0] == '/' {
			key = key[1:]
		}

		meta, err := storageBackend.GetMetadata(c.Request.Context(), key)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}

		reader, err := storageBackend.Download(c.Request.Context(), key)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		defer reader.Close()

		c.DataFromReader(http.StatusOK, meta.Size, meta.ContentType, reader, nil)
	}
}

// loggerMiddleware emits one structured record per request.
func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

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
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.Any("request_id", requestID),
		)
	}
}
