package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/una-transcript/internal/config"
	"github.com/stemsi/una-transcript/internal/handler"
	"github.com/stemsi/una-transcript/internal/middleware"
	"github.com/stemsi/una-transcript/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Student *handler.StudentHandler
	Prewarm *handler.PrewarmHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin routes with appropriate middlewares.
// limiter guards the routes that can start a scrape.
func SetupRouter(handlers *Handlers, cfg *config.Config, limiter *middleware.RateLimiter) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-Cache"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every error carries one.
	router.Use(response.RequestIDMiddleware())

	// Transcripts are large JSON documents.
	router.Use(middleware.Brotli())

	// ─── System ────────────────────────────────────────────────────────
	router.GET("/", handlers.System.Root)
	router.GET("/health", handlers.System.Health)
	router.GET("/system/metrics", handlers.System.Metrics)
	router.GET("/cache-stats", handlers.Student.GetCacheStats)

	// ─── Transcripts (Rate Limited) ────────────────────────────────────
	router.GET("/student/:id",
		limiter.Middleware(),
		middleware.CacheControl(cfg.CacheTTL),
		handlers.Student.GetStudent,
	)
	router.DELETE("/student/:id/cache", handlers.Student.EvictStudent)
	router.POST("/students/prewarm", limiter.Middleware(), handlers.Prewarm.Enqueue)

	return router
}
