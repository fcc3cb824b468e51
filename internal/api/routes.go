// Package api exposes the feed over HTTP for the site's client code.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio-web/internal/auth"
	"portfolio-web/internal/feed"
	"portfolio-web/internal/logging"
)

// Services are the dependencies the routes need.
type Services struct {
	Auth           *auth.Service
	Feed           *feed.Service
	Fallback       []feed.Item
	CacheTTL       time.Duration
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(s Services) *gin.Engine {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(logging.Middleware(s.Logger))
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(s.AllowedOrigins)))
	router.Use(securityMiddleware())

	SetupRoutes(router, s)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// SetupRoutes registers the handlers on router.
func SetupRoutes(router *gin.Engine, s Services) {
	h := NewHandlers(s)

	router.GET("/healthz", h.Health)

	api := router.Group("/api")
	api.Use(gzipMiddleware())
	{
		api.GET("/substack", h.Articles)
		api.GET("/writing", h.Writing)
		api.GET("/feed/health", h.FeedHealth)

		api.POST("/admin/login", h.Login)
		admin := api.Group("/admin", requireAdmin(s.Auth))
		admin.POST("/feed/refresh", h.RefreshFeed)
	}
}
