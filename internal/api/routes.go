package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/sherlock-center/internal/auth"
	"github.com/jonesrussell/sherlock-center/internal/events"
	"github.com/jonesrussell/sherlock-center/internal/handler"
	"github.com/jonesrussell/sherlock-center/internal/logger"
	"github.com/jonesrussell/sherlock-center/internal/middleware"
)

// Auth endpoints get an IP-level brute-force guard.
const (
	authRateLimit  = 20
	authRateWindow = time.Minute
)

// Handlers groups everything the router needs.
type Handlers struct {
	Auth   *handler.AuthHandler
	Scan   *handler.ScanHandler
	Health *handler.HealthHandler
	Hub    *events.Hub
	JWT    *auth.JWTManager
	Log    logger.Logger

	// Done signals background middleware goroutines on shutdown.
	Done <-chan struct{}
}

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", h.Health.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := router.Group("/auth")
	authGroup.Use(middleware.IPRateLimiter(authRateLimit, authRateWindow, h.Done))
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)

	// Live updates; the subscriber picks its own id so reconnects
	// resume cleanly.
	router.GET("/events/:client_id", events.Handler(h.Hub, h.Log))

	scans := router.Group("/scans")
	scans.Use(middleware.Auth(h.JWT))
	scans.POST("", h.Scan.Create)
	scans.GET("", h.Scan.List)
	scans.GET("/:id", h.Scan.Get)
	scans.GET("/:id/results", h.Scan.Results)
}
