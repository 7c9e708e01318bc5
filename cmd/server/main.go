package main

import (
	"log"
	"time"

	"hudi-scan-bridge/internal/config"
	"hudi-scan-bridge/internal/controller"
	"hudi-scan-bridge/internal/foreign"
	"hudi-scan-bridge/internal/middleware"
	"hudi-scan-bridge/internal/security"
	"hudi-scan-bridge/internal/service"
	"hudi-scan-bridge/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize metrics
	middleware.InitMetrics()

	// Connect to the scanner host that executes foreign table-format
	// scanners on the bridge's behalf
	host, err := foreign.NewHostClient(&foreign.HostConfig{
		Endpoint: cfg.ScannerHost.Endpoint,
		Timeout:  cfg.ScannerHost.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to create scanner host client:", err)
	}
	defer host.Close()

	// Storage resolver with service-level defaults; per-range properties
	// from the planner override them
	resolver := storage.NewResolver(cfg.Hadoop.Properties)

	// Initialize security
	jwtManager := security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiration)
	authMiddleware := security.NewAuthMiddleware(jwtManager)

	// Initialize rate limiting
	rateLimitConfig := middleware.RateLimiterConfig{
		RPM:             cfg.Security.RateLimitPerMinute,
		Burst:           cfg.Security.RateLimitBurst,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimitConfig)

	// Initialize services
	scanService := service.NewScanService(host, resolver, service.ScanServiceOptions{
		BatchSize:   cfg.Scan.BatchSize,
		SessionTTL:  cfg.Scan.SessionTTL,
		MaxSessions: cfg.Scan.MaxSessions,
	})

	// Initialize controllers
	scanController := controller.NewScanController(scanService)
	healthController := controller.NewHealthController(host)

	// Create Gin router
	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.PrometheusMiddleware())

	// Add rate limiting if enabled
	if cfg.Security.EnableRateLimit {
		router.Use(rateLimiter.RateLimit())
	}

	// Health check and metrics endpoints (always available)
	router.GET("/health", healthController.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	api := router.Group("/api/v1")
	if cfg.Security.EnableAuth {
		api.Use(authMiddleware.RequireAuth())
	}

	scans := api.Group("/scans")
	{
		scans.POST("", scanController.OpenScan)
		scans.GET("/:id", scanController.GetScanStatus)
		scans.GET("/:id/next", scanController.NextBatch)
		scans.DELETE("/:id", scanController.CloseScan)
	}

	// Start server
	log.Printf("Starting server on port %s", cfg.Server.Port)
	log.Printf("Health check available at: http://localhost:%s/health", cfg.Server.Port)
	log.Printf("Scanner host endpoint: %s", cfg.ScannerHost.Endpoint)

	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
