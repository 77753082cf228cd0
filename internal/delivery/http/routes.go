package http

import (
	"github.com/gin-gonic/gin"

	"github.com/petfooddb/catalog/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.RateLimit.PerClient, cfg.RateLimit.Burst))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("", handler.ListProducts)
			products.GET("/:key", handler.GetProduct)
		}

		v1.GET("/review", handler.ListReview)
		v1.GET("/audit/:batchId", handler.GetAudit)

		resolve := v1.Group("/resolve")
		{
			resolve.POST("/dry-run", handler.TriggerDryRun)
		}
	}

	return router
}
