package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pricelens/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger zerolog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP, cfg.RateLimit.Burst))
	{
		comparisons := v1.Group("/comparisons")
		{
			comparisons.POST("", handler.CompareItem)
			comparisons.POST("/batch", handler.CompareBatch)
		}

		extractions := v1.Group("/extractions")
		{
			extractions.POST("/evaluate", handler.EvaluateExtraction)
			extractions.POST("/spreadsheet", handler.ExtractSpreadsheet)
			extractions.POST("/resolve", handler.ResolveExtraction)
		}

		v1.POST("/similarity", handler.Similarity)
		v1.POST("/prices", handler.RecordPrice)
		v1.PUT("/products/:id/standardized-name", handler.UpdateStandardizedName)
	}

	return router
}
