// Package http exposes the climatology use case over HTTP.
package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go.ngs.io/woa-api/internal/usecase"
)

// SetupRouter creates and configures the Gin router.
// An empty allowedOrigins list allows all origins.
func SetupRouter(climatologyUC *usecase.ClimatologyUseCase, allowedOrigins []string, log logrus.FieldLogger) *gin.Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(requestLogger(log), gin.Recovery())

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	handler := NewHandler(climatologyUC, log)

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.GET("/catalog", handler.GetCatalog)
	v1.GET("/citation", handler.GetCitation)

	grids := v1.Group("/grids")
	grids.GET("/summary", handler.GetSummary)
	grids.GET("/profile", handler.GetProfile)
	grids.GET("/value", handler.GetValue)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}

// requestLogger logs one structured line per request.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("Request handled")
	}
}
