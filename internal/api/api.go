// internal/api/api.go
package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/api/handlers"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/api/middleware"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/service"
)

func NewRouter(transferService *service.TransferService, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	transferHandler := handlers.NewTransferHandler(transferService)

	router.GET("/health", transferHandler.Health)

	apiGroup := router.Group("/api/v1")
	transferGroup := apiGroup.Group("/transfers")
	{
		transferGroup.POST("/analyze", transferHandler.Analyze)
		transferGroup.GET("/latest", transferHandler.Latest)
		transferGroup.GET("/runs/:session_id", transferHandler.Run)
		transferGroup.DELETE("/runs", transferHandler.Flush)
		transferGroup.GET("/config", transferHandler.Config)
		transferGroup.GET("/archive", transferHandler.Archive)
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
