// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/api"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/cache"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/repository/postgres"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/service"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/internal/storage"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub001/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := postgres.NewNetworkRepository(db, cfg.Engine.VelocityWindowDays)

	// Cache is optional; a failed connection degrades to a noop cache.
	runCache, err := cache.NewRunCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("run cache unavailable, continuing without cache")
		runCache = cache.NewNoopRunCache()
	}

	var archive storage.ObjectStorage
	if cfg.Archive.Enabled {
		archive, err = storage.NewMinioStorage(cfg.Archive)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("run archive unavailable, continuing without archive")
			archive = nil
		}
	}

	transferService := service.NewTransferService(repo, cfg.Engine, runCache, archive)

	// Initialize HTTP server
	router := api.NewRouter(transferService, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
