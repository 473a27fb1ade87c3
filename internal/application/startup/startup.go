// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/homevault/homevault-go/internal/application/container"
	"github.com/homevault/homevault-go/internal/presentation/http/server"
	"github.com/homevault/homevault-go/pkg/config"
)

// Initialize runs the full startup sequence and blocks until shutdown
func Initialize() error {
	setupGinMode()

	start := time.Now().UTC()
	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("Initializing homevault cache tier...")

	appContainer, err := container.NewContainer()
	if err != nil {
		return fmt.Errorf("container initialization failed: %w", err)
	}
	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete",
		"owners", len(appContainer.Registry.Owners))

	// Memory watchdog and TTL sweep
	appContainer.CacheManager.StartWatchdog(ctx)

	// Warm the collections configured for snapshot caching
	warmStart := time.Now()
	appContainer.TenantManager.WarmConfiguredCaches(ctx)
	logger.Startup().Info("Cache warming completed", "duration", time.Since(warmStart).String())

	httpServer := server.New(config.Port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start).String(), "port", config.Port)

	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown")
	shutdownStart := time.Now()

	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start).String(),
		"shutdownDuration", time.Since(shutdownStart).String())

	if err := appContainer.Close(); err != nil {
		return fmt.Errorf("close container: %w", err)
	}
	return nil
}

func setupGinMode() {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
