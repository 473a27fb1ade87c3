// Package routes configures the HTTP routes for the admin and record
// surfaces.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/homevault/homevault-go/internal/application/container"
	"github.com/homevault/homevault-go/internal/presentation/http/handlers"
	"github.com/homevault/homevault-go/internal/presentation/http/middleware"
)

// SetupRoutes builds the router with all middleware and handlers wired
func SetupRoutes(c *container.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	adminHandlers := handlers.NewAdminHandlers(c.TenantManager, c.Logger)
	recordHandlers := handlers.NewRecordHandlers(c.TenantManager, c.Logger)

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		c.Metrics.Registry(), promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		api.POST("/collections/:collection/query", recordHandlers.Query)
		api.POST("/collections/:collection", recordHandlers.Create)
		api.PUT("/collections/:collection/:id", recordHandlers.Update)
		api.DELETE("/collections/:collection/:id", recordHandlers.Delete)
		api.GET("/stats", recordHandlers.Stats)
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminAuthMiddleware())
	{
		admin.GET("/stats", adminHandlers.GetStats)
		admin.GET("/owners", adminHandlers.ListOwners)
		admin.GET("/owners/:owner/stats", adminHandlers.GetOwnerStats)
		admin.GET("/entry", adminHandlers.InspectEntry)
		admin.DELETE("/entry", adminHandlers.DeleteEntry)
		admin.POST("/clear", adminHandlers.ClearAll)
		admin.POST("/clear/namespace", adminHandlers.ClearNamespace)
		admin.POST("/clear/owner/:owner", adminHandlers.ClearOwner)
		admin.GET("/preferences/:collection", adminHandlers.GetPreferences)
		admin.PUT("/preferences/:collection", adminHandlers.SetPreferences)
		admin.GET("/logs/levels", adminHandlers.GetLogLevels)
		admin.POST("/logs/levels", adminHandlers.SetLogLevel)
	}

	return r
}
