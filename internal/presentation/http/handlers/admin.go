// Package handlers implements the HTTP handlers for the record and admin
// surfaces.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/interfaces"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/logging"
	"github.com/homevault/homevault-go/internal/infrastructure/tenant"
)

// AdminHandlers exposes the process-wide cache administration surface.
// Store-level operations go through the AdminCache interface; only owner
// lifecycle and preference propagation need the tenant manager itself.
type AdminHandlers struct {
	tenants *tenant.Manager
	admin   interfaces.AdminCache
	logger  *logging.ChanneledLogger
}

// NewAdminHandlers creates the admin handler set
func NewAdminHandlers(tenants *tenant.Manager, logger *logging.ChanneledLogger) *AdminHandlers {
	return &AdminHandlers{tenants: tenants, admin: tenants.CacheManager(), logger: logger}
}

// GetStats returns global cache store statistics
func (h *AdminHandlers) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin.GetStats())
}

// ListOwners returns owner IDs with live cache entries
func (h *AdminHandlers) ListOwners(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"owners": h.admin.ListUsers()})
}

// GetOwnerStats returns per-collection hit/miss stats for one owner
func (h *AdminHandlers) GetOwnerStats(c *gin.Context) {
	stats, err := h.tenants.Stats(c.Param("owner"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// InspectEntry returns entry metadata only; cached values never leave the
// process through the admin surface.
func (h *AdminHandlers) InspectEntry(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing key parameter"})
		return
	}
	meta, found := h.admin.InspectEntry(key)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

// DeleteEntry removes a single entry by exact key
func (h *AdminHandlers) DeleteEntry(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing key parameter"})
		return
	}
	if !h.admin.AdminDelete(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": key})
}

// ClearAll drops every cache entry in the process
func (h *AdminHandlers) ClearAll(c *gin.Context) {
	h.admin.ClearAll()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// ClearNamespace drops one owner:collection namespace
func (h *AdminHandlers) ClearNamespace(c *gin.Context) {
	var body struct {
		Namespace string `json:"namespace" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cleared := h.admin.ClearNamespace(body.Namespace)
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

// ClearOwner drops every entry and cache layer for one owner
func (h *AdminHandlers) ClearOwner(c *gin.Context) {
	cleared := h.tenants.ClearOwner(c.Param("owner"))
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

// GetPreferences resolves cache preferences for a collection, honoring the
// owner override when the owner query parameter is present.
func (h *AdminHandlers) GetPreferences(c *gin.Context) {
	owner := c.Query("owner")
	prefs, found := h.admin.GetPreferences(owner, c.Param("collection"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no preferences configured"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// SetPreferences updates preferences for a collection, globally or for one
// owner when the owner query parameter is present. Live collection caches
// pick up the change immediately.
func (h *AdminHandlers) SetPreferences(c *gin.Context) {
	var prefs types.CachePreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	collection := c.Param("collection")
	if owner := c.Query("owner"); owner != "" {
		h.tenants.UpdateOwnerPreferences(owner, collection, prefs)
	} else {
		h.tenants.UpdateGlobalPreferences(collection, prefs)
	}
	c.JSON(http.StatusOK, prefs)
}

// GetLogLevels reports the current level of every log channel
func (h *AdminHandlers) GetLogLevels(c *gin.Context) {
	if h.logger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "logging not configured"})
		return
	}
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// SetLogLevel changes one channel's level at runtime
func (h *AdminHandlers) SetLogLevel(c *gin.Context) {
	if h.logger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "logging not configured"})
		return
	}
	var body struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(body.Level)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level: " + body.Level})
		return
	}
	if err := h.logger.SetChannelLevel(logging.Channel(body.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": body.Channel, "level": body.Level})
}
