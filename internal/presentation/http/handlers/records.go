package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/query"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/logging"
	"github.com/homevault/homevault-go/internal/infrastructure/tenant"
)

// RecordHandlers serves the owner-facing record surface backed by the
// cache-first access layer.
type RecordHandlers struct {
	tenants *tenant.Manager
	logger  *logging.ChanneledLogger
}

// NewRecordHandlers creates the record handler set
func NewRecordHandlers(tenants *tenant.Manager, logger *logging.ChanneledLogger) *RecordHandlers {
	return &RecordHandlers{tenants: tenants, logger: logger}
}

// ownerID resolves the owner from the X-Owner-ID header, defaulting to the
// single-tenant owner.
func ownerID(c *gin.Context) string {
	if owner := c.GetHeader("X-Owner-ID"); owner != "" {
		return owner
	}
	return "default"
}

func (h *RecordHandlers) access(c *gin.Context) (*tenant.RecordAccess, bool) {
	access, err := h.tenants.AccessFor(ownerID(c))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return nil, false
	}
	return access, true
}

// Query runs a predicate against a collection, cache first
func (h *RecordHandlers) Query(c *gin.Context) {
	var body struct {
		Predicate map[string]any `json:"predicate"`
		Options   query.Options  `json:"options"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Predicate == nil {
		body.Predicate = map[string]any{}
	}

	access, ok := h.access(c)
	if !ok {
		return
	}
	records, err := access.Query(c.Request.Context(), c.Param("collection"), body.Predicate, body.Options)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []types.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// Create inserts a record into a collection
func (h *RecordHandlers) Create(c *gin.Context) {
	var rec types.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	access, ok := h.access(c)
	if !ok {
		return
	}
	created, err := access.Create(c.Request.Context(), c.Param("collection"), rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update replaces a record in a collection
func (h *RecordHandlers) Update(c *gin.Context) {
	var rec types.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec[types.FieldID] = c.Param("id")

	access, ok := h.access(c)
	if !ok {
		return
	}
	updated, err := access.Update(c.Request.Context(), c.Param("collection"), rec)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes a record from a collection
func (h *RecordHandlers) Delete(c *gin.Context) {
	access, ok := h.access(c)
	if !ok {
		return
	}
	if err := access.Delete(c.Request.Context(), c.Param("collection"), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// Stats returns cache hit/miss counters for the owner's collections
func (h *RecordHandlers) Stats(c *gin.Context) {
	stats, err := h.tenants.Stats(ownerID(c))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
