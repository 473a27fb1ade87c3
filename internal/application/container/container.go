// Package container provides dependency injection for singleton components
package container

import (
	"fmt"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/manager"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/logging"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/metrics"
	"github.com/homevault/homevault-go/internal/infrastructure/persistence/recordstore"
	"github.com/homevault/homevault-go/internal/infrastructure/tenant"
)

// Container holds the process-wide singletons. One cache manager per
// process, constructed here and injected everywhere.
type Container struct {
	Logger        *logging.ChanneledLogger
	Metrics       *metrics.Collector
	CacheManager  *manager.Manager
	RecordStore   recordstore.Store
	Registry      *tenant.Registry
	TenantManager *tenant.Manager
}

// NewContainer wires the full dependency graph
func NewContainer() (*Container, error) {
	logger, err := logging.NewChanneledLogger(nil)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	collector := metrics.NewCollector("homevault")

	registry, err := tenant.LoadRegistry()
	if err != nil {
		logger.Close()
		return nil, err
	}

	store, err := recordstore.NewSQLStore(logger)
	if err != nil {
		logger.Close()
		return nil, err
	}

	cacheManager := manager.NewManager(logger, collector)
	tenantManager := tenant.NewManager(registry, cacheManager, store, logger, collector)

	return &Container{
		Logger:        logger,
		Metrics:       collector,
		CacheManager:  cacheManager,
		RecordStore:   store,
		Registry:      registry,
		TenantManager: tenantManager,
	}, nil
}

// Close releases the container's resources in dependency order
func (c *Container) Close() error {
	c.CacheManager.Close()
	if err := c.RecordStore.Close(); err != nil {
		return err
	}
	return c.Logger.Close()
}
