package tenant

import (
	"context"
	"fmt"
	"sync"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/collection"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/manager"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/query"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/usercache"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/logging"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/metrics"
	"github.com/homevault/homevault-go/internal/infrastructure/persistence/recordstore"
)

// Manager owns one UserCache per active owner and binds collection caches
// to the record store through injected refresh functions. It is the only
// layer that touches both the cache tier and the backing store.
type Manager struct {
	registry     *Registry
	cacheManager *manager.Manager
	store        recordstore.Store

	mu    sync.Mutex
	users map[string]*usercache.UserCache

	logger  *logging.ChanneledLogger
	metrics *metrics.Collector
}

// NewManager wires registry preferences into the cache manager and prepares
// lazy per-owner cache creation.
func NewManager(registry *Registry, cacheManager *manager.Manager, store recordstore.Store, logger *logging.ChanneledLogger, collector *metrics.Collector) *Manager {
	for name, prefs := range registry.Defaults {
		cacheManager.SetGlobalPreferences(name, prefs)
	}
	for ownerID, info := range registry.Owners {
		for name, prefs := range info.Preferences {
			cacheManager.SetOwnerPreferences(ownerID, name, prefs)
		}
	}
	return &Manager{
		registry:     registry,
		cacheManager: cacheManager,
		store:        store,
		users:        make(map[string]*usercache.UserCache),
		logger:       logger,
		metrics:      collector,
	}
}

// GetUserCache returns the cache layer for an active owner, creating it on
// first use.
func (m *Manager) GetUserCache(ownerID string) (*usercache.UserCache, error) {
	if !m.registry.IsActive(ownerID) {
		return nil, fmt.Errorf("unknown or inactive owner: %s", ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, found := m.users[ownerID]; found {
		return user, nil
	}
	user := usercache.NewUserCache(ownerID, m.cacheManager, m.logger, m.metrics)
	m.users[ownerID] = user
	if m.logger != nil {
		m.logger.Tenant().Info("Created owner cache layer", "ownerId", ownerID)
	}
	return user, nil
}

// CollectionFor returns an owner's collection cache with its refresh
// function installed. The refresh closure is the only path from the cache
// tier back to the record store.
func (m *Manager) CollectionFor(ownerID, name string) (*collection.Cache, error) {
	user, err := m.GetUserCache(ownerID)
	if err != nil {
		return nil, err
	}
	cached := user.GetOrCreateCollectionCache(name)
	cached.SetRefreshFunction(m.refreshFunc(ownerID, name, cached))
	return cached, nil
}

func (m *Manager) refreshFunc(ownerID, name string, cached *collection.Cache) collection.RefreshFunc {
	return func(ctx context.Context, all, recent bool) error {
		records, err := m.store.Query(ctx, ownerID, name, map[string]any{}, query.Options{})
		if err != nil {
			return fmt.Errorf("refresh %s:%s: %w", ownerID, name, err)
		}
		if all {
			if err := cached.SetAll(records); err != nil {
				return err
			}
		}
		if recent {
			if err := cached.SetRecent(records); err != nil {
				return err
			}
		}
		return nil
	}
}

// WarmConfiguredCaches initializes every collection with All or Recent
// caching enabled for every active owner. Failures are logged per
// collection and do not abort warming the rest.
func (m *Manager) WarmConfiguredCaches(ctx context.Context) {
	for _, ownerID := range m.registry.ActiveOwners() {
		for name := range m.warmTargets(ownerID) {
			cached, err := m.CollectionFor(ownerID, name)
			if err != nil {
				continue
			}
			if err := cached.InitializeCache(ctx); err != nil {
				if m.logger != nil {
					m.logger.Startup().Warn("Cache warming failed",
						"ownerId", ownerID, "table", name, "error", err.Error())
				}
				continue
			}
			if m.logger != nil {
				m.logger.Startup().Info("Warmed collection cache",
					"ownerId", ownerID, "table", name)
			}
		}
	}
}

// warmTargets lists collections whose resolved preferences request a
// snapshot shape for this owner.
func (m *Manager) warmTargets(ownerID string) map[string]struct{} {
	targets := make(map[string]struct{})
	names := make(map[string]struct{})
	for name := range m.registry.Defaults {
		names[name] = struct{}{}
	}
	if info, found := m.registry.Owners[ownerID]; found {
		for name := range info.Preferences {
			names[name] = struct{}{}
		}
	}
	for name := range names {
		if prefs, ok := m.cacheManager.GetPreferences(ownerID, name); ok {
			if prefs.CacheAll || prefs.CacheRecent {
				targets[name] = struct{}{}
			}
		}
	}
	return targets
}

// UpdateGlobalPreferences stores new default preferences for a collection
// and pushes the re-resolved result into every live collection cache.
func (m *Manager) UpdateGlobalPreferences(name string, prefs types.CachePreferences) {
	m.cacheManager.SetGlobalPreferences(name, prefs)
	m.propagatePreferences(name)
}

// UpdateOwnerPreferences stores an owner override for a collection and
// pushes the re-resolved result into every live collection cache.
func (m *Manager) UpdateOwnerPreferences(ownerID, name string, prefs types.CachePreferences) {
	m.cacheManager.SetOwnerPreferences(ownerID, name, prefs)
	m.propagatePreferences(name)
}

func (m *Manager) propagatePreferences(name string) {
	m.mu.Lock()
	users := make([]*usercache.UserCache, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	m.mu.Unlock()

	for _, user := range users {
		cached, found := user.CollectionCache(name)
		if !found {
			continue
		}
		resolved, _ := m.cacheManager.GetPreferences(user.Owner(), name)
		if err := cached.UpdatePreferences(resolved); err != nil && m.logger != nil {
			m.logger.Tenant().Warn("Preference update failed",
				"ownerId", user.Owner(), "table", name, "error", err.Error())
		}
	}
}

// ClearOwner drops an owner's cache layer and entries
func (m *Manager) ClearOwner(ownerID string) int {
	m.mu.Lock()
	user, found := m.users[ownerID]
	delete(m.users, ownerID)
	m.mu.Unlock()
	if found {
		return user.Clear()
	}
	return m.cacheManager.ClearUser(ownerID)
}

// Registry exposes the owner registry
func (m *Manager) Registry() *Registry {
	return m.registry
}

// CacheManager exposes the process-wide cache manager
func (m *Manager) CacheManager() *manager.Manager {
	return m.cacheManager
}

// Stats aggregates per-collection cache stats for one owner
func (m *Manager) Stats(ownerID string) (map[string]types.TableStats, error) {
	user, err := m.GetUserCache(ownerID)
	if err != nil {
		return nil, err
	}
	return user.Stats(), nil
}
