// Package usercache implements the per-owner cache layer. A UserCache holds
// the owner-scoped store, creates one collection cache per collection name,
// and tracks which remote files have local mirror copies.
package usercache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/collection"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/interfaces"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/manager"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/logging"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/metrics"
	"github.com/homevault/homevault-go/pkg/config"
)

// UserCache is the per-owner cache layer
type UserCache struct {
	owner   string
	manager *manager.Manager
	store   interfaces.ScopedStore

	mu          sync.Mutex
	collections map[string]*collection.Cache
	files       map[string]*FileCache

	localCopies *expirable.LRU[string, time.Time]

	logger  *logging.ChanneledLogger
	metrics *metrics.Collector
}

// NewUserCache builds the cache layer for one owner. The owner-scoped store
// is minted here; collection caches get further-narrowed scopes on demand.
func NewUserCache(owner string, m *manager.Manager, logger *logging.ChanneledLogger, collector *metrics.Collector) *UserCache {
	return &UserCache{
		owner:       owner,
		manager:     m,
		store:       m.CreateUserInterface(owner),
		collections: make(map[string]*collection.Cache),
		files:       make(map[string]*FileCache),
		localCopies: expirable.NewLRU[string, time.Time](config.LocalCopyLimit, nil, config.LocalCopyTTL),
		logger:      logger,
		metrics:     collector,
	}
}

// Owner returns the owner ID this cache is scoped to
func (u *UserCache) Owner() string {
	return u.owner
}

// GetOrCreateCollectionCache returns the cache for one collection, creating
// it on first use. Idempotent per name; preferences resolve through the
// manager's two-level fallback at creation time.
func (u *UserCache) GetOrCreateCollectionCache(name string) *collection.Cache {
	u.mu.Lock()
	defer u.mu.Unlock()
	if cached, found := u.collections[name]; found {
		return cached
	}
	prefs, _ := u.manager.GetPreferences(u.owner, name)
	store := u.manager.CreateCollectionInterface(u.owner, name)
	cached := collection.NewCache(u.owner, name, store, prefs, u.logger, u.metrics)
	u.collections[name] = cached
	if u.logger != nil {
		u.logger.WithOwner(logging.ChannelCache, u.owner).Debug("Created collection cache", "table", name)
	}
	return cached
}

// CollectionCache returns an already-created collection cache, if any
func (u *UserCache) CollectionCache(name string) (*collection.Cache, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	cached, found := u.collections[name]
	return cached, found
}

// CollectionNames returns the names with live collection caches
func (u *UserCache) CollectionNames() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	names := make([]string, 0, len(u.collections))
	for name := range u.collections {
		names = append(names, name)
	}
	return names
}

// Stats aggregates hit/miss counters across this owner's collection caches
func (u *UserCache) Stats() map[string]types.TableStats {
	u.mu.Lock()
	caches := make(map[string]*collection.Cache, len(u.collections))
	for name, cached := range u.collections {
		caches[name] = cached
	}
	u.mu.Unlock()

	stats := make(map[string]types.TableStats, len(caches))
	for name, cached := range caches {
		stats[name] = cached.GetStats()
	}
	return stats
}

// Clear drops this owner's collection caches and entries. The manager-side
// entry sweep runs through the admin surface; this resets the layer state.
func (u *UserCache) Clear() int {
	u.mu.Lock()
	u.collections = make(map[string]*collection.Cache)
	u.files = make(map[string]*FileCache)
	u.mu.Unlock()
	u.localCopies.Purge()
	return u.manager.ClearUser(u.owner)
}
