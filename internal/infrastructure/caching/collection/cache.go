// Package collection implements the query-intelligence layer of the cache
// tier. One Cache per (owner, collection) chooses among four shapes: a full
// snapshot (All), a bounded recency-ordered subset (Recent), single records
// by field value (byKey), and results keyed by predicate fingerprint (Query).
// It never reaches the backing store itself; refreshes run through an
// injected function owned by the tenant layer.
package collection

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/interfaces"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/query"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/logging"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/metrics"
	"github.com/homevault/homevault-go/pkg/config"
)

// ErrNoRefreshFunc is returned by InitializeCache when no refresh function
// has been injected yet.
var ErrNoRefreshFunc = errors.New("no refresh function configured")

// RefreshFunc repopulates the All and/or Recent shapes from the backing
// store. It must call SetAll/SetRecent on success; shapes it was asked to
// refresh but did not repopulate stay dirty.
type RefreshFunc func(ctx context.Context, all, recent bool) error

// Cache is the per-collection cache layer ("app table cache")
type Cache struct {
	owner string
	name  string
	store interfaces.ScopedStore
	prefs types.CachePreferences

	mu           sync.Mutex
	wipAll       bool
	wipRecent    bool
	dirtyAll     bool
	dirtyRecent  bool
	refreshTimer *time.Timer
	refreshFn    RefreshFunc

	hits          int64
	misses        int64
	hitsByShape   map[string]int64
	refreshes     int64
	refreshErrors int64

	logger  *logging.ChanneledLogger
	metrics *metrics.Collector
}

// NewCache builds a collection cache over a collection-scoped store.
// The store must be scoped to owner:name: or every operation will fail.
func NewCache(owner, name string, store interfaces.ScopedStore, prefs types.CachePreferences, logger *logging.ChanneledLogger, collector *metrics.Collector) *Cache {
	return &Cache{
		owner:       owner,
		name:        name,
		store:       store,
		prefs:       prefs,
		hitsByShape: make(map[string]int64),
		logger:      logger,
		metrics:     collector,
	}
}

// SetRefreshFunction injects the backing-store refresh callback
func (c *Cache) SetRefreshFunction(fn RefreshFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshFn = fn
}

func (c *Cache) preferences() types.CachePreferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs
}

// UpdatePreferences swaps in newly resolved preferences. Snapshot shapes the
// new preferences disable are dropped immediately, and a pattern change
// drops every byKey and Query entry so stale fingerprints cannot answer.
func (c *Cache) UpdatePreferences(prefs types.CachePreferences) error {
	c.mu.Lock()
	old := c.prefs
	c.prefs = prefs
	c.mu.Unlock()

	if old.CacheAll && !prefs.CacheAll {
		if err := c.store.Delete(c.keyAll()); err != nil {
			return err
		}
	}
	if old.CacheRecent && !prefs.CacheRecent {
		if err := c.store.Delete(c.keyRecent()); err != nil {
			return err
		}
	}
	if !reflect.DeepEqual(old.CachePatterns, prefs.CachePatterns) {
		if err := c.store.DeletePattern(c.byKeyPattern()); err != nil {
			return err
		}
		if err := c.store.DeletePattern(c.queryKeyPattern()); err != nil {
			return err
		}
	}
	return nil
}

// InitializeCache populates the shapes enabled in preferences, without
// debounce. WIP is raised first so concurrent readers treat the cache as
// untrustworthy while the first load runs. On error the shapes revert to
// absent and the error is returned.
func (c *Cache) InitializeCache(ctx context.Context) error {
	c.mu.Lock()
	if c.refreshFn == nil {
		c.mu.Unlock()
		return ErrNoRefreshFunc
	}
	fn := c.refreshFn
	all := c.prefs.CacheAll
	recent := c.prefs.CacheRecent
	if !all && !recent {
		c.mu.Unlock()
		return nil
	}
	if all {
		c.wipAll = true
	}
	if recent {
		c.wipRecent = true
	}
	c.mu.Unlock()

	if err := fn(ctx, all, recent); err != nil {
		c.mu.Lock()
		c.wipAll = false
		c.wipRecent = false
		c.mu.Unlock()
		return fmt.Errorf("initialize cache for %s:%s: %w", c.owner, c.name, err)
	}
	return nil
}

// key helpers; the scoped store enforces the owner:name: prefix

func (c *Cache) prefix() string {
	return c.owner + ":" + c.name + ":"
}

func (c *Cache) keyAll() string    { return c.prefix() + "all" }
func (c *Cache) keyRecent() string { return c.prefix() + "recent" }

func (c *Cache) keyByKey(field, valueKey string) string {
	return c.prefix() + "bykey:" + field + ":" + valueKey
}

func (c *Cache) keyQuery(fingerprint string) string {
	return c.prefix() + "query:" + fingerprint
}

func (c *Cache) queryKeyPattern() string {
	return "^" + regexp.QuoteMeta(c.prefix()+"query:") + ".*"
}

func (c *Cache) byKeyPattern() string {
	return "^" + regexp.QuoteMeta(c.prefix()+"bykey:") + ".*"
}

// SetAll stores the authoritative full snapshot and clears the All shape's
// WIP and Dirty flags.
func (c *Cache) SetAll(records []types.Record) error {
	if err := c.store.Set(c.keyAll(), records, interfaces.EntryOptions{Type: types.TypeAll}); err != nil {
		return err
	}
	c.mu.Lock()
	c.wipAll = false
	c.dirtyAll = false
	c.mu.Unlock()
	return nil
}

// SetRecent stores the recency subset: descending by modification time,
// truncated to the configured retention count. Clears Recent WIP and Dirty.
func (c *Cache) SetRecent(records []types.Record) error {
	sorted := make([]types.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Modified() > sorted[j].Modified()
	})
	if config.RecentRetention > 0 && len(sorted) > config.RecentRetention {
		sorted = sorted[:config.RecentRetention]
	}
	if err := c.store.Set(c.keyRecent(), sorted, interfaces.EntryOptions{Type: types.TypeRecent}); err != nil {
		return err
	}
	c.mu.Lock()
	c.wipRecent = false
	c.dirtyRecent = false
	c.mu.Unlock()
	return nil
}

// GetByKey returns the single cached record for an equality lookup
func (c *Cache) GetByKey(field string, value any) (types.Record, bool) {
	valueKey, ok := query.ValueKeyString(value)
	if !ok {
		return nil, false
	}
	raw, found, err := c.store.Get(c.keyByKey(field, valueKey))
	if err != nil || !found {
		return nil, false
	}
	rec, ok := raw.(types.Record)
	if !ok {
		return nil, false
	}
	return rec, true
}

// SetByKey caches one record under a field's value
func (c *Cache) SetByKey(field string, value any, rec types.Record) error {
	valueKey, ok := query.ValueKeyString(value)
	if !ok {
		return fmt.Errorf("value for field %q is not cacheable", field)
	}
	return c.store.Set(c.keyByKey(field, valueKey), rec, interfaces.EntryOptions{Type: types.TypeByKey})
}

// DeleteByKey removes one byKey entry
func (c *Cache) DeleteByKey(field string, value any) error {
	valueKey, ok := query.ValueKeyString(value)
	if !ok {
		return nil
	}
	return c.store.Delete(c.keyByKey(field, valueKey))
}

// InvalidateAll drops every cached entry for this collection and marks both
// snapshot shapes dirty for the next refresh.
func (c *Cache) InvalidateAll() error {
	if err := c.store.DeletePattern("^" + regexp.QuoteMeta(c.prefix()) + ".*"); err != nil {
		return err
	}
	c.mu.Lock()
	c.dirtyAll = true
	c.dirtyRecent = true
	c.mu.Unlock()
	c.scheduleRefresh()
	return nil
}

// GetStats reports hit/miss counters for this collection
func (c *Cache) GetStats() types.TableStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	byShape := make(map[string]int64, len(c.hitsByShape))
	for shape, n := range c.hitsByShape {
		byShape[shape] = n
	}
	return types.TableStats{
		Hits:          c.hits,
		Misses:        c.misses,
		HitsByShape:   byShape,
		Refreshes:     c.refreshes,
		RefreshErrors: c.refreshErrors,
	}
}

func (c *Cache) recordHit(shape string) {
	c.mu.Lock()
	c.hits++
	c.hitsByShape[shape]++
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.RecordHit(shape)
	}
}

func (c *Cache) recordMiss(shape string) {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.RecordMiss(shape)
	}
}

func (c *Cache) getAllRecords() ([]types.Record, bool) {
	c.mu.Lock()
	dirty := c.dirtyAll
	c.mu.Unlock()
	if dirty {
		return nil, false
	}
	raw, found, err := c.store.Get(c.keyAll())
	if err != nil || !found {
		return nil, false
	}
	records, ok := raw.([]types.Record)
	return records, ok
}

func (c *Cache) getRecentRecords() ([]types.Record, bool) {
	c.mu.Lock()
	dirty := c.dirtyRecent
	c.mu.Unlock()
	if dirty {
		return nil, false
	}
	raw, found, err := c.store.Get(c.keyRecent())
	if err != nil || !found {
		return nil, false
	}
	records, ok := raw.([]types.Record)
	return records, ok
}
