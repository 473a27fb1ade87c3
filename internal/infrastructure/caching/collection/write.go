package collection

import (
	"context"
	"time"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/interfaces"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/query"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/pkg/config"
)

// SetQuery populates the cache from a backing-store query result. Only
// declared shapes are cached; rare one-off queries stay uncached so memory
// stays bounded by the preference configuration.
func (c *Cache) SetQuery(predicate map[string]any, records []types.Record, opts query.Options) error {
	prefs := c.preferences()
	cls := query.Classify(predicate, opts, prefs.MultiFieldPatterns())

	switch cls.Kind {
	case query.KindEmpty:
		if prefs.CacheRecent {
			return c.SetRecent(records)
		}
	case query.KindSimple:
		if prefs.HasSingleFieldPattern(cls.Field) && len(records) == 1 {
			return c.SetByKey(cls.Field, cls.Value, records[0])
		}
	case query.KindCompound:
		if opts.IsZero() {
			fingerprint := query.HashQuery(predicate, query.Options{})
			return c.store.Set(c.keyQuery(fingerprint), records, interfaces.EntryOptions{Type: types.TypeQuery})
		}
	}
	return nil
}

// MarkDirty invalidates exactly the byKey and Query entries a write could
// have affected, marks both snapshot shapes dirty, and schedules a debounced
// refresh. With no pattern information it falls back to dropping the _id
// entry and every Query entry for the collection.
func (c *Cache) MarkDirty(recordID string, oldRec, newRec types.Record) error {
	if recordID == "" {
		if newRec != nil {
			recordID = newRec.ID()
		} else if oldRec != nil {
			recordID = oldRec.ID()
		}
	}

	invalidated := make(map[string]struct{})
	if recordID != "" {
		if key := c.byKeyFor(types.FieldID, recordID); key != "" {
			invalidated[key] = struct{}{}
		}
	}

	patterns := c.preferences().CachePatterns
	havePatternInfo := len(patterns) > 0 && (oldRec != nil || newRec != nil)

	if havePatternInfo {
		for _, pattern := range patterns {
			for _, rec := range []types.Record{oldRec, newRec} {
				if rec == nil {
					continue
				}
				predicate := query.BuildQueryFromPattern(rec, pattern)
				if predicate == nil {
					continue
				}
				fingerprint := query.HashQuery(predicate, query.Options{})
				invalidated[c.keyQuery(fingerprint)] = struct{}{}
			}
		}
	}
	for key := range invalidated {
		if err := c.store.Delete(key); err != nil {
			return err
		}
	}
	if !havePatternInfo {
		if err := c.store.DeletePattern(c.queryKeyPattern()); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.dirtyAll = true
	c.dirtyRecent = true
	c.mu.Unlock()
	c.scheduleRefresh()
	return nil
}

func (c *Cache) byKeyFor(field string, value any) string {
	valueKey, ok := query.ValueKeyString(value)
	if !ok {
		return ""
	}
	return c.keyByKey(field, valueKey)
}

// scheduleRefresh arms the debounce timer, superseding any pending one.
// Writes landing inside the window coalesce into a single refresh.
func (c *Cache) scheduleRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
	}
	c.refreshTimer = time.AfterFunc(config.RefreshDebounce, c.runRefresh)
}

// runRefresh executes the injected refresh for whichever dirty shapes the
// preferences enable; disabled shapes are never repopulated, dirty or not.
// SetAll/SetRecent clear WIP and Dirty on success; on failure the shapes
// stay dirty and the next write or InitializeCache retries.
func (c *Cache) runRefresh() {
	c.mu.Lock()
	fn := c.refreshFn
	all := c.dirtyAll && c.prefs.CacheAll
	recent := c.dirtyRecent && c.prefs.CacheRecent
	if fn == nil || (!all && !recent) {
		c.mu.Unlock()
		return
	}
	if all {
		c.wipAll = true
	}
	if recent {
		c.wipRecent = true
	}
	c.refreshes++
	c.mu.Unlock()

	err := fn(context.Background(), all, recent)

	c.mu.Lock()
	c.wipAll = false
	c.wipRecent = false
	if err != nil {
		c.refreshErrors++
	}
	c.mu.Unlock()

	if c.metrics != nil {
		if err != nil {
			c.metrics.RecordRefresh("error")
		} else {
			c.metrics.RecordRefresh("ok")
		}
	}
	if err != nil && c.logger != nil {
		c.logger.Cache().Error("Cache refresh failed, shapes stay dirty",
			"ownerId", c.owner, "table", c.name, "error", err.Error())
	}
}
