package collection

import (
	"time"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/query"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/pkg/config"
)

// QueryResult distinguishes "no cached answer" from "cached answer is
// empty". Found false means the caller must query the backing store.
type QueryResult struct {
	Records []types.Record
	Found   bool
	Shape   string
}

func miss() QueryResult { return QueryResult{} }

func hit(records []types.Record, shape string) QueryResult {
	return QueryResult{Records: records, Found: true, Shape: shape}
}

// Query serves a predicate from the cache when a shape can answer it.
// A populated All snapshot is authoritative: it answers even with an empty
// result set. Recent is best-effort and only answers non-empty matches,
// except for date-range queries it provably covers in full.
func (c *Cache) Query(predicate map[string]any, opts query.Options) QueryResult {
	start := time.Now()
	cls := query.Classify(predicate, opts, c.preferences().MultiFieldPatterns())

	if !c.waitForWIP(cls.Kind) {
		c.recordMiss(kindShape(cls.Kind))
		return miss()
	}

	result := c.dispatch(cls, predicate, opts)
	if result.Found {
		c.recordHit(result.Shape)
	} else {
		c.recordMiss(kindShape(cls.Kind))
	}
	if c.logger != nil {
		c.logger.LogCacheOperation("query", c.name, result.Found, time.Since(start), c.owner)
	}
	return result
}

func (c *Cache) dispatch(cls query.Classification, predicate map[string]any, opts query.Options) QueryResult {
	switch cls.Kind {
	case query.KindEmpty:
		return c.queryEmpty(predicate, opts)
	case query.KindSimple:
		return c.querySimple(cls, predicate, opts)
	case query.KindDateGT:
		if cls.HasOtherFields {
			return c.queryGeneral(predicate, opts)
		}
		return c.queryDateBound(cls, predicate, opts)
	default:
		return c.queryGeneral(predicate, opts)
	}
}

func (c *Cache) queryEmpty(predicate map[string]any, opts query.Options) QueryResult {
	if records, ok := c.getRecentRecords(); ok {
		if filtered, err := query.FilterRecords(records, predicate, opts); err == nil {
			return hit(filtered, "recent")
		}
	}
	if records, ok := c.getAllRecords(); ok {
		if filtered, err := query.FilterRecords(records, predicate, opts); err == nil {
			return hit(filtered, "all")
		}
	}
	return miss()
}

func (c *Cache) querySimple(cls query.Classification, predicate map[string]any, opts query.Options) QueryResult {
	if rec, ok := c.GetByKey(cls.Field, cls.Value); ok {
		return hit([]types.Record{rec}, "bykey")
	}
	if records, ok := c.getAllRecords(); ok {
		if filtered, err := query.FilterRecords(records, predicate, opts); err == nil {
			return hit(filtered, "all")
		}
	}
	if records, ok := c.getRecentRecords(); ok {
		if filtered, err := query.FilterRecords(records, predicate, opts); err == nil && len(filtered) > 0 {
			return hit(filtered, "recent")
		}
	}
	if records, ok := c.getQueryRecords(predicate); ok {
		if filtered, err := query.FilterRecords(records, predicate, opts); err == nil {
			return hit(filtered, "query")
		}
	}
	return miss()
}

func (c *Cache) queryDateBound(cls query.Classification, predicate map[string]any, opts query.Options) QueryResult {
	if records, ok := c.getRecentRecords(); ok {
		complete := query.IsRecentCacheComplete(records, cls.Bound)
		if filtered, err := query.FilterRecords(records, predicate, opts); err == nil {
			if complete {
				return hit(filtered, "recent")
			}
			if len(filtered) > 0 {
				return hit(filtered, "recent")
			}
		}
	}
	if records, ok := c.getAllRecords(); ok {
		if filtered, err := query.FilterRecords(records, predicate, opts); err == nil {
			return hit(filtered, "all")
		}
	}
	return miss()
}

func (c *Cache) queryGeneral(predicate map[string]any, opts query.Options) QueryResult {
	if records, ok := c.getQueryRecords(predicate); ok {
		if filtered, err := query.FilterRecords(records, predicate, opts); err == nil {
			return hit(filtered, "query")
		}
	}
	if records, ok := c.getAllRecords(); ok {
		if filtered, err := query.FilterRecords(records, predicate, opts); err == nil {
			return hit(filtered, "all")
		}
	}
	return miss()
}

// getQueryRecords looks up the fingerprint entry for a predicate. The
// fingerprint excludes options: entries are only ever written for
// option-free queries, so a later read with sort or limit can reuse them.
func (c *Cache) getQueryRecords(predicate map[string]any) ([]types.Record, bool) {
	fingerprint := query.HashQuery(predicate, query.Options{})
	raw, found, err := c.store.Get(c.keyQuery(fingerprint))
	if err != nil || !found {
		return nil, false
	}
	records, ok := raw.([]types.Record)
	return records, ok
}

// waitForWIP blocks while any snapshot shape the read may consult is being
// repopulated, polling until the configured timeout. Timing out reports the
// read as a miss so the caller falls through to the backing store.
func (c *Cache) waitForWIP(kind query.Kind) bool {
	deadline := time.Now().Add(config.WIPWaitTimeout)
	for {
		c.mu.Lock()
		busy := c.wipAll || c.wipRecent
		if kind == query.KindCompound || kind == query.KindGeneral {
			busy = c.wipAll
		}
		c.mu.Unlock()
		if !busy {
			return true
		}
		if time.Now().After(deadline) {
			if c.logger != nil {
				c.logger.Cache().Debug("WIP wait timed out, treating as miss",
					"ownerId", c.owner, "table", c.name)
			}
			return false
		}
		time.Sleep(config.WIPPollInterval)
	}
}

func kindShape(kind query.Kind) string {
	switch kind {
	case query.KindEmpty:
		return "recent"
	case query.KindSimple:
		return "bykey"
	case query.KindDateGT:
		return "recent"
	case query.KindCompound:
		return "query"
	default:
		return "all"
	}
}
