package collection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/manager"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/query"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/pkg/config"
)

func newTestCache(t *testing.T, prefs types.CachePreferences) (*Cache, *manager.Manager) {
	t.Helper()
	m := manager.NewManager(nil, nil)
	store := m.CreateCollectionInterface("alice", "notes")
	return NewCache("alice", "notes", store, prefs, nil, nil), m
}

func fastTimers(t *testing.T) {
	t.Helper()
	oldDebounce, oldPoll, oldWait := config.RefreshDebounce, config.WIPPollInterval, config.WIPWaitTimeout
	config.RefreshDebounce = 20 * time.Millisecond
	config.WIPPollInterval = 5 * time.Millisecond
	config.WIPWaitTimeout = 50 * time.Millisecond
	t.Cleanup(func() {
		config.RefreshDebounce = oldDebounce
		config.WIPPollInterval = oldPoll
		config.WIPWaitTimeout = oldWait
	})
}

func note(id string, modified float64, fields map[string]any) types.Record {
	rec := types.Record{types.FieldID: id, types.FieldModified: modified}
	for k, v := range fields {
		rec[k] = v
	}
	return rec
}

func TestByKeyRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, types.CachePreferences{CachePatterns: [][]string{{"slug"}}})
	rec := note("n1", 100, map[string]any{"slug": "hello", "body": "text"})

	require.NoError(t, c.SetByKey("slug", "hello", rec))
	got, found := c.GetByKey("slug", "hello")
	require.True(t, found)
	assert.Empty(t, cmp.Diff(rec, got))

	require.NoError(t, c.DeleteByKey("slug", "hello"))
	_, found = c.GetByKey("slug", "hello")
	assert.False(t, found)
}

func TestQueryMissDistinctFromEmptyHit(t *testing.T) {
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true})

	result := c.Query(map[string]any{"title": "nothing"}, query.Options{})
	assert.False(t, result.Found, "no cache populated yet")

	require.NoError(t, c.SetAll([]types.Record{note("n1", 100, map[string]any{"title": "a"})}))

	result = c.Query(map[string]any{"title": "nothing"}, query.Options{})
	require.True(t, result.Found, "populated All answers authoritatively")
	assert.Empty(t, result.Records)
	assert.Equal(t, "all", result.Shape)
}

func TestAllAuthoritativeOverQueryAbsence(t *testing.T) {
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true})
	records := []types.Record{
		note("n1", 100, map[string]any{"category": "work", "stars": float64(5)}),
		note("n2", 200, map[string]any{"category": "home", "stars": float64(3)}),
		note("n3", 300, map[string]any{"category": "work", "stars": float64(1)}),
	}
	require.NoError(t, c.SetAll(records))

	predicate := map[string]any{"stars": map[string]any{"$gte": float64(3)}}
	want, err := query.FilterRecords(records, predicate, query.Options{})
	require.NoError(t, err)

	result := c.Query(predicate, query.Options{})
	require.True(t, result.Found)
	assert.Empty(t, cmp.Diff(want, result.Records))
}

func TestSimpleEqualityPrefersByKey(t *testing.T) {
	c, _ := newTestCache(t, types.CachePreferences{CachePatterns: [][]string{{"slug"}}})
	rec := note("n1", 100, map[string]any{"slug": "hello"})

	require.NoError(t, c.SetQuery(map[string]any{"slug": "hello"}, []types.Record{rec}, query.Options{}))

	result := c.Query(map[string]any{"slug": "hello"}, query.Options{})
	require.True(t, result.Found)
	assert.Equal(t, "bykey", result.Shape)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "n1", result.Records[0].ID())
}

func TestSetQueryIgnoresUndeclaredShapes(t *testing.T) {
	c, _ := newTestCache(t, types.CachePreferences{})
	rec := note("n1", 100, map[string]any{"slug": "hello"})

	// slug is not a declared pattern, so nothing is cached.
	require.NoError(t, c.SetQuery(map[string]any{"slug": "hello"}, []types.Record{rec}, query.Options{}))
	assert.False(t, c.Query(map[string]any{"slug": "hello"}, query.Options{}).Found)

	_, found := c.GetByKey("slug", "hello")
	assert.False(t, found)
}

func TestCompoundPatternQueryCache(t *testing.T) {
	prefs := types.CachePreferences{CachePatterns: [][]string{{"category", "status"}}}
	c, _ := newTestCache(t, prefs)
	records := []types.Record{
		note("n1", 100, map[string]any{"category": "work", "status": "open"}),
		note("n2", 200, map[string]any{"category": "work", "status": "open"}),
	}
	predicate := map[string]any{"status": "open", "category": "work"}

	require.NoError(t, c.SetQuery(predicate, records, query.Options{}))

	// Key-order-permuted predicate hits the same fingerprint.
	permuted := map[string]any{"category": "work", "status": "open"}
	result := c.Query(permuted, query.Options{})
	require.True(t, result.Found)
	assert.Equal(t, "query", result.Shape)
	assert.Len(t, result.Records, 2)

	// Options were excluded from the fingerprint, so a limited read reuses
	// the cached set with the limit applied in memory.
	result = c.Query(predicate, query.Options{Limit: 1})
	require.True(t, result.Found)
	assert.Len(t, result.Records, 1)
}

func TestSetQueryWithOptionsNeverCachesQueryShape(t *testing.T) {
	prefs := types.CachePreferences{CachePatterns: [][]string{{"category", "status"}}}
	c, _ := newTestCache(t, prefs)
	predicate := map[string]any{"category": "work", "status": "open"}

	require.NoError(t, c.SetQuery(predicate, []types.Record{note("n1", 100, nil)}, query.Options{Limit: 5}))
	assert.False(t, c.Query(predicate, query.Options{}).Found)
}

func TestRecentAnswersCoveredDateRange(t *testing.T) {
	c, _ := newTestCache(t, types.CachePreferences{CacheRecent: true})
	records := []types.Record{
		note("n1", 50, nil),
		note("n2", 120, nil),
		note("n3", 200, nil),
	}
	require.NoError(t, c.SetRecent(records))

	// Oldest held is 50 <= 60: the Recent set provably covers the range.
	result := c.Query(map[string]any{types.FieldModified: map[string]any{"$gt": float64(60)}}, query.Options{})
	require.True(t, result.Found)
	assert.Equal(t, "recent", result.Shape)
	require.Len(t, result.Records, 2)

	// No record is newer than 300, but oldest 50 <= 300 still proves the
	// range is covered: the empty answer is authoritative.
	result = c.Query(map[string]any{types.FieldModified: map[string]any{"$gt": float64(300)}}, query.Options{})
	assert.True(t, result.Found, "covered range answers even when empty")
	assert.Empty(t, result.Records)

	c2, _ := newTestCache(t, types.CachePreferences{CacheRecent: true})
	require.NoError(t, c2.SetRecent([]types.Record{note("n5", 100, nil)}))
	result = c2.Query(map[string]any{types.FieldModified: map[string]any{"$gt": float64(40)}}, query.Options{})
	require.True(t, result.Found, "non-empty match served best-effort")
	result = c2.Query(map[string]any{types.FieldModified: map[string]any{"$gt": float64(150)}}, query.Options{})
	require.True(t, result.Found, "oldest 100 <= 150 covers the range")
	assert.Empty(t, result.Records)

	// An empty Recent set has no oldest record and covers nothing.
	c3, _ := newTestCache(t, types.CachePreferences{CacheRecent: true})
	require.NoError(t, c3.SetRecent(nil))
	result = c3.Query(map[string]any{types.FieldModified: map[string]any{"$gt": float64(10)}}, query.Options{})
	assert.False(t, result.Found, "empty subset cannot prove coverage")
}

func TestSetRecentSortsAndTruncates(t *testing.T) {
	old := config.RecentRetention
	config.RecentRetention = 3
	t.Cleanup(func() { config.RecentRetention = old })

	c, _ := newTestCache(t, types.CachePreferences{CacheRecent: true})
	require.NoError(t, c.SetRecent([]types.Record{
		note("n1", 10, nil), note("n2", 50, nil), note("n3", 30, nil),
		note("n4", 40, nil), note("n5", 20, nil),
	}))

	result := c.Query(map[string]any{}, query.Options{})
	require.True(t, result.Found)
	require.Len(t, result.Records, 3)
	assert.Equal(t, "n2", result.Records[0].ID())
	assert.Equal(t, "n4", result.Records[1].ID())
	assert.Equal(t, "n3", result.Records[2].ID())
}

func TestMarkDirtyPreciseInvalidation(t *testing.T) {
	fastTimers(t)
	prefs := types.CachePreferences{CachePatterns: [][]string{{"category"}}}
	c, _ := newTestCache(t, prefs)

	existing := note("n0", 90, map[string]any{"category": "work"})
	require.NoError(t, c.SetByKey("category", "work", existing))
	require.NoError(t, c.SetByKey(types.FieldID, "n1", note("n1", 95, map[string]any{"category": "work"})))

	created := note("n1", 100, map[string]any{"category": "work"})
	require.NoError(t, c.MarkDirty("", nil, created))

	// The _id entry goes; the byKey entry on category stays. Category-shaped
	// invalidation targets Query fingerprints, byKey entries exist only for
	// equality queries actually issued.
	_, found := c.GetByKey(types.FieldID, "n1")
	assert.False(t, found)
	_, found = c.GetByKey("category", "work")
	assert.True(t, found)
}

func TestMarkDirtyInvalidatesPatternFingerprints(t *testing.T) {
	fastTimers(t)
	prefs := types.CachePreferences{CachePatterns: [][]string{{"category", "status"}}}
	c, _ := newTestCache(t, prefs)

	predicate := map[string]any{"category": "work", "status": "open"}
	require.NoError(t, c.SetQuery(predicate, []types.Record{note("n1", 100, map[string]any{"category": "work", "status": "open"})}, query.Options{}))
	require.True(t, c.Query(predicate, query.Options{}).Found)

	updated := note("n1", 150, map[string]any{"category": "work", "status": "open"})
	require.NoError(t, c.MarkDirty("n1", nil, updated))
	assert.False(t, c.Query(predicate, query.Options{}).Found)
}

func TestMarkDirtyWithoutPatternsDropsAllQueryEntries(t *testing.T) {
	fastTimers(t)
	prefs := types.CachePreferences{CachePatterns: [][]string{{"category", "status"}}}
	c, m := newTestCache(t, prefs)

	require.NoError(t, c.SetQuery(map[string]any{"category": "a", "status": "b"},
		[]types.Record{note("x", 1, map[string]any{"category": "a", "status": "b"})}, query.Options{}))
	require.NoError(t, c.SetQuery(map[string]any{"category": "c", "status": "d"},
		[]types.Record{note("y", 2, map[string]any{"category": "c", "status": "d"})}, query.Options{}))

	// No record payloads given: conservative fallback clears every Query entry.
	require.NoError(t, c.MarkDirty("x", nil, nil))

	stats := m.GetStats()
	assert.Zero(t, stats.EntriesByType["query"])
}

func TestMarkDirtyIdempotent(t *testing.T) {
	fastTimers(t)
	prefs := types.CachePreferences{CachePatterns: [][]string{{"category"}}}
	c, _ := newTestCache(t, prefs)

	rec := note("n1", 100, map[string]any{"category": "work"})
	require.NoError(t, c.MarkDirty("n1", nil, rec))
	require.NoError(t, c.MarkDirty("n1", nil, rec))

	stats := c.GetStats()
	assert.Zero(t, stats.RefreshErrors)
}

func TestMarkDirtyHidesSnapshotsUntilRefresh(t *testing.T) {
	fastTimers(t)
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true, CacheRecent: true})
	require.NoError(t, c.SetAll([]types.Record{note("n1", 100, nil)}))
	require.True(t, c.Query(map[string]any{}, query.Options{}).Found)

	require.NoError(t, c.MarkDirty("n1", nil, note("n1", 150, nil)))
	assert.False(t, c.Query(map[string]any{}, query.Options{}).Found,
		"dirty snapshots read as absent")
}

func TestDebouncedRefreshCoalesces(t *testing.T) {
	fastTimers(t)
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true, CacheRecent: true})

	var calls atomic.Int32
	c.SetRefreshFunction(func(ctx context.Context, all, recent bool) error {
		calls.Add(1)
		if all {
			if err := c.SetAll([]types.Record{note("n1", 100, nil)}); err != nil {
				return err
			}
		}
		if recent {
			return c.SetRecent([]types.Record{note("n1", 100, nil)})
		}
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, c.MarkDirty("n1", nil, note("n1", float64(100+i), nil)))
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * config.RefreshDebounce)
	assert.Equal(t, int32(1), calls.Load(), "writes inside the window coalesce")

	result := c.Query(map[string]any{}, query.Options{})
	assert.True(t, result.Found, "refresh cleared the dirty flags")
}

func TestRefreshSkipsDisabledSnapshots(t *testing.T) {
	fastTimers(t)
	c, m := newTestCache(t, types.CachePreferences{})

	var calls atomic.Int32
	c.SetRefreshFunction(func(ctx context.Context, all, recent bool) error {
		calls.Add(1)
		if all {
			if err := c.SetAll([]types.Record{note("n1", 100, nil)}); err != nil {
				return err
			}
		}
		if recent {
			return c.SetRecent([]types.Record{note("n1", 100, nil)})
		}
		return nil
	})

	require.NoError(t, c.MarkDirty("n1", nil, note("n1", 100, nil)))
	time.Sleep(3 * config.RefreshDebounce)

	assert.Equal(t, int32(0), calls.Load(), "no enabled shape, no refresh")
	stats := m.GetStats()
	assert.Zero(t, stats.EntriesByType["all"])
	assert.Zero(t, stats.EntriesByType["recent"])
	assert.False(t, c.Query(map[string]any{}, query.Options{}).Found)
}

func TestRefreshOnlyRepopulatesEnabledShapes(t *testing.T) {
	fastTimers(t)
	c, m := newTestCache(t, types.CachePreferences{CacheAll: true})

	var sawRecent atomic.Bool
	c.SetRefreshFunction(func(ctx context.Context, all, recent bool) error {
		if recent {
			sawRecent.Store(true)
		}
		if all {
			return c.SetAll([]types.Record{note("n1", 100, nil)})
		}
		return nil
	})

	require.NoError(t, c.MarkDirty("n1", nil, note("n1", 100, nil)))
	require.Eventually(t, func() bool {
		return c.Query(map[string]any{}, query.Options{}).Found
	}, time.Second, 5*time.Millisecond)

	assert.False(t, sawRecent.Load(), "recent never requested while disabled")
	stats := m.GetStats()
	assert.Equal(t, 1, stats.EntriesByType["all"])
	assert.Zero(t, stats.EntriesByType["recent"])
}

func TestUpdatePreferencesDropsDisabledShapes(t *testing.T) {
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true, CacheRecent: true, CachePatterns: [][]string{{"slug"}}})
	require.NoError(t, c.SetAll([]types.Record{note("n1", 100, nil)}))
	require.NoError(t, c.SetRecent([]types.Record{note("n1", 100, nil)}))
	require.NoError(t, c.SetByKey("slug", "hello", note("n1", 100, map[string]any{"slug": "hello"})))
	require.True(t, c.Query(map[string]any{}, query.Options{}).Found)

	require.NoError(t, c.UpdatePreferences(types.CachePreferences{}))

	assert.False(t, c.Query(map[string]any{}, query.Options{}).Found, "disabled snapshots are gone")
	_, found := c.GetByKey("slug", "hello")
	assert.False(t, found, "pattern change drops derived entries")
}

func TestRefreshFailureKeepsShapesDirty(t *testing.T) {
	fastTimers(t)
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true})
	require.NoError(t, c.SetAll([]types.Record{note("n1", 100, nil)}))

	c.SetRefreshFunction(func(ctx context.Context, all, recent bool) error {
		return errors.New("store unavailable")
	})
	require.NoError(t, c.MarkDirty("n1", nil, note("n1", 150, nil)))

	require.Eventually(t, func() bool {
		return c.GetStats().RefreshErrors == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, c.Query(map[string]any{}, query.Options{}).Found,
		"failed refresh leaves the snapshot untrusted")
}

func TestWIPWaitTimesOutAsMiss(t *testing.T) {
	fastTimers(t)
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true})
	require.NoError(t, c.SetAll([]types.Record{note("n1", 100, nil)}))

	c.mu.Lock()
	c.wipAll = true
	c.mu.Unlock()

	start := time.Now()
	result := c.Query(map[string]any{}, query.Options{})
	assert.False(t, result.Found)
	assert.GreaterOrEqual(t, time.Since(start), config.WIPWaitTimeout)

	c.mu.Lock()
	c.wipAll = false
	c.mu.Unlock()
	assert.True(t, c.Query(map[string]any{}, query.Options{}).Found)
}

func TestWIPReleasedMidWait(t *testing.T) {
	fastTimers(t)
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true})
	require.NoError(t, c.SetAll([]types.Record{note("n1", 100, nil)}))

	c.mu.Lock()
	c.wipAll = true
	c.mu.Unlock()
	go func() {
		time.Sleep(2 * config.WIPPollInterval)
		c.mu.Lock()
		c.wipAll = false
		c.mu.Unlock()
	}()

	result := c.Query(map[string]any{}, query.Options{})
	assert.True(t, result.Found, "reader proceeds once population finishes")
}

func TestInitializeCache(t *testing.T) {
	fastTimers(t)
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true})

	assert.ErrorIs(t, c.InitializeCache(context.Background()), ErrNoRefreshFunc)

	c.SetRefreshFunction(func(ctx context.Context, all, recent bool) error {
		assert.True(t, all)
		assert.False(t, recent)
		return c.SetAll([]types.Record{note("n1", 100, nil)})
	})
	require.NoError(t, c.InitializeCache(context.Background()))
	assert.True(t, c.Query(map[string]any{}, query.Options{}).Found)
}

func TestInitializeCacheFailureClearsWIP(t *testing.T) {
	fastTimers(t)
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true, CacheRecent: true})
	c.SetRefreshFunction(func(ctx context.Context, all, recent bool) error {
		return errors.New("store down")
	})

	err := c.InitializeCache(context.Background())
	require.Error(t, err)

	// WIP cleared: reads return promptly as misses instead of polling out.
	start := time.Now()
	result := c.Query(map[string]any{}, query.Options{})
	assert.False(t, result.Found)
	assert.Less(t, time.Since(start), config.WIPWaitTimeout)
}

func TestInvalidateAll(t *testing.T) {
	fastTimers(t)
	prefs := types.CachePreferences{CacheAll: true, CachePatterns: [][]string{{"slug"}}}
	c, m := newTestCache(t, prefs)
	require.NoError(t, c.SetAll([]types.Record{note("n1", 100, nil)}))
	require.NoError(t, c.SetByKey("slug", "hello", note("n1", 100, map[string]any{"slug": "hello"})))

	require.NoError(t, c.InvalidateAll())
	assert.Zero(t, m.GetStats().Entries)
	assert.False(t, c.Query(map[string]any{}, query.Options{}).Found)
}

func TestStatsCounters(t *testing.T) {
	c, _ := newTestCache(t, types.CachePreferences{CacheAll: true})
	require.NoError(t, c.SetAll([]types.Record{note("n1", 100, nil)}))

	c.Query(map[string]any{}, query.Options{})
	c.Query(map[string]any{"title": "x"}, query.Options{})
	c2, _ := newTestCache(t, types.CachePreferences{})
	c2.Query(map[string]any{}, query.Options{})

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Equal(t, int64(2), stats.HitsByShape["all"])

	assert.Equal(t, int64(1), c2.GetStats().Misses)
}
