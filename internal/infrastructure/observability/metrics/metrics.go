// Package metrics exposes Prometheus instrumentation for the cache tier.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the cache tier
type Collector struct {
	registry *prometheus.Registry

	// Cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheEntries   prometheus.Gauge
	CacheSizeBytes prometheus.Gauge

	// Refresh metrics
	RefreshRuns     *prometheus.CounterVec
	RefreshFailures prometheus.Counter

	// Security metrics
	ScopeViolations prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace.
// A process-wide singleton is reused to avoid duplicate registration in tests.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	cacheHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits by shape",
		},
		[]string{"shape"},
	)

	cacheMisses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses by shape",
		},
		[]string{"shape"},
	)

	cacheEvictions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Total number of evicted entries by reason",
		},
		[]string{"reason"},
	)

	cacheEntries := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Current number of live cache entries",
		},
	)

	cacheSizeBytes := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size_bytes",
			Help:      "Estimated total size of cached values in bytes",
		},
	)

	refreshRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Total number of collection refresh runs by outcome",
		},
		[]string{"outcome"},
	)

	refreshFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_failures_total",
			Help:      "Total number of failed collection refreshes",
		},
	)

	scopeViolations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_violations_total",
			Help:      "Total number of rejected out-of-scope cache key accesses",
		},
	)

	registry.MustRegister(
		cacheHits, cacheMisses, cacheEvictions,
		cacheEntries, cacheSizeBytes,
		refreshRuns, refreshFailures, scopeViolations,
	)

	globalCollector = &Collector{
		registry:        registry,
		CacheHits:       cacheHits,
		CacheMisses:     cacheMisses,
		CacheEvictions:  cacheEvictions,
		CacheEntries:    cacheEntries,
		CacheSizeBytes:  cacheSizeBytes,
		RefreshRuns:     refreshRuns,
		RefreshFailures: refreshFailures,
		ScopeViolations: scopeViolations,
	}

	return globalCollector
}

// Registry returns the prometheus registry backing this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordHit increments the hit counter for a cache shape
func (c *Collector) RecordHit(shape string) {
	c.CacheHits.WithLabelValues(shape).Inc()
}

// RecordMiss increments the miss counter for a cache shape
func (c *Collector) RecordMiss(shape string) {
	c.CacheMisses.WithLabelValues(shape).Inc()
}

// RecordEviction increments the eviction counter for a reason
func (c *Collector) RecordEviction(reason string, count int) {
	c.CacheEvictions.WithLabelValues(reason).Add(float64(count))
}

// SetStoreGauges sets the current entry count and byte-size gauges
func (c *Collector) SetStoreGauges(entries int, sizeBytes int64) {
	c.CacheEntries.Set(float64(entries))
	c.CacheSizeBytes.Set(float64(sizeBytes))
}

// RecordRefresh counts one refresh run by outcome ("ok" or "error")
func (c *Collector) RecordRefresh(outcome string) {
	c.RefreshRuns.WithLabelValues(outcome).Inc()
	if outcome != "ok" {
		c.RefreshFailures.Inc()
	}
}

// RecordScopeViolation counts a rejected out-of-scope cache access
func (c *Collector) RecordScopeViolation() {
	c.ScopeViolations.Inc()
}
