package manager

import (
	"context"
	"runtime"
	"time"

	"github.com/homevault/homevault-go/pkg/config"
)

// StartWatchdog runs the memory watchdog and TTL sweep on background
// goroutines until the context is canceled or Close is called.
func (m *Manager) StartWatchdog(ctx context.Context) {
	go m.watchLoop(ctx)
	go m.sweepLoop(ctx)
	if m.logger != nil {
		m.logger.Startup().Info("Cache memory watchdog started",
			"checkInterval", config.MemoryCheckInterval.String(),
			"maxCacheBytes", config.MaxCacheBytes,
			"heapThresholdBytes", config.HeapThresholdBytes)
	}
}

func (m *Manager) watchLoop(ctx context.Context) {
	ticker := time.NewTicker(config.MemoryCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.checkMemoryPressure()
		}
	}
}

func (m *Manager) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.PurgeExpired()
			m.publishGauges()
		}
	}
}

// checkMemoryPressure evicts when cache size exceeds its ceiling, or when
// process heap is high while the cache holds at least half its ceiling.
// The second trigger avoids punishing the cache for heap it did not cause.
func (m *Manager) checkMemoryPressure() {
	m.mu.Lock()
	size := m.totalSizeLocked()
	m.mu.Unlock()

	overCeiling := size > config.MaxCacheBytes

	heapPressure := false
	if !overCeiling && size >= config.MaxCacheBytes/2 {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		heapPressure = int64(stats.HeapAlloc) > config.HeapThresholdBytes
	}

	if overCeiling || heapPressure {
		reason := "sizeCeiling"
		if heapPressure {
			reason = "heapPressure"
		}
		if m.logger != nil {
			m.logger.Memory().Warn("Memory pressure detected",
				"reason", reason, "cacheSizeBytes", size)
		}
		m.EvictUnderPressure()
	}
	m.publishGauges()
}

func (m *Manager) publishGauges() {
	if m.metrics == nil {
		return
	}
	m.mu.Lock()
	entries := len(m.entries)
	size := m.totalSizeLocked()
	m.mu.Unlock()
	m.metrics.SetStoreGauges(entries, size)
}
