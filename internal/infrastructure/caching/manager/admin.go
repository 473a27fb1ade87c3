package manager

import (
	"sort"
	"strings"
	"time"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/interfaces"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
)

// Administrative operations bypass scoping. They are reachable only through
// the admin HTTP surface, which authenticates separately.

var _ interfaces.AdminCache = (*Manager)(nil)

// ClearAll drops every entry in the store
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*types.CacheEntry)
	if m.logger != nil {
		m.logger.Cache().Warn("Cleared entire cache store")
	}
}

// ClearNamespace drops every entry for one owner:collection namespace
func (m *Manager) ClearNamespace(namespace string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cleared := 0
	for key, entry := range m.entries {
		if entry.Meta.Namespace == namespace {
			delete(m.entries, key)
			cleared++
		}
	}
	return cleared
}

// ClearUser drops every entry belonging to one owner
func (m *Manager) ClearUser(ownerID string) int {
	prefix := ownerID + ":"
	m.mu.Lock()
	defer m.mu.Unlock()
	cleared := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			cleared++
		}
	}
	if m.logger != nil {
		m.logger.Cache().Info("Cleared owner cache entries",
			"ownerId", ownerID, "cleared", cleared)
	}
	return cleared
}

// AdminDelete removes a single entry by exact key
func (m *Manager) AdminDelete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, found := m.entries[key]; !found {
		return false
	}
	delete(m.entries, key)
	return true
}

// InspectEntry returns entry metadata without the cached value, so the
// admin surface never leaks tenant data.
func (m *Manager) InspectEntry(key string) (types.EntryMetadata, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, found := m.entries[key]
	if !found {
		return types.EntryMetadata{}, false
	}
	return entry.Meta, true
}

// ListUsers returns the distinct owner IDs with live entries, sorted
func (m *Manager) ListUsers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	for key := range m.entries {
		if idx := strings.Index(key, ":"); idx > 0 {
			seen[key[:idx]] = struct{}{}
		}
	}
	owners := make([]string, 0, len(seen))
	for owner := range seen {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// GetStats summarizes the store for the admin and metrics surfaces
func (m *Manager) GetStats() types.StoreStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := types.StoreStats{
		Entries:       len(m.entries),
		EntriesByType: make(map[string]int),
		SizeByType:    make(map[string]int64),
		Evictions:     m.evictions,
		TTLEvictions:  m.ttlEvictions,
	}
	owners := make(map[string]struct{})
	for key, entry := range m.entries {
		t := string(entry.Meta.Type)
		stats.EntriesByType[t]++
		stats.SizeByType[t] += entry.Meta.SizeEstimate
		stats.SizeBytes += entry.Meta.SizeEstimate
		if idx := strings.Index(key, ":"); idx > 0 {
			owners[key[:idx]] = struct{}{}
		}
	}
	stats.Owners = len(owners)
	if !m.lastEviction.IsZero() {
		stats.LastEvictionAt = m.lastEviction.Truncate(time.Second)
	}
	return stats
}
