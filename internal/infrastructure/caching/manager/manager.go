// Package manager implements the process-wide cache store. One Manager owns
// every entry in the process; tenant and collection layers only ever touch it
// through scoped capability interfaces created by CreateUserInterface.
package manager

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/interfaces"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/logging"
	"github.com/homevault/homevault-go/internal/infrastructure/observability/metrics"
)

// Manager is the single authoritative entry store. All state behind one
// mutex; entries are read and written only while it is held.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*types.CacheEntry

	prefs preferenceStore

	evictions    int64
	ttlEvictions int64
	lastEviction time.Time

	logger  *logging.ChanneledLogger
	metrics *metrics.Collector

	stopOnce sync.Once
	stop     chan struct{}
}

// NewManager creates an empty cache manager. Start the memory watchdog and
// sweep worker separately via StartWatchdog.
func NewManager(logger *logging.ChanneledLogger, collector *metrics.Collector) *Manager {
	return &Manager{
		entries: make(map[string]*types.CacheEntry),
		prefs:   newPreferenceStore(),
		logger:  logger,
		metrics: collector,
		stop:    make(chan struct{}),
	}
}

// CreateUserInterface grants a capability scoped to one owner's keyspace.
// The returned store rejects any key not prefixed with ownerID + ":".
func (m *Manager) CreateUserInterface(ownerID string) interfaces.ScopedStore {
	return &scopedStore{m: m, owner: ownerID, prefix: ownerID + ":"}
}

// CreateCollectionInterface narrows a scope further to a single collection.
func (m *Manager) CreateCollectionInterface(ownerID, collection string) interfaces.ScopedStore {
	return &scopedStore{m: m, owner: ownerID, prefix: ownerID + ":" + collection + ":"}
}

func (m *Manager) get(key string) (any, bool) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, found := m.entries[key]
	if !found {
		return nil, false
	}
	if entry.Expired(now) {
		delete(m.entries, key)
		m.ttlEvictions++
		return nil, false
	}
	entry.Meta.LastAccessed = now
	entry.Meta.AccessCount++
	return entry.Value, true
}

func (m *Manager) set(key string, value any, opts interfaces.EntryOptions) {
	now := time.Now().UTC()

	entryType := opts.Type
	if entryType == "" {
		entryType = types.TypeQuery
	}
	priority := opts.Priority
	if priority == 0 {
		priority = types.DefaultPriority(entryType)
	}
	ttl := opts.TTLSeconds
	if ttl == 0 {
		ttl = types.DefaultTTLSeconds(entryType)
	}

	entry := &types.CacheEntry{
		Key:   key,
		Value: value,
		Meta: types.EntryMetadata{
			Type:         entryType,
			Namespace:    namespaceOf(key),
			Priority:     priority,
			TTLSeconds:   ttl,
			CreatedAt:    now,
			LastAccessed: now,
			AccessCount:  0,
			SizeEstimate: estimateSize(value),
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	m.enforceTypeCeilingLocked(entryType)
}

func (m *Manager) delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *Manager) deletePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if re.MatchString(key) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *Manager) getKeys(pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key := range m.entries {
		if re.MatchString(key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// PurgeExpired removes every entry past its TTL and returns the count.
// Called periodically by the sweep worker.
func (m *Manager) PurgeExpired() int {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for key, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, key)
			purged++
		}
	}
	if purged > 0 {
		m.ttlEvictions += int64(purged)
		if m.metrics != nil {
			m.metrics.RecordEviction("ttl", purged)
		}
		if m.logger != nil {
			m.logger.Cache().Debug("Purged expired cache entries", "count", purged)
		}
	}
	return purged
}

// enforceTypeCeilingLocked evicts least recently accessed entries of one type
// until the configured ceiling holds. Caller holds m.mu.
func (m *Manager) enforceTypeCeilingLocked(t types.EntryType) {
	ceiling := types.MaxEntries(t)
	if ceiling <= 0 {
		return
	}
	var ofType []*types.CacheEntry
	for _, entry := range m.entries {
		if entry.Meta.Type == t {
			ofType = append(ofType, entry)
		}
	}
	excess := len(ofType) - ceiling
	if excess <= 0 {
		return
	}
	sortByLastAccessed(ofType)
	for i := 0; i < excess; i++ {
		delete(m.entries, ofType[i].Key)
	}
	m.evictions += int64(excess)
	m.lastEviction = time.Now().UTC()
	if m.metrics != nil {
		m.metrics.RecordEviction("ceiling", excess)
	}
	if m.logger != nil {
		m.logger.Memory().Info("Evicted entries over type ceiling",
			"type", string(t), "ceiling", ceiling, "evicted", excess)
	}
}

// totalSizeLocked sums SizeEstimate across all entries. Caller holds m.mu.
func (m *Manager) totalSizeLocked() int64 {
	var total int64
	for _, entry := range m.entries {
		total += entry.Meta.SizeEstimate
	}
	return total
}

// namespaceOf extracts "owner:collection" from a full cache key
func namespaceOf(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + ":" + parts[1]
}

// estimateSize approximates the in-memory footprint of a cached value.
// Strings count two bytes per character, byte slices their length, and
// structured values twice their JSON length.
func estimateSize(value any) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case string:
		return int64(2 * len(v))
	case []byte:
		return int64(len(v))
	case []types.Record:
		var total int64
		for _, rec := range v {
			total += estimateSize(map[string]any(rec))
		}
		return total
	case []any:
		var total int64
		for _, item := range v {
			total += estimateSize(item)
		}
		return total
	case bool, int, int64, float64:
		return 8
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return 64
		}
		return int64(2 * len(raw))
	}
}

// Close stops the background workers started by StartWatchdog
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}
