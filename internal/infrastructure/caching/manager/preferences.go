package manager

import (
	"sync"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
)

// preferenceStore holds caching preferences per collection name, with
// per-owner overrides layered over global defaults.
type preferenceStore struct {
	mu      sync.RWMutex
	globals map[string]types.CachePreferences
	owners  map[string]map[string]types.CachePreferences
}

func newPreferenceStore() preferenceStore {
	return preferenceStore{
		globals: make(map[string]types.CachePreferences),
		owners:  make(map[string]map[string]types.CachePreferences),
	}
}

// SetGlobalPreferences registers default preferences for a collection name,
// applied to every owner without an override.
func (m *Manager) SetGlobalPreferences(collection string, prefs types.CachePreferences) {
	m.prefs.mu.Lock()
	defer m.prefs.mu.Unlock()
	m.prefs.globals[collection] = prefs
}

// SetOwnerPreferences registers an owner-specific override for a collection
func (m *Manager) SetOwnerPreferences(ownerID, collection string, prefs types.CachePreferences) {
	m.prefs.mu.Lock()
	defer m.prefs.mu.Unlock()
	byCollection, found := m.prefs.owners[ownerID]
	if !found {
		byCollection = make(map[string]types.CachePreferences)
		m.prefs.owners[ownerID] = byCollection
	}
	byCollection[collection] = prefs
}

// GetPreferences resolves preferences for one owner and collection.
// Owner override wins over the global default; found is false when
// neither exists and the collection should not be cached.
func (m *Manager) GetPreferences(ownerID, collection string) (types.CachePreferences, bool) {
	m.prefs.mu.RLock()
	defer m.prefs.mu.RUnlock()
	if byCollection, ok := m.prefs.owners[ownerID]; ok {
		if prefs, ok := byCollection[collection]; ok {
			return prefs, true
		}
	}
	prefs, ok := m.prefs.globals[collection]
	return prefs, ok
}
