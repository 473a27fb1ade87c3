// Package interfaces defines cache operation contracts for the multi-tenant
// cache tier. Scoped stores are capability objects: the granted prefix is
// fixed at construction and every operation validates against it, so a holder
// can never address keys outside its own owner or collection.
package interfaces

import (
	"errors"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
)

// ErrSecurityViolation is returned when a key or pattern falls outside the
// caller's granted prefix. It is never silently corrected.
var ErrSecurityViolation = errors.New("cache key outside granted scope")

// EntryOptions carries per-entry metadata overrides for Set. Zero values
// fall back to the per-type defaults from configuration.
type EntryOptions struct {
	Type       types.EntryType
	Priority   int
	TTLSeconds int
}

// ScopedStore is the only way cache layers reach the underlying store.
// All keys follow the owner:collection:type:parts... format.
type ScopedStore interface {
	Get(key string) (any, bool, error)
	Set(key string, value any, opts EntryOptions) error
	Delete(key string) error
	DeletePattern(pattern string) error
	GetKeys(pattern string) ([]string, error)
}

// AdminCache is the process-wide administrative surface of the cache manager
type AdminCache interface {
	ClearAll()
	ClearNamespace(namespace string) int
	ClearUser(ownerID string) int
	AdminDelete(key string) bool
	InspectEntry(key string) (types.EntryMetadata, bool)
	ListUsers() []string
	GetStats() types.StoreStats
	GetPreferences(ownerID, collection string) (types.CachePreferences, bool)
}
