// Package types defines cache data structures for the multi-tenant cache tier.
package types

import (
	"time"

	"github.com/homevault/homevault-go/pkg/config"
)

// EntryType classifies a cache entry for priority, TTL and ceiling lookup
type EntryType string

const (
	TypeAll     EntryType = "all"     // full collection snapshot
	TypeRecent  EntryType = "recent"  // bounded recency-ordered subset
	TypeModTime EntryType = "modtime" // file modification time marker
	TypeToken   EntryType = "token"   // signed file access token
	TypeFile    EntryType = "file"    // cached file content
	TypeByKey   EntryType = "bykey"   // single record keyed by one field value
	TypeQuery   EntryType = "query"   // records keyed by predicate fingerprint
)

// EntryMetadata describes a cache entry without exposing its value
type EntryMetadata struct {
	Type          EntryType `json:"type"`
	Namespace     string    `json:"namespace"` // "owner:collection"
	Priority      int       `json:"priority"`
	TTLSeconds    int       `json:"ttlSeconds"`
	CreatedAt     time.Time `json:"createdAt"`
	LastAccessed  time.Time `json:"lastAccessed"`
	AccessCount   int64     `json:"accessCount"`
	SizeEstimate  int64     `json:"sizeEstimateBytes"`
}

// CacheEntry is the stored unit owned exclusively by the cache manager.
// Keys follow the format owner:collection:type:parts...
type CacheEntry struct {
	Key   string
	Value any
	Meta  EntryMetadata
}

// Expired reports whether the entry has outlived its TTL
func (e *CacheEntry) Expired(now time.Time) bool {
	if e.Meta.TTLSeconds <= 0 {
		return false
	}
	return now.Sub(e.Meta.CreatedAt) > time.Duration(e.Meta.TTLSeconds)*time.Second
}

// DefaultPriority returns the eviction priority for an entry type.
// Higher values survive eviction longer.
func DefaultPriority(t EntryType) int {
	switch t {
	case TypeAll:
		return 100
	case TypeRecent:
		return 90
	case TypeModTime:
		return 80
	case TypeToken:
		return 60
	case TypeFile:
		return 50
	case TypeByKey:
		return 40
	case TypeQuery:
		return 10
	default:
		return 10
	}
}

// DefaultTTLSeconds returns the configured TTL for an entry type
func DefaultTTLSeconds(t EntryType) int {
	switch t {
	case TypeAll:
		return config.TTLAllSeconds
	case TypeRecent:
		return config.TTLRecentSeconds
	case TypeModTime:
		return config.TTLModTimeSeconds
	case TypeToken:
		return config.TTLTokenSeconds
	case TypeFile:
		return config.TTLFileSeconds
	case TypeByKey:
		return config.TTLByKeySeconds
	case TypeQuery:
		return config.TTLQuerySeconds
	default:
		return 0
	}
}

// MaxEntries returns the configured live-entry ceiling for an entry type.
// Zero means unbounded.
func MaxEntries(t EntryType) int {
	switch t {
	case TypeAll:
		return config.MaxAllEntries
	case TypeRecent:
		return config.MaxRecentEntries
	case TypeModTime:
		return config.MaxModTimeEntries
	case TypeToken:
		return config.MaxTokenEntries
	case TypeFile:
		return config.MaxFileEntries
	case TypeByKey:
		return config.MaxByKeyEntries
	case TypeQuery:
		return config.MaxQueryEntries
	default:
		return 0
	}
}
