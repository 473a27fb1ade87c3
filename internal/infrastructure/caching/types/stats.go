package types

import "time"

// StoreStats summarizes the cache manager's store
type StoreStats struct {
	Entries        int              `json:"entries"`
	SizeBytes      int64            `json:"sizeBytes"`
	EntriesByType  map[string]int   `json:"entriesByType"`
	SizeByType     map[string]int64 `json:"sizeByType"`
	Evictions      int64            `json:"evictions"`
	TTLEvictions   int64            `json:"ttlEvictions"`
	Owners         int              `json:"owners"`
	LastEvictionAt time.Time        `json:"lastEvictionAt,omitempty"`
}

// TableStats summarizes hit/miss behavior of one collection cache
type TableStats struct {
	Hits       int64            `json:"hits"`
	Misses     int64            `json:"misses"`
	HitsByShape map[string]int64 `json:"hitsByShape"`
	Refreshes  int64            `json:"refreshes"`
	RefreshErrors int64         `json:"refreshErrors"`
}
