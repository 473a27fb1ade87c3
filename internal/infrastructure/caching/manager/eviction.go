package manager

import (
	"sort"
	"time"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
	"github.com/homevault/homevault-go/pkg/config"
)

const (
	agePenaltyCap   = 10.0
	accessBonusCap  = 10.0
	protectedWindow = 24 * time.Hour
)

// evictionScore ranks an entry for survival. Lower scores go first.
// Age since last access erodes the score, repeated access restores it,
// both capped so neither term can dominate the type priority.
func evictionScore(entry *types.CacheEntry, now time.Time) float64 {
	ageMinutes := now.Sub(entry.Meta.LastAccessed).Minutes()
	if ageMinutes < 0 {
		ageMinutes = 0
	}
	agePenalty := ageMinutes / 60
	if agePenalty > agePenaltyCap {
		agePenalty = agePenaltyCap
	}
	accessBonus := float64(entry.Meta.AccessCount) * config.AccessCountWeight
	if accessBonus > accessBonusCap {
		accessBonus = accessBonusCap
	}
	return float64(entry.Meta.Priority) - agePenalty + accessBonus
}

// protected reports whether an entry is exempt from pressure eviction:
// authoritative shapes accessed within the last day stay put.
func protected(entry *types.CacheEntry, now time.Time) bool {
	if entry.Meta.Type != types.TypeAll && entry.Meta.Type != types.TypeRecent {
		return false
	}
	return now.Sub(entry.Meta.LastAccessed) < protectedWindow
}

// EvictUnderPressure scores every live entry and removes the lowest-scoring
// fraction. Protected entries are skipped unless nothing else remains.
// Returns the number of entries evicted.
func (m *Manager) EvictUnderPressure() int {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == 0 {
		return 0
	}

	candidates := make([]*types.CacheEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		candidates = append(candidates, entry)
	}
	sort.Slice(candidates, func(i, j int) bool {
		si, sj := evictionScore(candidates[i], now), evictionScore(candidates[j], now)
		if si != sj {
			return si < sj
		}
		return candidates[i].Key < candidates[j].Key
	})

	target := int(float64(len(candidates)) * config.EvictionFraction)
	if target < config.EvictionMinimum {
		target = config.EvictionMinimum
	}
	if target > len(candidates) {
		target = len(candidates)
	}

	evicted := 0
	for _, entry := range candidates {
		if evicted >= target {
			break
		}
		if protected(entry, now) {
			continue
		}
		delete(m.entries, entry.Key)
		evicted++
	}
	// Only protected entries left; take them lowest score first.
	if evicted < target {
		for _, entry := range candidates {
			if evicted >= target {
				break
			}
			if _, still := m.entries[entry.Key]; !still {
				continue
			}
			delete(m.entries, entry.Key)
			evicted++
		}
	}

	if evicted > 0 {
		m.evictions += int64(evicted)
		m.lastEviction = now
		if m.metrics != nil {
			m.metrics.RecordEviction("pressure", evicted)
		}
		if m.logger != nil {
			m.logger.Memory().Warn("Evicted cache entries under memory pressure",
				"evicted", evicted, "remaining", len(m.entries),
				"sizeBytes", m.totalSizeLocked())
		}
	}
	return evicted
}

func sortByLastAccessed(entries []*types.CacheEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Meta.LastAccessed.Before(entries[j].Meta.LastAccessed)
	})
}
