package query

import "github.com/homevault/homevault-go/internal/infrastructure/caching/types"

// BuildQueryFromPattern extracts the named fields from a record into an
// equality predicate, for computing which cached queries a write could
// affect. Returns nil when any field is missing or not cacheable.
func BuildQueryFromPattern(rec types.Record, fields []string) map[string]any {
	q := make(map[string]any, len(fields))
	for _, f := range fields {
		v, present := rec[f]
		if !present || !IsCacheableValue(v) {
			return nil
		}
		q[f] = v
	}
	return q
}

// IsRecentCacheComplete reports whether the Recent set can answer a
// modification-date range query authoritatively: true iff the oldest record's
// modification time is at or before the queried lower bound, meaning no
// record in the range can be missing from the set.
func IsRecentCacheComplete(records []types.Record, bound float64) bool {
	if len(records) == 0 {
		return false
	}
	oldest := records[0].Modified()
	for _, rec := range records[1:] {
		if m := rec.Modified(); m < oldest {
			oldest = m
		}
	}
	return oldest <= bound
}
