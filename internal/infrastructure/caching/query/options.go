// Package query implements the in-memory document query engine: deterministic
// predicate fingerprinting, query-shape classification, and record matching
// compatible with the backing store's query semantics.
package query

import "github.com/homevault/homevault-go/internal/infrastructure/caching/types"

// Options carries the non-predicate parts of a query
type Options struct {
	Sort  map[string]int `json:"sort,omitempty"` // field -> 1 ascending, -1 descending
	Skip  int            `json:"skip,omitempty"`
	Limit int            `json:"limit,omitempty"`
}

// IsZero reports whether no option is set
func (o Options) IsZero() bool {
	return len(o.Sort) == 0 && o.Skip == 0 && o.Limit == 0
}

// onlyModifiedSort reports whether the options carry at most a sort on the
// record modification timestamp and nothing else
func (o Options) onlyModifiedSort() bool {
	if o.Skip != 0 || o.Limit != 0 {
		return false
	}
	if len(o.Sort) == 0 {
		return true
	}
	if len(o.Sort) != 1 {
		return false
	}
	_, ok := o.Sort[types.FieldModified]
	return ok
}

// asMap converts options to a generic map for fingerprinting
func (o Options) asMap() map[string]any {
	m := make(map[string]any)
	if len(o.Sort) > 0 {
		sort := make(map[string]any, len(o.Sort))
		for k, v := range o.Sort {
			sort[k] = v
		}
		m["sort"] = sort
	}
	if o.Skip != 0 {
		m["skip"] = o.Skip
	}
	if o.Limit != 0 {
		m["limit"] = o.Limit
	}
	return m
}
