package query

import (
	"sort"
	"strconv"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
)

// Kind labels the cacheable shape of a query
type Kind int

const (
	// KindEmpty matches a zero-field predicate, optionally with a sort on
	// the modification timestamp
	KindEmpty Kind = iota
	// KindSimple matches a one-field equality predicate with a cacheable
	// value and no options
	KindSimple
	// KindDateGT matches a predicate constraining the modification
	// timestamp with $gt or $gte
	KindDateGT
	// KindCompound matches a multi-field equality predicate whose field set
	// equals a declared cache pattern
	KindCompound
	// KindGeneral is everything else
	KindGeneral
)

// Classification is the result of classifying a query against declared
// cache patterns
type Classification struct {
	Kind Kind

	// Simple equality
	Field string
	Value any

	// Date bound
	Bound          float64
	Inclusive      bool
	HasOtherFields bool

	// Matched multi-field pattern
	Pattern []string
}

// IsCacheableValue reports whether a value may participate in a cache key.
// Only strings and numbers qualify: keys are built by string concatenation,
// and booleans would collide with their string forms, while objects, arrays
// and null would conflate missing-vs-present semantics.
func IsCacheableValue(v any) bool {
	if _, ok := v.(string); ok {
		return true
	}
	_, ok := asFloat(v)
	return ok
}

// ValueKeyString renders a cacheable value for use inside a cache key
func ValueKeyString(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if n, ok := asFloat(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

// Classify determines which cache shape can serve a query, given the
// declared multi-field patterns for the collection.
func Classify(q map[string]any, opts Options, patterns [][]string) Classification {
	if len(q) == 0 {
		if opts.onlyModifiedSort() {
			return Classification{Kind: KindEmpty}
		}
		return Classification{Kind: KindGeneral}
	}

	if c, ok := classifyDateBound(q); ok {
		return c
	}

	if len(q) == 1 && opts.IsZero() {
		for field, value := range q {
			if IsCacheableValue(value) {
				return Classification{Kind: KindSimple, Field: field, Value: value}
			}
		}
	}

	if opts.IsZero() {
		if pattern, ok := matchPattern(q, patterns); ok {
			return Classification{Kind: KindCompound, Pattern: pattern}
		}
	}

	return Classification{Kind: KindGeneral}
}

// classifyDateBound recognizes {_date_modified: {$gt|$gte: ts}} predicates,
// flagging whether other fields constrain the query too
func classifyDateBound(q map[string]any) (Classification, bool) {
	raw, present := q[types.FieldModified]
	if !present {
		return Classification{}, false
	}
	sub, ok := raw.(map[string]any)
	if !ok || len(sub) != 1 {
		return Classification{}, false
	}

	for op, bound := range sub {
		n, isNum := asFloat(bound)
		if !isNum {
			return Classification{}, false
		}
		switch Op(op) {
		case OpGT:
			return Classification{Kind: KindDateGT, Bound: n, HasOtherFields: len(q) > 1}, true
		case OpGTE:
			return Classification{Kind: KindDateGT, Bound: n, Inclusive: true, HasOtherFields: len(q) > 1}, true
		}
	}
	return Classification{}, false
}

// matchPattern finds a declared multi-field pattern whose field set equals
// the predicate's field set, order ignored; every value must be a plain
// cacheable equality.
func matchPattern(q map[string]any, patterns [][]string) ([]string, bool) {
	for _, value := range q {
		if !IsCacheableValue(value) {
			return nil, false
		}
	}

	queryFields := make([]string, 0, len(q))
	for f := range q {
		queryFields = append(queryFields, f)
	}
	sort.Strings(queryFields)

	for _, pattern := range patterns {
		if len(pattern) != len(queryFields) || len(pattern) < 2 {
			continue
		}
		sorted := append([]string(nil), pattern...)
		sort.Strings(sorted)
		match := true
		for i := range sorted {
			if sorted[i] != queryFields[i] {
				match = false
				break
			}
		}
		if match {
			return pattern, true
		}
	}
	return nil, false
}
