package query

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
)

// Matches reports whether a record satisfies a parsed predicate
func Matches(rec types.Record, p *Predicate) (bool, error) {
	for _, cond := range p.Conds {
		ok, err := matchCondition(rec[cond.Field], cond)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// FilterRecords applies a query document to a record set: match, then sort,
// skip and limit per the options. The input slice is not mutated.
func FilterRecords(records []types.Record, q map[string]any, opts Options) ([]types.Record, error) {
	pred, err := Parse(q)
	if err != nil {
		return nil, err
	}

	matched := make([]types.Record, 0, len(records))
	for _, rec := range records {
		ok, err := Matches(rec, pred)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, rec)
		}
	}

	applySort(matched, opts.Sort)

	if opts.Skip > 0 {
		if opts.Skip >= len(matched) {
			return []types.Record{}, nil
		}
		matched = matched[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}

	return matched, nil
}

// applySort orders records by the sort spec. Field order inside the spec map
// is not significant for single-field sorts, which is the dominant case; for
// multi-field sorts fields are applied in lexical order for determinism.
func applySort(records []types.Record, spec map[string]int) {
	if len(spec) == 0 {
		return
	}

	fields := make([]string, 0, len(spec))
	for f := range spec {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	sort.SliceStable(records, func(i, j int) bool {
		for _, f := range fields {
			dir := spec[f]
			c := compareValues(records[i][f], records[j][f])
			if c == 0 {
				continue
			}
			if dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func matchCondition(stored any, cond Condition) (bool, error) {
	if !cond.IsOps {
		return matchEquality(stored, cond.Equals), nil
	}

	for _, clause := range cond.Ops {
		ok, err := matchOp(stored, clause)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// matchEquality implements plain equality with the implicit any-element rule:
// when the stored value is an array and the query value is not an array, the
// predicate matches if any element matches. This mirrors the backing store's
// own equality semantics.
func matchEquality(stored, queryValue any) bool {
	if storedArr, ok := stored.([]any); ok {
		if _, queryIsArr := queryValue.([]any); !queryIsArr {
			for _, elem := range storedArr {
				if deepEqual(elem, queryValue) {
					return true
				}
			}
			return false
		}
	}
	return deepEqual(stored, queryValue)
}

func matchOp(stored any, clause OpClause) (bool, error) {
	switch clause.Op {
	case OpLT, OpLTE, OpGT, OpGTE:
		c, comparable := tryCompare(stored, clause.Value)
		if !comparable {
			return false, nil
		}
		switch clause.Op {
		case OpLT:
			return c < 0, nil
		case OpLTE:
			return c <= 0, nil
		case OpGT:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case OpNE:
		return !matchEquality(stored, clause.Value), nil
	case OpIn:
		list, ok := clause.Value.([]any)
		if !ok {
			return false, fmt.Errorf("$in requires an array value")
		}
		for _, candidate := range list {
			if matchEquality(stored, candidate) {
				return true, nil
			}
		}
		return false, nil
	case OpNin:
		list, ok := clause.Value.([]any)
		if !ok {
			return false, fmt.Errorf("$nin requires an array value")
		}
		for _, candidate := range list {
			if matchEquality(stored, candidate) {
				return false, nil
			}
		}
		return true, nil
	case OpRegex:
		pattern, ok := clause.Value.(string)
		if !ok {
			return false, fmt.Errorf("$regex requires a string pattern")
		}
		str, ok := stored.(string)
		if !ok {
			return false, nil
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid $regex pattern %q: %w", pattern, err)
		}
		return re.MatchString(str), nil
	case OpExists:
		want, ok := clause.Value.(bool)
		if !ok {
			return false, fmt.Errorf("$exists requires a boolean value")
		}
		return (stored != nil) == want, nil
	case OpSize:
		arr, ok := stored.([]any)
		if !ok {
			return false, nil
		}
		want := int(toFloat(clause.Value))
		return len(arr) == want, nil
	case OpElemMatch:
		arr, ok := stored.([]any)
		if !ok {
			return false, nil
		}
		inner := clause.Value.(*Predicate)
		for _, elem := range arr {
			elemMap, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			match, err := Matches(types.Record(elemMap), inner)
			if err != nil {
				return false, err
			}
			if match {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported query operator %q", clause.Op)
	}
}

// deepEqual implements structural equality: numbers compare by value,
// objects recursively key by key, arrays element by element. Missing values
// never equal present ones.
func deepEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if na, aIsNum := asFloat(a); aIsNum {
		nb, bIsNum := asFloat(b)
		return bIsNum && na == nb
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !deepEqual(v, other) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}

	return false
}

// tryCompare compares two values when both are numbers or both are strings
func tryCompare(a, b any) (int, bool) {
	if na, ok := asFloat(a); ok {
		if nb, ok := asFloat(b); ok {
			switch {
			case na < nb:
				return -1, true
			case na > nb:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			switch {
			case sa < sb:
				return -1, true
			case sa > sb:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return 0, false
}

// compareValues orders two values for sorting; non-comparable pairs tie
func compareValues(a, b any) int {
	if c, ok := tryCompare(a, b); ok {
		return c
	}
	return 0
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toFloat(v any) float64 {
	f, _ := asFloat(v)
	return f
}
