package query

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// HashQuery produces a deterministic string fingerprint of a predicate and
// its options. Object keys are sorted recursively before serialization, so
// semantically identical queries with differing key order hash identically.
// Arrays keep their order. Options are normalized the same way but hashed as
// a separate segment; callers wanting shape-only hashing pass Options{}.
func HashQuery(predicate map[string]any, opts Options) string {
	var b strings.Builder
	writeCanonical(&b, predicate)
	b.WriteByte('|')
	writeCanonical(&b, opts.asMap())

	h := fnv.New64a()
	h.Write([]byte(b.String()))
	return strconv.FormatUint(h.Sum64(), 16)
}

// writeCanonical serializes a value with recursively sorted object keys
func writeCanonical(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeCanonical(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
	case []string:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(item))
		}
		b.WriteByte(']')
	case string:
		b.WriteString(strconv.Quote(val))
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	case float32:
		b.WriteString(strconv.FormatFloat(float64(val), 'f', -1, 64))
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	default:
		// Uncommon payloads still hash deterministically via fmt
		fmt.Fprintf(b, "%#v", val)
	}
}
