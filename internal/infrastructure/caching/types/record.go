package types

// Well-known record fields. Every record carries a unique id plus creation
// and modification timestamps in epoch milliseconds.
const (
	FieldID       = "_id"
	FieldCreated  = "_date_created"
	FieldModified = "_date_modified"
)

// Record is an arbitrary document held in an app table
type Record map[string]any

// ID returns the record's unique identifier, or "" when absent
func (r Record) ID() string {
	if id, ok := r[FieldID].(string); ok {
		return id
	}
	return ""
}

// Modified returns the record's modification time in epoch milliseconds.
// JSON decoding yields float64 for numbers; integer values are accepted too.
func (r Record) Modified() float64 {
	return numberField(r[FieldModified])
}

// Created returns the record's creation time in epoch milliseconds
func (r Record) Created() float64 {
	return numberField(r[FieldCreated])
}

func numberField(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// Clone returns a shallow copy of the record
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
