package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashQueryKeyOrderInvariance(t *testing.T) {
	tests := []struct {
		name string
		a    map[string]any
		b    map[string]any
	}{
		{
			name: "flat keys reordered",
			a:    map[string]any{"category": "work", "status": "open"},
			b:    map[string]any{"status": "open", "category": "work"},
		},
		{
			name: "nested object keys reordered",
			a:    map[string]any{"meta": map[string]any{"x": 1.0, "y": 2.0}, "id": "a"},
			b:    map[string]any{"id": "a", "meta": map[string]any{"y": 2.0, "x": 1.0}},
		},
		{
			name: "operator objects reordered",
			a:    map[string]any{"_date_modified": map[string]any{"$gte": 10.0, "$lt": 20.0}},
			b:    map[string]any{"_date_modified": map[string]any{"$lt": 20.0, "$gte": 10.0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, HashQuery(tt.a, Options{}), HashQuery(tt.b, Options{}))
		})
	}
}

func TestHashQueryArrayOrderSignificant(t *testing.T) {
	a := map[string]any{"tags": []any{"a", "b"}}
	b := map[string]any{"tags": []any{"b", "a"}}
	assert.NotEqual(t, HashQuery(a, Options{}), HashQuery(b, Options{}))
}

func TestHashQueryOptionsSeparateFromPredicate(t *testing.T) {
	q := map[string]any{"category": "work"}

	withOpts := HashQuery(q, Options{Sort: map[string]int{"_date_modified": -1}})
	withoutOpts := HashQuery(q, Options{})
	assert.NotEqual(t, withoutOpts, withOpts)

	// Same options in a different map literal hash the same
	again := HashQuery(q, Options{Sort: map[string]int{"_date_modified": -1}})
	assert.Equal(t, withOpts, again)
}

func TestHashQueryDistinguishesValues(t *testing.T) {
	assert.NotEqual(t,
		HashQuery(map[string]any{"a": "1"}, Options{}),
		HashQuery(map[string]any{"a": 1.0}, Options{}))
	assert.NotEqual(t,
		HashQuery(map[string]any{"a": nil}, Options{}),
		HashQuery(map[string]any{}, Options{}))
}
