// Package recordstore provides the backing document store behind the cache
// tier. The cache core only sees the Store interface; the SQL adapter keeps
// records as JSON documents and evaluates predicates in memory with the same
// matcher the cache uses, so cached and uncached reads agree.
package recordstore

import (
	"context"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/query"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
)

// Store is the record store consumed by refresh functions and the record
// access layer. Every operation is scoped to one (owner, collection) pair.
type Store interface {
	Query(ctx context.Context, owner, coll string, predicate map[string]any, opts query.Options) ([]types.Record, error)
	Create(ctx context.Context, owner, coll string, rec types.Record) (types.Record, error)
	Update(ctx context.Context, owner, coll string, rec types.Record) (types.Record, error)
	Delete(ctx context.Context, owner, coll, id string) error
	Close() error
}
