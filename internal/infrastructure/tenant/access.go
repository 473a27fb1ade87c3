package tenant

import (
	"context"
	"fmt"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/query"
	"github.com/homevault/homevault-go/internal/infrastructure/caching/types"
)

// RecordAccess is the read/write surface for one owner's records. Reads go
// through the collection cache first; writes go to the store and then mark
// the cache dirty. This is the layer request handlers call.
type RecordAccess struct {
	owner   string
	manager *Manager
}

// AccessFor returns the record access layer for an active owner
func (m *Manager) AccessFor(ownerID string) (*RecordAccess, error) {
	if _, err := m.GetUserCache(ownerID); err != nil {
		return nil, err
	}
	return &RecordAccess{owner: ownerID, manager: m}, nil
}

// Query serves a read from the cache when possible, otherwise from the
// record store, populating the cache with the result.
func (a *RecordAccess) Query(ctx context.Context, coll string, predicate map[string]any, opts query.Options) ([]types.Record, error) {
	cached, err := a.manager.CollectionFor(a.owner, coll)
	if err != nil {
		return nil, err
	}

	if result := cached.Query(predicate, opts); result.Found {
		return result.Records, nil
	}

	records, err := a.manager.store.Query(ctx, a.owner, coll, predicate, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s:%s: %w", a.owner, coll, err)
	}
	if err := cached.SetQuery(predicate, records, opts); err != nil {
		// Cache population failure never fails the read.
		if a.manager.logger != nil {
			a.manager.logger.Cache().Warn("Failed to populate cache from query result",
				"ownerId", a.owner, "table", coll, "error", err.Error())
		}
	}
	return records, nil
}

// Create inserts a record and invalidates affected cache entries
func (a *RecordAccess) Create(ctx context.Context, coll string, rec types.Record) (types.Record, error) {
	cached, err := a.manager.CollectionFor(a.owner, coll)
	if err != nil {
		return nil, err
	}
	created, err := a.manager.store.Create(ctx, a.owner, coll, rec)
	if err != nil {
		return nil, err
	}
	if err := cached.MarkDirty(created.ID(), nil, created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces a record and invalidates affected cache entries. The old
// record is fetched first so pattern-based invalidation covers both the
// previous and the new field values.
func (a *RecordAccess) Update(ctx context.Context, coll string, rec types.Record) (types.Record, error) {
	cached, err := a.manager.CollectionFor(a.owner, coll)
	if err != nil {
		return nil, err
	}
	old := a.lookupByID(ctx, coll, rec.ID())
	updated, err := a.manager.store.Update(ctx, a.owner, coll, rec)
	if err != nil {
		return nil, err
	}
	if err := cached.MarkDirty(updated.ID(), old, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a record and invalidates affected cache entries
func (a *RecordAccess) Delete(ctx context.Context, coll, id string) error {
	cached, err := a.manager.CollectionFor(a.owner, coll)
	if err != nil {
		return err
	}
	old := a.lookupByID(ctx, coll, id)
	if err := a.manager.store.Delete(ctx, a.owner, coll, id); err != nil {
		return err
	}
	return cached.MarkDirty(id, old, nil)
}

func (a *RecordAccess) lookupByID(ctx context.Context, coll, id string) types.Record {
	if id == "" {
		return nil
	}
	records, err := a.manager.store.Query(ctx, a.owner, coll, map[string]any{types.FieldID: id}, query.Options{})
	if err != nil || len(records) != 1 {
		return nil
	}
	return records[0]
}
