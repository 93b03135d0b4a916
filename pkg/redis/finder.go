package redis

import (
	"context"
)

// FinderCache stores the id lists returned by finder queries. Entries live
// under "<prefix>:<namespace>:<table>:<finder>:<fingerprint>" so that a
// write to a table can drop every cached result that read it.
type FinderCache struct {
	manager   *Manager
	namespace string
}

// NewFinderCache returns a finder cache scoped to namespace, normally the
// database name, so two stores sharing one Redis never see each other's ids.
func NewFinderCache(m *Manager, namespace string) *FinderCache {
	return &FinderCache{manager: m, namespace: namespace}
}

// Enabled reports whether lookups can hit
func (f *FinderCache) Enabled() bool {
	return f != nil && f.manager.Enabled()
}

// Lookup returns the cached ids for a finder call. ok is false on a miss.
func (f *FinderCache) Lookup(ctx context.Context, table, finder, fingerprint string) (ids []int64, ok bool, err error) {
	if !f.Enabled() {
		return nil, false, nil
	}

	if err := f.manager.GetValue(ctx, f.key(table, finder, fingerprint), &ids); err != nil {
		if IsKeyNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return ids, true, nil
}

// Store caches the ids returned by a finder call
func (f *FinderCache) Store(ctx context.Context, table, finder, fingerprint string, ids []int64) error {
	if !f.Enabled() {
		return nil
	}
	if ids == nil {
		ids = []int64{}
	}
	return f.manager.SetValue(ctx, f.key(table, finder, fingerprint), ids)
}

// InvalidateTable drops every cached result that read table
func (f *FinderCache) InvalidateTable(ctx context.Context, table string) error {
	if !f.Enabled() {
		return nil
	}
	return f.manager.InvalidatePattern(ctx, f.manager.Key(f.namespace, table, "*"))
}

// InvalidateAll drops every cached result of the namespace
func (f *FinderCache) InvalidateAll(ctx context.Context) error {
	if !f.Enabled() {
		return nil
	}
	return f.manager.InvalidatePattern(ctx, f.manager.Key(f.namespace, "*"))
}

func (f *FinderCache) key(table, finder, fingerprint string) string {
	return f.manager.Key(f.namespace, table, finder, fingerprint)
}
