package mapper

import (
	"github.com/ammar0144/guideresto/pkg/model"

	"github.com/uber-go/tally/v4"
)

// EntityCache is the identity map of one entity kind. It hands out the
// same pointer for an id until the entry is removed or the cache cleared.
// Removed ids are remembered so that a finder can answer "absent" without
// going back to storage.
type EntityCache[T model.Keyed] struct {
	entries map[int64]T
	removed map[int64]struct{}

	hits   tally.Counter
	misses tally.Counter
}

// NewEntityCache returns an empty cache reporting hits and misses on scope
func NewEntityCache[T model.Keyed](scope tally.Scope) *EntityCache[T] {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &EntityCache[T]{
		entries: make(map[int64]T),
		removed: make(map[int64]struct{}),
		hits:    scope.Counter("identity.hit"),
		misses:  scope.Counter("identity.miss"),
	}
}

// Get returns the cached entity for id
func (c *EntityCache[T]) Get(id int64) (T, bool) {
	e, ok := c.entries[id]
	if ok {
		c.hits.Inc(1)
	} else {
		c.misses.Inc(1)
	}
	return e, ok
}

// Put registers e under its key. Unpersisted entities are ignored.
func (c *EntityCache[T]) Put(e T) {
	id := e.Key()
	if id == 0 {
		return
	}
	c.entries[id] = e
	delete(c.removed, id)
}

// Remove evicts id and remembers it as deleted
func (c *EntityCache[T]) Remove(id int64) {
	delete(c.entries, id)
	c.removed[id] = struct{}{}
}

// Evict drops id without remembering it as deleted
func (c *EntityCache[T]) Evict(id int64) {
	delete(c.entries, id)
}

// Removed reports whether id was deleted in this session
func (c *EntityCache[T]) Removed(id int64) bool {
	_, ok := c.removed[id]
	return ok
}

// Clear drops every entry and tombstone
func (c *EntityCache[T]) Clear() {
	c.entries = make(map[int64]T)
	c.removed = make(map[int64]struct{})
}

// Len returns the number of cached entities
func (c *EntityCache[T]) Len() int {
	return len(c.entries)
}

// Values returns the cached entities in no particular order
func (c *EntityCache[T]) Values() []T {
	out := make([]T, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}
