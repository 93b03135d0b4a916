package mapper

import (
	"testing"

	"github.com/ammar0144/guideresto/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/uber-go/tally/v4"
)

func TestEntityCacheReturnsSameInstance(t *testing.T) {
	scope := tally.NewTestScope("", nil)
	cache := NewEntityCache[*model.City](scope)

	c := &model.City{ID: 3, Name: "Neuchâtel"}
	cache.Put(c)

	got, ok := cache.Get(3)
	assert.True(t, ok)
	assert.Same(t, c, got)

	_, ok = cache.Get(4)
	assert.False(t, ok)

	values := map[string]int64{}
	for _, c := range scope.Snapshot().Counters() {
		values[c.Name()] += c.Value()
	}
	assert.Equal(t, int64(1), values["identity.hit"])
	assert.Equal(t, int64(1), values["identity.miss"])
}

func TestEntityCacheTombstones(t *testing.T) {
	cache := NewEntityCache[*model.City](nil)
	c := &model.City{ID: 7}
	cache.Put(c)

	cache.Remove(7)
	_, ok := cache.Get(7)
	assert.False(t, ok)
	assert.True(t, cache.Removed(7))

	// storing the id again revives it
	cache.Put(c)
	assert.False(t, cache.Removed(7))

	cache.Remove(7)
	cache.Clear()
	assert.False(t, cache.Removed(7))
	assert.Zero(t, cache.Len())
}

func TestEntityCacheEvictForgets(t *testing.T) {
	cache := NewEntityCache[*model.Grade](nil)
	cache.Put(&model.Grade{ID: 1})
	cache.Evict(1)

	_, ok := cache.Get(1)
	assert.False(t, ok)
	assert.False(t, cache.Removed(1))
}

func TestEntityCacheIgnoresUnpersisted(t *testing.T) {
	cache := NewEntityCache[*model.City](nil)
	cache.Put(model.NewCity("2000", "Neuchâtel"))
	assert.Zero(t, cache.Len())

	cache.Put(&model.City{ID: 1})
	cache.Put(&model.City{ID: 2})
	assert.Len(t, cache.Values(), 2)
}
