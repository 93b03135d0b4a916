package mapper

import (
	"context"
	"strings"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/model"
)

// RestaurantTypeMapper maps model.RestaurantType to the restaurant_types table
type RestaurantTypeMapper struct {
	pc    *PersistenceContext
	gw    *gateway[restaurantTypeRow]
	cache *EntityCache[*model.RestaurantType]
}

func newRestaurantTypeMapper(pc *PersistenceContext) *RestaurantTypeMapper {
	gw := newGateway[restaurantTypeRow](pc, GeneratedOnInsert, "")
	return &RestaurantTypeMapper{
		pc:    pc,
		gw:    gw,
		cache: NewEntityCache[*model.RestaurantType](pc.scope.Tagged(map[string]string{"table": gw.table})),
	}
}

// FindByID returns the type with the given id, nil if there is none
func (m *RestaurantTypeMapper) FindByID(ctx context.Context, id int64) (*model.RestaurantType, error) {
	if t, ok := m.cache.Get(id); ok {
		return t, nil
	}
	if m.cache.Removed(id) {
		return nil, nil
	}

	row, err := m.gw.findByID(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	return m.materialize(row), nil
}

// FindByLabel returns the type whose label matches, ignoring case
func (m *RestaurantTypeMapper) FindByLabel(ctx context.Context, label string) (*model.RestaurantType, error) {
	row, err := m.gw.selectOne(ctx, m.gw.builder().Where("LOWER(label)", db.Equal, strings.ToLower(label)))
	if err != nil || row == nil {
		return nil, err
	}
	return m.materialize(row), nil
}

// FindAll re-reads every type, dropping previously cached ones
func (m *RestaurantTypeMapper) FindAll(ctx context.Context) ([]*model.RestaurantType, error) {
	m.cache.Clear()
	rows, err := m.gw.selectMany(ctx, m.gw.builder().OrderBy("label", false))
	if err != nil {
		return nil, err
	}

	types := make([]*model.RestaurantType, 0, len(rows))
	for i := range rows {
		types = append(types, m.materialize(&rows[i]))
	}
	return types, nil
}

func (m *RestaurantTypeMapper) materialize(row *restaurantTypeRow) *model.RestaurantType {
	if t, ok := m.cache.Get(row.ID); ok {
		return t
	}
	t := &model.RestaurantType{ID: row.ID, Label: row.Label, Description: row.Description}
	m.cache.Put(t)
	return t
}

// Create inserts t and assigns its generated id
func (m *RestaurantTypeMapper) Create(ctx context.Context, t *model.RestaurantType) (*model.RestaurantType, error) {
	if t == nil {
		return nil, invalidArgument("restaurant type is nil")
	}
	if t.ID != 0 {
		return nil, invalidArgument("restaurant type %d is already persisted", t.ID)
	}

	row := restaurantTypeRow{Label: t.Label, Description: t.Description}
	if err := m.gw.insert(ctx, &row); err != nil {
		return nil, err
	}

	t.ID = row.ID
	m.pc.remember(func() { t.ID = 0 })
	m.cache.Put(t)
	m.pc.touched(ctx)
	return t, nil
}

// Update writes the fields of t and reports whether the row exists
func (m *RestaurantTypeMapper) Update(ctx context.Context, t *model.RestaurantType) (bool, error) {
	if t == nil || t.ID == 0 {
		return false, invalidArgument("restaurant type is nil or unpersisted")
	}
	ok, err := m.gw.update(ctx, t.ID, []string{"label", "description"}, t.Label, t.Description)
	if ok {
		m.pc.touched(ctx)
	}
	return ok, err
}

// Delete removes t. A type still referenced by restaurants cannot be
// deleted.
func (m *RestaurantTypeMapper) Delete(ctx context.Context, t *model.RestaurantType) (bool, error) {
	if t == nil || t.ID == 0 {
		return false, invalidArgument("restaurant type is nil or unpersisted")
	}
	return m.DeleteByID(ctx, t.ID)
}

// DeleteByID removes the type with the given id
func (m *RestaurantTypeMapper) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return false, invalidArgument("restaurant type id is zero")
	}
	ok, err := m.gw.deleteByID(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	m.cache.Remove(id)
	m.pc.touched(ctx)
	return true, nil
}

// Exists reports whether the type is stored
func (m *RestaurantTypeMapper) Exists(ctx context.Context, id int64) (bool, error) {
	return m.gw.exists(ctx, id)
}

// Count returns the number of stored types
func (m *RestaurantTypeMapper) Count(ctx context.Context) (int64, error) {
	return m.gw.count(ctx, m.gw.builder())
}
