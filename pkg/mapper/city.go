package mapper

import (
	"context"

	"github.com/ammar0144/guideresto/pkg/model"
)

// CityMapper maps model.City to the cities table
type CityMapper struct {
	pc    *PersistenceContext
	gw    *gateway[cityRow]
	cache *EntityCache[*model.City]
}

func newCityMapper(pc *PersistenceContext) *CityMapper {
	gw := newGateway[cityRow](pc, GeneratedOnInsert, "")
	return &CityMapper{
		pc:    pc,
		gw:    gw,
		cache: NewEntityCache[*model.City](pc.scope.Tagged(map[string]string{"table": gw.table})),
	}
}

// FindByID returns the city with the given id, nil if there is none
func (m *CityMapper) FindByID(ctx context.Context, id int64) (*model.City, error) {
	if c, ok := m.cache.Get(id); ok {
		return c, nil
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

// FindAll re-reads every city, dropping previously cached ones
func (m *CityMapper) FindAll(ctx context.Context) ([]*model.City, error) {
	m.cache.Clear()
	rows, err := m.gw.selectMany(ctx, m.gw.builder().OrderBy("name", false))
	if err != nil {
		return nil, err
	}

	cities := make([]*model.City, 0, len(rows))
	for i := range rows {
		cities = append(cities, m.materialize(&rows[i]))
	}
	return cities, nil
}

func (m *CityMapper) materialize(row *cityRow) *model.City {
	if c, ok := m.cache.Get(row.ID); ok {
		return c
	}
	c := &model.City{ID: row.ID, ZipCode: row.ZipCode, Name: row.Name}
	m.cache.Put(c)
	return c
}

// Create inserts c and assigns its generated id
func (m *CityMapper) Create(ctx context.Context, c *model.City) (*model.City, error) {
	if c == nil {
		return nil, invalidArgument("city is nil")
	}
	if c.ID != 0 {
		return nil, invalidArgument("city %d is already persisted", c.ID)
	}

	row := cityRow{ZipCode: c.ZipCode, Name: c.Name}
	if err := m.gw.insert(ctx, &row); err != nil {
		return nil, err
	}

	c.ID = row.ID
	m.pc.remember(func() { c.ID = 0 })
	m.cache.Put(c)
	m.pc.touched(ctx)
	return c, nil
}

// Update writes the fields of c and reports whether the row exists
func (m *CityMapper) Update(ctx context.Context, c *model.City) (bool, error) {
	if c == nil || c.ID == 0 {
		return false, invalidArgument("city is nil or unpersisted")
	}
	ok, err := m.gw.update(ctx, c.ID, []string{"zip_code", "name"}, c.ZipCode, c.Name)
	if ok {
		m.pc.touched(ctx)
	}
	return ok, err
}

// Delete removes c. A city still referenced by restaurants cannot be
// deleted; the store reports it as a storage failure.
func (m *CityMapper) Delete(ctx context.Context, c *model.City) (bool, error) {
	if c == nil || c.ID == 0 {
		return false, invalidArgument("city is nil or unpersisted")
	}
	return m.DeleteByID(ctx, c.ID)
}

// DeleteByID removes the city with the given id
func (m *CityMapper) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return false, invalidArgument("city id is zero")
	}
	ok, err := m.gw.deleteByID(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	m.cache.Remove(id)
	m.pc.touched(ctx)
	return true, nil
}

// Exists reports whether the city is stored
func (m *CityMapper) Exists(ctx context.Context, id int64) (bool, error) {
	return m.gw.exists(ctx, id)
}

// Count returns the number of stored cities
func (m *CityMapper) Count(ctx context.Context) (int64, error) {
	return m.gw.count(ctx, m.gw.builder())
}
