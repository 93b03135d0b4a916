package mapper

import (
	"context"
	"strings"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/model"

	"go.uber.org/multierr"
)

// DeletePolicy says what deleting a restaurant does with its evaluations
type DeletePolicy int

const (
	// RestrictEvaluations refuses to delete a restaurant that still has
	// evaluations (ErrHasDependents).
	RestrictEvaluations DeletePolicy = iota
	// CascadeEvaluations deletes the evaluations, and their grades, first.
	CascadeEvaluations
)

func (p DeletePolicy) String() string {
	switch p {
	case RestrictEvaluations:
		return "restrict"
	case CascadeEvaluations:
		return "cascade"
	default:
		return "unknown"
	}
}

// ParseDeletePolicy maps "restrict" and "cascade" to a policy
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch strings.ToLower(s) {
	case "", "restrict":
		return RestrictEvaluations, nil
	case "cascade":
		return CascadeEvaluations, nil
	default:
		return RestrictEvaluations, invalidArgument("unknown delete policy %q", s)
	}
}

// Finder names, used as finder cache key segments
const (
	finderByName = "by_name"
	finderByCity = "by_city"
	finderByType = "by_type"
)

// RestaurantMapper maps model.Restaurant to the restaurants table. A
// restaurant is hydrated with its city, its type and its full evaluation
// set.
type RestaurantMapper struct {
	pc    *PersistenceContext
	gw    *gateway[restaurantRow]
	cache *EntityCache[*model.Restaurant]

	cities    *CityMapper
	types     *RestaurantTypeMapper
	basics    *BasicEvaluationMapper
	completes *CompleteEvaluationMapper
}

func newRestaurantMapper(pc *PersistenceContext) *RestaurantMapper {
	gw := newGateway[restaurantRow](pc, GeneratedOnInsert, "")
	return &RestaurantMapper{
		pc:    pc,
		gw:    gw,
		cache: NewEntityCache[*model.Restaurant](pc.scope.Tagged(map[string]string{"table": gw.table})),
	}
}

// FindByID returns the restaurant with the given id, nil if there is none
func (m *RestaurantMapper) FindByID(ctx context.Context, id int64) (*model.Restaurant, error) {
	if r, ok := m.cache.Get(id); ok {
		return r, nil
	}
	if m.cache.Removed(id) {
		return nil, nil
	}

	row, err := m.gw.findByID(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}
	return m.materialize(ctx, row)
}

// FindAll re-reads every restaurant ordered by name, dropping previously
// cached ones
func (m *RestaurantMapper) FindAll(ctx context.Context) ([]*model.Restaurant, error) {
	m.cache.Clear()
	return m.findRows(ctx, m.gw.builder().OrderBy("name", false))
}

// FindByName returns the restaurants whose name contains substr, ignoring
// case
func (m *RestaurantMapper) FindByName(ctx context.Context, substr string) ([]*model.Restaurant, error) {
	pattern := "%" + strings.ToLower(substr) + "%"
	return m.findCached(ctx, finderByName, []interface{}{pattern}, func() *db.Builder {
		return m.gw.builder().
			Where("LOWER(name)", db.Like, pattern).
			OrderBy("name", false)
	})
}

// FindByExactName returns the restaurant named name, ignoring case
func (m *RestaurantMapper) FindByExactName(ctx context.Context, name string) (*model.Restaurant, error) {
	row, err := m.gw.selectOne(ctx, m.gw.builder().Where("LOWER(name)", db.Equal, strings.ToLower(name)))
	if err != nil || row == nil {
		return nil, err
	}
	return m.materialize(ctx, row)
}

// FindByCity returns the restaurants located in a city whose name contains
// substr, ignoring case
func (m *RestaurantMapper) FindByCity(ctx context.Context, substr string) ([]*model.Restaurant, error) {
	pattern := "%" + strings.ToLower(substr) + "%"
	return m.findCached(ctx, finderByCity, []interface{}{pattern}, func() *db.Builder {
		return db.NewBuilder(tableRestaurants+" r").
			Select("r.*").
			InnerJoin(tableCities+" c", "r.city_id = c.id").
			Where("LOWER(c.name)", db.Like, pattern).
			OrderBy("r.name", false)
	})
}

// FindByType returns the restaurants of the given type
func (m *RestaurantMapper) FindByType(ctx context.Context, typeID int64) ([]*model.Restaurant, error) {
	return m.findCached(ctx, finderByType, []interface{}{typeID}, func() *db.Builder {
		return m.gw.builder().
			Where("type_id", db.Equal, typeID).
			OrderBy("name", false)
	})
}

// findCached serves a finder from the finder cache when it holds the id
// list, and from the database otherwise
func (m *RestaurantMapper) findCached(ctx context.Context, finder string, args []interface{}, build func() *db.Builder) ([]*model.Restaurant, error) {
	inTx := m.pc.InTransaction()
	if ids, ok := m.pc.finders.lookup(ctx, inTx, m.gw.table, finder, args...); ok {
		restaurants := make([]*model.Restaurant, 0, len(ids))
		for _, id := range ids {
			r, err := m.FindByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if r != nil {
				restaurants = append(restaurants, r)
			}
		}
		return restaurants, nil
	}

	restaurants, err := m.findRows(ctx, build())
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(restaurants))
	for i, r := range restaurants {
		ids[i] = r.ID
	}
	m.pc.finders.store(ctx, inTx, m.gw.table, finder, ids, args...)
	return restaurants, nil
}

func (m *RestaurantMapper) findRows(ctx context.Context, b *db.Builder) ([]*model.Restaurant, error) {
	rows, err := m.gw.selectMany(ctx, b)
	if err != nil {
		return nil, err
	}

	restaurants := make([]*model.Restaurant, 0, len(rows))
	for i := range rows {
		r, err := m.materialize(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		restaurants = append(restaurants, r)
	}
	return restaurants, nil
}

// materialize returns the cached restaurant for row, or hydrates it: city
// and type first, then the restaurant is registered, then its evaluations
// are resolved. Evaluations point back at the restaurant and find it in the
// cache.
func (m *RestaurantMapper) materialize(ctx context.Context, row *restaurantRow) (*model.Restaurant, error) {
	if r, ok := m.cache.Get(row.ID); ok {
		return r, nil
	}

	city, err := m.cities.FindByID(ctx, row.CityID)
	if err != nil {
		return nil, err
	}
	if city == nil {
		return nil, danglingReference(m.gw.table, "city_id", row.CityID)
	}
	typ, err := m.types.FindByID(ctx, row.TypeID)
	if err != nil {
		return nil, err
	}
	if typ == nil {
		return nil, danglingReference(m.gw.table, "type_id", row.TypeID)
	}

	r := &model.Restaurant{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Website:     row.Website,
		Address:     model.Localisation{Street: row.Street, City: city},
		Type:        typ,
	}
	m.cache.Put(r)
	city.AddRestaurant(r)
	typ.AddRestaurant(r)

	if err := m.LoadEvaluations(ctx, r); err != nil {
		m.cache.Evict(r.ID)
		city.RemoveRestaurant(r)
		typ.RemoveRestaurant(r)
		return nil, err
	}
	return r, nil
}

// LoadEvaluations resolves the evaluation set of r, basic and complete
// evaluations together. On failure the set is left unloaded.
func (m *RestaurantMapper) LoadEvaluations(ctx context.Context, r *model.Restaurant) error {
	if r == nil || r.ID == 0 {
		return invalidArgument("restaurant is nil or unpersisted")
	}

	basics, err := m.basics.FindByRestaurant(ctx, r)
	if err != nil {
		r.ResetEvaluations()
		return err
	}
	completes, err := m.completes.FindByRestaurant(ctx, r)
	if err != nil {
		r.ResetEvaluations()
		return err
	}

	evaluations := make([]model.Evaluation, 0, len(basics)+len(completes))
	for _, e := range basics {
		evaluations = append(evaluations, e)
	}
	for _, e := range completes {
		evaluations = append(evaluations, e)
	}
	r.SetEvaluations(evaluations)
	return nil
}

func checkRestaurantRefs(r *model.Restaurant) error {
	if city := r.City(); city == nil || city.ID == 0 {
		return invalidArgument("restaurant %q has no persisted city", r.Name)
	}
	if r.Type == nil || r.Type.ID == 0 {
		return invalidArgument("restaurant %q has no persisted type", r.Name)
	}
	return nil
}

// Create inserts r, assigns its generated id and links it into its city
// and type
func (m *RestaurantMapper) Create(ctx context.Context, r *model.Restaurant) (*model.Restaurant, error) {
	if r == nil {
		return nil, invalidArgument("restaurant is nil")
	}
	if r.ID != 0 {
		return nil, invalidArgument("restaurant %d is already persisted", r.ID)
	}
	if err := checkRestaurantRefs(r); err != nil {
		return nil, err
	}

	row := m.toRow(r)
	if err := m.gw.insert(ctx, &row); err != nil {
		return nil, err
	}

	r.ID = row.ID
	m.pc.remember(func() { r.ID = 0 })
	if !r.EvaluationsLoaded() {
		r.SetEvaluations(nil)
	}
	m.cache.Put(r)
	m.link(r)
	m.pc.touched(ctx)
	return r, nil
}

// Update writes the fields of r. When its city or type changed, r moves
// between the restaurant sets of the cached cities and types.
func (m *RestaurantMapper) Update(ctx context.Context, r *model.Restaurant) (bool, error) {
	if r == nil || r.ID == 0 {
		return false, invalidArgument("restaurant is nil or unpersisted")
	}
	if err := checkRestaurantRefs(r); err != nil {
		return false, err
	}

	row := m.toRow(r)
	ok, err := m.gw.update(ctx, r.ID,
		[]string{"name", "description", "website", "street", "city_id", "type_id"},
		row.Name, row.Description, row.Website, row.Street, row.CityID, row.TypeID)
	if err != nil || !ok {
		return false, err
	}

	for _, c := range m.cities.cache.Values() {
		if c != r.City() && c.HasRestaurant(r) {
			c.RemoveRestaurant(r)
			m.pc.remember(func() { c.AddRestaurant(r) })
		}
	}
	for _, t := range m.types.cache.Values() {
		if t != r.Type && t.HasRestaurant(r) {
			t.RemoveRestaurant(r)
			m.pc.remember(func() { t.AddRestaurant(r) })
		}
	}
	m.link(r)
	m.pc.touched(ctx)
	return true, nil
}

// Delete removes r according to the delete policy and unlinks it from its
// city and type
func (m *RestaurantMapper) Delete(ctx context.Context, r *model.Restaurant) (bool, error) {
	if r == nil || r.ID == 0 {
		return false, invalidArgument("restaurant is nil or unpersisted")
	}

	switch m.pc.deletePolicy {
	case CascadeEvaluations:
		if err := m.deleteEvaluations(ctx, r); err != nil {
			return false, err
		}
	default:
		n, err := m.countEvaluations(ctx, r.ID)
		if err != nil {
			return false, err
		}
		if n > 0 {
			m.gw.log.WithField("id", r.ID).WithField("evaluations", n).Info("restaurant delete restricted")
			return false, ErrHasDependents
		}
	}

	ok, err := m.gw.deleteByID(ctx, r.ID)
	if err != nil || !ok {
		return false, err
	}

	m.cache.Remove(r.ID)
	m.unlink(r)
	m.pc.touched(ctx)
	return true, nil
}

// DeleteByID loads the restaurant and deletes it
func (m *RestaurantMapper) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return false, invalidArgument("restaurant id is zero")
	}
	r, err := m.FindByID(ctx, id)
	if err != nil || r == nil {
		return false, err
	}
	return m.Delete(ctx, r)
}

// Exists reports whether the restaurant is stored
func (m *RestaurantMapper) Exists(ctx context.Context, id int64) (bool, error) {
	return m.gw.exists(ctx, id)
}

// Count returns the number of stored restaurants
func (m *RestaurantMapper) Count(ctx context.Context) (int64, error) {
	return m.gw.count(ctx, m.gw.builder())
}

func (m *RestaurantMapper) countEvaluations(ctx context.Context, restaurantID int64) (int64, error) {
	basics, err := m.basics.gw.count(ctx, m.basics.gw.builder().Where("restaurant_id", db.Equal, restaurantID))
	if err != nil {
		return 0, err
	}
	completes, err := m.completes.gw.count(ctx, m.completes.gw.builder().Where("restaurant_id", db.Equal, restaurantID))
	if err != nil {
		return 0, err
	}
	return basics + completes, nil
}

// deleteEvaluations deletes every evaluation of r, complete ones with their
// grades. It stops at the first failure.
func (m *RestaurantMapper) deleteEvaluations(ctx context.Context, r *model.Restaurant) error {
	if !r.EvaluationsLoaded() {
		if err := m.LoadEvaluations(ctx, r); err != nil {
			return cascadeError(m.gw.table, err)
		}
	}

	var err error
	for _, e := range r.CompleteEvaluations() {
		if _, derr := m.completes.Delete(ctx, e); derr != nil {
			err = multierr.Append(err, derr)
			break
		}
	}
	if err == nil {
		for _, e := range r.BasicEvaluations() {
			if _, derr := m.basics.Delete(ctx, e); derr != nil {
				err = multierr.Append(err, derr)
				break
			}
		}
	}
	if err != nil {
		m.gw.log.WithError(err).WithField("id", r.ID).Warn("evaluation cascade failed")
		return cascadeError(m.gw.table, err)
	}
	return nil
}

func (m *RestaurantMapper) link(r *model.Restaurant) {
	city, typ := r.City(), r.Type
	if !city.HasRestaurant(r) {
		city.AddRestaurant(r)
		m.pc.remember(func() { city.RemoveRestaurant(r) })
	}
	if !typ.HasRestaurant(r) {
		typ.AddRestaurant(r)
		m.pc.remember(func() { typ.RemoveRestaurant(r) })
	}
}

func (m *RestaurantMapper) unlink(r *model.Restaurant) {
	if city := r.City(); city != nil && city.RemoveRestaurant(r) {
		m.pc.remember(func() { city.AddRestaurant(r) })
	}
	if typ := r.Type; typ != nil && typ.RemoveRestaurant(r) {
		m.pc.remember(func() { typ.AddRestaurant(r) })
	}
}

func (m *RestaurantMapper) toRow(r *model.Restaurant) restaurantRow {
	return restaurantRow{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Website:     r.Website,
		Street:      r.Address.Street,
		CityID:      r.City().ID,
		TypeID:      r.Type.ID,
	}
}
