package mapper

import (
	"context"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/model"
)

// BasicEvaluationMapper maps model.BasicEvaluation to the basic_evaluations
// table. Ids come from the evaluations sequence shared with complete
// evaluations.
type BasicEvaluationMapper struct {
	pc    *PersistenceContext
	gw    *gateway[basicEvaluationRow]
	cache *EntityCache[*model.BasicEvaluation]

	restaurants *RestaurantMapper
}

func newBasicEvaluationMapper(pc *PersistenceContext) *BasicEvaluationMapper {
	gw := newGateway[basicEvaluationRow](pc, PreAllocated, SequenceEvaluations)
	return &BasicEvaluationMapper{
		pc:    pc,
		gw:    gw,
		cache: NewEntityCache[*model.BasicEvaluation](pc.scope.Tagged(map[string]string{"table": gw.table})),
	}
}

// FindByID returns the evaluation with the given id together with its
// restaurant, nil if there is none
func (m *BasicEvaluationMapper) FindByID(ctx context.Context, id int64) (*model.BasicEvaluation, error) {
	if e, ok := m.cache.Get(id); ok {
		return e, nil
	}
	if m.cache.Removed(id) {
		return nil, nil
	}

	row, err := m.gw.findByID(ctx, id)
	if err != nil || row == nil {
		return nil, err
	}

	e := m.build(row, nil)
	m.cache.Put(e)
	if err := m.resolveRestaurant(ctx, e, row.RestaurantID); err != nil {
		m.cache.Evict(e.ID)
		return nil, err
	}
	return e, nil
}

// FindAll re-reads every basic evaluation
func (m *BasicEvaluationMapper) FindAll(ctx context.Context) ([]*model.BasicEvaluation, error) {
	m.cache.Clear()
	rows, err := m.gw.selectMany(ctx, m.gw.builder().OrderBy("id", false))
	if err != nil {
		return nil, err
	}

	all := make([]*model.BasicEvaluation, 0, len(rows))
	for i := range rows {
		// an earlier restaurant may already have brought this one in
		e, ok := m.cache.Get(rows[i].ID)
		if !ok {
			e = m.build(&rows[i], nil)
			m.cache.Put(e)
			if err := m.resolveRestaurant(ctx, e, rows[i].RestaurantID); err != nil {
				m.cache.Evict(e.ID)
				return nil, err
			}
		}
		all = append(all, e)
	}
	return all, nil
}

// FindByRestaurant returns the basic evaluations of r. Every returned
// evaluation points back at r.
func (m *BasicEvaluationMapper) FindByRestaurant(ctx context.Context, r *model.Restaurant) ([]*model.BasicEvaluation, error) {
	if r == nil || r.ID == 0 {
		return nil, invalidArgument("restaurant is nil or unpersisted")
	}

	rows, err := m.gw.selectMany(ctx, m.gw.builder().
		Where("restaurant_id", db.Equal, r.ID).
		OrderBy("id", false))
	if err != nil {
		return nil, err
	}

	evaluations := make([]*model.BasicEvaluation, 0, len(rows))
	for i := range rows {
		e, ok := m.cache.Get(rows[i].ID)
		if ok {
			e.Restaurant = r
		} else {
			e = m.build(&rows[i], r)
			m.cache.Put(e)
		}
		evaluations = append(evaluations, e)
	}
	return evaluations, nil
}

// CountLikesForRestaurant counts the likes (like = true) or dislikes of a
// restaurant
func (m *BasicEvaluationMapper) CountLikesForRestaurant(ctx context.Context, restaurantID int64, like bool) (int64, error) {
	return m.gw.count(ctx, m.gw.builder().
		Where("restaurant_id", db.Equal, restaurantID).
		Where("liked", db.Equal, like))
}

func (m *BasicEvaluationMapper) resolveRestaurant(ctx context.Context, e *model.BasicEvaluation, restaurantID int64) error {
	r, err := m.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return err
	}
	if r == nil {
		return danglingReference(m.gw.table, "restaurant_id", restaurantID)
	}
	e.Restaurant = r
	if r.EvaluationsLoaded() {
		r.AddEvaluation(e)
	}
	return nil
}

func (m *BasicEvaluationMapper) build(row *basicEvaluationRow, r *model.Restaurant) *model.BasicEvaluation {
	return &model.BasicEvaluation{
		EvaluationBase: model.EvaluationBase{ID: row.ID, VisitDate: row.VisitDate, Restaurant: r},
		Like:           row.Liked,
		IPAddress:      row.IPAddress,
	}
}

func checkEvaluationOwner(e model.Evaluation) error {
	if r := e.Owner(); r == nil || r.ID == 0 {
		return invalidArgument("%s evaluation has no persisted restaurant", e.Kind())
	}
	return nil
}

// Create inserts e under a pre-allocated id and adds it to the evaluation
// set of its restaurant
func (m *BasicEvaluationMapper) Create(ctx context.Context, e *model.BasicEvaluation) (*model.BasicEvaluation, error) {
	if e == nil {
		return nil, invalidArgument("basic evaluation is nil")
	}
	if e.ID != 0 {
		return nil, invalidArgument("basic evaluation %d is already persisted", e.ID)
	}
	if err := checkEvaluationOwner(e); err != nil {
		return nil, err
	}

	id, err := m.gw.allocate(ctx)
	if err != nil {
		return nil, err
	}
	row := basicEvaluationRow{
		ID:           id,
		VisitDate:    visitDay(e.VisitDate),
		Liked:        e.Like,
		IPAddress:    e.IPAddress,
		RestaurantID: e.Restaurant.ID,
	}
	if err := m.gw.insert(ctx, &row); err != nil {
		return nil, err
	}

	e.ID = id
	m.pc.remember(func() { e.ID = 0 })
	m.cache.Put(e)
	attachEvaluation(m.pc, e)
	return e, nil
}

// Update writes the fields of e and reports whether the row exists
func (m *BasicEvaluationMapper) Update(ctx context.Context, e *model.BasicEvaluation) (bool, error) {
	if e == nil || e.ID == 0 {
		return false, invalidArgument("basic evaluation is nil or unpersisted")
	}
	if err := checkEvaluationOwner(e); err != nil {
		return false, err
	}
	return m.gw.update(ctx, e.ID,
		[]string{"visit_date", "liked", "ip_address", "restaurant_id"},
		visitDay(e.VisitDate), e.Like, e.IPAddress, e.Restaurant.ID)
}

// Delete removes e and drops it from the evaluation set of its restaurant
func (m *BasicEvaluationMapper) Delete(ctx context.Context, e *model.BasicEvaluation) (bool, error) {
	if e == nil || e.ID == 0 {
		return false, invalidArgument("basic evaluation is nil or unpersisted")
	}
	ok, err := m.gw.deleteByID(ctx, e.ID)
	if err != nil || !ok {
		return false, err
	}
	m.cache.Remove(e.ID)
	detachEvaluation(m.pc, e)
	return true, nil
}

// DeleteByID removes the evaluation with the given id
func (m *BasicEvaluationMapper) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return false, invalidArgument("basic evaluation id is zero")
	}
	if e, ok := m.cache.Get(id); ok {
		return m.Delete(ctx, e)
	}
	ok, err := m.gw.deleteByID(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	m.cache.Remove(id)
	return true, nil
}

// Exists reports whether a basic evaluation row with id exists
func (m *BasicEvaluationMapper) Exists(ctx context.Context, id int64) (bool, error) {
	return m.gw.exists(ctx, id)
}

// Count returns the number of basic evaluations
func (m *BasicEvaluationMapper) Count(ctx context.Context) (int64, error) {
	return m.gw.count(ctx, m.gw.builder())
}

// attachEvaluation adds e to the loaded evaluation set of its restaurant
func attachEvaluation(pc *PersistenceContext, e model.Evaluation) {
	r := e.Owner()
	if r == nil || !r.EvaluationsLoaded() || r.HasEvaluation(e) {
		return
	}
	r.AddEvaluation(e)
	pc.remember(func() { r.RemoveEvaluation(e) })
}

// detachEvaluation drops e from the evaluation set of its restaurant
func detachEvaluation(pc *PersistenceContext, e model.Evaluation) {
	r := e.Owner()
	if r == nil {
		return
	}
	if r.RemoveEvaluation(e) {
		pc.remember(func() { r.AddEvaluation(e) })
	}
}
