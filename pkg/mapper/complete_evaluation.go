package mapper

import (
	"context"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/model"

	"github.com/uber-go/tally/v4"
)

// CompleteEvaluationMapper maps model.CompleteEvaluation to the
// complete_evaluations table and cascades writes to its grades.
type CompleteEvaluationMapper struct {
	pc    *PersistenceContext
	gw    *gateway[completeEvaluationRow]
	cache *EntityCache[*model.CompleteEvaluation]

	cascaded tally.Counter

	restaurants *RestaurantMapper
	grades      *GradeMapper
}

func newCompleteEvaluationMapper(pc *PersistenceContext) *CompleteEvaluationMapper {
	gw := newGateway[completeEvaluationRow](pc, PreAllocated, SequenceEvaluations)
	scope := pc.scope.Tagged(map[string]string{"table": gw.table})
	return &CompleteEvaluationMapper{
		pc:       pc,
		gw:       gw,
		cache:    NewEntityCache[*model.CompleteEvaluation](scope),
		cascaded: scope.Counter("cascade.grades"),
	}
}

// FindByID returns the evaluation with the given id, its grades and its
// restaurant, nil if there is none
func (m *CompleteEvaluationMapper) FindByID(ctx context.Context, id int64) (*model.CompleteEvaluation, error) {
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
	return m.materialize(ctx, row)
}

// materialize registers the evaluation before resolving its grades and its
// restaurant, both of which point back at it
func (m *CompleteEvaluationMapper) materialize(ctx context.Context, row *completeEvaluationRow) (*model.CompleteEvaluation, error) {
	if e, ok := m.cache.Get(row.ID); ok {
		return e, nil
	}

	e := m.build(row, nil)
	m.cache.Put(e)
	if err := m.loadGrades(ctx, e); err != nil {
		m.cache.Evict(e.ID)
		return nil, err
	}

	r, err := m.restaurants.FindByID(ctx, row.RestaurantID)
	if err != nil {
		m.cache.Evict(e.ID)
		return nil, err
	}
	if r == nil {
		m.cache.Evict(e.ID)
		return nil, danglingReference(m.gw.table, "restaurant_id", row.RestaurantID)
	}
	e.Restaurant = r
	if r.EvaluationsLoaded() {
		r.AddEvaluation(e)
	}
	return e, nil
}

// FindAll re-reads every complete evaluation
func (m *CompleteEvaluationMapper) FindAll(ctx context.Context) ([]*model.CompleteEvaluation, error) {
	m.cache.Clear()
	rows, err := m.gw.selectMany(ctx, m.gw.builder().OrderBy("id", false))
	if err != nil {
		return nil, err
	}

	all := make([]*model.CompleteEvaluation, 0, len(rows))
	for i := range rows {
		e, err := m.materialize(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		all = append(all, e)
	}
	return all, nil
}

// FindByRestaurant returns the complete evaluations of r with their grades.
// Every returned evaluation points back at r.
func (m *CompleteEvaluationMapper) FindByRestaurant(ctx context.Context, r *model.Restaurant) ([]*model.CompleteEvaluation, error) {
	if r == nil || r.ID == 0 {
		return nil, invalidArgument("restaurant is nil or unpersisted")
	}

	rows, err := m.gw.selectMany(ctx, m.gw.builder().
		Where("restaurant_id", db.Equal, r.ID).
		OrderBy("id", false))
	if err != nil {
		return nil, err
	}

	evaluations := make([]*model.CompleteEvaluation, 0, len(rows))
	for i := range rows {
		if e, ok := m.cache.Get(rows[i].ID); ok {
			e.Restaurant = r
			evaluations = append(evaluations, e)
			continue
		}

		e := m.build(&rows[i], r)
		m.cache.Put(e)
		if err := m.loadGrades(ctx, e); err != nil {
			m.cache.Evict(e.ID)
			return nil, err
		}
		evaluations = append(evaluations, e)
	}
	return evaluations, nil
}

func (m *CompleteEvaluationMapper) loadGrades(ctx context.Context, e *model.CompleteEvaluation) error {
	grades, err := m.grades.FindByEvaluationID(ctx, e.ID)
	if err != nil {
		return err
	}
	e.SetGrades(grades)
	return nil
}

func (m *CompleteEvaluationMapper) build(row *completeEvaluationRow, r *model.Restaurant) *model.CompleteEvaluation {
	return &model.CompleteEvaluation{
		EvaluationBase: model.EvaluationBase{ID: row.ID, VisitDate: row.VisitDate, Restaurant: r},
		Comment:        row.Comment,
		Username:       row.Username,
	}
}

func checkNewGrades(e *model.CompleteEvaluation) error {
	for _, g := range e.Grades() {
		if g.ID != 0 {
			return invalidArgument("grade %d of a new evaluation is already persisted", g.ID)
		}
		if g.Criteria == nil || g.Criteria.ID == 0 {
			return invalidArgument("grade has no persisted criteria")
		}
	}
	return nil
}

// Create inserts e under a pre-allocated id, then each of its grades
func (m *CompleteEvaluationMapper) Create(ctx context.Context, e *model.CompleteEvaluation) (*model.CompleteEvaluation, error) {
	if e == nil {
		return nil, invalidArgument("complete evaluation is nil")
	}
	if e.ID != 0 {
		return nil, invalidArgument("complete evaluation %d is already persisted", e.ID)
	}
	if err := checkEvaluationOwner(e); err != nil {
		return nil, err
	}
	if err := checkNewGrades(e); err != nil {
		return nil, err
	}

	id, err := m.gw.allocate(ctx)
	if err != nil {
		return nil, err
	}
	row := completeEvaluationRow{
		ID:           id,
		VisitDate:    visitDay(e.VisitDate),
		Comment:      e.Comment,
		Username:     e.Username,
		RestaurantID: e.Restaurant.ID,
	}
	if err := m.gw.insert(ctx, &row); err != nil {
		return nil, err
	}

	e.ID = id
	m.pc.remember(func() { e.ID = 0 })
	m.cache.Put(e)
	attachEvaluation(m.pc, e)

	for _, g := range e.Grades() {
		m.pointAt(g, e)
		m.cascaded.Inc(1)
		if _, err := m.grades.Create(ctx, g); err != nil {
			m.gw.log.WithError(err).WithField("id", e.ID).Warn("grade cascade failed on create")
			return nil, cascadeError(m.gw.table, err)
		}
	}
	m.gw.log.WithField("id", e.ID).WithField("grades", len(e.Grades())).Debug("complete evaluation created")
	return e, nil
}

// Update writes e, updates or creates each of its grades and deletes the
// stored grades that are no longer attached
func (m *CompleteEvaluationMapper) Update(ctx context.Context, e *model.CompleteEvaluation) (bool, error) {
	if e == nil || e.ID == 0 {
		return false, invalidArgument("complete evaluation is nil or unpersisted")
	}
	if err := checkEvaluationOwner(e); err != nil {
		return false, err
	}
	for _, g := range e.Grades() {
		if g.Criteria == nil || g.Criteria.ID == 0 {
			return false, invalidArgument("grade has no persisted criteria")
		}
	}

	ok, err := m.gw.update(ctx, e.ID,
		[]string{"visit_date", "comment", "username", "restaurant_id"},
		visitDay(e.VisitDate), e.Comment, e.Username, e.Restaurant.ID)
	if err != nil || !ok {
		return false, err
	}

	keep := make([]int64, 0, len(e.Grades()))
	for _, g := range e.Grades() {
		m.pointAt(g, e)
		m.cascaded.Inc(1)
		if err := m.saveGrade(ctx, g); err != nil {
			m.gw.log.WithError(err).WithField("id", e.ID).Warn("grade cascade failed on update")
			return false, cascadeError(m.gw.table, err)
		}
		keep = append(keep, g.ID)
	}

	if err := m.deleteGradesExcept(ctx, e.ID, keep); err != nil {
		return false, cascadeError(m.gw.table, err)
	}
	return true, nil
}

// saveGrade updates a stored grade and creates any other
func (m *CompleteEvaluationMapper) saveGrade(ctx context.Context, g *model.Grade) error {
	if g.ID != 0 {
		stored, err := m.grades.Exists(ctx, g.ID)
		if err != nil {
			return err
		}
		if stored {
			_, err := m.grades.Update(ctx, g)
			return err
		}
		// its row is gone; store it again under a fresh id
		prev := g.ID
		m.grades.cache.Remove(prev)
		g.ID = 0
		m.pc.remember(func() {
			g.ID = prev
			m.grades.cache.Put(g)
		})
	}
	_, err := m.grades.Create(ctx, g)
	return err
}

// deleteGradesExcept deletes the stored grades of an evaluation whose ids
// are not in keep
func (m *CompleteEvaluationMapper) deleteGradesExcept(ctx context.Context, evaluationID int64, keep []int64) error {
	b := m.grades.gw.builder().
		Select("id").
		Where("evaluation_id", db.Equal, evaluationID)
	if len(keep) > 0 {
		b.Where("id", db.NotIn, keep)
	}
	orphans, err := m.grades.gw.selectIDs(ctx, b)
	if err != nil {
		return err
	}

	for _, id := range orphans {
		m.cascaded.Inc(1)
		if _, err := m.grades.DeleteByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete deletes the grades of e, then e. A failure part way leaves the
// grades deleted so far deleted; the caller rolls back.
func (m *CompleteEvaluationMapper) Delete(ctx context.Context, e *model.CompleteEvaluation) (bool, error) {
	if e == nil || e.ID == 0 {
		return false, invalidArgument("complete evaluation is nil or unpersisted")
	}

	for _, g := range e.Grades() {
		if g.ID == 0 {
			continue
		}
		m.cascaded.Inc(1)
		stored, err := m.grades.Exists(ctx, g.ID)
		if err == nil && stored {
			_, err = m.grades.Delete(ctx, g)
		}
		if err != nil {
			m.gw.log.WithError(err).WithField("id", e.ID).Warn("grade cascade failed on delete")
			return false, cascadeError(m.gw.table, err)
		}
	}
	// grades stored by someone else since e was loaded
	if err := m.deleteGradesExcept(ctx, e.ID, nil); err != nil {
		return false, cascadeError(m.gw.table, err)
	}

	ok, err := m.gw.deleteByID(ctx, e.ID)
	if err != nil {
		return false, cascadeError(m.gw.table, err)
	}
	if !ok {
		return false, nil
	}
	m.cache.Remove(e.ID)
	detachEvaluation(m.pc, e)
	return true, nil
}

// DeleteByID loads the evaluation with its grades and deletes it
func (m *CompleteEvaluationMapper) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return false, invalidArgument("complete evaluation id is zero")
	}
	e, err := m.FindByID(ctx, id)
	if err != nil || e == nil {
		return false, err
	}
	return m.Delete(ctx, e)
}

// Exists reports whether a complete evaluation row with id exists
func (m *CompleteEvaluationMapper) Exists(ctx context.Context, id int64) (bool, error) {
	return m.gw.exists(ctx, id)
}

// Count returns the number of complete evaluations
func (m *CompleteEvaluationMapper) Count(ctx context.Context) (int64, error) {
	return m.gw.count(ctx, m.gw.builder())
}

// pointAt sets the back-reference of g to e
func (m *CompleteEvaluationMapper) pointAt(g *model.Grade, e *model.CompleteEvaluation) {
	if g.Evaluation == e {
		return
	}
	prev := g.Evaluation
	g.Evaluation = e
	m.pc.remember(func() { g.Evaluation = prev })
}
