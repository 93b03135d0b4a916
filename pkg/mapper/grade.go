package mapper

import (
	"context"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/model"
)

// GradeMapper maps model.Grade to the grades table. Ids come from the
// grades sequence.
type GradeMapper struct {
	pc    *PersistenceContext
	gw    *gateway[gradeRow]
	cache *EntityCache[*model.Grade]

	criteria    *EvaluationCriteriaMapper
	evaluations *CompleteEvaluationMapper
}

func newGradeMapper(pc *PersistenceContext) *GradeMapper {
	gw := newGateway[gradeRow](pc, PreAllocated, SequenceGrades)
	return &GradeMapper{
		pc:    pc,
		gw:    gw,
		cache: NewEntityCache[*model.Grade](pc.scope.Tagged(map[string]string{"table": gw.table})),
	}
}

// FindByID returns the grade with the given id, its criteria and its
// evaluation, nil if there is none
func (m *GradeMapper) FindByID(ctx context.Context, id int64) (*model.Grade, error) {
	if g, ok := m.cache.Get(id); ok {
		return g, nil
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

// materialize registers the grade before resolving its evaluation, whose
// grade set contains it
func (m *GradeMapper) materialize(ctx context.Context, row *gradeRow) (*model.Grade, error) {
	if g, ok := m.cache.Get(row.ID); ok {
		return g, nil
	}

	g, err := m.build(ctx, row, nil)
	if err != nil {
		return nil, err
	}
	m.cache.Put(g)

	e, err := m.evaluations.FindByID(ctx, row.EvaluationID)
	if err != nil {
		m.cache.Evict(g.ID)
		return nil, err
	}
	if e == nil {
		m.cache.Evict(g.ID)
		return nil, danglingReference(m.gw.table, "evaluation_id", row.EvaluationID)
	}
	e.AddGrade(g)
	return g, nil
}

// FindAll re-reads every grade
func (m *GradeMapper) FindAll(ctx context.Context) ([]*model.Grade, error) {
	m.cache.Clear()
	rows, err := m.gw.selectMany(ctx, m.gw.builder().OrderBy("id", false))
	if err != nil {
		return nil, err
	}

	all := make([]*model.Grade, 0, len(rows))
	for i := range rows {
		g, err := m.materialize(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		all = append(all, g)
	}
	return all, nil
}

// FindByEvaluationID returns the grades of a complete evaluation, reusing
// grades already in the identity cache. Each grade points at the evaluation.
func (m *GradeMapper) FindByEvaluationID(ctx context.Context, evaluationID int64) ([]*model.Grade, error) {
	rows, err := m.gw.selectMany(ctx, m.gw.builder().
		Where("evaluation_id", db.Equal, evaluationID).
		OrderBy("id", false))
	if err != nil || len(rows) == 0 {
		return nil, err
	}

	// while the evaluation is being hydrated this is an identity cache hit
	e, err := m.evaluations.FindByID(ctx, evaluationID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, danglingReference(m.gw.table, "evaluation_id", evaluationID)
	}

	grades := make([]*model.Grade, 0, len(rows))
	for i := range rows {
		if g, ok := m.cache.Get(rows[i].ID); ok {
			g.Evaluation = e
			grades = append(grades, g)
			continue
		}
		g, err := m.build(ctx, &rows[i], e)
		if err != nil {
			return nil, err
		}
		m.cache.Put(g)
		grades = append(grades, g)
	}
	return grades, nil
}

func (m *GradeMapper) build(ctx context.Context, row *gradeRow, e *model.CompleteEvaluation) (*model.Grade, error) {
	criteria, err := m.criteria.FindByID(ctx, row.CriteriaID)
	if err != nil {
		return nil, err
	}
	if criteria == nil {
		return nil, danglingReference(m.gw.table, "criteria_id", row.CriteriaID)
	}
	return &model.Grade{ID: row.ID, Score: row.Score, Evaluation: e, Criteria: criteria}, nil
}

func checkGradeRefs(g *model.Grade) error {
	if g.Evaluation == nil || g.Evaluation.ID == 0 {
		return invalidArgument("grade has no persisted evaluation")
	}
	if g.Criteria == nil || g.Criteria.ID == 0 {
		return invalidArgument("grade has no persisted criteria")
	}
	return nil
}

// Create inserts g under a pre-allocated id. Its evaluation must already
// be stored.
func (m *GradeMapper) Create(ctx context.Context, g *model.Grade) (*model.Grade, error) {
	if g == nil {
		return nil, invalidArgument("grade is nil")
	}
	if g.ID != 0 {
		return nil, invalidArgument("grade %d is already persisted", g.ID)
	}
	if err := checkGradeRefs(g); err != nil {
		return nil, err
	}

	id, err := m.gw.allocate(ctx)
	if err != nil {
		return nil, err
	}
	row := gradeRow{ID: id, Score: g.Score, EvaluationID: g.Evaluation.ID, CriteriaID: g.Criteria.ID}
	if err := m.gw.insert(ctx, &row); err != nil {
		return nil, err
	}

	g.ID = id
	m.pc.remember(func() { g.ID = 0 })
	m.cache.Put(g)

	e := g.Evaluation
	if !e.HasGrade(g) {
		e.AddGrade(g)
		m.pc.remember(func() { e.RemoveGrade(g) })
	}
	return g, nil
}

// Update writes the fields of g and reports whether the row exists
func (m *GradeMapper) Update(ctx context.Context, g *model.Grade) (bool, error) {
	if g == nil || g.ID == 0 {
		return false, invalidArgument("grade is nil or unpersisted")
	}
	if err := checkGradeRefs(g); err != nil {
		return false, err
	}
	return m.gw.update(ctx, g.ID,
		[]string{"score", "evaluation_id", "criteria_id"},
		g.Score, g.Evaluation.ID, g.Criteria.ID)
}

// Delete removes g and detaches it from its evaluation
func (m *GradeMapper) Delete(ctx context.Context, g *model.Grade) (bool, error) {
	if g == nil || g.ID == 0 {
		return false, invalidArgument("grade is nil or unpersisted")
	}
	ok, err := m.gw.deleteByID(ctx, g.ID)
	if err != nil || !ok {
		return false, err
	}
	m.cache.Remove(g.ID)

	if e := g.Evaluation; e != nil && e.RemoveGrade(g) {
		m.pc.remember(func() { e.AddGrade(g) })
	}
	return true, nil
}

// DeleteByID removes the grade with the given id
func (m *GradeMapper) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return false, invalidArgument("grade id is zero")
	}
	if g, ok := m.cache.Get(id); ok {
		return m.Delete(ctx, g)
	}
	ok, err := m.gw.deleteByID(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	m.cache.Remove(id)
	return true, nil
}

// Exists reports whether a grade row with id exists
func (m *GradeMapper) Exists(ctx context.Context, id int64) (bool, error) {
	return m.gw.exists(ctx, id)
}

// Count returns the number of grade rows
func (m *GradeMapper) Count(ctx context.Context) (int64, error) {
	return m.gw.count(ctx, m.gw.builder())
}
