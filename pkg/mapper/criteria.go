package mapper

import (
	"context"
	"strings"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/model"
)

// EvaluationCriteriaMapper maps model.EvaluationCriteria to the
// evaluation_criteria table. Ids are drawn from the evaluation_criteria
// sequence.
type EvaluationCriteriaMapper struct {
	pc    *PersistenceContext
	gw    *gateway[criteriaRow]
	cache *EntityCache[*model.EvaluationCriteria]
}

func newEvaluationCriteriaMapper(pc *PersistenceContext) *EvaluationCriteriaMapper {
	gw := newGateway[criteriaRow](pc, PreAllocated, SequenceCriteria)
	return &EvaluationCriteriaMapper{
		pc:    pc,
		gw:    gw,
		cache: NewEntityCache[*model.EvaluationCriteria](pc.scope.Tagged(map[string]string{"table": gw.table})),
	}
}

// FindByID returns the criteria with id, nil if there is none
func (m *EvaluationCriteriaMapper) FindByID(ctx context.Context, id int64) (*model.EvaluationCriteria, error) {
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

// FindByName returns the criteria whose name matches, ignoring case
func (m *EvaluationCriteriaMapper) FindByName(ctx context.Context, name string) (*model.EvaluationCriteria, error) {
	row, err := m.gw.selectOne(ctx, m.gw.builder().Where("LOWER(name)", db.Equal, strings.ToLower(name)))
	if err != nil || row == nil {
		return nil, err
	}
	return m.materialize(row), nil
}

// FindAll re-reads every criteria in id order
func (m *EvaluationCriteriaMapper) FindAll(ctx context.Context) ([]*model.EvaluationCriteria, error) {
	m.cache.Clear()
	rows, err := m.gw.selectMany(ctx, m.gw.builder().OrderBy("id", false))
	if err != nil {
		return nil, err
	}

	all := make([]*model.EvaluationCriteria, 0, len(rows))
	for i := range rows {
		all = append(all, m.materialize(&rows[i]))
	}
	return all, nil
}

func (m *EvaluationCriteriaMapper) materialize(row *criteriaRow) *model.EvaluationCriteria {
	if c, ok := m.cache.Get(row.ID); ok {
		return c
	}
	c := &model.EvaluationCriteria{ID: row.ID, Name: row.Name, Description: row.Description}
	m.cache.Put(c)
	return c
}

// Create stores c under an id drawn from the criteria sequence
func (m *EvaluationCriteriaMapper) Create(ctx context.Context, c *model.EvaluationCriteria) (*model.EvaluationCriteria, error) {
	if c == nil {
		return nil, invalidArgument("criteria is nil")
	}
	if c.ID != 0 {
		return nil, invalidArgument("criteria %d is already persisted", c.ID)
	}

	id, err := m.gw.allocate(ctx)
	if err != nil {
		return nil, err
	}
	row := criteriaRow{ID: id, Name: c.Name, Description: c.Description}
	if err := m.gw.insert(ctx, &row); err != nil {
		return nil, err
	}

	c.ID = id
	m.pc.remember(func() { c.ID = 0 })
	m.cache.Put(c)
	return c, nil
}

// Update writes c and reports whether its row exists
func (m *EvaluationCriteriaMapper) Update(ctx context.Context, c *model.EvaluationCriteria) (bool, error) {
	if c == nil || c.ID == 0 {
		return false, invalidArgument("criteria is nil or unpersisted")
	}
	return m.gw.update(ctx, c.ID, []string{"name", "description"}, c.Name, c.Description)
}

// Delete removes c
func (m *EvaluationCriteriaMapper) Delete(ctx context.Context, c *model.EvaluationCriteria) (bool, error) {
	if c == nil || c.ID == 0 {
		return false, invalidArgument("criteria is nil or unpersisted")
	}
	return m.DeleteByID(ctx, c.ID)
}

// DeleteByID removes the criteria with id
func (m *EvaluationCriteriaMapper) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return false, invalidArgument("criteria id is zero")
	}
	ok, err := m.gw.deleteByID(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	m.cache.Remove(id)
	return true, nil
}

// Exists reports whether a criteria row with id exists
func (m *EvaluationCriteriaMapper) Exists(ctx context.Context, id int64) (bool, error) {
	return m.gw.exists(ctx, id)
}

// Count returns the number of criteria
func (m *EvaluationCriteriaMapper) Count(ctx context.Context) (int64, error) {
	return m.gw.count(ctx, m.gw.builder())
}
