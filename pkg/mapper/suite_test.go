package mapper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/model"

	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"
)

var memoryDBs atomic.Int64

// mapperSuite opens a fresh in-memory store and session for every test
type mapperSuite struct {
	suite.Suite

	ctx     context.Context
	manager *db.Manager
	scope   tally.TestScope
	pc      *PersistenceContext
}

func (s *mapperSuite) SetupTest() {
	s.open()
}

func (s *mapperSuite) TearDownTest() {
	s.NoError(s.pc.Close(s.ctx))
	s.NoError(s.manager.Close())
}

func (s *mapperSuite) open(opts ...Option) {
	s.ctx = context.Background()

	manager, err := db.NewMemoryManager(fmt.Sprintf("mapper_test_%d", memoryDBs.Add(1)))
	s.Require().NoError(err)
	s.Require().NoError(Migrate(s.ctx, manager))
	s.manager = manager

	s.scope = tally.NewTestScope("", nil)
	s.pc, err = NewPersistenceContext(manager, append([]Option{WithScope(s.scope)}, opts...)...)
	s.Require().NoError(err)
}

// reopen replaces the session, keeping the store
func (s *mapperSuite) reopen(opts ...Option) {
	s.Require().NoError(s.pc.Close(s.ctx))
	var err error
	s.scope = tally.NewTestScope("", nil)
	s.pc, err = NewPersistenceContext(s.manager, append([]Option{WithScope(s.scope)}, opts...)...)
	s.Require().NoError(err)
}

// counter sums a counter over all its table tags
func (s *mapperSuite) counter(name string) int64 {
	var n int64
	for _, c := range s.scope.Snapshot().Counters() {
		if c.Name() == name {
			n += c.Value()
		}
	}
	return n
}

func (s *mapperSuite) queries() int64 { return s.counter("queries") }

func (s *mapperSuite) newCity(zip, name string) *model.City {
	c, err := s.pc.Cities().Create(s.ctx, model.NewCity(zip, name))
	s.Require().NoError(err)
	return c
}

func (s *mapperSuite) newType(label string) *model.RestaurantType {
	t, err := s.pc.RestaurantTypes().Create(s.ctx, model.NewRestaurantType(label, label+" food"))
	s.Require().NoError(err)
	return t
}

func (s *mapperSuite) newCriteria(name string) *model.EvaluationCriteria {
	c, err := s.pc.Criteria().Create(s.ctx, model.NewEvaluationCriteria(name, "how good is the "+name))
	s.Require().NoError(err)
	return c
}

func (s *mapperSuite) newRestaurant(name string, city *model.City, typ *model.RestaurantType) *model.Restaurant {
	r, err := s.pc.Restaurants().Create(s.ctx,
		model.NewRestaurant(name, "a place called "+name, "https://example.org", "Rue du Lac 1", city, typ))
	s.Require().NoError(err)
	return r
}

func (s *mapperSuite) newComplete(r *model.Restaurant, scores map[*model.EvaluationCriteria]int) *model.CompleteEvaluation {
	e := model.NewCompleteEvaluation(r, visit, "very nice", "alice")
	for c, score := range scores {
		e.AddGrade(model.NewGrade(score, c))
	}
	e, err := s.pc.CompleteEvaluations().Create(s.ctx, e)
	s.Require().NoError(err)
	return e
}

func (s *mapperSuite) newBasic(r *model.Restaurant, like bool) *model.BasicEvaluation {
	e, err := s.pc.BasicEvaluations().Create(s.ctx, model.NewBasicEvaluation(r, visit, like, "10.0.0.1"))
	s.Require().NoError(err)
	return e
}

var visit = time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
