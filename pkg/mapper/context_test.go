package mapper

import (
	"context"
	"errors"
	"testing"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type PersistenceContextTestSuite struct {
	mapperSuite
}

func TestPersistenceContext(t *testing.T) {
	suite.Run(t, new(PersistenceContextTestSuite))
}

func (s *PersistenceContextTestSuite) TestTransactionMisuse() {
	s.ErrorIs(s.pc.Commit(s.ctx), ErrNoTx)
	s.ErrorIs(s.pc.Rollback(s.ctx), ErrNoTx)

	s.Require().NoError(s.pc.Begin(s.ctx))
	s.True(s.pc.InTransaction())
	s.ErrorIs(s.pc.Begin(s.ctx), ErrTxActive)

	s.NoError(s.pc.Commit(s.ctx))
	s.False(s.pc.InTransaction())
}

func (s *PersistenceContextTestSuite) TestCommitKeepsWrites() {
	s.Require().NoError(s.pc.Begin(s.ctx))
	c := s.newCity("2000", "Neuchâtel")
	s.Require().NoError(s.pc.Commit(s.ctx))

	s.reopen()
	found, err := s.pc.Cities().FindByID(s.ctx, c.ID)
	s.NoError(err)
	s.Require().NotNil(found)
	s.Equal("Neuchâtel", found.Name)
}

func (s *PersistenceContextTestSuite) TestRollbackUndoesSideEffects() {
	city := s.newCity("2000", "Neuchâtel")
	typ := s.newType("Pizzeria")
	cuisine := s.newCriteria("Cuisine")

	s.Require().NoError(s.pc.Begin(s.ctx))
	r := s.newRestaurant("Luigi's", city, typ)
	e := s.newComplete(r, map[*model.EvaluationCriteria]int{cuisine: 3})
	g := e.Grades()[0]
	s.NotZero(r.ID)
	s.True(city.HasRestaurant(r))

	s.Require().NoError(s.pc.Rollback(s.ctx))

	s.Zero(r.ID)
	s.Zero(e.ID)
	s.Zero(g.ID)
	s.False(city.HasRestaurant(r))
	s.False(typ.HasRestaurant(r))
	s.False(r.HasEvaluation(e))

	n, err := s.pc.Restaurants().Count(s.ctx)
	s.NoError(err)
	s.Zero(n)
	n, err = s.pc.Grades().Count(s.ctx)
	s.NoError(err)
	s.Zero(n)

	// the sequence increments rolled back together with the rows
	again := s.newComplete(s.newRestaurant("Luigi's", city, typ), nil)
	s.Equal(int64(1), again.ID)
}

func (s *PersistenceContextTestSuite) TestRollbackClearsIdentityCaches() {
	c := s.newCity("2000", "Neuchâtel")

	s.Require().NoError(s.pc.Begin(s.ctx))
	c.Name = "Neuenburg"
	_, err := s.pc.Cities().Update(s.ctx, c)
	s.Require().NoError(err)
	s.Require().NoError(s.pc.Rollback(s.ctx))

	found, err := s.pc.Cities().FindByID(s.ctx, c.ID)
	s.NoError(err)
	s.NotSame(c, found)
	s.Equal("Neuchâtel", found.Name)
}

func (s *PersistenceContextTestSuite) TestCloseRollsBackOpenTransaction() {
	s.Require().NoError(s.pc.Begin(s.ctx))
	s.newCity("2000", "Neuchâtel")
	s.NoError(s.pc.Close(s.ctx))
	s.False(s.pc.InTransaction())

	_, err := s.pc.Cities().FindByID(s.ctx, 1)
	s.ErrorIs(err, ErrClosed)
	s.ErrorIs(s.pc.Begin(s.ctx), ErrClosed)

	s.reopen()
	n, err := s.pc.Cities().Count(s.ctx)
	s.NoError(err)
	s.Zero(n)
}

func (s *PersistenceContextTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.pc.Cities().FindAll(ctx)
	s.True(IsStorageFailure(err))
	s.ErrorIs(err, context.Canceled)
}

func (s *PersistenceContextTestSuite) TestTableSequenceIsMonotonic() {
	seq := NewTableSequence(s.pc)
	var last int64
	for i := 0; i < 5; i++ {
		v, err := seq.Next(s.ctx, "tickets")
		s.Require().NoError(err)
		s.Greater(v, last)
		last = v
	}
	s.Equal(int64(5), last)

	other, err := seq.Next(s.ctx, "other")
	s.NoError(err)
	s.Equal(int64(1), other)

	_, err = seq.Next(s.ctx, "")
	s.True(IsInvalidArgument(err))
}

type failingSequence struct {
	mock.Mock
}

func (f *failingSequence) Next(ctx context.Context, name string) (int64, error) {
	args := f.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

func (s *PersistenceContextTestSuite) TestSequenceFailureIsStorageFailure() {
	seq := new(failingSequence)
	seq.On("Next", mock.Anything, SequenceCriteria).Return(int64(0), errors.New("sequence unavailable"))
	s.reopen(WithSequence(seq))

	c := model.NewEvaluationCriteria("Service", "")
	_, err := s.pc.Criteria().Create(s.ctx, c)
	s.True(IsStorageFailure(err))
	s.Zero(c.ID)

	var se *StorageError
	s.Require().ErrorAs(err, &se)
	s.Equal("sequence", se.Op)
	s.Equal(tableCriteria, se.Table)
	seq.AssertExpectations(s.T())

	n, err := s.pc.Criteria().Count(s.ctx)
	s.NoError(err)
	s.Zero(n)
}

func (s *PersistenceContextTestSuite) TestGradeCascadeFailure() {
	seq := new(failingSequence)
	seq.On("Next", mock.Anything, SequenceEvaluations).Return(int64(10), nil)
	seq.On("Next", mock.Anything, SequenceGrades).Return(int64(0), errors.New("grades exhausted"))
	seq.On("Next", mock.Anything, SequenceCriteria).Return(int64(7), nil)
	s.reopen(WithSequence(seq))

	r := s.newRestaurant("Luigi's", s.newCity("2000", "Neuchâtel"), s.newType("Pizzeria"))
	cuisine := s.newCriteria("Cuisine")

	s.Require().NoError(s.pc.Begin(s.ctx))
	e := model.NewCompleteEvaluation(r, visit, "", "dave")
	e.AddGrade(model.NewGrade(3, cuisine))
	_, err := s.pc.CompleteEvaluations().Create(s.ctx, e)
	s.True(IsCascadeFailure(err))
	s.Require().NoError(s.pc.Rollback(s.ctx))

	s.Zero(e.ID)
	n, err := s.pc.CompleteEvaluations().Count(s.ctx)
	s.NoError(err)
	s.Zero(n)
}

type advancingSequence struct {
	mock.Mock
}

func (a *advancingSequence) Advance(ctx context.Context, name string, floor int64) (int64, error) {
	args := a.Called(ctx, name, floor)
	return args.Get(0).(int64), args.Error(1)
}

func (s *PersistenceContextTestSuite) TestSeedSequencesUsesLargestStoredIDs() {
	service := s.newCriteria("Service")
	cuisine := s.newCriteria("Cuisine")
	r := s.newRestaurant("Luigi's", s.newCity("2000", "Neuchâtel"), s.newType("Pizzeria"))
	s.newBasic(r, true)
	s.newComplete(r, map[*model.EvaluationCriteria]int{service: 4, cuisine: 5})

	seq := new(advancingSequence)
	seq.On("Advance", mock.Anything, SequenceCriteria, int64(2)).Return(int64(2), nil)
	seq.On("Advance", mock.Anything, SequenceEvaluations, int64(2)).Return(int64(2), nil)
	seq.On("Advance", mock.Anything, SequenceGrades, int64(2)).Return(int64(2), nil)

	s.NoError(SeedSequences(s.ctx, s.manager, seq))
	seq.AssertExpectations(s.T())
}

func (s *PersistenceContextTestSuite) TestSeedSequencesSkipsEmptySequences() {
	seq := new(advancingSequence)
	s.NoError(SeedSequences(s.ctx, s.manager, seq))
	seq.AssertNotCalled(s.T(), "Advance", mock.Anything, mock.Anything, mock.Anything)
}

func (s *PersistenceContextTestSuite) TestTableSequenceAdvance() {
	seq := NewTableSequence(s.pc)

	value, err := seq.Advance(s.ctx, SequenceGrades, 5)
	s.NoError(err)
	s.Equal(int64(5), value)

	value, err = seq.Advance(s.ctx, SequenceGrades, 3)
	s.NoError(err)
	s.Equal(int64(5), value)

	next, err := seq.Next(s.ctx, SequenceGrades)
	s.NoError(err)
	s.Equal(int64(6), next)

	_, err = seq.Advance(s.ctx, "", 1)
	s.True(IsInvalidArgument(err))
}

func (s *PersistenceContextTestSuite) TestSeedSequencesFailure() {
	s.newCriteria("Service")
	seq := new(advancingSequence)
	seq.On("Advance", mock.Anything, SequenceCriteria, int64(1)).Return(int64(0), errors.New("redis down"))

	err := SeedSequences(s.ctx, s.manager, seq)
	s.True(IsStorageFailure(err))
	seq.AssertNumberOfCalls(s.T(), "Advance", 1)
}

func TestNewPersistenceContextRequiresManager(t *testing.T) {
	_, err := NewPersistenceContext(nil)
	assert.True(t, IsInvalidArgument(err))
}

func TestOwnedManagerClosedWithContext(t *testing.T) {
	ctx := context.Background()
	manager, err := db.NewMemoryManager("mapper_owned")
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, manager))

	pc, err := NewPersistenceContext(manager, WithOwnedManager())
	require.NoError(t, err)
	assert.NotEmpty(t, pc.ID())
	require.NoError(t, pc.Close(ctx))

	assert.Error(t, manager.Ping(ctx))
	// closing twice is a no-op
	assert.NoError(t, pc.Close(ctx))
}
