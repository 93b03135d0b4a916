package mapper

import (
	"testing"

	"github.com/ammar0144/guideresto/pkg/model"

	"github.com/stretchr/testify/suite"
)

type SimpleMapperTestSuite struct {
	mapperSuite
}

func TestSimpleMappers(t *testing.T) {
	suite.Run(t, new(SimpleMapperTestSuite))
}

func (s *SimpleMapperTestSuite) TestCreateAssignsGeneratedID() {
	first := s.newCity("2000", "Neuchâtel")
	second := s.newCity("1003", "Lausanne")

	s.NotZero(first.ID)
	s.Greater(second.ID, first.ID)
}

func (s *SimpleMapperTestSuite) TestFindByIDReturnsSameInstance() {
	c := s.newCity("2000", "Neuchâtel")

	s.reopen()
	a, err := s.pc.Cities().FindByID(s.ctx, c.ID)
	s.NoError(err)
	b, err := s.pc.Cities().FindByID(s.ctx, c.ID)
	s.NoError(err)

	s.Require().NotNil(a)
	s.Same(a, b)
	s.NotSame(c, a)
	s.Equal("Neuchâtel", a.Name)
	s.Equal("2000", a.ZipCode)
	s.Equal(int64(1), s.queries())
}

func (s *SimpleMapperTestSuite) TestFindByIDMissing() {
	c, err := s.pc.Cities().FindByID(s.ctx, 404)
	s.NoError(err)
	s.Nil(c)
}

func (s *SimpleMapperTestSuite) TestUpdate() {
	c := s.newCity("2000", "Neuchatel")
	c.Name = "Neuchâtel"

	ok, err := s.pc.Cities().Update(s.ctx, c)
	s.NoError(err)
	s.True(ok)

	// rewriting identical values still finds the row
	ok, err = s.pc.Cities().Update(s.ctx, c)
	s.NoError(err)
	s.True(ok)

	s.reopen()
	stored, err := s.pc.Cities().FindByID(s.ctx, c.ID)
	s.NoError(err)
	s.Equal("Neuchâtel", stored.Name)

	ok, err = s.pc.Cities().Update(s.ctx, &model.City{ID: 999, Name: "Nowhere"})
	s.NoError(err)
	s.False(ok)
}

func (s *SimpleMapperTestSuite) TestDeleteByIDDoesNotResurrect() {
	c := s.newCity("2000", "Neuchâtel")

	ok, err := s.pc.Cities().DeleteByID(s.ctx, c.ID)
	s.NoError(err)
	s.True(ok)

	before := s.queries()
	found, err := s.pc.Cities().FindByID(s.ctx, c.ID)
	s.NoError(err)
	s.Nil(found)
	s.Equal(before, s.queries())

	ok, err = s.pc.Cities().DeleteByID(s.ctx, c.ID)
	s.NoError(err)
	s.False(ok)
}

func (s *SimpleMapperTestSuite) TestDeleteReferencedCityFails() {
	c := s.newCity("2000", "Neuchâtel")
	t := s.newType("Pizzeria")
	s.newRestaurant("Luigi's", c, t)

	ok, err := s.pc.Cities().Delete(s.ctx, c)
	s.False(ok)
	s.True(IsStorageFailure(err))

	ok, err = s.pc.RestaurantTypes().Delete(s.ctx, t)
	s.False(ok)
	s.True(IsStorageFailure(err))
}

func (s *SimpleMapperTestSuite) TestFindAllRefreshesCache() {
	lausanne := s.newCity("1003", "Lausanne")
	s.newCity("2000", "Neuchâtel")

	all, err := s.pc.Cities().FindAll(s.ctx)
	s.NoError(err)
	s.Require().Len(all, 2)
	s.Equal("Lausanne", all[0].Name)
	s.Equal("Neuchâtel", all[1].Name)

	// entities held from before the re-scan are stale copies
	s.NotSame(lausanne, all[0])
	again, err := s.pc.Cities().FindByID(s.ctx, lausanne.ID)
	s.NoError(err)
	s.Same(all[0], again)
}

func (s *SimpleMapperTestSuite) TestExistsAndCount() {
	c := s.newCity("2000", "Neuchâtel")

	exists, err := s.pc.Cities().Exists(s.ctx, c.ID)
	s.NoError(err)
	s.True(exists)

	exists, err = s.pc.Cities().Exists(s.ctx, c.ID+1)
	s.NoError(err)
	s.False(exists)

	n, err := s.pc.Cities().Count(s.ctx)
	s.NoError(err)
	s.Equal(int64(1), n)
}

func (s *SimpleMapperTestSuite) TestInvalidArguments() {
	_, err := s.pc.Cities().Create(s.ctx, nil)
	s.True(IsInvalidArgument(err))

	c := s.newCity("2000", "Neuchâtel")
	_, err = s.pc.Cities().Create(s.ctx, c)
	s.True(IsInvalidArgument(err))

	_, err = s.pc.Cities().Update(s.ctx, model.NewCity("1000", "Lausanne"))
	s.True(IsInvalidArgument(err))

	_, err = s.pc.Criteria().DeleteByID(s.ctx, 0)
	s.True(IsInvalidArgument(err))
}

func (s *SimpleMapperTestSuite) TestTypeFindByLabel() {
	t := s.newType("Pizzeria")

	found, err := s.pc.RestaurantTypes().FindByLabel(s.ctx, "PIZZERIA")
	s.NoError(err)
	s.Same(t, found)

	found, err = s.pc.RestaurantTypes().FindByLabel(s.ctx, "Pizz")
	s.NoError(err)
	s.Nil(found)
}

func (s *SimpleMapperTestSuite) TestCriteriaUsePreAllocatedIDs() {
	service := s.newCriteria("Service")
	cuisine := s.newCriteria("Cuisine")

	s.Equal(int64(1), service.ID)
	s.Equal(int64(2), cuisine.ID)

	found, err := s.pc.Criteria().FindByName(s.ctx, "cuisine")
	s.NoError(err)
	s.Same(cuisine, found)

	all, err := s.pc.Criteria().FindAll(s.ctx)
	s.NoError(err)
	s.Require().Len(all, 2)
	s.Equal("Service", all[0].Name)
}
