package mapper

import (
	"strconv"
	"testing"

	"github.com/ammar0144/guideresto/pkg/model"
	"github.com/ammar0144/guideresto/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type FinderCacheTestSuite struct {
	mapperSuite

	server *miniredis.Miniredis
	redis  *redis.Manager

	city  *model.City
	pizza *model.RestaurantType
}

func TestFinderCache(t *testing.T) {
	suite.Run(t, new(FinderCacheTestSuite))
}

func (s *FinderCacheTestSuite) SetupTest() {
	s.mapperSuite.SetupTest()

	server, err := miniredis.Run()
	s.Require().NoError(err)
	s.server = server

	port, err := strconv.Atoi(server.Port())
	s.Require().NoError(err)
	cfg := redis.DefaultConfig()
	cfg.Enabled = true
	cfg.Host = server.Host()
	cfg.Port = port
	s.redis, err = redis.NewManager(cfg)
	s.Require().NoError(err)

	s.reopen(WithFinderCache(redis.NewFinderCache(s.redis, "test")))
	s.city = s.newCity("2000", "Neuchâtel")
	s.pizza = s.newType("Pizzeria")
	s.newRestaurant("Luigi's", s.city, s.pizza)
}

func (s *FinderCacheTestSuite) TearDownTest() {
	s.mapperSuite.TearDownTest()
	s.NoError(s.redis.Close())
	s.server.Close()
}

func (s *FinderCacheTestSuite) TestSecondLookupSkipsDatabase() {
	first, err := s.pc.Restaurants().FindByName(s.ctx, "luigi")
	s.Require().NoError(err)
	s.Require().Len(first, 1)

	before := s.queries()
	second, err := s.pc.Restaurants().FindByName(s.ctx, "luigi")
	s.NoError(err)
	s.Require().Len(second, 1)
	s.Same(first[0], second[0])
	s.Equal(before, s.queries())
	s.Equal(int64(1), s.counter("finder.hit"))
	s.Equal(int64(1), s.counter("finder.miss"))
}

func (s *FinderCacheTestSuite) TestWritesInvalidateResults() {
	found, err := s.pc.Restaurants().FindByType(s.ctx, s.pizza.ID)
	s.Require().NoError(err)
	s.Len(found, 1)

	s.newRestaurant("Da Mario", s.city, s.pizza)

	found, err = s.pc.Restaurants().FindByType(s.ctx, s.pizza.ID)
	s.NoError(err)
	s.Len(found, 2)
}

func (s *FinderCacheTestSuite) TestTransactionBypassesCache() {
	_, err := s.pc.Restaurants().FindByCity(s.ctx, "neuch")
	s.Require().NoError(err)

	s.Require().NoError(s.pc.Begin(s.ctx))
	s.newRestaurant("Da Mario", s.city, s.pizza)
	inside, err := s.pc.Restaurants().FindByCity(s.ctx, "neuch")
	s.NoError(err)
	s.Len(inside, 2)
	s.Require().NoError(s.pc.Rollback(s.ctx))

	after, err := s.pc.Restaurants().FindByCity(s.ctx, "neuch")
	s.NoError(err)
	s.Len(after, 1)
}

func (s *FinderCacheTestSuite) TestRedisOutageFallsBackToDatabase() {
	logger, hook := logtest.NewNullLogger()
	s.reopen(WithFinderCache(redis.NewFinderCache(s.redis, "test")), WithLogger(log.NewEntry(logger)))
	s.server.Close()

	found, err := s.pc.Restaurants().FindByName(s.ctx, "luigi")
	s.NoError(err)
	s.Len(found, 1)
	s.Require().NotNil(hook.LastEntry())
	s.Equal(log.ErrorLevel, hook.LastEntry().Level)
}

func (s *FinderCacheTestSuite) TestRedisCommandFailureIsWarning() {
	logger, hook := logtest.NewNullLogger()
	s.reopen(WithFinderCache(redis.NewFinderCache(s.redis, "test")), WithLogger(log.NewEntry(logger)))
	s.server.SetError("ERR out of memory")

	found, err := s.pc.Restaurants().FindByName(s.ctx, "luigi")
	s.NoError(err)
	s.Len(found, 1)
	s.Require().NotNil(hook.LastEntry())
	s.Equal(log.WarnLevel, hook.LastEntry().Level)
}

func TestFingerprintDependsOnArguments(t *testing.T) {
	assert.Equal(t, fingerprint("%luigi%"), fingerprint("%luigi%"))
	assert.NotEqual(t, fingerprint("%luigi%"), fingerprint("%mario%"))
	assert.NotEqual(t, fingerprint(int64(1)), fingerprint("1"))
	assert.Len(t, fingerprint(int64(7)), fingerprintLength)
}
