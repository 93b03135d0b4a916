package mapper

import (
	"context"
	"time"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/redis"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Option configures a PersistenceContext
type Option func(*PersistenceContext)

// WithLogger sets the base log entry; a session field is added to it
func WithLogger(entry *log.Entry) Option {
	return func(pc *PersistenceContext) { pc.log = entry }
}

// WithScope sets the tally scope mapper metrics are reported on
func WithScope(scope tally.Scope) Option {
	return func(pc *PersistenceContext) { pc.scope = scope }
}

// WithSequence replaces the table-backed sequence source
func WithSequence(source SequenceSource) Option {
	return func(pc *PersistenceContext) { pc.sequence = source }
}

// WithFinderCache enables the Redis cache of restaurant finder results
func WithFinderCache(cache *redis.FinderCache) Option {
	return func(pc *PersistenceContext) { pc.finders.cache = cache }
}

// WithRestaurantDeletePolicy sets what deleting a restaurant does with its
// evaluations
func WithRestaurantDeletePolicy(policy DeletePolicy) Option {
	return func(pc *PersistenceContext) { pc.deletePolicy = policy }
}

// WithOwnedManager makes Close also close the database manager
func WithOwnedManager() Option {
	return func(pc *PersistenceContext) { pc.ownsManager = true }
}

// PersistenceContext is one persistence session: a database handle, the
// mappers wired to each other, their identity caches and an optional open
// transaction. It is not safe for concurrent use.
type PersistenceContext struct {
	manager     *db.Manager
	db          *gorm.DB
	tx          *gorm.DB
	timeout     time.Duration
	ownsManager bool
	closed      bool

	id       string
	log      *log.Entry
	scope    tally.Scope
	sequence SequenceSource
	finders  finderCache

	deletePolicy DeletePolicy

	// undo steps for in-memory side effects of the open transaction
	journal []func()
	dirty   bool

	cities      *CityMapper
	types       *RestaurantTypeMapper
	criteria    *EvaluationCriteriaMapper
	restaurants *RestaurantMapper
	basics      *BasicEvaluationMapper
	completes   *CompleteEvaluationMapper
	grades      *GradeMapper
}

// NewPersistenceContext opens a session on manager and wires its mappers
func NewPersistenceContext(manager *db.Manager, opts ...Option) (*PersistenceContext, error) {
	if manager == nil || manager.DB() == nil {
		return nil, invalidArgument("database manager is nil")
	}

	pc := &PersistenceContext{
		manager: manager,
		db:      manager.DB(),
		id:      uuid.NewString(),
		log:     log.NewEntry(log.StandardLogger()),
		scope:   tally.NoopScope,
	}
	if cfg := manager.Config(); cfg != nil {
		pc.timeout = cfg.QueryTimeout
	}
	for _, opt := range opts {
		opt(pc)
	}

	pc.log = pc.log.WithField("session", pc.id)
	if pc.sequence == nil {
		pc.sequence = NewTableSequence(pc)
	}
	pc.finders.log = pc.log
	pc.finders.hits = pc.scope.Counter("finder.hit")
	pc.finders.misses = pc.scope.Counter("finder.miss")

	pc.wire()
	pc.log.WithField("delete_policy", pc.deletePolicy).Debug("persistence context opened")
	return pc, nil
}

// wire constructs every mapper, then hands each the mappers it resolves
// references through
func (pc *PersistenceContext) wire() {
	pc.cities = newCityMapper(pc)
	pc.types = newRestaurantTypeMapper(pc)
	pc.criteria = newEvaluationCriteriaMapper(pc)
	pc.restaurants = newRestaurantMapper(pc)
	pc.basics = newBasicEvaluationMapper(pc)
	pc.completes = newCompleteEvaluationMapper(pc)
	pc.grades = newGradeMapper(pc)

	pc.restaurants.cities = pc.cities
	pc.restaurants.types = pc.types
	pc.restaurants.basics = pc.basics
	pc.restaurants.completes = pc.completes

	pc.basics.restaurants = pc.restaurants

	pc.completes.restaurants = pc.restaurants
	pc.completes.grades = pc.grades

	pc.grades.criteria = pc.criteria
	pc.grades.evaluations = pc.completes
}

// ID returns the session id used in log entries
func (pc *PersistenceContext) ID() string { return pc.id }

// Cities returns the city mapper
func (pc *PersistenceContext) Cities() *CityMapper { return pc.cities }

// RestaurantTypes returns the restaurant type mapper
func (pc *PersistenceContext) RestaurantTypes() *RestaurantTypeMapper { return pc.types }

// Criteria returns the evaluation criteria mapper
func (pc *PersistenceContext) Criteria() *EvaluationCriteriaMapper { return pc.criteria }

// Restaurants returns the restaurant mapper
func (pc *PersistenceContext) Restaurants() *RestaurantMapper { return pc.restaurants }

// BasicEvaluations returns the basic evaluation mapper
func (pc *PersistenceContext) BasicEvaluations() *BasicEvaluationMapper { return pc.basics }

// CompleteEvaluations returns the complete evaluation mapper
func (pc *PersistenceContext) CompleteEvaluations() *CompleteEvaluationMapper { return pc.completes }

// Grades returns the grade mapper
func (pc *PersistenceContext) Grades() *GradeMapper { return pc.grades }

// Manager returns the database manager the session runs on
func (pc *PersistenceContext) Manager() *db.Manager { return pc.manager }

// DeletePolicy returns the configured restaurant delete policy
func (pc *PersistenceContext) DeletePolicy() DeletePolicy { return pc.deletePolicy }

// Conn returns the connection the next statement runs on, bound to ctx and
// the configured query timeout. The cancel func must be called once the
// statement is done.
func (pc *PersistenceContext) Conn(ctx context.Context) (*gorm.DB, context.CancelFunc, error) {
	if pc.closed {
		return nil, nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, storageError("connect", "", err)
	}

	cancel := context.CancelFunc(func() {})
	if pc.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, pc.timeout)
	}

	conn := pc.db
	if pc.tx != nil {
		conn = pc.tx
	}
	return conn.WithContext(ctx), cancel, nil
}

// InTransaction reports whether a transaction is open
func (pc *PersistenceContext) InTransaction() bool {
	return pc.tx != nil
}

// Begin opens a transaction; every mapper statement runs in it until
// Commit or Rollback. Cancelling ctx rolls the transaction back.
func (pc *PersistenceContext) Begin(ctx context.Context) error {
	if pc.closed {
		return ErrClosed
	}
	if pc.tx != nil {
		return ErrTxActive
	}

	tx := pc.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return storageError("begin", "", tx.Error)
	}
	pc.tx = tx
	pc.journal = nil
	pc.dirty = false
	pc.log.Debug("transaction started")
	return nil
}

// Commit commits the open transaction. A failed commit leaves nothing
// stored, so in-memory side effects are undone as for Rollback.
func (pc *PersistenceContext) Commit(ctx context.Context) error {
	if pc.tx == nil {
		return ErrNoTx
	}

	err := pc.tx.Commit().Error
	pc.tx = nil
	if err != nil {
		pc.log.WithError(err).Error("commit failed")
		pc.undo(ctx)
		return storageError("commit", "", err)
	}

	pc.journal = nil
	if pc.dirty {
		pc.finders.invalidate(ctx, tableRestaurants)
	}
	pc.dirty = false
	pc.log.Debug("transaction committed")
	return nil
}

// Rollback rolls the open transaction back, undoes the in-memory side
// effects mappers performed in it and clears every identity cache.
func (pc *PersistenceContext) Rollback(ctx context.Context) error {
	if pc.tx == nil {
		return ErrNoTx
	}

	err := pc.tx.Rollback().Error
	pc.tx = nil
	pc.undo(ctx)
	if err != nil {
		pc.log.WithError(err).Error("rollback failed")
		return storageError("rollback", "", err)
	}
	pc.log.Debug("transaction rolled back")
	return nil
}

func (pc *PersistenceContext) undo(ctx context.Context) {
	for i := len(pc.journal) - 1; i >= 0; i-- {
		pc.journal[i]()
	}
	pc.journal = nil
	pc.dirty = false
	pc.Clear()
	pc.finders.invalidate(ctx, tableRestaurants)
}

// remember records an undo step if a transaction is open
func (pc *PersistenceContext) remember(undo func()) {
	if pc.tx != nil {
		pc.journal = append(pc.journal, undo)
	}
}

// touched marks the restaurant finder results stale
func (pc *PersistenceContext) touched(ctx context.Context) {
	pc.dirty = true
	pc.finders.invalidate(ctx, tableRestaurants)
}

// Clear empties every identity cache. Entities obtained before may be
// stale; finders return fresh instances afterwards.
func (pc *PersistenceContext) Clear() {
	pc.cities.cache.Clear()
	pc.types.cache.Clear()
	pc.criteria.cache.Clear()
	pc.restaurants.cache.Clear()
	pc.basics.cache.Clear()
	pc.completes.cache.Clear()
	pc.grades.cache.Clear()
}

// Close ends the session, rolling back a transaction left open
func (pc *PersistenceContext) Close(ctx context.Context) error {
	if pc.closed {
		return nil
	}

	var err error
	if pc.tx != nil {
		pc.log.Warn("closing session with an open transaction, rolling back")
		err = multierr.Append(err, pc.Rollback(ctx))
	}
	pc.Clear()
	pc.closed = true
	if pc.ownsManager {
		err = multierr.Append(err, pc.manager.Close())
	}
	pc.log.Debug("persistence context closed")
	return err
}

// Migrate creates the tables of every mapper
func Migrate(ctx context.Context, manager *db.Manager) error {
	return manager.Migrate(ctx, Models()...)
}
