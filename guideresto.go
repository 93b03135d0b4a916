// Package guideresto persists the restaurant guide's object graph with
// per-entity data mappers over GORM, an identity map per session and an
// optional Redis layer for id sequences and finder results.
package guideresto

import (
	"context"

	"github.com/ammar0144/guideresto/pkg/config"
	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/mapper"
	"github.com/ammar0144/guideresto/pkg/redis"
	"github.com/ammar0144/guideresto/pkg/service"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Config represents the whole configuration
type Config = config.Config

// DatabaseConfig represents database configuration
type DatabaseConfig = db.Config

// RedisConfig represents Redis configuration
type RedisConfig = redis.Config

// PersistenceContext is one persistence session
type PersistenceContext = mapper.PersistenceContext

// LoadConfig reads the given YAML files, the environment and validates
func LoadConfig(files ...string) (*Config, error) {
	return config.Load(files...)
}

// NewManager creates a new database manager
func NewManager(cfg *DatabaseConfig) (*db.Manager, error) {
	return db.NewManager(cfg)
}

// NewRedisManager creates a new Redis manager
func NewRedisManager(cfg *RedisConfig) (*redis.Manager, error) {
	return redis.NewManager(cfg)
}

// Session is a persistence session together with the services running on
// it. Closing it closes the database and Redis connections it opened.
type Session struct {
	*mapper.PersistenceContext

	Restaurants *service.RestaurantService
	Evaluations *service.EvaluationService

	redis *redis.Manager
}

// Open connects to the stores described by cfg and starts a session. When
// Redis is enabled it backs the sequences and the finder cache as
// configured. The sequence source in use is first advanced past the ids
// already stored, so switching sources never reuses an id. opts are
// applied after the configured ones.
func Open(ctx context.Context, cfg *Config, opts ...mapper.Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	manager, err := db.NewManager(&cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := manager.Ping(ctx); err != nil {
		return nil, multierr.Append(errors.Wrap(err, "ping database"), manager.Close())
	}

	options := []mapper.Option{
		mapper.WithOwnedManager(),
		mapper.WithRestaurantDeletePolicy(cfg.DeletePolicy()),
	}

	var rm *redis.Manager
	if cfg.Redis.Enabled {
		rm, err = redis.NewManager(&cfg.Redis)
		if err != nil {
			return nil, multierr.Append(errors.Wrap(err, "open redis"), manager.Close())
		}
		if cfg.Persistence.SequenceSource == config.SequenceRedis {
			seq := redis.NewSequence(rm)
			if err := mapper.SeedSequences(ctx, manager, seq); err != nil {
				return nil, multierr.Combine(errors.Wrap(err, "seed redis sequences"), rm.Close(), manager.Close())
			}
			options = append(options, mapper.WithSequence(seq))
		}
		if cfg.Persistence.FinderCache {
			options = append(options, mapper.WithFinderCache(redis.NewFinderCache(rm, cfg.Database.Database)))
		}
	}

	pc, err := mapper.NewPersistenceContext(manager, append(options, opts...)...)
	if err != nil {
		err = multierr.Append(err, manager.Close())
		if rm != nil {
			err = multierr.Append(err, rm.Close())
		}
		return nil, err
	}
	if cfg.Persistence.SequenceSource != config.SequenceRedis {
		if err := mapper.SeedSequences(ctx, manager, mapper.NewTableSequence(pc)); err != nil {
			err = multierr.Append(errors.Wrap(err, "seed table sequences"), pc.Close(ctx))
			if rm != nil {
				err = multierr.Append(err, rm.Close())
			}
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"session":         pc.ID(),
		"driver":          cfg.Database.DriverName(),
		"redis":           cfg.Redis.Enabled,
		"sequence_source": cfg.Persistence.SequenceSource,
	}).Info("guideresto session opened")

	return &Session{
		PersistenceContext: pc,
		Restaurants:        service.NewRestaurantService(pc),
		Evaluations:        service.NewEvaluationService(pc),
		redis:              rm,
	}, nil
}

// Migrate creates the guide's tables on the session's database
func (s *Session) Migrate(ctx context.Context) error {
	return mapper.Migrate(ctx, s.Manager())
}

// Close ends the session and closes its connections
func (s *Session) Close(ctx context.Context) error {
	err := s.PersistenceContext.Close(ctx)
	if s.redis != nil {
		err = multierr.Append(err, s.redis.Close())
		s.redis = nil
	}
	return err
}
