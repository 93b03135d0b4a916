// Package config loads the guideresto configuration: YAML files merged in
// order, then .env and GUIDERESTO_* environment overrides, then validation.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/mapper"
	"github.com/ammar0144/guideresto/pkg/redis"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// Sequence sources
const (
	SequenceTable = "table"
	SequenceRedis = "redis"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "GUIDERESTO_"

var dotEnvFile = ".env"

// Config is the whole guideresto configuration
type Config struct {
	Database    db.Config         `yaml:"database"`
	Redis       redis.Config      `yaml:"redis"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// PersistenceConfig selects the session policies
type PersistenceConfig struct {
	// RestaurantDeletePolicy is restrict (default) or cascade
	RestaurantDeletePolicy string `yaml:"restaurant_delete_policy" validate:"regexp=^(restrict|cascade)?$"`

	// SequenceSource allocates pre-allocated ids: table (default) or redis
	SequenceSource string `yaml:"sequence_source" validate:"regexp=^(table|redis)?$"`

	// FinderCache caches restaurant finder results in Redis
	FinderCache bool `yaml:"finder_cache"`
}

// LoggingConfig configures the logrus standard logger
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"nonzero"`
	Format string `yaml:"format" validate:"regexp=^(json|text)?$"`
}

// ValidationError is returned when a configuration fails its validate tags
type ValidationError struct {
	errorMap validator.ErrorMap
}

// ErrForField returns the validation error for the given field
func (e ValidationError) ErrForField(name string) error {
	return e.errorMap[name]
}

func (e ValidationError) Error() string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "validation failed")
	for f, err := range e.errorMap {
		fmt.Fprintf(&w, "   %s: %v\n", f, err)
	}
	return w.String()
}

// Default returns a configuration for a local MySQL store with Redis
// disabled
func Default() *Config {
	return &Config{
		Database: db.Config{
			Driver:          db.DriverMySQL,
			Host:            "localhost",
			Port:            3306,
			Database:        "guideresto",
			Username:        "guideresto",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
			Collation:       "utf8mb4_unicode_ci",
			TimeZone:        "UTC",
			QueryTimeout:    30 * time.Second,
			Logging:         db.LoggingConfig{Level: "warn"},
		},
		Redis: *redis.DefaultConfig(),
		Persistence: PersistenceConfig{
			RestaurantDeletePolicy: mapper.RestrictEvaluations.String(),
			SequenceSource:         SequenceTable,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load merges the given YAML files over Default, applies the environment
// and validates the result. A .env file in the working directory, if
// present, is loaded into the environment first; variables already set win.
func Load(files ...string) (*Config, error) {
	cfg := Default()
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", name)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", name)
		}
	}

	if err := godotenv.Load(dotEnvFile); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the validate tags, then each section
func (c *Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		if errs, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errorMap: errs}
		}
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return errors.Wrap(err, "database")
	}
	if err := c.Redis.Validate(); err != nil {
		return errors.Wrap(err, "redis")
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, "logging")
	}

	if !c.Redis.Enabled {
		if c.Persistence.SequenceSource == SequenceRedis {
			return errors.New("persistence: redis sequence source requires redis.enabled")
		}
		if c.Persistence.FinderCache {
			return errors.New("persistence: finder cache requires redis.enabled")
		}
	}
	return nil
}

// DeletePolicy returns the configured restaurant delete policy
func (c *Config) DeletePolicy() mapper.DeletePolicy {
	policy, err := mapper.ParseDeletePolicy(c.Persistence.RestaurantDeletePolicy)
	if err != nil {
		return mapper.RestrictEvaluations
	}
	return policy
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from GUIDERESTO_* variables
func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"DB_DRIVER":                &c.Database.Driver,
		"DB_HOST":                  &c.Database.Host,
		"DB_NAME":                  &c.Database.Database,
		"DB_USER":                  &c.Database.Username,
		"DB_PASSWORD":              &c.Database.Password,
		"DB_LOG_LEVEL":             &c.Database.Logging.Level,
		"REDIS_HOST":               &c.Redis.Host,
		"REDIS_PASSWORD":           &c.Redis.Password,
		"REDIS_KEY_PREFIX":         &c.Redis.KeyPrefix,
		"RESTAURANT_DELETE_POLICY": &c.Persistence.RestaurantDeletePolicy,
		"SEQUENCE_SOURCE":          &c.Persistence.SequenceSource,
		"LOG_LEVEL":                &c.Logging.Level,
		"LOG_FORMAT":               &c.Logging.Format,
	}
	for key, field := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*field = v
		}
	}

	ints := map[string]*int{
		"DB_PORT":    &c.Database.Port,
		"REDIS_PORT": &c.Redis.Port,
		"REDIS_DB":   &c.Redis.Database,
	}
	for key, field := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, key)
			}
			*field = n
		}
	}

	bools := map[string]*bool{
		"REDIS_ENABLED": &c.Redis.Enabled,
		"FINDER_CACHE":  &c.Persistence.FinderCache,
	}
	for key, field := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, key)
			}
			*field = b
		}
	}

	if v, ok := lookup(EnvPrefix + "DB_QUERY_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%sDB_QUERY_TIMEOUT", EnvPrefix)
		}
		c.Database.QueryTimeout = d
	}
	return nil
}

// SetupLogging configures the logrus standard logger
func SetupLogging(cfg LoggingConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return errors.Wrap(err, "logging")
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
