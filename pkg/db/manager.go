package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDefaultManager creates a MySQL database manager with minimal configuration
func NewDefaultManager(host, database, username, password string) (*Manager, error) {
	config := &Config{
		Driver:          DriverMySQL,
		Host:            host,
		Database:        database,
		Username:        username,
		Password:        password,
		Port:            3306,
		Collation:       "utf8mb4_unicode_ci",
		TimeZone:        "UTC",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		PrepareStmt:     true,
		QueryTimeout:    30 * time.Second,
	}

	return NewManager(config)
}

// NewMemoryManager creates a manager over a named, shared-cache in-memory
// SQLite database. Every manager opened with the same name sees the same
// data for as long as one of them stays open.
func NewMemoryManager(name string) (*Manager, error) {
	return NewManager(&Config{
		Driver:       DriverSQLite,
		Database:     fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		Logging:      LoggingConfig{Level: "silent"},
	})
}

// NewManager creates a new database manager instance with full configuration
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dialector, err := config.dialector()
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: config.DisableForeignKeyConstraintWhenMigrating,
		PrepareStmt:                              config.PrepareStmt,
		Logger:                                   newGormLogger(config.Logging),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)

	log.WithFields(log.Fields{
		"driver":   config.DriverName(),
		"database": config.Database,
	}).Debug("database connection opened")

	return &Manager{
		config: config,
		db:     db,
	}, nil
}

// dialector picks the GORM dialect for the configured driver
func (c *Config) dialector() (gorm.Dialector, error) {
	switch c.DriverName() {
	case DriverSQLite:
		return sqlite.Open(c.sqliteDSN()), nil
	default:
		dsn, err := c.GetDSN()
		if err != nil {
			return nil, fmt.Errorf("failed to build mysql dsn: %w", err)
		}
		return mysql.Open(dsn), nil
	}
}

// sqliteDSN turns foreign key enforcement on unless migrations are told to
// skip constraints
func (c *Config) sqliteDSN() string {
	dsn := c.Database
	if c.DisableForeignKeyConstraintWhenMigrating || strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=1"
	}
	return dsn + "?_foreign_keys=1"
}

// DB returns the GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// SqlDB returns the underlying sql.DB instance
func (m *Manager) SqlDB() (*sql.DB, error) {
	return m.db.DB()
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Ping tests the database connection
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns database connection statistics
func (m *Manager) Stats() (sql.DBStats, error) {
	sqlDB, err := m.db.DB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}

// Migrate creates or alters the tables backing the given row models
func (m *Manager) Migrate(ctx context.Context, models ...interface{}) error {
	if err := m.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// newGormLogger routes GORM statement logging through logrus
func newGormLogger(cfg LoggingConfig) logger.Interface {
	threshold := cfg.SlowQueryThreshold
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}
	return logger.New(log.StandardLogger(), logger.Config{
		SlowThreshold:             threshold,
		LogLevel:                  getLogLevel(cfg.Level),
		IgnoreRecordNotFoundError: true,
	})
}

func getLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Error // Default to error
	}
}
