package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMySQLConfig() *Config {
	return &Config{
		Host:         "db.local",
		Port:         3306,
		Database:     "guideresto",
		Username:     "guide",
		Password:     "secret",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing host", mutate: func(c *Config) { c.Host = "" }, wantErr: "host"},
		{name: "bad port", mutate: func(c *Config) { c.Port = 70000 }, wantErr: "port"},
		{name: "missing user", mutate: func(c *Config) { c.Username = "" }, wantErr: "username"},
		{name: "no conns", mutate: func(c *Config) { c.MaxOpenConns = 0 }, wantErr: "max_open_conns"},
		{name: "idle above open", mutate: func(c *Config) { c.MaxIdleConns = 4 }, wantErr: "max_idle_conns"},
		{name: "unknown driver", mutate: func(c *Config) { c.Driver = "oracle" }, wantErr: "unsupported"},
		{name: "sqlite needs only a path", mutate: func(c *Config) {
			c.Driver = DriverSQLite
			c.Host = ""
			c.Username = ""
		}},
		{name: "sqlite without path", mutate: func(c *Config) {
			c.Driver = DriverSQLite
			c.Database = ""
		}, wantErr: "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validMySQLConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDSNReportsFoundRows(t *testing.T) {
	cfg := validMySQLConfig()
	cfg.TimeZone = "UTC"

	dsn, err := cfg.GetDSN()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(dsn, "guide:secret@tcp(db.local:3306)/guideresto?"))
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestSQLiteDSNEnablesForeignKeys(t *testing.T) {
	cfg := &Config{Driver: DriverSQLite, Database: "file:x?mode=memory"}
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=1", cfg.sqliteDSN())

	cfg = &Config{Driver: DriverSQLite, Database: "guide.db"}
	assert.Equal(t, "guide.db?_foreign_keys=1", cfg.sqliteDSN())

	cfg.DisableForeignKeyConstraintWhenMigrating = true
	assert.Equal(t, "guide.db", cfg.sqliteDSN())
}

type migrateProbe struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func TestMemoryManager(t *testing.T) {
	m, err := NewMemoryManager("db_manager_test")
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	require.NoError(t, m.Ping(ctx))
	require.NoError(t, m.Migrate(ctx, &migrateProbe{}))
	require.NoError(t, m.DB().Create(&migrateProbe{Name: "probe"}).Error)

	var count int64
	require.NoError(t, m.DB().Model(&migrateProbe{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stats, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)
}

func TestNewManagerRejectsNil(t *testing.T) {
	_, err := NewManager(nil)
	assert.Error(t, err)
}
