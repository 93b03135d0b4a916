package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/mapper"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noDotEnv points Load at a .env file that does not exist
func noDotEnv(t *testing.T) {
	t.Helper()
	prev := dotEnvFile
	dotEnvFile = filepath.Join(t.TempDir(), ".env")
	t.Cleanup(func() { dotEnvFile = prev })
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, mapper.RestrictEvaluations, cfg.DeletePolicy())
	assert.Equal(t, SequenceTable, cfg.Persistence.SequenceSource)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadMergesFilesInOrder(t *testing.T) {
	noDotEnv(t)
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", `
database:
  driver: sqlite
  database: guideresto.db
  max_open_conns: 1
  query_timeout: 5s
logging:
  level: debug
`)
	override := writeFile(t, dir, "override.yaml", `
persistence:
  restaurant_delete_policy: cascade
logging:
  format: json
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, db.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "guideresto.db", cfg.Database.Database)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, mapper.CascadeEvaluations, cfg.DeletePolicy())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	noDotEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	noDotEnv(t)
	t.Setenv("GUIDERESTO_DB_HOST", "db.internal")
	t.Setenv("GUIDERESTO_DB_PORT", "3307")
	t.Setenv("GUIDERESTO_REDIS_ENABLED", "true")
	t.Setenv("GUIDERESTO_FINDER_CACHE", "1")
	t.Setenv("GUIDERESTO_SEQUENCE_SOURCE", "redis")
	t.Setenv("GUIDERESTO_DB_QUERY_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Persistence.FinderCache)
	assert.Equal(t, SequenceRedis, cfg.Persistence.SequenceSource)
	assert.Equal(t, 2*time.Second, cfg.Database.QueryTimeout)
}

func TestDotEnvFile(t *testing.T) {
	noDotEnv(t)
	writeFile(t, filepath.Dir(dotEnvFile), ".env", "GUIDERESTO_DB_NAME=from_dotenv\n")
	t.Setenv("GUIDERESTO_DB_USER", "from_env")
	t.Cleanup(func() { os.Unsetenv("GUIDERESTO_DB_NAME") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.Database.Database)
	assert.Equal(t, "from_env", cfg.Database.Username)
}

func TestBadEnvironmentValue(t *testing.T) {
	noDotEnv(t)
	t.Setenv("GUIDERESTO_REDIS_PORT", "six")
	_, err := Load()
	assert.ErrorContains(t, err, "GUIDERESTO_REDIS_PORT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{
			name:   "unknown delete policy",
			modify: func(c *Config) { c.Persistence.RestaurantDeletePolicy = "orphan" },
			field:  "Persistence.RestaurantDeletePolicy",
		},
		{
			name:   "unknown sequence source",
			modify: func(c *Config) { c.Persistence.SequenceSource = "uuid" },
			field:  "Persistence.SequenceSource",
		},
		{
			name:   "unknown log format",
			modify: func(c *Config) { c.Logging.Format = "xml" },
			field:  "Logging.Format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Error(t, verr.ErrForField(tt.field))
		})
	}
}

func TestValidateSections(t *testing.T) {
	cfg := Default()
	cfg.Database.Host = ""
	assert.ErrorContains(t, cfg.Validate(), "database")

	cfg = Default()
	cfg.Persistence.FinderCache = true
	assert.ErrorContains(t, cfg.Validate(), "finder cache requires redis")

	cfg = Default()
	cfg.Logging.Level = "chatty"
	assert.ErrorContains(t, cfg.Validate(), "logging")
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(log.StandardLogger().Formatter)

	require.NoError(t, SetupLogging(LoggingConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.Error(t, SetupLogging(LoggingConfig{Level: "loud"}))
}
