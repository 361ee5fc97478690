package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/David-Botos/column-janitor/pkg/model"
)

func TestLoadCleaningConfigDefaults(t *testing.T) {
	for _, key := range []string{"CLEAN_CASE_TYPE", "CLEAN_STRIP_UNDERSCORES", "CLEAN_REMOVE_SPECIAL", "CLEAN_STRIP_ACCENTS", "CLEAN_TRUNCATE_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadCleaningConfig()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCleaningConfig(), cfg)
}

func TestLoadCleaningConfigFromEnv(t *testing.T) {
	t.Setenv("CLEAN_CASE_TYPE", "Snake")
	t.Setenv("CLEAN_STRIP_UNDERSCORES", "r")
	t.Setenv("CLEAN_REMOVE_SPECIAL", "true")
	t.Setenv("CLEAN_STRIP_ACCENTS", "1")
	t.Setenv("CLEAN_TRUNCATE_LIMIT", "12")

	cfg, err := LoadCleaningConfig()
	require.NoError(t, err)
	assert.Equal(t, model.CleaningConfig{
		StripUnderscores: model.StripRight,
		CaseType:         model.CaseSnake,
		RemoveSpecial:    true,
		StripAccents:     true,
		TruncateLimit:    12,
	}, cfg)
}

func TestLoadCleaningConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CLEAN_CASE_TYPE", "kebab"},
		{"CLEAN_STRIP_UNDERSCORES", "middle"},
		{"CLEAN_TRUNCATE_LIMIT", "ten"},
		{"CLEAN_TRUNCATE_LIMIT", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadCleaningConfig()
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidConfig)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CLEAN_CASE_TYPE", "upper")
	t.Setenv("WORKER_POOL_SIZE", "4")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("CLEAN_AUDIT_TABLE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, model.CaseUpper, cfg.Cleaning.CaseType)
	assert.Equal(t, 4, cfg.WorkerPoolSize)
	assert.Equal(t, "cleaned_on_ingress", cfg.AuditTable)
	assert.Nil(t, cfg.Postgres)
	assert.Nil(t, cfg.Snowflake)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CLEAN_TRUNCATE_LIMIT=30\n"), 0o600))
	t.Setenv("CLEAN_TRUNCATE_LIMIT", "")
	// godotenv does not override variables that are already set, even empty ones
	require.NoError(t, os.Unsetenv("CLEAN_TRUNCATE_LIMIT"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Cleaning.TruncateLimit)
}

func TestLoadConfigRejectsLogFormat(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LOG_FORMAT", "xml")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadCleaningProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("case_type: pascal\nstrip_underscores: both\ntruncate_limit: 20\n"), 0o600))

	base := model.DefaultCleaningConfig()
	base.StripAccents = true

	cfg, err := LoadCleaningProfile(path, base)
	require.NoError(t, err)
	assert.Equal(t, model.CasePascal, cfg.CaseType)
	assert.Equal(t, model.StripBoth, cfg.StripUnderscores)
	assert.Equal(t, 20, cfg.TruncateLimit)
	assert.True(t, cfg.StripAccents, "keys missing from the profile keep the base value")
}

func TestLoadCleaningProfileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCleaningProfile(filepath.Join(dir, "missing.yaml"), model.DefaultCleaningConfig())
	assert.Error(t, err)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("case: snake\n"), 0o600))
	_, err = LoadCleaningProfile(unknown, model.DefaultCleaningConfig())
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("case_type: kebab\n"), 0o600))
	_, err = LoadCleaningProfile(invalid, model.DefaultCleaningConfig())
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestLoadPostgresConfig(t *testing.T) {
	t.Setenv("POSTGRES_USER", "")
	_, err := LoadPostgresConfig()
	assert.Error(t, err)

	t.Setenv("POSTGRES_USER", "janitor")
	t.Setenv("POSTGRES_DB", "warehouse")
	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_HOST", "")
	t.Setenv("POSTGRES_SSLMODE", "")

	cfg, err := LoadPostgresConfig()
	require.NoError(t, err)
	assert.Equal(t, "host=localhost port=6543 user=janitor dbname=warehouse sslmode=disable", cfg.ConnectionString())
}

func TestLoadPoolConfig(t *testing.T) {
	t.Setenv("TEST_MAX_OPEN_CONNS", "25")
	t.Setenv("TEST_MAX_IDLE_CONNS", "")
	t.Setenv("TEST_CONN_MAX_LIFETIME_SECONDS", "not-a-number")
	t.Setenv("TEST_CONN_MAX_IDLE_TIME_SECONDS", "")

	assert.Equal(t, PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}, loadPoolConfig("TEST", 1800, 600))
}

func TestGetEnvAsStringSlice(t *testing.T) {
	t.Setenv("SCHEMAS", ` "raw", staging ,, `)
	assert.Equal(t, []string{"raw", "staging"}, getEnvAsStringSlice("SCHEMAS", nil))

	t.Setenv("SCHEMAS", " , ")
	assert.Equal(t, []string{"PUBLIC"}, getEnvAsStringSlice("SCHEMAS", []string{"PUBLIC"}))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "console")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger("loud", "json")
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
