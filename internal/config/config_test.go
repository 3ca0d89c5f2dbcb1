package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoflow-labs/task-tracker/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "HTTP_ADDR", "METRICS_ADDR", "LOG_LEVEL",
		"STORE_DRIVER", "DATABASE_URL", "NATS_URL", "SHUTDOWN_TIMEOUT",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, config.DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":7000"
log_level: debug
store_driver: postgres
database_url: postgres://tasks@localhost/tasks
shutdown_timeout: 3s
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":7100")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, config.DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://tasks@localhost/tasks", cfg.DatabaseURL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

func TestLoadReportsAllMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("STORE_DRIVER", "postgres")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_ADDR")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err := config.Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")

	clearEnv(t)
	t.Setenv("LOG_LEVEL", "loud")
	_, err = config.Load()
	assert.ErrorContains(t, err, "LOG_LEVEL")

	clearEnv(t)
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	_, err = config.Load()
	assert.ErrorContains(t, err, "SHUTDOWN_TIMEOUT")
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := config.Load()
	assert.ErrorContains(t, err, "open config file")
}
