package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("FITSENSE_DATABASE_DRIVER", "sqlite")
	t.Setenv("FITSENSE_LEDGER_MAX_RETRIES", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Ledger.MaxRetries)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "30 2 * * *", cfg.Scheduler.ReconcileSpec)
	assert.Equal(t, 24, cfg.JWT.ExpiryHours)
	assert.Same(t, cfg, Get())
}

func TestConnectDBRejectsUnknownDriver(t *testing.T) {
	_, err := ConnectDB(DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestConnectDBSqlite(t *testing.T) {
	db, err := ConnectDB(DatabaseConfig{Driver: "sqlite", DSN: "file:config_test?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, db.Exec("SELECT 1").Error)
}
