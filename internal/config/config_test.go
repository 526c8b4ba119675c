package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
database:
  driver: sqlite
  dsn: "file:ledger.db"
business:
  withdrawal_sync_interval: 3s
seed:
  enabled: true
  accounts:
    - account_id: 1
      user_id: 1
      balance: "1000000"
    - account_id: 2
      user_id: 2
      balance: "0"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:ledger.db", cfg.Database.DSN)
	assert.Equal(t, 3*time.Second, cfg.Business.WithdrawalSyncInterval)
	assert.Equal(t, time.Second, cfg.Business.OutboxInterval)
	assert.Equal(t, 5, cfg.Business.MaxRetryCount)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())

	require.Len(t, cfg.Seed.Accounts, 2)
	assert.Equal(t, int64(1), cfg.Seed.Accounts[0].AccountID)
	assert.Equal(t, "1000000", cfg.Seed.Accounts[0].Balance)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LEDGER_SERVER_PORT", "7070")
	t.Setenv("LEDGER_REDIS_HOST", "redis.local")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "database:\n  driver: oracle\n"))
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
