package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "1m", cfg.Trading.Timeframe)
	assert.Equal(t, 200, cfg.Trading.HistoryLimit)
	assert.Equal(t, ":8080", cfg.Server.APIAddr)
	assert.Equal(t, 30, cfg.Strategy.MinHistory)
	assert.Equal(t, 20, cfg.Strategy.Annotate.BBPeriod)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trading:
  market: ETHUSDT
  timeframe: 5m
  take_profit_pct: 0.03
strategy:
  rsi_buy: 30
  annotate:
    rsi_period: 21
server:
  api_addr: ":9999"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", cfg.Trading.Market)
	assert.Equal(t, "5m", cfg.Trading.Timeframe)
	assert.Equal(t, 0.03, cfg.Trading.TakeProfitPct)
	assert.Equal(t, 30.0, cfg.Strategy.RSIBuy)
	assert.Equal(t, 21, cfg.Strategy.Annotate.RSIPeriod)
	assert.Equal(t, ":9999", cfg.Server.APIAddr)
	// Untouched sections keep their defaults.
	assert.Equal(t, 200, cfg.Trading.HistoryLimit)
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "env-key")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("SQLITE_PATH", "/tmp/env.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Binance.APIKey)
	assert.Equal(t, "env-token", cfg.Notify.TelegramToken)
	assert.Equal(t, "/tmp/env.db", cfg.Storage.SQLitePath)
}

func TestAutostartRequiresMarket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trading:
  autostart: true
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "autostart")
}
