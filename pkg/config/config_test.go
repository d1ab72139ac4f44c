package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "creator-ledger", cfg.AppName)
	require.Equal(t, "postgres", cfg.Database.Type)
	require.Equal(t, "v1", cfg.Ledger.RateVersion)
	require.Equal(t, 21*24*time.Hour, cfg.Ledger.WalletCooldown)
	require.Equal(t, "18", cfg.Ledger.MinimumWithdrawal)
	require.Equal(t, "5000", cfg.Ledger.DefaultMonthlyLimit)
	require.EqualValues(t, 5, cfg.Ledger.PinMaxAttempts)
	require.Equal(t, "distinct_ips_24h > 5", cfg.Ledger.SuspiciousIPRule)
	require.Empty(t, cfg.Ledger.Rates)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
APP_ENV: staging
DATABASE:
  TYPE: sqlite
  DBNAME: ledger-test.db
LEDGER:
  RATE_VERSION: v2
  WALLET_COOLDOWN: 72h
  RATES:
    - LEVEL: bronze
      MIN_VIEWS: 0
      RATE_PER_VIEW: "0.001"
    - LEVEL: silver
      MIN_VIEWS: 5000
      RATE_PER_VIEW: "0.004"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("LEDGER_MINIMUM_WITHDRAWAL", "25")

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "staging", cfg.AppEnv)
	require.Equal(t, "sqlite", cfg.Database.Type)
	require.Equal(t, "v2", cfg.Ledger.RateVersion)
	require.Equal(t, 72*time.Hour, cfg.Ledger.WalletCooldown)
	require.Equal(t, "25", cfg.Ledger.MinimumWithdrawal)
	require.Len(t, cfg.Ledger.Rates, 2)
	require.Equal(t, "silver", cfg.Ledger.Rates[1].Level)
	require.EqualValues(t, 5000, cfg.Ledger.Rates[1].MinViews)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("LEDGER: [unterminated"), 0o600))

	_, err := Load(dir)
	require.Error(t, err)
}
