package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/token"
)

const sample = `
accounts:
  admin: "0x00000000000000000000000000000000000000ad"
  transfer_proxy: "0x00000000000000000000000000000000000000f0"
  operations: "0x00000000000000000000000000000000000000b5"
pool:
  reserve_target: "15"
treasury:
  powercard_active: 48h
valors:
  - name: alpha
    address: "0x0000000000000000000000000000000000007a01"
    vault: "0x0000000000000000000000000000000000005a01"
    safe_fraction: "0.2"
genesis:
  - account: "0x00000000000000000000000000000000000000f0"
    asset: USDC
    amount: "1000.5"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0 0 */6 * * *", cfg.Schedule.KeeperCron)
	assert.Equal(t, "0.005", cfg.Pool.ForcedReclaimFee)
	assert.Equal(t, 48*time.Hour, cfg.Treasury.PowercardActive)
	assert.Equal(t, 7*24*time.Hour, cfg.Treasury.PowercardCooldown)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "data/holy_ledger.db", cfg.Database.SQLitePath)
	// Accounts have no defaults.
	require.Error(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("RESERVE_TARGET", "250")
	t.Setenv("CRON_HARVEST", "0 */5 * * * *")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, "250", cfg.Pool.ReserveTarget)
	assert.Equal(t, "0 */5 * * * *", cfg.Schedule.KeeperCron)
	assert.Equal(t, "/tmp/x.db", cfg.Database.SQLitePath)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("HOLY_TEST_DOTENV=from-file\n"), 0644))
	t.Setenv("HOLY_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("HOLY_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("HOLY_TEST_DOTENV"))
}

func TestLedgerConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	lc, err := cfg.LedgerConfig()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xad"), lc.Admin)
	assert.Equal(t, calculator.MustParseDecimal("15", 6), lc.ReserveTarget)
	assert.Equal(t, calculator.MustParseDecimal("0.1", 18), lc.TreasuryPercentage)
	assert.Equal(t, calculator.MustParseDecimal("4", 18), lc.BurnLeverage)
	require.Len(t, lc.Valors, 1)
	assert.Equal(t, "alpha", lc.Valors[0].Name)
	assert.Equal(t, calculator.MustParseDecimal("0.2", 18), lc.Valors[0].SafeFraction)
	require.Len(t, lc.Genesis, 1)
	assert.Equal(t, token.BaseAsset, lc.Genesis[0].Asset)
	assert.Equal(t, calculator.MustParseDecimal("1000.5", 6), lc.Genesis[0].Amount)
	assert.Equal(t, "data/ledger_state.json", lc.StateFile)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"half telegram", func(c *Config) { c.Telegram.BotToken = "x" }},
		{"bad address", func(c *Config) { c.Accounts.Admin = "not-an-address" }},
		{"fee above one", func(c *Config) { c.Pool.ForcedReclaimFee = "1.01" }},
		{"percentages above one", func(c *Config) {
			c.Redeemer.TreasuryPercentage = "0.6"
			c.Redeemer.OperationsPercentage = "0.5"
		}},
		{"bad amount", func(c *Config) { c.Pool.ReserveTarget = "abc" }},
		{"unknown asset", func(c *Config) { c.Genesis[0].Asset = "DOGE" }},
		{"zero cooldown", func(c *Config) { c.Treasury.PowercardCooldown = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sample))
			require.NoError(t, err)
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
