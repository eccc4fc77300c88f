package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"HolyLedger/internal/calculator"
	"HolyLedger/internal/ledger"
	"HolyLedger/internal/token"
)

// ValorConfig describes one valor in the YAML file.
type ValorConfig struct {
	Name         string `yaml:"name"`
	Address      string `yaml:"address"`
	Vault        string `yaml:"vault"`
	SafeFraction string `yaml:"safe_fraction"`
}

// GrantConfig is a genesis balance; amount is a decimal in the asset's units.
type GrantConfig struct {
	Account string `yaml:"account"`
	Asset   string `yaml:"asset"`
	Amount  string `yaml:"amount"`
}

// Config holds all application configuration. Amounts and fractions are
// decimal strings so they parse losslessly into fixed-point values.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		KeeperCron   string `yaml:"keeper_cron"`
		SnapshotCron string `yaml:"snapshot_cron"`
	} `yaml:"schedule"`
	Accounts struct {
		Admin         string `yaml:"admin"`
		Keeper        string `yaml:"keeper"`
		TransferProxy string `yaml:"transfer_proxy"`
		FrontEnd      string `yaml:"front_end"`
		Operations    string `yaml:"operations"`
	} `yaml:"accounts"`
	Pool struct {
		ReserveTarget    string `yaml:"reserve_target"`
		ForcedReclaimFee string `yaml:"forced_reclaim_fee"`
	} `yaml:"pool"`
	Redeemer struct {
		TreasuryPercentage   string `yaml:"treasury_percentage"`
		OperationsPercentage string `yaml:"operations_percentage"`
		HarvestTolerance     string `yaml:"harvest_tolerance"`
	} `yaml:"redeemer"`
	Treasury struct {
		EndowmentPercentage string        `yaml:"endowment_percentage"`
		BurnLeverage        string        `yaml:"burn_leverage"`
		MaxBurnFraction     string        `yaml:"max_burn_fraction"`
		PowercardBoost      string        `yaml:"powercard_boost"`
		PowercardActive     time.Duration `yaml:"powercard_active"`
		PowercardCooldown   time.Duration `yaml:"powercard_cooldown"`
	} `yaml:"treasury"`
	Valors  []ValorConfig `yaml:"valors"`
	Genesis []GrantConfig `yaml:"genesis"`
	Ledger  struct {
		StateFile string `yaml:"state_file"`
	} `yaml:"ledger"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Proxy string `yaml:"proxy"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment. A missing
// file is not an error; variables already set win.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("RESERVE_TARGET"); v != "" {
		cfg.Pool.ReserveTarget = v
	}
	if v := os.Getenv("CRON_HARVEST"); v != "" {
		cfg.Schedule.KeeperCron = v
	}

	// Defaults
	if cfg.Schedule.KeeperCron == "" {
		cfg.Schedule.KeeperCron = "0 0 */6 * * *"
	}
	if cfg.Schedule.SnapshotCron == "" {
		cfg.Schedule.SnapshotCron = "0 */15 * * * *"
	}
	if cfg.Pool.ReserveTarget == "" {
		cfg.Pool.ReserveTarget = "0"
	}
	if cfg.Pool.ForcedReclaimFee == "" {
		cfg.Pool.ForcedReclaimFee = "0.005"
	}
	if cfg.Redeemer.TreasuryPercentage == "" {
		cfg.Redeemer.TreasuryPercentage = "0.1"
	}
	if cfg.Redeemer.OperationsPercentage == "" {
		cfg.Redeemer.OperationsPercentage = "0.1"
	}
	if cfg.Redeemer.HarvestTolerance == "" {
		cfg.Redeemer.HarvestTolerance = "0.01"
	}
	if cfg.Treasury.EndowmentPercentage == "" {
		cfg.Treasury.EndowmentPercentage = "0.5"
	}
	if cfg.Treasury.BurnLeverage == "" {
		cfg.Treasury.BurnLeverage = "4"
	}
	if cfg.Treasury.MaxBurnFraction == "" {
		cfg.Treasury.MaxBurnFraction = "0.05"
	}
	if cfg.Treasury.PowercardBoost == "" {
		cfg.Treasury.PowercardBoost = "2"
	}
	if cfg.Treasury.PowercardActive == 0 {
		cfg.Treasury.PowercardActive = 7 * 24 * time.Hour
	}
	if cfg.Treasury.PowercardCooldown == 0 {
		cfg.Treasury.PowercardCooldown = 7 * 24 * time.Hour
	}
	if cfg.Ledger.StateFile == "" {
		cfg.Ledger.StateFile = "data/ledger_state.json"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/holy_ledger.db"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}

	return cfg, nil
}

// TelegramEnabled reports whether both the bot token and the chat are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all required fields are set and parse.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Treasury.PowercardActive <= 0 || c.Treasury.PowercardCooldown <= 0 {
		return fmt.Errorf("treasury powercard durations must be positive")
	}
	_, err := c.LedgerConfig()
	return err
}

// LedgerConfig converts the file representation into ledger.Config. Clock,
// logger and recorder are left to the caller.
func (c *Config) LedgerConfig() (ledger.Config, error) {
	var out ledger.Config
	p := &parser{}

	out.Admin = p.address("accounts.admin", c.Accounts.Admin, true)
	out.Keeper = p.address("accounts.keeper", c.Accounts.Keeper, false)
	out.TransferProxy = p.address("accounts.transfer_proxy", c.Accounts.TransferProxy, true)
	out.FrontEnd = p.address("accounts.front_end", c.Accounts.FrontEnd, false)
	out.Operations = p.address("accounts.operations", c.Accounts.Operations, true)

	out.ReserveTarget = p.amount("pool.reserve_target", c.Pool.ReserveTarget, token.Decimals[token.BaseAsset])
	out.ForcedReclaimFee = p.fraction("pool.forced_reclaim_fee", c.Pool.ForcedReclaimFee, true)
	out.TreasuryPercentage = p.fraction("redeemer.treasury_percentage", c.Redeemer.TreasuryPercentage, true)
	out.OperationsPercentage = p.fraction("redeemer.operations_percentage", c.Redeemer.OperationsPercentage, true)
	out.HarvestTolerance = p.fraction("redeemer.harvest_tolerance", c.Redeemer.HarvestTolerance, true)
	out.EndowmentPercentage = p.fraction("treasury.endowment_percentage", c.Treasury.EndowmentPercentage, true)
	out.BurnLeverage = p.fraction("treasury.burn_leverage", c.Treasury.BurnLeverage, false)
	out.MaxBurnFraction = p.fraction("treasury.max_burn_fraction", c.Treasury.MaxBurnFraction, true)
	out.PowercardBoost = p.fraction("treasury.powercard_boost", c.Treasury.PowercardBoost, false)
	out.PowercardActive = c.Treasury.PowercardActive
	out.PowercardCooldown = c.Treasury.PowercardCooldown
	if p.err == nil && out.TreasuryPercentage != nil && out.OperationsPercentage != nil {
		if sum := calculator.MustAdd(out.TreasuryPercentage, out.OperationsPercentage); sum.Gt(calculator.Wad) {
			p.fail(fmt.Errorf("redeemer percentages sum above 100%%"))
		}
	}

	for i, v := range c.Valors {
		vc := ledger.ValorConfig{
			Name:    v.Name,
			Address: p.address(fmt.Sprintf("valors[%d].address", i), v.Address, true),
			Vault:   p.address(fmt.Sprintf("valors[%d].vault", i), v.Vault, true),
		}
		if v.SafeFraction != "" {
			vc.SafeFraction = p.fraction(fmt.Sprintf("valors[%d].safe_fraction", i), v.SafeFraction, true)
		}
		out.Valors = append(out.Valors, vc)
	}

	for i, g := range c.Genesis {
		asset := token.Asset(g.Asset)
		decimals, ok := token.Decimals[asset]
		if !ok {
			p.fail(fmt.Errorf("genesis[%d].asset: unknown asset %q", i, g.Asset))
			continue
		}
		out.Genesis = append(out.Genesis, ledger.Grant{
			Account: p.address(fmt.Sprintf("genesis[%d].account", i), g.Account, true),
			Asset:   asset,
			Amount:  p.amount(fmt.Sprintf("genesis[%d].amount", i), g.Amount, decimals),
		})
	}

	if p.err != nil {
		return ledger.Config{}, p.err
	}
	out.StateFile = c.Ledger.StateFile
	return out, nil
}

// parser keeps the first error so conversions read top to bottom.
type parser struct {
	err error
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) address(field, s string, required bool) common.Address {
	if s == "" {
		if required {
			p.fail(fmt.Errorf("%s is required", field))
		}
		return common.Address{}
	}
	if !common.IsHexAddress(s) {
		p.fail(fmt.Errorf("%s: invalid address %q", field, s))
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func (p *parser) amount(field, s string, decimals int) *uint256.Int {
	v, err := calculator.ParseDecimal(s, decimals)
	if err != nil {
		p.fail(fmt.Errorf("%s: %w", field, err))
		return nil
	}
	return v
}

// fraction parses an 18-decimal ratio; capped ratios must not exceed 1.
func (p *parser) fraction(field, s string, capped bool) *uint256.Int {
	v, err := calculator.ParseFraction(s)
	if err != nil {
		p.fail(fmt.Errorf("%s: %w", field, err))
		return nil
	}
	if capped && v.Gt(calculator.Wad) {
		p.fail(fmt.Errorf("%s: %s is above 100%%", field, s))
		return nil
	}
	return v
}
