package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"helios/crypto"
	"helios/native/sale"
	"helios/native/staking"

	"github.com/BurntSushi/toml"
)

// StageEntry is one ladder tier in the config file. Amounts are decimal
// strings at full precision: capacities in 1e18 units, prices in 1e8 USD.
type StageEntry struct {
	Capacity string `toml:"Capacity"`
	PriceUSD string `toml:"PriceUSD"`
}

// PlanEntry is one staking plan in the config file.
type PlanEntry struct {
	ID       uint8  `toml:"ID"`
	LockDays uint32 `toml:"LockDays"`
	ApyBps   uint64 `toml:"ApyBps"`
	BonusBps uint64 `toml:"BonusBps"`
	Enabled  bool   `toml:"Enabled"`
}

type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	OpsAddress           string `toml:"OpsAddress"`
	DataDir              string `toml:"DataDir"`
	NetworkName          string `toml:"NetworkName"`
	Env                  string `toml:"Env"`
	LogFile              string `toml:"LogFile"`
	OperatorKeystorePath string `toml:"OperatorKeystorePath"`

	// FunderAddress backs affiliate HLS commissions. Empty means the
	// operator key's address.
	FunderAddress string `toml:"FunderAddress"`

	SaleCapUnits       string `toml:"SaleCapUnits"`
	MinPurchaseUSD     string `toml:"MinPurchaseUSD"`
	SaleInventoryUnits string `toml:"SaleInventoryUnits"`
	FunderGrantUnits   string `toml:"FunderGrantUnits"`
	OracleMaxAgeSecs   int64  `toml:"OracleMaxAgeSecs"`

	Stages []StageEntry `toml:"Stage"`
	Plans  []PlanEntry  `toml:"Plan"`
}

// Load reads the config at path, creating a default file (and operator
// keystore) on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.OpsAddress) == "" {
		c.OpsAddress = ":9090"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./helios-data"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "helios-local"
	}
	if c.OracleMaxAgeSecs <= 0 {
		c.OracleMaxAgeSecs = 3600
	}
}

// Validate rejects malformed amounts, addresses and stage tables before the
// daemon touches state.
func (c *Config) Validate() error {
	if len(c.Stages) > sale.NumStages {
		return fmt.Errorf("config: at most %d sale stages, got %d", sale.NumStages, len(c.Stages))
	}
	for i, entry := range c.Stages {
		if _, err := parseAmount(entry.Capacity, "stage capacity"); err != nil {
			return fmt.Errorf("config: stage %d: %w", i, err)
		}
		if _, err := parseAmount(entry.PriceUSD, "stage price"); err != nil {
			return fmt.Errorf("config: stage %d: %w", i, err)
		}
	}
	seen := make(map[uint8]bool, len(c.Plans))
	for i, plan := range c.Plans {
		if seen[plan.ID] {
			return fmt.Errorf("config: duplicate plan id %d at entry %d", plan.ID, i)
		}
		seen[plan.ID] = true
	}
	if c.FunderAddress != "" {
		if _, err := crypto.DecodeAddress(c.FunderAddress); err != nil {
			return fmt.Errorf("config: funder address: %w", err)
		}
	}
	for _, field := range []struct {
		name, value string
	}{
		{"SaleCapUnits", c.SaleCapUnits},
		{"MinPurchaseUSD", c.MinPurchaseUSD},
		{"SaleInventoryUnits", c.SaleInventoryUnits},
		{"FunderGrantUnits", c.FunderGrantUnits},
	} {
		if field.value == "" {
			continue
		}
		if _, err := parseAmount(field.value, field.name); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func parseAmount(raw, what string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative decimal integer, got %q", what, raw)
	}
	return value, nil
}

// SaleStages returns the configured ladder, or the production default table
// when the config declares none.
func (c *Config) SaleStages() ([]sale.StageConfig, error) {
	if len(c.Stages) == 0 {
		return sale.DefaultStages(), nil
	}
	stages := make([]sale.StageConfig, 0, len(c.Stages))
	for i, entry := range c.Stages {
		capacity, err := parseAmount(entry.Capacity, "stage capacity")
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		price, err := parseAmount(entry.PriceUSD, "stage price")
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		stages = append(stages, sale.StageConfig{Capacity: capacity, PriceUSD: price})
	}
	return stages, nil
}

// StakingPlans returns the configured plan table, or the default plans when
// the config declares none.
func (c *Config) StakingPlans() []staking.Plan {
	if len(c.Plans) == 0 {
		return staking.DefaultPlans()
	}
	plans := make([]staking.Plan, 0, len(c.Plans))
	for _, entry := range c.Plans {
		plans = append(plans, staking.Plan{
			ID:           entry.ID,
			LockDuration: time.Duration(entry.LockDays) * 24 * time.Hour,
			ApyBps:       entry.ApyBps,
			BonusBps:     entry.BonusBps,
			Enabled:      entry.Enabled,
		})
	}
	return plans
}

// Amount accessors return zero for unset fields; Validate has already
// rejected malformed values.

func (c *Config) SaleCap() *big.Int       { return amountOrZero(c.SaleCapUnits) }
func (c *Config) MinPurchase() *big.Int   { return amountOrZero(c.MinPurchaseUSD) }
func (c *Config) SaleInventory() *big.Int { return amountOrZero(c.SaleInventoryUnits) }
func (c *Config) FunderGrant() *big.Int   { return amountOrZero(c.FunderGrantUnits) }
func (c *Config) OracleMaxAge() time.Duration {
	return time.Duration(c.OracleMaxAgeSecs) * time.Second
}

func amountOrZero(raw string) *big.Int {
	if strings.TrimSpace(raw) == "" {
		return big.NewInt(0)
	}
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return big.NewInt(0)
	}
	return value
}

// Funder resolves the commission funder address, falling back to the
// supplied operator address when unset.
func (c *Config) Funder(operator crypto.Address) (crypto.Address, error) {
	if strings.TrimSpace(c.FunderAddress) == "" {
		return operator, nil
	}
	return crypto.DecodeAddress(c.FunderAddress)
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.OperatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OperatorKeystorePath != keystorePath {
		cfg.OperatorKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{OperatorKeystorePath: keystorePath}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	return filepath.Join(dir, "operator.keystore")
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
