package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress      string            `toml:"RPCAddress"`
	DataDir         string            `toml:"DataDir"`
	NetworkName     string            `toml:"NetworkName"`
	TokenSymbol     string            `toml:"TokenSymbol"`
	TokenName       string            `toml:"TokenName"`
	TokenDecimals   uint8             `toml:"TokenDecimals"`
	AdminAddress    string            `toml:"AdminAddress"`
	RPCAuthToken    string            `toml:"RPCAuthToken"`
	GenesisBalances map[string]string `toml:"GenesisBalances,omitempty"`
}

// Load loads the configuration from the given path. A default configuration
// file is written when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./veritasor-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "veritasor-local"
	}
	if strings.TrimSpace(cfg.TokenSymbol) == "" {
		cfg.TokenSymbol = "VUSD"
	}
	if strings.TrimSpace(cfg.TokenName) == "" {
		cfg.TokenName = "Veritasor USD"
	}
	if cfg.GenesisBalances == nil {
		cfg.GenesisBalances = map[string]string{}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.AdminAddress) == "" {
		return fmt.Errorf("AdminAddress is required")
	}
	if _, err := parseAddress(c.AdminAddress); err != nil {
		return fmt.Errorf("AdminAddress: %w", err)
	}
	for addr, amount := range c.GenesisBalances {
		if _, err := parseAddress(addr); err != nil {
			return fmt.Errorf("GenesisBalances address %q: %w", addr, err)
		}
		if _, err := parseAmount(amount); err != nil {
			return fmt.Errorf("GenesisBalances amount for %q: %w", addr, err)
		}
	}
	return nil
}

// Admin returns the configured admin address decoded into its binary form.
func (c *Config) Admin() ([20]byte, error) {
	return parseAddress(c.AdminAddress)
}

// Balances returns the genesis balance table decoded into binary addresses and
// big integer amounts.
func (c *Config) Balances() (map[[20]byte]*big.Int, error) {
	out := make(map[[20]byte]*big.Int, len(c.GenesisBalances))
	for addr, amount := range c.GenesisBalances {
		decoded, err := parseAddress(addr)
		if err != nil {
			return nil, err
		}
		value, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		out[decoded] = value
	}
	return out, nil
}

func parseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address: %w", err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("address must be %d bytes, got %d", len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseAmount(s string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", s)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return value, nil
}

// createDefault creates and saves a default configuration file. The admin
// address is intentionally left blank so a freshly generated file fails
// validation until the operator fills it in.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:      ":8080",
		DataDir:         "./veritasor-data",
		NetworkName:     "veritasor-local",
		TokenSymbol:     "VUSD",
		TokenName:       "Veritasor USD",
		TokenDecimals:   6,
		GenesisBalances: map[string]string{},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
