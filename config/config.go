package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"lendledger/crypto"
)

// Config captures the runtime configuration for the ledger daemon.
type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`
	Env         string `toml:"Env"`
	Ledger      Ledger `toml:"ledger"`
}

// Ledger holds the bootstrap identities used when the ledger is created for
// the first time. The admin is recorded from the creating caller; the other
// two are opaque collaborator references.
type Ledger struct {
	Admin             string `toml:"Admin"`
	InterestRateModel string `toml:"InterestRateModel"`
	UnderlyingAsset   string `toml:"UnderlyingAsset"`
}

// Load loads the configuration from the given path, applying defaults for
// missing values. A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./lendledger-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "lendledger-local"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that any configured bootstrap identities decode as bech32
// addresses.
func (c *Config) Validate() error {
	for field, value := range map[string]string{
		"ledger.Admin":             c.Ledger.Admin,
		"ledger.InterestRateModel": c.Ledger.InterestRateModel,
		"ledger.UnderlyingAsset":   c.Ledger.UnderlyingAsset,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, err := crypto.DecodeAddress(value); err != nil {
			return fmt.Errorf("config: invalid %s: %w", field, err)
		}
	}
	return nil
}

// BootstrapAddresses decodes the configured ledger identities. Empty entries
// return zero addresses; callers decide whether bootstrap is required.
func (c *Config) BootstrapAddresses() (admin, model, asset crypto.Address, err error) {
	decode := func(value string) (crypto.Address, error) {
		if strings.TrimSpace(value) == "" {
			return crypto.Address{}, nil
		}
		return crypto.DecodeAddress(value)
	}
	if admin, err = decode(c.Ledger.Admin); err != nil {
		return
	}
	if model, err = decode(c.Ledger.InterestRateModel); err != nil {
		return
	}
	asset, err = decode(c.Ledger.UnderlyingAsset)
	return
}
