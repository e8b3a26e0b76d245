// Package config loads the YAML configuration file and validates it
// before anything dials out. Secrets resolve through environment
// variables so the file itself never carries a signing key.
package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/trailmark/trailmark/internal/entity"
	"github.com/trailmark/trailmark/internal/ledger"
)

// Config is the top-level configuration.
type Config struct {
	Database Database `yaml:"database"`
	Ledger   Ledger   `yaml:"ledger"`
	Backup   Backup   `yaml:"backup"`
	Verify   Verify   `yaml:"verify"`
}

// Database configures the record repository.
type Database struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// Ledger configures the anchoring client.
type Ledger struct {
	// RPCURL is the ledger node's JSON-RPC endpoint.
	RPCURL string `yaml:"rpc_url"`
	// ChainID selects the transaction signer.
	ChainID int64 `yaml:"chain_id"`
	// PrivateKeyEnv names the environment variable holding the hex
	// signing key. The key never appears in the file.
	PrivateKeyEnv string `yaml:"private_key_env"`
	// Contracts maps each entity kind to its anchor contract address.
	Contracts map[string]string `yaml:"contracts"`
}

// Backup configures the best-effort content-addressed backup store.
type Backup struct {
	// Root is the backup directory. Empty disables backups.
	Root string `yaml:"root"`
}

// Verify configures bulk verification.
type Verify struct {
	// Concurrency bounds the ledger fan-out. Zero selects the default.
	Concurrency int `yaml:"concurrency"`
}

// Default returns the configuration used when a field is absent.
func Default() Config {
	return Config{
		Database: Database{Path: "trailmark.db"},
		Ledger:   Ledger{PrivateKeyEnv: "TRAILMARK_SIGNING_KEY"},
		Verify:   Verify{Concurrency: 8},
	}
}

// Load reads, parses, and validates the configuration file. Absent
// fields fall back to Default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates configuration bytes.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required")
	}
	if c.Ledger.RPCURL == "" {
		return fmt.Errorf("config: ledger.rpc_url is required")
	}
	if c.Ledger.ChainID <= 0 {
		return fmt.Errorf("config: ledger.chain_id must be positive, got %d", c.Ledger.ChainID)
	}
	if c.Ledger.PrivateKeyEnv == "" {
		return fmt.Errorf("config: ledger.private_key_env is required")
	}
	if len(c.Ledger.Contracts) == 0 {
		return fmt.Errorf("config: ledger.contracts is required")
	}
	for kind, addr := range c.Ledger.Contracts {
		if !entity.Kind(kind).Valid() {
			return fmt.Errorf("config: ledger.contracts: unknown entity kind %q", kind)
		}
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("config: ledger.contracts.%s: %q is not a hex address", kind, addr)
		}
	}
	for _, kind := range entity.Kinds {
		if _, ok := c.Ledger.Contracts[string(kind)]; !ok {
			return fmt.Errorf("config: ledger.contracts: missing address for kind %q", kind)
		}
	}
	if c.Verify.Concurrency < 0 {
		return fmt.Errorf("config: verify.concurrency must not be negative, got %d", c.Verify.Concurrency)
	}
	return nil
}

// EVMConfig resolves the ledger section into the anchoring client's
// config, reading the signing key from the environment.
func (c Config) EVMConfig() (ledger.EVMConfig, error) {
	key := os.Getenv(c.Ledger.PrivateKeyEnv)
	if key == "" {
		return ledger.EVMConfig{}, fmt.Errorf("config: environment variable %s is not set", c.Ledger.PrivateKeyEnv)
	}

	contracts := make(map[entity.Kind]common.Address, len(c.Ledger.Contracts))
	for kind, addr := range c.Ledger.Contracts {
		contracts[entity.Kind(kind)] = common.HexToAddress(addr)
	}

	return ledger.EVMConfig{
		RPCURL:        c.Ledger.RPCURL,
		ChainID:       big.NewInt(c.Ledger.ChainID),
		PrivateKeyHex: key,
		Contracts:     contracts,
	}, nil
}
