// Package config loads the node configuration (TOML) and the genesis seed
// (YAML).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the node-level configuration.
type Config struct {
	ListenAddress        string `toml:"ListenAddress"`
	DataDir              string `toml:"DataDir"`
	GenesisFile          string `toml:"GenesisFile"`
	NetworkName          string `toml:"NetworkName"`
	BlockIntervalSeconds uint64 `toml:"BlockIntervalSeconds"`
	LogLevel             string `toml:"LogLevel"`
	MetricsAddress       string `toml:"MetricsAddress"`

	// Quota rate-limits signed transactions per address. All zeroes
	// disables enforcement.
	Quota QuotaConfig `toml:"Quota"`
}

// QuotaConfig mirrors the runtime request quota.
type QuotaConfig struct {
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch"`
	MaxValuePerEpoch    uint64 `toml:"MaxValuePerEpoch"`
	EpochSeconds        uint32 `toml:"EpochSeconds"`
}

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "helix-local"
	}
	if cfg.BlockIntervalSeconds == 0 {
		cfg.BlockIntervalSeconds = 6
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = "0.0.0.0:9640"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = "127.0.0.1:9101"
	}
}

// Validate rejects configurations the node cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	if c.BlockIntervalSeconds == 0 {
		return fmt.Errorf("config: block interval must be positive")
	}
	if (c.Quota.MaxRequestsPerEpoch > 0 || c.Quota.MaxValuePerEpoch > 0) && c.Quota.EpochSeconds == 0 {
		return fmt.Errorf("config: quota epoch must be positive when limits are set")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:     "./helix-data",
		GenesisFile: filepath.Join(filepath.Dir(path), "genesis.yaml"),
	}
	applyDefaults(cfg)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
