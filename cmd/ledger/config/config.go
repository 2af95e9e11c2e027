package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// StoreConfig selects the ledger's backing store.
type StoreConfig struct {
	// Path of the LevelDB directory. Empty keeps the ledger in memory.
	Path     string `yaml:"path"`
	ReadOnly bool   `yaml:"readOnly"`
}

// LedgerConfig is the configuration of the ledger command.
type LedgerConfig struct {
	Store       StoreConfig `yaml:"store"`
	LogLevel    string      `yaml:"logLevel"`
	MetricsAddr string      `yaml:"metricsAddr"`
	StartBlock  uint64      `yaml:"startBlock"`
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func (c *LedgerConfig) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *LedgerConfig) validate() error {
	if _, ok := levels[c.LogLevel]; !ok {
		return fmt.Errorf("config: unknown logLevel %q", c.LogLevel)
	}
	if c.Store.ReadOnly && c.Store.Path == "" {
		return errors.New("config: store.readOnly requires store.path")
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *LedgerConfig) SlogLevel() slog.Level {
	return levels[c.LogLevel]
}

// LoadConfig reads, defaults and validates the YAML file at path.
func LoadConfig(path string) (*LedgerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML configuration document.
func Parse(raw []byte) (*LedgerConfig, error) {
	var cfg LedgerConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
