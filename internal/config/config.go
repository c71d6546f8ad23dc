// Package config provides configuration management for the paper broker.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Account AccountConfig `mapstructure:"account"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Storage StorageConfig `mapstructure:"storage"`
	Quotes  QuotesConfig  `mapstructure:"quotes"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AccountConfig holds defaults for new accounts.
type AccountConfig struct {
	DefaultID   string `mapstructure:"default_id"`
	DefaultCash string `mapstructure:"default_cash"`
}

// EngineConfig holds pricing configuration.
type EngineConfig struct {
	Estimator     string  `mapstructure:"estimator"` // midpoint, natural
	RiskFreeRate  float64 `mapstructure:"risk_free_rate"`
	DividendYield float64 `mapstructure:"dividend_yield"`
}

// StorageConfig holds persistence paths.
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path"` // empty keeps accounts in memory
	LedgerDir string `mapstructure:"ledger_dir"`
}

// QuotesConfig holds the quote file location.
type QuotesConfig struct {
	File string `mapstructure:"file"`
}

// LoggingConfig mirrors logging.LogConfig.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/paperbroker"
	}
	return filepath.Join(home, ".config", "paperbroker")
}

// Load loads config.toml from the specified directory, writing a template
// there first if none exists. If configDir is empty, uses the default
// config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	log := logging.DefaultLogConfig()

	v.SetDefault("account.default_id", "default")
	v.SetDefault("account.default_cash", "100000")
	v.SetDefault("engine.estimator", "midpoint")
	v.SetDefault("engine.risk_free_rate", 0.0)
	v.SetDefault("engine.dividend_yield", 0.0)
	v.SetDefault("storage.db_path", filepath.Join(configDir, "paperbroker.db"))
	v.SetDefault("storage.ledger_dir", filepath.Join(configDir, "ledger"))
	v.SetDefault("quotes.file", "")
	v.SetDefault("logging.level", log.Level)
	v.SetDefault("logging.console", log.Console)
	v.SetDefault("logging.file", log.File)
	v.SetDefault("logging.file_path", log.FilePath)
	v.SetDefault("logging.max_size", log.MaxSize)
	v.SetDefault("logging.max_backups", log.MaxBackups)
	v.SetDefault("logging.max_age", log.MaxAge)
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and carry on with defaults
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PAPERBROKER_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("PAPERBROKER_QUOTES_FILE"); v != "" {
		cfg.Quotes.File = v
	}
	if v := os.Getenv("PAPERBROKER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PAPERBROKER_ESTIMATOR"); v != "" {
		cfg.Engine.Estimator = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Engine.Estimator {
	case "", "midpoint", "natural":
	default:
		return apperrors.WrapValidation(apperrors.ErrConfigInvalid, "engine.estimator", c.Engine.Estimator, "must be 'midpoint' or 'natural'")
	}

	if c.Account.DefaultCash != "" {
		cash, err := decimal.NewFromString(c.Account.DefaultCash)
		if err != nil {
			return apperrors.WrapValidation(apperrors.ErrConfigInvalid, "account.default_cash", c.Account.DefaultCash, "must be a decimal amount")
		}
		if cash.IsNegative() {
			return apperrors.WrapValidation(apperrors.ErrConfigInvalid, "account.default_cash", c.Account.DefaultCash, "must be non-negative")
		}
	}

	if c.Engine.RiskFreeRate < 0 || c.Engine.RiskFreeRate > 1 {
		return apperrors.WrapValidation(apperrors.ErrConfigInvalid, "engine.risk_free_rate", c.Engine.RiskFreeRate, "must be between 0 and 1")
	}
	if c.Engine.DividendYield < 0 || c.Engine.DividendYield > 1 {
		return apperrors.WrapValidation(apperrors.ErrConfigInvalid, "engine.dividend_yield", c.Engine.DividendYield, "must be between 0 and 1")
	}

	return nil
}

// DefaultCash returns the configured starting cash for new accounts.
func (c *Config) DefaultCash() decimal.Decimal {
	cash, err := decimal.NewFromString(c.Account.DefaultCash)
	if err != nil {
		return decimal.Zero
	}
	return cash
}

// LogConfig converts the logging section to a logging.LogConfig.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}
