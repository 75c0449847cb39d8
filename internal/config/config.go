package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
	"github.com/spf13/viper"
)

const (
	ConfigFileName = "config"
	ConfigFileType = "yaml"
	DirName        = ".cmdgate"
	EnvPrefix      = "CMDGATE"
)

var config *Config

// Config holds the application configuration
type Config struct {
	Execution ExecutionConfig         `mapstructure:"execution"`
	Approval  ApprovalConfig          `mapstructure:"approval"`
	WorkDir   string                  `mapstructure:"workdir"`
	Retention RetentionConfig         `mapstructure:"retention"`
	Rate      RateConfig              `mapstructure:"rate"`
	Security  security.SecurityPolicy `mapstructure:"security"`
	Log       LogConfig               `mapstructure:"log"`
}

// ExecutionConfig controls how approved commands run. Timeout is in seconds.
type ExecutionConfig struct {
	Timeout       int    `mapstructure:"timeout"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
	Shell         string `mapstructure:"shell"`
}

// ApprovalConfig controls how long proposals wait for a human. Timeout is in
// seconds.
type ApprovalConfig struct {
	Timeout int `mapstructure:"timeout"`
}

// RetentionConfig bounds terminal proposals kept in memory. MaxAge is in
// seconds.
type RetentionConfig struct {
	MaxAge   int `mapstructure:"max_age"`
	MaxCount int `mapstructure:"max_count"`
}

// RateConfig limits how fast proposals are accepted. Zero disables it.
type RateConfig struct {
	ProposalsPerSecond float64 `mapstructure:"proposals_per_second"`
	Burst              int     `mapstructure:"burst"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// GetConfigDir returns the cmdgate config directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	// Execution defaults
	v.SetDefault("execution.timeout", 300)
	v.SetDefault("execution.max_concurrent", 4)
	v.SetDefault("execution.shell", "sh")

	// Approval defaults
	v.SetDefault("approval.timeout", 600)

	v.SetDefault("workdir", "")

	// Retention defaults
	v.SetDefault("retention.max_age", 300)
	v.SetDefault("retention.max_count", 100)

	// Rate defaults
	v.SetDefault("rate.proposals_per_second", 0)
	v.SetDefault("rate.burst", 1)

	// Security defaults
	v.SetDefault("security.command_level", string(security.ConfirmAlways))
	v.SetDefault("security.restricted_paths", []string{})
	v.SetDefault("security.rules_file", "")

	v.SetDefault("log.level", "info")
}

// InitConfig initializes the configuration from ~/.cmdgate/config.yaml
func InitConfig() (*Config, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	return Load(configDir)
}

// Load reads config.yaml from configDir, creating the directory if needed.
// A missing file means defaults. Environment variables such as
// CMDGATE_EXECUTION_TIMEOUT override both.
func Load(configDir string) (*Config, error) {
	// Create config directory if not exists
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	v := newViper(configDir)

	// Read config file (ignore if not exists)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	config = &cfg
	return config, nil
}

// GetConfig returns the loaded config
func GetConfig() *Config {
	return config
}

// SaveConfig saves the config to ~/.cmdgate/config.yaml
func SaveConfig(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	return SaveTo(configDir, cfg)
}

// SaveTo writes cfg as config.yaml inside configDir.
func SaveTo(configDir string, cfg *Config) error {
	// Create config directory if not exists
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType(ConfigFileType)

	v.Set("execution.timeout", cfg.Execution.Timeout)
	v.Set("execution.max_concurrent", cfg.Execution.MaxConcurrent)
	v.Set("execution.shell", cfg.Execution.Shell)
	v.Set("approval.timeout", cfg.Approval.Timeout)
	v.Set("workdir", cfg.WorkDir)
	v.Set("retention.max_age", cfg.Retention.MaxAge)
	v.Set("retention.max_count", cfg.Retention.MaxCount)
	v.Set("rate.proposals_per_second", cfg.Rate.ProposalsPerSecond)
	v.Set("rate.burst", cfg.Rate.Burst)

	// Save security config
	v.Set("security.command_level", string(cfg.Security.CommandLevel))
	v.Set("security.restricted_paths", cfg.Security.RestrictedPaths)
	v.Set("security.rules_file", cfg.Security.RulesFile)

	v.Set("log.level", cfg.Log.Level)

	configPath := filepath.Join(configDir, ConfigFileName+"."+ConfigFileType)
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks values a typo could silently break.
func (c *Config) Validate() error {
	if c.Execution.Timeout <= 0 {
		return fmt.Errorf("execution.timeout must be positive, got %d", c.Execution.Timeout)
	}
	if c.Approval.Timeout <= 0 {
		return fmt.Errorf("approval.timeout must be positive, got %d", c.Approval.Timeout)
	}
	if c.Execution.MaxConcurrent <= 0 {
		return fmt.Errorf("execution.max_concurrent must be positive, got %d", c.Execution.MaxConcurrent)
	}
	if c.Rate.ProposalsPerSecond < 0 {
		return fmt.Errorf("rate.proposals_per_second must not be negative")
	}

	switch c.Security.CommandLevel {
	case security.ConfirmAlways, security.ConfirmDangerous, security.ConfirmNever:
	default:
		return fmt.Errorf("unknown security.command_level %q", c.Security.CommandLevel)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// EngineOptions converts the config into engine options.
func (c *Config) EngineOptions() core.Options {
	opts := core.DefaultOptions()
	opts.ExecutionTimeout = time.Duration(c.Execution.Timeout) * time.Second
	opts.DecisionTimeout = time.Duration(c.Approval.Timeout) * time.Second
	opts.MaxConcurrent = c.Execution.MaxConcurrent
	opts.Shell = c.Execution.Shell
	opts.DefaultWorkingDir = c.WorkDir
	opts.Policy = c.Security
	opts.Retention = registry.RetentionPolicy{
		MaxAge:   time.Duration(c.Retention.MaxAge) * time.Second,
		MaxCount: c.Retention.MaxCount,
	}
	opts.ProposalsPerSecond = c.Rate.ProposalsPerSecond
	opts.Burst = c.Rate.Burst
	return opts
}

// ParseLevel maps a log.level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log.level %q", s)
	}
	return level, nil
}
