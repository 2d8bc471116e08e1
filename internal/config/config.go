// Package config provides configuration management for the dividend recovery tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "dividend-recovery/internal/errors"
	"dividend-recovery/internal/logging"
	"dividend-recovery/internal/recovery"
)

// FileName is the base name of the main configuration file.
const FileName = "config"

// Config holds all application configuration.
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Data     DataConfig     `mapstructure:"data"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	UI       UIConfig       `mapstructure:"ui"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// AnalysisConfig controls how recovery days are computed and aggregated.
type AnalysisConfig struct {
	Targets       []float64 `mapstructure:"targets"`
	LookbackYears int       `mapstructure:"lookback_years"`
	AsOfYear      int       `mapstructure:"as_of_year"`  // 0 = last complete year
	WindowMode    string    `mapstructure:"window_mode"` // calendar, trading
	WindowBefore  int       `mapstructure:"window_before"`
	WindowAfter   int       `mapstructure:"window_after"`
	Reference     string    `mapstructure:"reference"` // at_or_before, prior_close, window_start
}

// DataConfig controls where price history comes from and how it is cached.
type DataConfig struct {
	Source            string        `mapstructure:"source"` // yahoo, csv
	CSVDir            string        `mapstructure:"csv_dir"`
	CacheEnabled      bool          `mapstructure:"cache_enabled"`
	CachePath         string        `mapstructure:"cache_path"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/dividend-recovery"
	}
	return filepath.Join(home, ".config", "dividend-recovery")
}

// Path returns the config file path inside configDir.
func Path(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, FileName+".toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing config file is
// replaced by the commented template and loading continues with its values.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading %s.toml: %w", FileName, err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading %s.toml: %w", FileName, err)
		}
	}

	cfg := &Config{Dir: configDir}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s.toml: %w", FileName, err)
	}

	applyEnvOverrides(cfg)
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without touching the filesystem.
func Default() *Config {
	v := newViper(DefaultConfigDir())
	cfg := &Config{Dir: DefaultConfigDir()}
	// Defaults always decode.
	_ = v.Unmarshal(cfg)
	cfg.expandPaths()
	return cfg
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetDefault("analysis.targets", recovery.DefaultTargets)
	v.SetDefault("analysis.lookback_years", 3)
	v.SetDefault("analysis.as_of_year", 0)
	v.SetDefault("analysis.window_mode", recovery.WindowModeCalendar)
	v.SetDefault("analysis.window_before", recovery.DefaultWindowBefore)
	v.SetDefault("analysis.window_after", recovery.DefaultWindowAfter)
	v.SetDefault("analysis.reference", recovery.DefaultReferenceMode)

	v.SetDefault("data.source", "yahoo")
	v.SetDefault("data.csv_dir", filepath.Join(configDir, "data"))
	v.SetDefault("data.cache_enabled", true)
	v.SetDefault("data.cache_path", filepath.Join(configDir, "cache.db"))
	v.SetDefault("data.cache_ttl", "24h")
	v.SetDefault("data.request_timeout", "30s")
	v.SetDefault("data.requests_per_second", 2.0)
	v.SetDefault("data.max_attempts", 3)

	logDefaults := logging.DefaultLogConfig()
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.console", logDefaults.Console)
	v.SetDefault("logging.file", logDefaults.File)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "divrec.log"))
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")
	return v
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DIVREC_SOURCE"); v != "" {
		cfg.Data.Source = v
	}
	if v := os.Getenv("DIVREC_CSV_DIR"); v != "" {
		cfg.Data.CSVDir = v
	}
	if v := os.Getenv("DIVREC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	// https://no-color.org
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.UI.ColorEnabled = false
	}
}

// expandPaths resolves a leading ~ in file paths.
func (c *Config) expandPaths() {
	c.Data.CSVDir = expandHome(c.Data.CSVDir)
	c.Data.CachePath = expandHome(c.Data.CachePath)
	c.Logging.FilePath = expandHome(c.Logging.FilePath)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate analysis parameters
	if err := recovery.ValidateTargets(c.Analysis.Targets); err != nil {
		return fmt.Errorf("analysis.targets: %w", err)
	}
	if c.Analysis.LookbackYears < 1 {
		return fmt.Errorf("analysis.lookback_years must be at least 1")
	}
	if c.Analysis.AsOfYear < 0 {
		return fmt.Errorf("analysis.as_of_year must be 0 (auto) or a year")
	}
	if _, err := recovery.WindowPolicyByName(c.Analysis.WindowMode, c.Analysis.WindowBefore, c.Analysis.WindowAfter); err != nil {
		return fmt.Errorf("analysis.window_mode: %w", err)
	}
	if _, err := recovery.ReferencePolicyByName(c.Analysis.Reference); err != nil {
		return fmt.Errorf("analysis.reference: %w", err)
	}

	// Validate data source
	switch c.Data.Source {
	case "yahoo":
	case "csv":
		if c.Data.CSVDir == "" {
			return fmt.Errorf("data.csv_dir is required when data.source is 'csv'")
		}
	default:
		return fmt.Errorf("invalid data source: %s (must be 'yahoo' or 'csv')", c.Data.Source)
	}
	if c.Data.CacheEnabled && c.Data.CachePath == "" {
		return fmt.Errorf("data.cache_path is required when the cache is enabled")
	}
	if c.Data.RequestsPerSecond <= 0 {
		return fmt.Errorf("data.requests_per_second must be positive")
	}
	if c.Data.MaxAttempts < 1 {
		return fmt.Errorf("data.max_attempts must be at least 1")
	}

	return nil
}

// ResolveAsOfYear returns the configured as-of year, or the last complete calendar year
// relative to now when it is 0.
func (c *Config) ResolveAsOfYear(now time.Time) int {
	if c.Analysis.AsOfYear > 0 {
		return c.Analysis.AsOfYear
	}
	return recovery.LastCompleteYear(now)
}

// LogConfig converts the logging section for the logging package.
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
