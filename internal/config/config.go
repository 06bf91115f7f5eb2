// =============================================================================
// Order/Invoice Reconciler - Configuration Module
// =============================================================================
//
// This module loads the main application configuration and the global
// logger. Reconciliation profiles (one per supplier or customer account)
// live in profile.go.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults
//   2. Main config file (config.yaml)
//   3. Environment variables prefixed RECONCILER_ (log.level -> RECONCILER_LOG_LEVEL)
//
// =============================================================================

package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir holds one subdirectory per batch run, each containing an
	// order ledger and an invoice ledger.
	InputDir string `mapstructure:"input_dir"`

	// OutputDir receives the generated reports.
	OutputDir string `mapstructure:"output_dir"`

	// InputArchiveDir receives run directories after a successful run.
	InputArchiveDir string `mapstructure:"input_archive_dir"`

	// OutputArchiveDir is the long-term store for reports.
	OutputArchiveDir string `mapstructure:"output_archive_dir"`

	// ProfilesDir contains the reconciliation profiles (*.yaml).
	ProfilesDir string `mapstructure:"profiles_dir"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines report file names.
	// Placeholders:
	//   {uuid}      - run ID
	//   {timestamp} - YYYYMMDD_HHMMSS
	//   {profile}   - profile code
	//   {run}       - run directory name
	OutputNameFormat string `mapstructure:"output_name_format"`

	// SheetNameMaxLength caps report sheet names. XLSX allows 31.
	SheetNameMaxLength int `mapstructure:"sheet_name_max_length"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of runs processed at once.
	MaxConcurrency int `mapstructure:"max_concurrency"`

	// ContinueOnError keeps a batch going when one run fails.
	ContinueOnError bool `mapstructure:"continue_on_error"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// Load reads the main configuration. configPath may be empty, in which case
// config.yaml is looked up in the working directory. A missing file is not
// an error: defaults and environment still apply.
func Load(configPath string) (*MainConfig, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RECONCILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("input_dir", "./input")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("input_archive_dir", "./input_archive")
	v.SetDefault("output_archive_dir", "./output_archive")
	v.SetDefault("profiles_dir", "./profiles")
	v.SetDefault("output_name_format", "{profile}_{run}_{timestamp}.xlsx")
	v.SetDefault("sheet_name_max_length", 31)
	v.SetDefault("max_concurrency", 4)
	v.SetDefault("continue_on_error", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg MainConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that defaults cannot repair.
func (c *MainConfig) Validate() error {
	var problems []string
	if c.MaxConcurrency < 1 {
		problems = append(problems, "max_concurrency must be at least 1")
	}
	if c.SheetNameMaxLength < 1 || c.SheetNameMaxLength > 31 {
		problems = append(problems, "sheet_name_max_length must be between 1 and 31")
	}
	if !strings.Contains(c.OutputNameFormat, "{") {
		problems = append(problems, "output_name_format needs at least one placeholder")
	}
	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
