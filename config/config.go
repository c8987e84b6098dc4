// Package config loads daemon settings from defaults, a diffmerge-config
// file, the DIFFMERGE_CONFIG JSON blob set by the editor plugin, DIFFMERGE_*
// environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"diffmerge/engine"
	"diffmerge/intent"
	"diffmerge/keys"
	"diffmerge/logger"
	"diffmerge/text"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	EnvPrefix   = "DIFFMERGE"
	EnvJSON     = "DIFFMERGE_CONFIG"
	ConfigName  = "diffmerge-config"
	flagConfig  = "config"
	flagLogging = "log_level"
)

// Config represents the structure of the configuration file
type Config struct {
	LogLevel               string              `mapstructure:"log_level"`
	NsID                   int                 `mapstructure:"ns_id"`
	AutoApplyDelay         int                 `mapstructure:"auto_apply_delay"` // in milliseconds
	MinCodeLength          int                 `mapstructure:"min_code_length"`
	DiffStrategy           string              `mapstructure:"diff_strategy"`
	EmbedForeignBlocks     bool                `mapstructure:"embed_foreign_blocks"`
	DebugImmediateShutdown bool                `mapstructure:"debug_immediate_shutdown"`
	MetricsDir             string              `mapstructure:"metrics_dir"` // empty keeps metrics in memory
	Intent                 intent.Rules        `mapstructure:"intent"`
	Keymap                 map[string][]string `mapstructure:"keymap"`
}

// DefaultConfig values
func DefaultConfig() Config {
	ec := engine.DefaultEngineConfig()
	return Config{
		LogLevel:           "info",
		AutoApplyDelay:     int(ec.AutoApplyDelay / time.Millisecond),
		MinCodeLength:      ec.MinCodeLength,
		DiffStrategy:       string(ec.DiffStrategy),
		EmbedForeignBlocks: ec.EmbedForeignBlocks,
		Intent:             intent.DefaultRules(),
		Keymap:             keys.DefaultBindings(),
	}
}

// cfgFile holds the path to the configuration file (set via CLI)
var cfgFile string

// Load builds the configuration. rootCmd may be nil when no flags apply.
func Load(v *viper.Viper, rootCmd *cobra.Command, cwd string) (*Config, error) {
	// Set default values using Viper
	setDefaults(v)

	// Environment variables, DIFFMERGE_AUTO_APPLY_DELAY and so on
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := readConfigFile(v, cwd); err != nil {
		return nil, err
	}

	// The editor plugin passes its setup() options as JSON
	if blob := strings.TrimSpace(os.Getenv(EnvJSON)); blob != "" {
		v.SetConfigType("json")
		if err := v.MergeConfig(strings.NewReader(blob)); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvJSON, err)
		}
	}

	// Bind CLI flags to override config values
	if rootCmd != nil {
		bindFlags(v, rootCmd)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func readConfigFile(v *viper.Viper, cwd string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return nil
	}

	v.SetConfigName(ConfigName)
	if cwd != "" {
		v.AddConfigPath(cwd)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(dir + "/diffmerge")
	}

	// Support both JSON and YAML formats
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("error reading config file: %w", err)
			}
			logger.Debug("no configuration file found, using defaults")
		}
	}
	return nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("ns_id", d.NsID)
	v.SetDefault("auto_apply_delay", d.AutoApplyDelay)
	v.SetDefault("min_code_length", d.MinCodeLength)
	v.SetDefault("diff_strategy", d.DiffStrategy)
	v.SetDefault("embed_foreign_blocks", d.EmbedForeignBlocks)
	v.SetDefault("debug_immediate_shutdown", d.DebugImmediateShutdown)
	v.SetDefault("metrics_dir", d.MetricsDir)
	v.SetDefault("intent.replace", d.Intent.Replace)
	v.SetDefault("intent.append", d.Intent.Append)
	v.SetDefault("intent.auto_apply", d.Intent.AutoApply)
	v.SetDefault("intent.replace_threshold", d.Intent.ReplaceThreshold)
	for command, notations := range d.Keymap {
		v.SetDefault("keymap."+command, notations)
	}
}

// bindEnv explicitly binds environment variables to configuration keys
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("log_level")
	_ = v.BindEnv("auto_apply_delay")
	_ = v.BindEnv("min_code_length")
	_ = v.BindEnv("diff_strategy")
	_ = v.BindEnv("embed_foreign_blocks")
	_ = v.BindEnv("metrics_dir")
	_ = v.BindEnv("intent.replace_threshold")
}

// bindFlags binds the CLI flags to configuration values.
func bindFlags(v *viper.Viper, rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	for _, name := range []string{flagLogging, "auto_apply_delay", "min_code_length", "diff_strategy", "embed_foreign_blocks", "metrics_dir"} {
		// only flags the user actually set override file and env values
		if f := flags.Lookup(name); f != nil && f.Changed {
			_ = v.BindPFlag(name, f)
		}
	}
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	d := DefaultConfig()

	// Use PersistentFlags so that these flags are available in all subcommands
	rootCmd.PersistentFlags().StringVarP(&cfgFile, flagConfig, "c", "", "Path to a configuration file (JSON or YAML).")
	rootCmd.PersistentFlags().String(flagLogging, d.LogLevel, "Log level: trace, debug, info, warn or error.")
	rootCmd.PersistentFlags().Int("auto_apply_delay", d.AutoApplyDelay, "Milliseconds to wait before auto-applying an obvious improvement.")
	rootCmd.PersistentFlags().Int("min_code_length", d.MinCodeLength, "Minimum number of non-whitespace characters a generation must contain.")
	rootCmd.PersistentFlags().String("diff_strategy", d.DiffStrategy, "Line diff algorithm: 'greedy' or 'myers'.")
	rootCmd.PersistentFlags().Bool("embed_foreign_blocks", d.EmbedForeignBlocks, "Embed css/javascript blocks into an open html document.")
	rootCmd.PersistentFlags().String("metrics_dir", d.MetricsDir, "Directory for the metrics.jsonl event log.")
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	if c.AutoApplyDelay <= 0 {
		errs = append(errs, fmt.Errorf("auto_apply_delay must be positive, got %d", c.AutoApplyDelay))
	}
	if c.MinCodeLength < 0 {
		errs = append(errs, fmt.Errorf("min_code_length must not be negative, got %d", c.MinCodeLength))
	}
	if c.Intent.ReplaceThreshold < 0 {
		errs = append(errs, fmt.Errorf("intent.replace_threshold must not be negative, got %d", c.Intent.ReplaceThreshold))
	}
	if _, err := text.ParseDiffStrategy(c.DiffStrategy); err != nil {
		errs = append(errs, err)
	}
	if _, err := keys.NewKeymap(c.Keymap); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// EngineConfig converts the loaded settings into an engine configuration
func (c *Config) EngineConfig() (engine.EngineConfig, error) {
	strategy, err := text.ParseDiffStrategy(c.DiffStrategy)
	if err != nil {
		return engine.EngineConfig{}, err
	}
	km, err := keys.NewKeymap(c.Keymap)
	if err != nil {
		return engine.EngineConfig{}, err
	}
	return engine.EngineConfig{
		AutoApplyDelay:     time.Duration(c.AutoApplyDelay) * time.Millisecond,
		MinCodeLength:      c.MinCodeLength,
		DiffStrategy:       strategy,
		EmbedForeignBlocks: c.EmbedForeignBlocks,
		Rules:              c.Intent,
		Keymap:             km,
	}, nil
}
