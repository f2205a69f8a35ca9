package config

import "github.com/spf13/viper"

// Config holds all runtime configuration for a starforge run.
// Values are populated from .starforge.yaml, STARFORGE_* env vars, and CLI flags.
type Config struct {
	InstallDir       string `mapstructure:"install_dir"`
	ComponentsDir    string `mapstructure:"components_dir"`
	Force            bool   `mapstructure:"force"`
	Backup           bool   `mapstructure:"backup"`
	DryRun           bool   `mapstructure:"dry_run"`
	MinFreeMB        int64  `mapstructure:"min_free_mb"`
	BackupKeep       int    `mapstructure:"backup_keep"`
	BackupMaxAgeDays int    `mapstructure:"backup_max_age_days"`
	Parallel         bool   `mapstructure:"parallel"`
	History          bool   `mapstructure:"history"`
	Verbose          bool   `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() Config {
	viper.SetDefault("install_dir", "")
	viper.SetDefault("components_dir", "components")
	viper.SetDefault("force", false)
	viper.SetDefault("backup", true)
	viper.SetDefault("dry_run", false)
	viper.SetDefault("min_free_mb", 500)
	viper.SetDefault("parallel", false)
	viper.SetDefault("history", true)
	viper.SetDefault("verbose", false)
	viper.SetDefault("backup_keep", 0)
	viper.SetDefault("backup_max_age_days", 0)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}

// Options converts the loaded configuration into the per-batch option map
// consumed by the installer.
func (c Config) Options() map[string]any {
	return map[string]any{
		"force":   c.Force,
		"backup":  c.Backup,
		"dry_run": c.DryRun,
	}
}
