package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"offer-tracker/internal/config"
	"offer-tracker/internal/features"
)

// loadConfig reads .offerctl.{yaml,json,toml} from OFFERCTL_CONFIG_PATH, the home
// directory or the working directory. OFFERCTL_* variables and flags override it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.SetDefault("database", "~/.offer-tracker/offers.db")
	v.SetDefault("legacy_backend", config.LegacyDisk)
	v.SetDefault("legacy_path", "~/.offer-tracker/legacy")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_prefix", "offer-tracker:")
	v.SetDefault("export_dir", "~/Documents/offer-tracker")
	v.SetConfigName(".offerctl")
	v.SetEnvPrefix("OFFERCTL")
	v.AutomaticEnv()

	if err := v.BindPFlag("database", cmd.Flag("db")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("legacy_backend", cmd.Flag("legacy")); err != nil {
		return nil, err
	}

	if override := os.Getenv("OFFERCTL_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("$HOME")
	v.AddConfigPath("./")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &config.Config{
		Database: config.DatabaseConfig{Path: v.GetString("database")},
		Legacy: config.LegacyConfig{
			Backend:       v.GetString("legacy_backend"),
			Path:          v.GetString("legacy_path"),
			RedisAddr:     v.GetString("redis_addr"),
			RedisPassword: v.GetString("redis_password"),
			RedisDB:       v.GetInt("redis_db"),
			RedisPrefix:   v.GetString("redis_prefix"),
		},
		Reminders: config.RemindersConfig{Interval: 60},
		Export:    config.ExportConfig{Dir: v.GetString("export_dir")},
		// One-shot commands persist immediately and never scan in the background.
		Features: map[string]bool{
			features.FeatureFollowupReminders: false,
			features.FeatureSettingsAutosave:  false,
			features.FeatureEventHooks:        false,
		},
	}

	for _, p := range []*string{&cfg.Database.Path, &cfg.Legacy.Path, &cfg.Export.Dir} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return nil, fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return cfg, nil
}
