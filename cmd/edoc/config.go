package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultDataDir  = "data"
	defaultDatabase = "catalog"
	defaultTimeout  = 5 * time.Second
)

// Config is loaded from flags, EDOC_* environment variables and an optional
// config file, in that order of precedence.
type Config struct {
	DataDir  string        `mapstructure:"data_dir"`
	Database string        `mapstructure:"database"`
	Verbose  bool          `mapstructure:"verbose"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func addConfigFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.String("config", "", "config file (yaml, toml, json or .env)")
	fs.String("data-dir", defaultDataDir, "directory holding database files")
	fs.String("db", defaultDatabase, "database name")
	fs.BoolP("verbose", "v", false, "log every operation")
	fs.Duration("timeout", defaultTimeout, "how long to wait for a locked database file")
}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetDefault("data_dir", defaultDataDir)
	v.SetDefault("database", defaultDatabase)
	v.SetDefault("verbose", false)
	v.SetDefault("timeout", defaultTimeout)

	v.SetEnvPrefix("EDOC")
	v.AutomaticEnv()

	if file, _ := cmd.Flags().GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	for key, flag := range map[string]string{
		"data_dir": "data-dir",
		"database": "db",
		"verbose":  "verbose",
		"timeout":  "timeout",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data directory is not configured")
	}
	return &cfg, nil
}
