package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config holds settings shared by the pool operation commands.
type Config struct {
	Store        string
	StateFile    string
	Journal      string
	PGDSN        string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"store":         StoreFile,
		"state-file":    "./data/pools.json",
		"journal":       "./data/journal.jsonl",
		"max-retries":   3,
		"retry-backoff": 200 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Store:        strings.ToLower(v.GetString("store")),
		StateFile:    v.GetString("state-file"),
		Journal:      v.GetString("journal"),
		PGDSN:        v.GetString("pg-dsn"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the store selection.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile:
		if c.StateFile == "" {
			return fmt.Errorf("state file is required for the file store")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreFile, StorePostgres)
	}
	return nil
}

// newViper builds a viper instance with the POOL env prefix, the given
// defaults, bound flags and an optional config file.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("POOL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}
