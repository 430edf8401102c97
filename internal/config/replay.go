package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for replaying an operations file.
type ReplayConfig struct {
	Config
	Input       string
	Errors      string
	MetricsAddr string
}

// LoadReplay loads the shared pool settings plus replay inputs.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	base, err := Load(cfgFile, flags)
	if err != nil {
		return ReplayConfig{}, err
	}
	v, err := newViper(cfgFile, flags, map[string]any{
		"errors": "./data/replay_errors.jsonl",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		Config:      base,
		Input:       v.GetString("in"),
		Errors:      v.GetString("errors"),
		MetricsAddr: v.GetString("metrics-addr"),
	}
	if cfg.Input == "" {
		return ReplayConfig{}, fmt.Errorf("input path is required")
	}
	return cfg, nil
}

// SeedConfig holds configuration for seeding a pool from a chain pair.
type SeedConfig struct {
	Config
	RPCURL string
	Pair   string
	Block  uint64
	PoolID string
}

// LoadSeed loads the shared pool settings plus the chain source.
func LoadSeed(cfgFile string, flags *pflag.FlagSet) (SeedConfig, error) {
	base, err := Load(cfgFile, flags)
	if err != nil {
		return SeedConfig{}, err
	}
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return SeedConfig{}, err
	}

	cfg := SeedConfig{
		Config: base,
		RPCURL: v.GetString("rpc"),
		Pair:   v.GetString("pair"),
		Block:  v.GetUint64("block"),
		PoolID: v.GetString("pool-id"),
	}
	if cfg.RPCURL == "" {
		return SeedConfig{}, fmt.Errorf("rpc url is required")
	}
	if cfg.Pair == "" {
		return SeedConfig{}, fmt.Errorf("pair address is required")
	}
	if cfg.PoolID == "" {
		cfg.PoolID = cfg.Pair
	}
	return cfg, nil
}
