package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	Input         string
	Window        time.Duration
	PGDSN         string
	Out           string
	BatchSize     int
	StateFile     string
	RecomputeFrom uint64
	LogLevel      string
}

// WindowSeconds returns the window length in whole seconds.
func (c AggregateConfig) WindowSeconds() uint64 {
	return uint64(c.Window / time.Second)
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"in":         "./data/journal.jsonl",
		"window":     "5m",
		"batch-size": 1000,
		"log-level":  "info",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	window, err := time.ParseDuration(v.GetString("window"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("invalid window: %w", err)
	}
	if window < time.Second {
		return AggregateConfig{}, fmt.Errorf("window must be at least 1s")
	}

	recomputeFrom, err := ParseTimestamp(v.GetString("recompute-from"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("parse recompute-from: %w", err)
	}

	cfg := AggregateConfig{
		Input:         v.GetString("in"),
		Window:        window,
		PGDSN:         v.GetString("pg-dsn"),
		Out:           v.GetString("out"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: recomputeFrom,
		LogLevel:      v.GetString("log-level"),
	}
	if cfg.Input == "" {
		return AggregateConfig{}, fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" && cfg.Out == "" {
		return AggregateConfig{}, fmt.Errorf("one of pg-dsn or out is required")
	}
	if cfg.PGDSN == "" && cfg.StateFile == "" {
		cfg.StateFile = cfg.Out + ".state.json"
	}
	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
