package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Failure policies for the per-table dispatch loop.
const (
	failureAbort    = "abort"
	failureContinue = "continue"
)

// MigrationConfig holds the full TOML-driven migration configuration.
// Immutable after loadConfig returns; owned by the orchestrator for the
// run's lifetime.
type MigrationConfig struct {
	Source EndpointConfig `toml:"source"`
	Target EndpointConfig `toml:"target"`

	// TestMode caps the source fetch at MaxRowsPerTable rows per table.
	TestMode        bool `toml:"test_mode"`
	MaxRowsPerTable int  `toml:"max_rows_per_table"`

	// OnTableFailure decides whether one failing table aborts the
	// remaining tables (abort) or is recorded and skipped (continue).
	OnTableFailure string `toml:"on_table_failure"`

	Hooks      HooksConfig       `toml:"hooks"`
	Transforms []TransformConfig `toml:"transform"`

	// configDir is the directory containing the TOML file, used to resolve relative SQL paths.
	configDir string
}

// EndpointConfig identifies one side's database engine and connection string.
type EndpointConfig struct {
	Engine string `toml:"engine"` // "sqlite", "mysql" or "postgres"
	DSN    string `toml:"dsn"`
}

// HooksConfig lists SQL files executed against the target around the data pass.
type HooksConfig struct {
	BeforeData []string `toml:"before_data"`
	AfterData  []string `toml:"after_data"`
}

// TransformConfig declares a custom per-column transformation: either a
// named built-in function or a lookup against the source database. Exactly
// one of Func and Lookup must be set.
type TransformConfig struct {
	Column string        `toml:"column"`
	Func   string        `toml:"func"`
	Lookup *LookupConfig `toml:"lookup"`
}

// LookupConfig describes a cross-table lookup: the row's LocalColumn value
// is matched against MatchColumn of Table in the source database, and
// ValueColumn of the matched row replaces the cell.
type LookupConfig struct {
	Table       string `toml:"table"`
	MatchColumn string `toml:"match_column"`
	ValueColumn string `toml:"value_column"`
	LocalColumn string `toml:"local_column"`
}

// loadConfig reads a TOML config file and returns a MigrationConfig with
// defaults applied.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := MigrationConfig{
		OnTableFailure: failureAbort,
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if err := validateEndpoint("source", cfg.Source); err != nil {
		return nil, err
	}
	if err := validateEndpoint("target", cfg.Target); err != nil {
		return nil, err
	}

	switch cfg.OnTableFailure {
	case failureAbort, failureContinue:
	default:
		return nil, fmt.Errorf("on_table_failure must be one of: abort, continue")
	}

	if cfg.MaxRowsPerTable < 0 {
		return nil, fmt.Errorf("max_rows_per_table must be >= 0")
	}
	if cfg.MaxRowsPerTable > 0 && !cfg.TestMode {
		return nil, fmt.Errorf("max_rows_per_table requires test_mode = true")
	}

	for i, tr := range cfg.Transforms {
		if tr.Column == "" {
			return nil, fmt.Errorf("transform %d: column is required", i+1)
		}
		if (tr.Func == "") == (tr.Lookup == nil) {
			return nil, fmt.Errorf("transform for column %q: exactly one of func and lookup must be set", tr.Column)
		}
		if tr.Func != "" {
			if _, ok := builtinTransforms[tr.Func]; !ok {
				return nil, fmt.Errorf("transform for column %q: unknown func %q (available: %s)",
					tr.Column, tr.Func, strings.Join(builtinTransformNames(), ", "))
			}
		}
		if tr.Lookup != nil {
			l := tr.Lookup
			if l.Table == "" || l.MatchColumn == "" || l.ValueColumn == "" || l.LocalColumn == "" {
				return nil, fmt.Errorf("transform for column %q: lookup requires table, match_column, value_column and local_column", tr.Column)
			}
		}
	}

	return &cfg, nil
}

func validateEndpoint(side string, ep EndpointConfig) error {
	if ep.Engine == "" {
		return fmt.Errorf("%s.engine is required (must be sqlite, mysql or postgres)", side)
	}
	if _, err := newDBEngine(ep.Engine); err != nil {
		return fmt.Errorf("%s: %w", side, err)
	}
	if ep.DSN == "" {
		return fmt.Errorf("%s.dsn is required", side)
	}
	return nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}
