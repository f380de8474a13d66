// Package config loads floe configuration. Precedence, lowest to
// highest: built-in defaults, floe.yaml in the working directory,
// FLOE_* environment variables, command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "floe.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "floe.yml"

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "FLOE_"

// Config is the resolved configuration of one invocation.
type Config struct {
	// CatalogDir holds the warehouse catalog export files. A
	// comma-separated list merges several per-database exports into one
	// build.
	CatalogDir string `koanf:"catalog_dir"`
	// HistoryDir holds the snapshot index and payload files.
	HistoryDir string `koanf:"history_dir"`
	// Retention caps stored snapshots; zero disables pruning.
	Retention int `koanf:"retention"`
	// Workers bounds parallel DDL parsing; zero means GOMAXPROCS.
	Workers int `koanf:"workers"`
	// CacheSize is the parse memoization cache capacity.
	CacheSize int `koanf:"cache_size"`
	// DefaultDatabase and DefaultSchema qualify unqualified table
	// references in column lineage extraction.
	DefaultDatabase string `koanf:"default_database"`
	DefaultSchema   string `koanf:"default_schema"`
	// Verbose enables debug logging to stderr.
	Verbose bool `koanf:"verbose"`
	// Output selects the CLI rendering: table or json.
	Output string `koanf:"output"`
}

func defaults() map[string]any {
	return map[string]any{
		"catalog_dir": "catalog",
		"history_dir": filepath.Join(".floe", "history"),
		"retention":   0,
		"workers":     0,
		"cache_size":  256,
		"verbose":     false,
		"output":      "table",
	}
}

// Load resolves configuration for dir. flags may be nil; when given,
// set flags override file and environment values.
func Load(dir string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load default config: %w", err)
	}

	if path := findConfigFile(dir); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment config: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("load flag config: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints that koanf cannot express.
func (c *Config) Validate() error {
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative, got %d", c.Retention)
	}
	if c.Output != "table" && c.Output != "json" {
		return fmt.Errorf("output must be table or json, got %q", c.Output)
	}
	return nil
}

// findConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the first directory holding
// a config file. Returns empty string if none is found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if findConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
