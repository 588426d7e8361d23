// Package config provides configuration loading for the haste worker.
//
// Configuration Hierarchy (highest to lowest priority):
//  1. Command-line flags (applied by the CLI after Load)
//  2. Environment variables (HASTE_*)
//  3. Project config (.haste/config.yml)
//  4. Built-in defaults
//
// Nested fields map to environment variables with underscores, e.g.
// HASTE_RESOLVER_PATH or HASTE_EXTRACT_WORKERS.
package config

import "runtime"

// maxDefaultWorkers caps the CPU-derived default so it always validates.
const maxDefaultWorkers = 256

// Config represents the complete haste worker configuration.
type Config struct {
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ResolverConfig selects the custom identity resolver.
type ResolverConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`                                       // .wasm, .toml or .so; empty means docblock pragmas
	CacheSize int    `yaml:"cache_size" mapstructure:"cache_size" validate:"min=1,max=1024"` // loaded resolvers kept per process
}

// ExtractConfig tunes the extract command.
type ExtractConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers" validate:"min=1,max=256"` // independent extraction units
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	workers := runtime.NumCPU()
	if workers > maxDefaultWorkers {
		workers = maxDefaultWorkers
	}

	return &Config{
		Resolver: ResolverConfig{
			Path:      "",
			CacheSize: 16,
		},
		Extract: ExtractConfig{
			Workers: workers,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
