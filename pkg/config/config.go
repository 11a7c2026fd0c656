// Package config loads polyfill server configuration with viper.
//
// Sources, lowest precedence first: built-in defaults, an optional config
// file (TOML, YAML or JSON, by extension), and POLYFILL_* environment
// variables, where nested keys use underscores (POLYFILL_CACHE_MAX_ENTRIES).
package config

import (
	"time"

	"github.com/Sternrassler/polyfill-cache/pkg/bundler"
	"github.com/Sternrassler/polyfill-cache/pkg/catalog"
	"github.com/Sternrassler/polyfill-cache/pkg/featureset"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POLYFILL"

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig       `mapstructure:"server"`
	Log       LogConfig          `mapstructure:"log"`
	Cache     CacheConfig        `mapstructure:"cache"`
	Snapshot  SnapshotConfig     `mapstructure:"snapshot"`
	Prime     PrimeConfig        `mapstructure:"prime"`
	Bundler   bundler.Config     `mapstructure:"bundler"`
	Features  FeaturesConfig     `mapstructure:"features"`
	Platforms []catalog.Platform `mapstructure:"platforms"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CacheMaxAge     time.Duration `mapstructure:"cache_max_age"`
}

// LogConfig configures zerolog output and optional file rotation.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// CacheConfig bounds the in-memory bundle cache.
type CacheConfig struct {
	MaxEntries int   `mapstructure:"max_entries"`
	MaxBytes   int64 `mapstructure:"max_bytes"`
}

// SnapshotConfig selects where the cache is saved on shutdown and restored on startup.
type SnapshotConfig struct {
	// Dir is the directory snapshot location (empty disables directory snapshots)
	Dir string `mapstructure:"dir"`

	// Concurrency bounds parallel record I/O
	Concurrency int `mapstructure:"concurrency"`

	// Redis, when Addr is set, replaces the directory snapshot
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the Redis snapshot backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Enabled reports whether a Redis snapshot backend is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// PrimeConfig controls cache priming.
type PrimeConfig struct {
	OnStart         bool   `mapstructure:"on_start"`
	Query           string `mapstructure:"query"`
	ContinueOnError bool   `mapstructure:"continue_on_error"`
}

// FeaturesConfig holds the base feature list and named feature sets.
type FeaturesConfig struct {
	Base []string                `mapstructure:"base"`
	Sets []featureset.FeatureSet `mapstructure:"sets"`
}

// DefaultBaseFeatures is the core-js feature list of the "default" feature set.
var DefaultBaseFeatures = []string{
	"es.array.flat",
	"es.array.flat-map",
	"es.array.includes",
	"es.object.entries",
	"es.object.from-entries",
	"es.object.values",
	"es.promise",
	"es.promise.finally",
	"es.string.pad-end",
	"es.string.pad-start",
	"es.symbol",
	"web.url",
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: 30 * time.Second,
			CacheMaxAge:     24 * time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 10,
			Compress:   true,
		},
		Cache: CacheConfig{
			MaxEntries: 2000,
			MaxBytes:   100_000_000,
		},
		Snapshot: SnapshotConfig{
			Dir:         "./snapshot",
			Concurrency: 16,
		},
		Prime: PrimeConfig{
			Query: "> 0%",
		},
		Bundler: bundler.Config{
			Command: bundler.DefaultCommand,
			Timeout: 2 * time.Minute,
		},
		Features: FeaturesConfig{
			Base: append([]string(nil), DefaultBaseFeatures...),
		},
		Platforms: catalog.DefaultPlatforms(),
	}
}
