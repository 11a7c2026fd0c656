package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads configuration from path (optional), applies defaults and
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cache_max_age", d.Server.CacheMaxAge)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("log.file_path", d.Log.FilePath)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.max_bytes", d.Cache.MaxBytes)

	v.SetDefault("snapshot.dir", d.Snapshot.Dir)
	v.SetDefault("snapshot.concurrency", d.Snapshot.Concurrency)
	v.SetDefault("snapshot.redis.addr", "")
	v.SetDefault("snapshot.redis.password", "")
	v.SetDefault("snapshot.redis.db", 0)
	v.SetDefault("snapshot.redis.prefix", "")

	v.SetDefault("prime.on_start", d.Prime.OnStart)
	v.SetDefault("prime.query", d.Prime.Query)
	v.SetDefault("prime.continue_on_error", d.Prime.ContinueOnError)

	v.SetDefault("bundler.command", d.Bundler.Command)
	v.SetDefault("bundler.args", []string{})
	v.SetDefault("bundler.env", []string{})
	v.SetDefault("bundler.timeout", d.Bundler.Timeout)

	v.SetDefault("features.base", d.Features.Base)
}

// applyDefaults fills table-valued settings viper cannot default per element.
func applyDefaults(cfg *Config) {
	if len(cfg.Platforms) == 0 {
		cfg.Platforms = Default().Platforms
	}
}
