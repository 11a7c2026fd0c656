package config

import (
	"fmt"
	"strings"
)

// FieldError names the offending configuration field and the reason.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return newFieldError("server.listen", "must not be empty")
	}
	if c.Server.ShutdownTimeout < 0 {
		return newFieldError("server.shutdown_timeout", "must not be negative")
	}
	if c.Server.CacheMaxAge < 0 {
		return newFieldError("server.cache_max_age", "must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return newFieldError("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	if c.Log.MaxSizeMB < 0 {
		return newFieldError("log.max_size_mb", "must not be negative")
	}
	if c.Log.MaxBackups < 0 {
		return newFieldError("log.max_backups", "must not be negative")
	}

	if c.Cache.MaxEntries < 0 {
		return newFieldError("cache.max_entries", "must not be negative")
	}
	if c.Cache.MaxBytes < 0 {
		return newFieldError("cache.max_bytes", "must not be negative")
	}

	if c.Snapshot.Concurrency < 0 {
		return newFieldError("snapshot.concurrency", "must not be negative")
	}
	if c.Snapshot.Redis.DB < 0 {
		return newFieldError("snapshot.redis.db", "must not be negative")
	}

	if strings.TrimSpace(c.Bundler.Command) == "" {
		return newFieldError("bundler.command", "must not be empty")
	}
	if c.Bundler.Timeout < 0 {
		return newFieldError("bundler.timeout", "must not be negative")
	}

	for i, set := range c.Features.Sets {
		if strings.TrimSpace(set.Name) == "" {
			return newFieldError(fmt.Sprintf("features.sets[%d].name", i), "must not be empty")
		}
	}

	seen := make(map[string]bool, len(c.Platforms))
	for i, p := range c.Platforms {
		query := strings.ToLower(strings.Join(strings.Fields(p.Query), " "))
		if query == "" {
			return newFieldError(fmt.Sprintf("platforms[%d].query", i), "must not be empty")
		}
		if seen[query] {
			return newFieldError(fmt.Sprintf("platforms[%d].query", i), fmt.Sprintf("duplicate platform %q", p.Query))
		}
		seen[query] = true
	}

	return nil
}
