// Package resolve turns a bundle request into the ordered module list that
// forms the bundle's cache key and entry order.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/polyfill-cache/pkg/featureset"
)

// CoreJSPrefix is prepended to catalog feature ids to form bundler entry modules.
const CoreJSPrefix = "core-js/modules/"

// ErrUnknownTarget is returned by target resolvers for an unrecognised platform query.
var ErrUnknownTarget = errors.New("unknown target platform")

// Target is the platform a bundle is built for: a raw user agent, or an explicit
// platform query that bypasses user-agent parsing (used when priming).
type Target struct {
	UserAgent string
	Override  string
}

// IsOverride reports whether the target is an explicit platform query.
func (t Target) IsOverride() bool {
	return t.Override != ""
}

// String returns the override query if set, the user agent otherwise.
func (t Target) String() string {
	if t.IsOverride() {
		return t.Override
	}
	return t.UserAgent
}

// Modules is the resolver output: feature-catalog modules and target-specific modules.
type Modules struct {
	// Catalog holds the core-js feature ids the target still needs
	Catalog []string

	// Target holds additional, target-specific polyfill modules
	Target []string
}

// Ordered returns the bundler entry list: catalog modules (prefixed with
// CoreJSPrefix) first, then target modules. The order is part of the cache key.
func (m Modules) Ordered() []string {
	entry := make([]string, 0, len(m.Catalog)+len(m.Target))
	for _, id := range m.Catalog {
		entry = append(entry, CoreJSPrefix+id)
	}
	return append(entry, m.Target...)
}

// TargetResolver maps a feature list and target platform to the modules the
// platform needs. Implementations must be deterministic for identical input.
type TargetResolver interface {
	Resolve(ctx context.Context, features []string, target Target) (Modules, error)
}

// Resolver combines a feature set registry with a target resolver.
type Resolver struct {
	registry *featureset.Registry
	targets  TargetResolver
}

// NewResolver creates a request resolver.
func NewResolver(registry *featureset.Registry, targets TargetResolver) *Resolver {
	if registry == nil {
		panic("feature set registry cannot be nil")
	}
	if targets == nil {
		panic("target resolver cannot be nil")
	}
	return &Resolver{
		registry: registry,
		targets:  targets,
	}
}

// Resolve projects a request onto its ordered module list. It never mutates
// the registry. Unknown or malformed feature sets fail with a
// featureset.ConfigurationError.
func (r *Resolver) Resolve(ctx context.Context, req featureset.Request, target Target, logger zerolog.Logger) (Modules, error) {
	features, err := r.registry.Features(req)
	if err != nil {
		logger.Debug().Err(err).Str("feature_set", req.Name).Msg("Feature set resolution failed")
		return Modules{}, err
	}

	modules, err := r.targets.Resolve(ctx, features, target)
	if err != nil {
		if errors.Is(err, ErrUnknownTarget) {
			return Modules{}, &featureset.ConfigurationError{
				Name:   req.Name,
				Reason: fmt.Sprintf("target %q", target.String()),
				Err:    err,
			}
		}
		return Modules{}, fmt.Errorf("resolve target modules: %w", err)
	}

	if err := validate(modules); err != nil {
		return Modules{}, fmt.Errorf("target resolver returned invalid modules: %w", err)
	}

	logger.Debug().
		Str("feature_set", req.Name).
		Str("target", target.String()).
		Bool("override", target.IsOverride()).
		Int("catalog_modules", len(modules.Catalog)).
		Int("target_modules", len(modules.Target)).
		Msg("Resolved bundle modules")

	return Modules{
		Catalog: append([]string(nil), modules.Catalog...),
		Target:  append([]string(nil), modules.Target...),
	}, nil
}

func validate(m Modules) error {
	for _, group := range [][]string{m.Catalog, m.Target} {
		for _, id := range group {
			if strings.TrimSpace(id) == "" {
				return errors.New("empty module id")
			}
			if strings.Contains(id, ",") {
				return fmt.Errorf("module id %q contains a separator", id)
			}
		}
	}
	return nil
}
