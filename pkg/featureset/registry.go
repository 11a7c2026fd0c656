// Package featureset holds the registry of named polyfill feature sets.
//
// A feature set is a named include/exclude overlay on the base feature list.
// The "default" set (no overlay) always exists. Registries are plain values
// owned by the caller; nothing here is process-global.
package featureset

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Default is the name of the always-present base feature set.
const Default = "default"

// FeatureSet is a named include/exclude overlay on the base features.
type FeatureSet struct {
	Name    string   `json:"name" mapstructure:"name"`
	Include []string `json:"include" mapstructure:"include"`
	Exclude []string `json:"exclude" mapstructure:"exclude"`
}

// Request selects the features for one bundle. Name picks a registered set
// (empty means the base set); Include/Exclude are layered on top of it.
type Request struct {
	Name    string
	Include []string
	Exclude []string
}

// Registry stores feature sets. Registration is additive; there is no removal.
type Registry struct {
	mu   sync.RWMutex
	base []string
	sets map[string]FeatureSet
}

// NewRegistry creates a registry over the given base feature ids
// (core-js module names such as "es.promise").
func NewRegistry(base []string) (*Registry, error) {
	normalized, err := normalizeFeatures(base)
	if err != nil {
		return nil, &ConfigurationError{Name: Default, Reason: "invalid base features", Err: err}
	}

	return &Registry{
		base: normalized,
		sets: map[string]FeatureSet{
			Default: {Name: Default, Include: []string{}, Exclude: []string{}},
		},
	}, nil
}

// Add registers a feature set. Re-adding an identical set is a no-op;
// re-adding a name with different content fails with ErrFeatureSetConflict.
func (r *Registry) Add(set FeatureSet) error {
	name := normalizeName(set.Name)
	if name == "" {
		return &ConfigurationError{Reason: "name is required", Err: ErrInvalidFeature}
	}

	include, err := normalizeFeatures(set.Include)
	if err != nil {
		return &ConfigurationError{Name: name, Reason: "invalid include list", Err: err}
	}
	exclude, err := normalizeFeatures(set.Exclude)
	if err != nil {
		return &ConfigurationError{Name: name, Reason: "invalid exclude list", Err: err}
	}
	if err := checkDisjoint(include, exclude); err != nil {
		return &ConfigurationError{Name: name, Reason: "include and exclude overlap", Err: err}
	}

	normalized := FeatureSet{Name: name, Include: include, Exclude: exclude}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sets[name]; ok {
		if slices.Equal(existing.Include, include) && slices.Equal(existing.Exclude, exclude) {
			return nil
		}
		return &ConfigurationError{Name: name, Reason: "conflicting registration", Err: ErrFeatureSetConflict}
	}
	r.sets[name] = normalized
	return nil
}

// MustAdd registers a feature set and panics on error, for static setup code.
func (r *Registry) MustAdd(set FeatureSet) {
	if err := r.Add(set); err != nil {
		panic(err)
	}
}

// Get returns a copy of the named feature set.
func (r *Registry) Get(name string) (FeatureSet, error) {
	key := normalizeName(name)
	if key == "" {
		key = Default
	}

	r.mu.RLock()
	set, ok := r.sets[key]
	r.mu.RUnlock()

	if !ok {
		return FeatureSet{}, &ConfigurationError{Name: key, Reason: "not registered", Err: ErrUnknownFeatureSet}
	}
	return FeatureSet{
		Name:    set.Name,
		Include: slices.Clone(set.Include),
		Exclude: slices.Clone(set.Exclude),
	}, nil
}

// Names returns all registered names, "default" first and the rest sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		if name != Default {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return append([]string{Default}, names...)
}

// Base returns a copy of the base feature ids.
func (r *Registry) Base() []string {
	return slices.Clone(r.base)
}

// Features resolves a request to its sorted, de-duplicated feature ids.
// The named set is applied to the base list first (base + set.Include -
// set.Exclude), then the request overlay (+ req.Include - req.Exclude), so a
// request can re-include a feature its set excludes. It never mutates the
// registry.
func (r *Registry) Features(req Request) ([]string, error) {
	set, err := r.Get(req.Name)
	if err != nil {
		return nil, err
	}

	include, err := normalizeFeatures(req.Include)
	if err != nil {
		return nil, &ConfigurationError{Name: set.Name, Reason: "invalid include override", Err: err}
	}
	exclude, err := normalizeFeatures(req.Exclude)
	if err != nil {
		return nil, &ConfigurationError{Name: set.Name, Reason: "invalid exclude override", Err: err}
	}
	if err := checkDisjoint(include, exclude); err != nil {
		return nil, &ConfigurationError{Name: set.Name, Reason: "include and exclude overrides overlap", Err: err}
	}

	selected := make(map[string]struct{}, len(r.base)+len(set.Include)+len(include))
	for _, layer := range []struct{ include, exclude []string }{
		{append(append([]string(nil), r.base...), set.Include...), set.Exclude},
		{include, exclude},
	} {
		for _, feature := range layer.include {
			selected[feature] = struct{}{}
		}
		for _, feature := range layer.exclude {
			delete(selected, feature)
		}
	}

	features := make([]string, 0, len(selected))
	for feature := range selected {
		features = append(features, feature)
	}
	sort.Strings(features)
	return features, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// normalizeFeatures trims, de-duplicates and sorts feature ids.
func normalizeFeatures(features []string) ([]string, error) {
	seen := make(map[string]struct{}, len(features))
	result := make([]string, 0, len(features))
	for _, feature := range features {
		feature = strings.TrimSpace(feature)
		if feature == "" {
			return nil, fmt.Errorf("%w: empty feature id", ErrInvalidFeature)
		}
		if strings.ContainsAny(feature, ", \t\n") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFeature, feature)
		}
		if _, dup := seen[feature]; dup {
			continue
		}
		seen[feature] = struct{}{}
		result = append(result, feature)
	}
	sort.Strings(result)
	return result, nil
}

func checkDisjoint(include, exclude []string) error {
	for _, feature := range include {
		if _, found := slices.BinarySearch(exclude, feature); found {
			return fmt.Errorf("%w: %q both included and excluded", ErrInvalidFeature, feature)
		}
	}
	return nil
}
