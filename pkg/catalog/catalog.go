// Package catalog provides table-driven implementations of the target
// resolver and browser matrix, loaded from configuration.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/polyfill-cache/pkg/resolve"
)

// DefaultsQuery is the fallback platform for unmatched user agents.
const DefaultsQuery = "defaults"

// ErrInvalidQuery is returned for coverage queries the catalog cannot evaluate.
var ErrInvalidQuery = errors.New("invalid coverage query")

// Platform describes one target platform of the matrix.
type Platform struct {
	// Query is the platform query, e.g. "chrome 90"
	Query string `mapstructure:"query" json:"query"`

	// Match lists user agent substrings (case-insensitive) that select this platform
	Match []string `mapstructure:"match" json:"match"`

	// Usage is the global usage share in percent, used by coverage queries
	Usage float64 `mapstructure:"usage" json:"usage"`

	// Supported lists the core-js feature ids the platform implements natively
	Supported []string `mapstructure:"supported" json:"supported"`

	// Modules lists extra target-specific polyfill modules
	Modules []string `mapstructure:"modules" json:"modules"`
}

// Catalog resolves targets against a fixed platform table.
// It is immutable after construction and safe for concurrent use.
type Catalog struct {
	platforms []Platform
	byQuery   map[string]int
	supported []map[string]bool
}

// New builds a catalog. Queries must be unique; a "defaults" platform with
// no native support is added when the table does not define one.
func New(platforms []Platform) (*Catalog, error) {
	c := &Catalog{byQuery: make(map[string]int, len(platforms)+1)}

	for _, p := range platforms {
		p.Query = normalizeQuery(p.Query)
		if p.Query == "" {
			return nil, errors.New("platform query cannot be empty")
		}
		if _, dup := c.byQuery[p.Query]; dup {
			return nil, fmt.Errorf("duplicate platform %q", p.Query)
		}
		c.add(p)
	}

	if _, ok := c.byQuery[DefaultsQuery]; !ok {
		c.add(Platform{Query: DefaultsQuery})
	}
	return c, nil
}

func (c *Catalog) add(p Platform) {
	match := make([]string, 0, len(p.Match))
	for _, m := range p.Match {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			match = append(match, m)
		}
	}
	p.Match = match

	set := make(map[string]bool, len(p.Supported))
	for _, id := range p.Supported {
		set[id] = true
	}

	c.byQuery[p.Query] = len(c.platforms)
	c.platforms = append(c.platforms, p)
	c.supported = append(c.supported, set)
}

// Lookup returns the platform for a user agent. The first platform (in table
// order) with a matching substring wins; otherwise the defaults platform.
func (c *Catalog) Lookup(userAgent string) Platform {
	ua := strings.ToLower(userAgent)
	for _, p := range c.platforms {
		for _, m := range p.Match {
			if strings.Contains(ua, m) {
				return p
			}
		}
	}
	return c.platforms[c.byQuery[DefaultsQuery]]
}

// Resolve implements resolve.TargetResolver. Override queries must name a
// known platform; user agents never fail and fall back to "defaults".
func (c *Catalog) Resolve(ctx context.Context, features []string, target resolve.Target) (resolve.Modules, error) {
	if err := ctx.Err(); err != nil {
		return resolve.Modules{}, err
	}

	idx := c.byQuery[DefaultsQuery]
	if target.IsOverride() {
		i, ok := c.byQuery[normalizeQuery(target.Override)]
		if !ok {
			return resolve.Modules{}, fmt.Errorf("%w: %s", resolve.ErrUnknownTarget, target.Override)
		}
		idx = i
	} else {
		idx = c.byQuery[c.Lookup(target.UserAgent).Query]
	}

	platform := c.platforms[idx]
	native := c.supported[idx]

	var m resolve.Modules
	for _, id := range features {
		if !native[id] {
			m.Catalog = append(m.Catalog, id)
		}
	}
	m.Target = append(m.Target, platform.Modules...)
	return m, nil
}

// Platforms implements prime.MatrixProvider. Supported queries are "all" and
// usage thresholds of the form "> N%" or ">= N%". The defaults platform is
// never part of the result; results are sorted for a stable priming order.
func (c *Catalog) Platforms(ctx context.Context, query string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keep, err := parseQuery(query)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, p := range c.platforms {
		if p.Query != DefaultsQuery && keep(p.Usage) {
			out = append(out, p.Query)
		}
	}
	sort.Strings(out)
	return out, nil
}

func parseQuery(query string) (func(float64) bool, error) {
	q := strings.TrimSpace(query)
	if strings.EqualFold(q, "all") {
		return func(float64) bool { return true }, nil
	}

	inclusive := false
	switch {
	case strings.HasPrefix(q, ">="):
		inclusive = true
		q = q[2:]
	case strings.HasPrefix(q, ">"):
		q = q[1:]
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuery, query)
	}

	q = strings.TrimSuffix(strings.TrimSpace(q), "%")
	threshold, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuery, query)
	}

	if inclusive {
		return func(usage float64) bool { return usage >= threshold }, nil
	}
	return func(usage float64) bool { return usage > threshold }, nil
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
