package featureset

import (
	"errors"
	"fmt"
)

// Common errors returned by the registry.
var (
	// ErrUnknownFeatureSet is returned when a named feature set is not registered.
	ErrUnknownFeatureSet = errors.New("unknown feature set")

	// ErrFeatureSetConflict is returned when a name is re-registered with different content.
	ErrFeatureSetConflict = errors.New("feature set already registered with different content")

	// ErrInvalidFeature is returned for malformed include/exclude lists.
	ErrInvalidFeature = errors.New("invalid feature")
)

// ConfigurationError reports an unknown or invalid feature set request.
// It is never retried; the caller has to change its input.
type ConfigurationError struct {
	Name   string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	name := e.Name
	if name == "" {
		name = "<ad-hoc>"
	}
	if e.Err != nil {
		return fmt.Sprintf("feature set %s: %s: %v", name, e.Reason, e.Err)
	}
	return fmt.Sprintf("feature set %s: %s", name, e.Reason)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
