package bundle

import (
	"errors"
	"fmt"
)

// CompilationError wraps a bundler failure. It is never cached and never retried;
// the same input will fail again.
type CompilationError struct {
	Key     string
	Modules []string
	Err     error
}

// Error implements the error interface.
func (e *CompilationError) Error() string {
	return fmt.Sprintf("bundle compilation failed (key %s): %v", e.Key, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CompilationError) Unwrap() error {
	return e.Err
}

// IsCompilationError reports whether err is, or wraps, a CompilationError.
func IsCompilationError(err error) bool {
	var compileErr *CompilationError
	return errors.As(err, &compileErr)
}
