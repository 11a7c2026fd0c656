package persist

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey indicates a cache key that cannot be used as a record name.
	ErrInvalidKey = errors.New("invalid record key")
)

// PersistenceError reports a failed read, write, encode or decode of one record.
// A single failing record fails the whole snapshot operation.
type PersistenceError struct {
	Op   string // "serialize" or "deserialize"
	Key  string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	switch {
	case e.Key != "" && e.Path != "":
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Key, e.Path, e.Err)
	case e.Key != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
