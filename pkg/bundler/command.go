// Package bundler runs an external JavaScript bundler as a child process.
//
// The bundler reads one JSON request from stdin:
//
//	{"entry": ["core-js/modules/es.promise", "whatwg-fetch"], "minify": true}
//
// and writes the bundled script to stdout. A non-zero exit status is a
// compilation failure; stderr is attached to the returned error.
package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommand is the bundler executable used when none is configured.
const DefaultCommand = "nimbuild"

// maxStderr bounds how much bundler stderr is kept in errors.
const maxStderr = 4096

// ErrEmptyOutput is returned when the bundler exits cleanly but prints nothing.
var ErrEmptyOutput = errors.New("bundler produced no output")

// Config configures the external bundler.
type Config struct {
	// Command is the executable name or path (default: DefaultCommand)
	Command string `mapstructure:"command"`

	// Args are passed to the executable unchanged
	Args []string `mapstructure:"args"`

	// Env adds KEY=VALUE pairs to the inherited environment
	Env []string `mapstructure:"env"`

	// Timeout bounds a single compile (0 = no limit beyond the caller's context)
	Timeout time.Duration `mapstructure:"timeout"`
}

// Request is the JSON document written to the bundler's stdin.
type Request struct {
	Entry  []string `json:"entry"`
	Minify bool     `json:"minify"`
}

// ExitError reports a bundler process that failed.
type ExitError struct {
	Command string
	Stderr  string
	Err     error
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("bundler %s failed: %v: %s", e.Command, e.Err, e.Stderr)
	}
	return fmt.Sprintf("bundler %s failed: %v", e.Command, e.Err)
}

// Unwrap returns the underlying process error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// Command is a bundle.Bundler backed by an external process.
type Command struct {
	config Config
}

// NewCommand creates a process bundler.
func NewCommand(config Config) *Command {
	if config.Command == "" {
		config.Command = DefaultCommand
	}
	return &Command{config: config}
}

// Bundle compiles the entry list by running the configured command.
func (c *Command) Bundle(ctx context.Context, entry []string, minify bool) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	input, err := json.Marshal(Request{Entry: entry, Minify: minify})
	if err != nil {
		return "", fmt.Errorf("encode bundler request: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.config.Command, c.config.Args...)
	if len(c.config.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.config.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &ExitError{
			Command: c.config.Command,
			Stderr:  truncate(strings.TrimSpace(stderr.String()), maxStderr),
			Err:     err,
		}
	}

	if stdout.Len() == 0 {
		return "", ErrEmptyOutput
	}
	return stdout.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
