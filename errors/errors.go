// Package errors defines all exported error values for the shardset library.
//
// This is the single source of truth for error values. The top-level shardset
// package and its internal packages import from here, so errors.Is checks
// work across package boundaries.
package errors

import (
	"errors"
	"fmt"
)

// Engine errors
var (
	ErrEngineClosed   = errors.New("shardset: engine is closed")
	ErrNoInputs       = errors.New("shardset: at least one input file is required")
	ErrInvalidThreads = errors.New("shardset: thread count must not be negative")
	ErrUnknownHash    = errors.New("shardset: unknown partition hash")
)

// ErrIO is matched by every *PathError, so callers can test for the I/O
// class of failures without caring which file was involved.
var ErrIO = errors.New("shardset: i/o error")

// PathError records a failed file operation together with the offending path.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("shardset: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIO.
func (e *PathError) Is(target error) bool { return target == ErrIO }

// NewPathError wraps err for path. It returns nil if err is nil.
func NewPathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: err}
}
