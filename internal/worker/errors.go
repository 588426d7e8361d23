package worker

import (
	"errors"
	"fmt"
)

var (
	// ErrResolverChanged indicates a request named a different identity resolver
	// than the one already bound to the worker
	ErrResolverChanged = errors.New("identity resolver path changed")

	// ErrParse indicates a package descriptor that is not well-formed JSON
	ErrParse = errors.New("malformed package descriptor")
)

// ConfigurationError is returned when a worker is asked to switch identity
// resolvers. It is fatal for the worker: every later request naming the new
// path fails the same way.
type ConfigurationError struct {
	Bound     string // Resolver path already bound
	Requested string // Resolver path the request asked for
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: bound %q, requested %q", ErrResolverChanged, e.Bound, e.Requested)
}

// Is lets errors.Is match ErrResolverChanged.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrResolverChanged
}

// ParseError wraps the decode failure of a package descriptor.
type ParseError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrParse, e.Path, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
