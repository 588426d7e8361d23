// Package identity loads pluggable strategies that name a source file as a
// module, independent of where the file lives on disk.
package identity

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedResolver indicates a resolver path whose extension has no backend
	ErrUnsupportedResolver = errors.New("unsupported identity resolver")

	// ErrInvalidResolver indicates a resolver that loaded but does not expose the expected interface
	ErrInvalidResolver = errors.New("invalid identity resolver")
)

// Resolver computes the module identity of a file.
type Resolver interface {
	// Identity returns the logical module name of filePath, or "" when the
	// file is not a module under this resolver's policy.
	Identity(ctx context.Context, filePath string) (string, error)
}

// Closer is implemented by resolvers that hold runtime resources.
type Closer interface {
	Close(ctx context.Context) error
}

// ResolverFunc adapts a plain function to Resolver.
type ResolverFunc func(ctx context.Context, filePath string) (string, error)

// Identity calls f.
func (f ResolverFunc) Identity(ctx context.Context, filePath string) (string, error) {
	return f(ctx, filePath)
}

// Loader obtains a Resolver from the path it is stored at.
type Loader interface {
	Load(ctx context.Context, path string) (Resolver, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(ctx context.Context, path string) (Resolver, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, path string) (Resolver, error) {
	return f(ctx, path)
}

// extensionLoader picks a backend by the resolver file's extension.
type extensionLoader struct {
	backends map[string]Loader
}

// Option configures the loader returned by NewLoader.
type Option func(*extensionLoader)

// WithBackend registers (or replaces) the backend used for ext, e.g. ".wasm".
func WithBackend(ext string, backend Loader) Option {
	return func(l *extensionLoader) {
		l.backends[strings.ToLower(ext)] = backend
	}
}

// NewLoader creates a loader that understands WebAssembly modules (.wasm),
// declarative rule files (.toml) and Go plugins (.so).
func NewLoader(opts ...Option) Loader {
	l := &extensionLoader{
		backends: map[string]Loader{
			".wasm": LoaderFunc(LoadWasm),
			".toml": LoaderFunc(LoadRules),
			".so":   LoaderFunc(LoadPlugin),
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load dispatches to the backend registered for path's extension.
func (l *extensionLoader) Load(ctx context.Context, path string) (Resolver, error) {
	ext := strings.ToLower(filepath.Ext(path))
	backend, ok := l.backends[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s (no backend for %q)", ErrUnsupportedResolver, path, ext)
	}

	resolver, err := backend.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity resolver %s: %w", path, err)
	}
	return resolver, nil
}
