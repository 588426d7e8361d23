// Package worker extracts the module identity and dependency specifiers of a
// single file for the haste module map.
//
// A Worker is one extraction unit. It processes requests one at a time and
// owns a single piece of state, the custom identity resolver bound by the
// first request that names one. Run several Workers to process files in
// parallel; they share nothing.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/mvp-joe/project-haste/internal/docblock"
	"github.com/mvp-joe/project-haste/internal/identity"
	"github.com/mvp-joe/project-haste/internal/requires"
)

// identityPragmas are the docblock keys that declare a module name, highest
// priority first.
var identityPragmas = []string{"providesModule", "provides"}

// Worker is a single extraction unit. It is not safe for concurrent use.
type Worker struct {
	loader   identity.Loader
	scanner  requires.Scanner
	readFile func(string) ([]byte, error)
	logger   *log.Logger

	resolver     identity.Resolver
	resolverPath string
}

// Option configures a Worker.
type Option func(*Worker)

// WithLoader sets how custom identity resolvers are loaded.
func WithLoader(loader identity.Loader) Option {
	return func(w *Worker) {
		w.loader = loader
	}
}

// WithScanner sets the dependency scanner.
func WithScanner(scanner requires.Scanner) Option {
	return func(w *Worker) {
		w.scanner = scanner
	}
}

// WithReadFile replaces os.ReadFile for Process.
func WithReadFile(readFile func(string) ([]byte, error)) Option {
	return func(w *Worker) {
		w.readFile = readFile
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *log.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates an unbound Worker.
func New(opts ...Option) *Worker {
	w := &Worker{}
	for _, opt := range opts {
		opt(w)
	}

	if w.loader == nil {
		w.loader = identity.NewLoader()
	}
	if w.scanner == nil {
		w.scanner = requires.NewTreeSitterScanner()
	}
	if w.readFile == nil {
		w.readFile = os.ReadFile
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}

	return w
}

// ResolverPath returns the path of the bound identity resolver, or "".
func (w *Worker) ResolverPath() string {
	return w.resolverPath
}

// Process reads req.FilePath and extracts its metadata.
func (w *Worker) Process(ctx context.Context, req Request) (*Result, error) {
	if err := w.bind(ctx, req.ResolverPath); err != nil {
		return nil, err
	}

	content, err := w.readFile(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", req.FilePath, err)
	}

	return w.extract(ctx, req.FilePath, content)
}

// Extract is Process for callers that already hold the file contents.
func (w *Worker) Extract(ctx context.Context, req Request, content []byte) (*Result, error) {
	if err := w.bind(ctx, req.ResolverPath); err != nil {
		return nil, err
	}
	return w.extract(ctx, req.FilePath, content)
}

// Close releases the bound resolver's resources, if it holds any.
func (w *Worker) Close(ctx context.Context) error {
	if closer, ok := w.resolver.(identity.Closer); ok {
		return closer.Close(ctx)
	}
	return nil
}

// bind installs the resolver at path on first use. Naming the bound path
// again is a no-op; naming another one is a ConfigurationError, because every
// file this worker ever processes must be named by the same policy.
func (w *Worker) bind(ctx context.Context, path string) error {
	if path == "" || path == w.resolverPath {
		return nil
	}

	if w.resolver != nil {
		w.logger.Error("identity resolver changed", "bound", w.resolverPath, "requested", path)
		return &ConfigurationError{Bound: w.resolverPath, Requested: path}
	}

	resolver, err := w.loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to bind identity resolver: %w", err)
	}
	if resolver == nil {
		return fmt.Errorf("failed to bind identity resolver: loader returned no resolver for %s", path)
	}

	w.resolver = resolver
	w.resolverPath = path
	w.logger.Debug("bound identity resolver", "path", path)
	return nil
}

func (w *Worker) extract(ctx context.Context, filePath string, content []byte) (*Result, error) {
	switch Classify(filePath) {
	case ClassPackage:
		return extractPackage(filePath, content)
	case ClassData:
		return &Result{}, nil
	}

	id, err := w.moduleIdentity(ctx, filePath, content)
	if err != nil {
		return nil, err
	}

	deps, err := w.scanner.Scan(ctx, filePath, content)
	if err != nil {
		return nil, fmt.Errorf("failed to scan dependencies of %s: %w", filePath, err)
	}
	if deps == nil {
		deps = []string{}
	}

	result := &Result{Dependencies: deps, Identity: id}
	if id != "" {
		result.Descriptor = &Descriptor{Path: filePath, Kind: KindModule}
	}

	w.logger.Debug("extracted", "file", filePath, "identity", id, "dependencies", len(deps))
	return result, nil
}

// moduleIdentity asks the bound resolver, or reads the docblock when none is bound.
func (w *Worker) moduleIdentity(ctx context.Context, filePath string, content []byte) (string, error) {
	if w.resolver != nil {
		id, err := w.resolver.Identity(ctx, filePath)
		if err != nil {
			return "", fmt.Errorf("identity resolver %s failed for %s: %w", w.resolverPath, filePath, err)
		}
		return id, nil
	}

	pragmas := docblock.Parse(docblock.Extract(string(content)))
	id, _ := pragmas.First(identityPragmas...)
	return id, nil
}

// extractPackage names a package descriptor after its "name" field.
func extractPackage(filePath string, content []byte) (*Result, error) {
	var doc any
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, &ParseError{Path: filePath, Err: err}
	}

	fields, _ := doc.(map[string]any)
	name, _ := fields["name"].(string)
	if name == "" {
		return &Result{}, nil
	}

	return &Result{
		Identity:   name,
		Descriptor: &Descriptor{Path: filePath, Kind: KindPackage},
	}, nil
}
