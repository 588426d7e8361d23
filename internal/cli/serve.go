package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/project-haste/internal/identity"
	"github.com/mvp-joe/project-haste/internal/worker"
)

// maxRequestSize bounds a single request line.
const maxRequestSize = 1 << 20

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Process requests from stdin as one worker",
	Long: `Serve runs a single worker. It reads one JSON request per line from stdin:

  {"filePath": "/repo/src/Button.js", "resolverPath": "/repo/haste.toml"}

and writes one JSON response per line to stdout, in the same order. A
request that names a different resolver than the one already bound gets a
response with "fatal": true, and serve exits with an error.

Requests without a resolverPath use --resolver (or resolver.path from the
config) when set.
`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)

	loader, err := identity.NewCachingLoader(identity.NewLoader(), cfg.Resolver.CacheSize)
	if err != nil {
		return err
	}
	defer func() {
		if err := loader.Close(context.Background()); err != nil {
			logger.Warn("failed to release identity resolvers", "err", err)
		}
	}()

	w := worker.New(worker.WithLoader(loader), worker.WithLogger(logger))
	defer w.Close(context.Background())

	logger.Debug("serving", "resolver", cfg.Resolver.Path)
	return serveRequests(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), w, cfg.Resolver.Path, logger)
}

// serveRequests answers newline-delimited requests from in until EOF. It
// stops with the error after answering a request that failed fatally.
func serveRequests(ctx context.Context, in io.Reader, out io.Writer, w *worker.Worker, defaultResolver string, logger *log.Logger) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestSize)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req worker.Request
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("malformed request", "err", err)
			if err := enc.Encode(fileResponse{Error: fmt.Sprintf("malformed request: %v", err)}); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
			continue
		}
		if req.ResolverPath == "" {
			req.ResolverPath = defaultResolver
		}

		resp, procErr := processOne(ctx, w, req)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if resp.Fatal {
			return fmt.Errorf("worker stopped on %s: %w", req.FilePath, procErr)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read requests: %w", err)
	}
	return nil
}

// isFatal reports whether err leaves the worker unable to serve further requests.
func isFatal(err error) bool {
	return errors.Is(err, worker.ErrResolverChanged)
}
