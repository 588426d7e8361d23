package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/project-haste/internal/identity"
	"github.com/mvp-joe/project-haste/internal/worker"
)

var (
	quietFlag   bool
	workersFlag int
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [files...]",
	Short: "Extract identities and dependencies from files",
	Long: `Extract processes each file and prints one JSON line per file, in the
order the files were given:

  {"filePath": "...", "result": {"dependencies": [...], "identity": "...", "descriptor": {...}}}
  {"filePath": "...", "error": "..."}

Files are spread round-robin over independent workers. The command exits
non-zero if any file failed.

Examples:
  # Extract two files with docblock identities
  haste-worker extract src/Button.js src/Picker.js

  # Name modules with a rule resolver, using 4 workers
  haste-worker extract --resolver haste.toml --workers 4 src/*.js

  # No progress bar
  haste-worker extract --quiet package.json
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable the progress bar")
	extractCmd.Flags().IntVarP(&workersFlag, "workers", "w", 0, "Number of independent workers (default from config)")
}

// fileResponse is one output line of extract and serve.
type fileResponse struct {
	FilePath string         `json:"filePath"`
	Result   *worker.Result `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
	Fatal    bool           `json:"fatal,omitempty"`
}

// extractOptions configures extractFiles.
type extractOptions struct {
	Workers      int
	ResolverPath string
	NewWorker    func() *worker.Worker
	OnFile       func() // called once per processed file, from any goroutine
	Logger       *log.Logger
}

func runExtract(cmd *cobra.Command, args []string) error {
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

	opts := extractOptions{
		Workers:      cfg.Extract.Workers,
		ResolverPath: cfg.Resolver.Path,
		NewWorker: func() *worker.Worker {
			return worker.New(worker.WithLoader(loader), worker.WithLogger(logger))
		},
		Logger: logger,
	}

	if !quietFlag {
		bar := newProgressBar(cmd.ErrOrStderr(), len(args))
		defer bar.Finish()
		opts.OnFile = func() {
			_ = bar.Add(1)
		}
	}

	start := time.Now()
	responses := extractFiles(ctx, args, opts)
	if err := writeResponses(cmd.OutOrStdout(), responses); err != nil {
		return err
	}

	failed := 0
	for _, resp := range responses {
		if resp.Error != "" {
			failed++
		}
	}
	logger.Info("extraction complete", "files", len(args), "failed", failed, "workers", opts.Workers, "elapsed", time.Since(start).Round(time.Millisecond))

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// extractFiles processes files on opts.Workers independent workers and
// returns one response per file, in input order. File i goes to worker
// i mod Workers; each worker handles its shard sequentially.
func extractFiles(ctx context.Context, files []string, opts extractOptions) []fileResponse {
	responses := make([]fileResponse, len(files))

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	var wg sync.WaitGroup
	for shard := 0; shard < workers; shard++ {
		wg.Add(1)
		go func(shard int) {
			defer wg.Done()

			w := opts.NewWorker()
			defer func() {
				if err := w.Close(ctx); err != nil && opts.Logger != nil {
					opts.Logger.Warn("failed to close worker", "shard", shard, "err", err)
				}
			}()

			for i := shard; i < len(files); i += workers {
				responses[i], _ = processOne(ctx, w, worker.Request{
					FilePath:     files[i],
					ResolverPath: opts.ResolverPath,
				})
				if opts.OnFile != nil {
					opts.OnFile()
				}
			}
		}(shard)
	}
	wg.Wait()

	return responses
}

// processOne runs a single request and folds any error into the response.
// The error is returned as well for callers that stop on fatal ones.
func processOne(ctx context.Context, w *worker.Worker, req worker.Request) (fileResponse, error) {
	resp := fileResponse{FilePath: req.FilePath}
	if err := ctx.Err(); err != nil {
		resp.Error = err.Error()
		return resp, err
	}

	result, err := w.Process(ctx, req)
	if err != nil {
		resp.Error = err.Error()
		resp.Fatal = isFatal(err)
		return resp, err
	}
	resp.Result = result
	return resp, nil
}

// writeResponses prints responses as JSON lines.
func writeResponses(out io.Writer, responses []fileResponse) error {
	enc := json.NewEncoder(out)
	for _, resp := range responses {
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write result for %s: %w", resp.FilePath, err)
		}
	}
	return nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Extracting files"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
