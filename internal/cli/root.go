package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/project-haste/internal/config"
)

var (
	rootDir      string
	resolverFlag string
	logLevelFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "haste-worker",
	Short: "Extract module identities and dependencies for the haste map",
	Long: `haste-worker reads source files and reports, for each one, the module
identity it declares and the module specifiers it depends on.

Identities come from a @providesModule or @provides docblock pragma, or
from a custom identity resolver (.wasm, .toml or .so) named with
--resolver. A package.json is identified by its "name" field.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	// Global flags
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "project root holding .haste/config.yml (default is the working directory)")
	rootCmd.PersistentFlags().StringVarP(&resolverFlag, "resolver", "r", "", "custom identity resolver (.wasm, .toml or .so)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn or error")
}

// loadSettings loads the project configuration and applies flag overrides.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	dir := rootDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	cfg, err := config.LoadConfigFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("resolver") {
		cfg.Resolver.Path = resolverFlag
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = strings.ToLower(logLevelFlag)
	}
	if flags.Changed("workers") {
		cfg.Extract.Workers = workersFlag
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger. Stdout is reserved for results.
func newLogger(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          "haste-worker",
		Level:           lvl,
		ReportTimestamp: true,
	})
}
