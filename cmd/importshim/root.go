package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/praetorian-inc/importshim/pkg/config"
	"github.com/praetorian-inc/importshim/pkg/pipeline"
)

var (
	configPath string
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "importshim",
	Short: "importshim - rewrite dynamic import() calls in bundled chunks",
	Long: `importshim rewrites every literal import( in generated bundle code to
window.import( and emits a high-resolution source map for the change,
composed with the bundler's own map when one is present.

It runs over a build output directory, or as a long-lived hook server
that a bundler's renderChunk step talks to over stdin/stdout.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupLogger,
	PersistentPostRunE: syncLogger,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	rootCmd.AddCommand(rewriteCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from the verbosity flags.
func newLogger(verbose, quiet bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	if quiet {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

func setupLogger(cmd *cobra.Command, args []string) error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet are mutually exclusive")
	}
	logger, err := newLogger(verbose, quiet)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	pipeline.SetLogger(logger)
	return nil
}

func syncLogger(cmd *cobra.Command, args []string) error {
	// Sync fails on terminals; nothing useful can be done about it.
	_ = pipeline.Logger().Sync()
	return nil
}

// loadConfig reads the config file named by --config, or the default file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// commandContext returns the command's context, which is nil when a
// command is invoked directly rather than through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
