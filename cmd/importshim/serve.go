package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/importshim/pkg/config"
	"github.com/praetorian-inc/importshim/pkg/pipeline"
	"github.com/praetorian-inc/importshim/pkg/rule"
	"github.com/praetorian-inc/importshim/pkg/serve"
	"github.com/praetorian-inc/importshim/pkg/store"
)

var serveMode string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming hook server for bundler integration",
	Long: `Run importshim as a long-lived hook server that accepts render_chunk
and render_batch requests on stdin and writes responses to stdout using
NDJSON format.

This mode is designed for a bundler plugin's renderChunk step. The
process loads the rewrite rule once at startup and handles requests
until stdin closes, a close request arrives, or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveMode, "mode", "", "Build mode: production, development (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveMode != "" {
		mode, err := config.ParseMode(serveMode)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}

	s, err := store.New(store.Config{Path: cfg.StorePath})
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}

	p, err := pipeline.New(pipeline.Config{
		Mode:           cfg.Mode,
		Incremental:    cfg.Incremental,
		Workers:        cfg.Workers,
		SourcesContent: cfg.SourcesContent,
	}, s)
	if err != nil {
		s.Close()
		return fmt.Errorf("creating pipeline: %w", err)
	}
	defer p.Close()

	// Set up signal handling
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := serve.NewServer(p, rule.DynamicImportID, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(ctx)
}
