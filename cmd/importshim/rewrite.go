package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/importshim/pkg/config"
	"github.com/praetorian-inc/importshim/pkg/enum"
	"github.com/praetorian-inc/importshim/pkg/pipeline"
	"github.com/praetorian-inc/importshim/pkg/sourcemap"
	"github.com/praetorian-inc/importshim/pkg/store"
)

var (
	rewriteOutDir        string
	rewriteFormat        string
	rewriteMode          string
	rewriteStore         string
	rewriteIncremental   bool
	rewriteInlineMap     bool
	rewriteIncludeHidden bool
	rewriteWorkers       int
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <target>",
	Short: "Rewrite dynamic import() calls in built chunks",
	Long: `Rewrite every import( in the chunk files under target (a build output
directory or a single file) to window.import(, writing a source map for
each rewritten chunk. Chunks are rewritten in place unless --out-dir is
given. A sibling <chunk>.map is treated as the bundler's map and composed
with the rewrite's map.`,
	Args: cobra.ExactArgs(1),
	RunE: runRewrite,
}

func init() {
	rewriteCmd.Flags().StringVar(&rewriteOutDir, "out-dir", "", "Write chunks under this directory instead of in place")
	rewriteCmd.Flags().StringVar(&rewriteFormat, "format", "human", "Output format: human, json")
	rewriteCmd.Flags().StringVar(&rewriteMode, "mode", "", "Build mode: production, development (overrides config)")
	rewriteCmd.Flags().StringVar(&rewriteStore, "store", "", "Result store path (overrides config)")
	rewriteCmd.Flags().BoolVar(&rewriteIncremental, "incremental", false, "Reuse stored results for unchanged chunks")
	rewriteCmd.Flags().BoolVar(&rewriteInlineMap, "inline-map", false, "Embed maps as data URLs instead of writing .map files")
	rewriteCmd.Flags().BoolVar(&rewriteIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	rewriteCmd.Flags().IntVar(&rewriteWorkers, "workers", 0, "Concurrent chunk workers (0 = config value)")
}

// applyRewriteFlags overlays command-line flags on the loaded config.
func applyRewriteFlags(cfg *config.Config) error {
	if rewriteMode != "" {
		mode, err := config.ParseMode(rewriteMode)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}
	if rewriteStore != "" {
		cfg.StorePath = rewriteStore
	}
	if rewriteOutDir != "" {
		cfg.OutDir = rewriteOutDir
	}
	if rewriteIncremental {
		cfg.Incremental = true
	}
	if rewriteInlineMap {
		cfg.InlineMap = true
	}
	if rewriteIncludeHidden {
		cfg.IncludeHidden = true
	}
	if rewriteWorkers > 0 {
		cfg.Workers = rewriteWorkers
	}
	return cfg.Validate()
}

func runRewrite(cmd *cobra.Command, args []string) error {
	target := args[0]

	// Validate target exists
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("target does not exist: %s", target)
	}

	switch rewriteFormat {
	case "human", "json":
	default:
		return fmt.Errorf("unknown output format: %s", rewriteFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRewriteFlags(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
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

	enumerator := enum.NewFilesystemEnumerator(enum.Config{
		Root:           target,
		Extensions:     cfg.Extensions,
		MapSuffix:      cfg.MapSuffix,
		IncludeHidden:  cfg.IncludeHidden,
		MaxFileSize:    cfg.MaxFileSize,
		FollowSymlinks: false,
		Readers:        cfg.Workers,
	})

	ctx := commandContext(cmd)

	var mu sync.Mutex
	var files []*enum.ChunkFile
	err = enumerator.Enumerate(ctx, func(f *enum.ChunkFile) error {
		mu.Lock()
		defer mu.Unlock()
		files = append(files, f)
		return nil
	})
	if err != nil {
		return fmt.Errorf("enumerating chunks: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	chunks := make([]pipeline.Chunk, len(files))
	for i, f := range files {
		chunks[i] = pipeline.Chunk{
			Path:       chunkName(target, info.IsDir(), f.Path),
			Content:    f.Content,
			Map:        f.Map,
			Provenance: f.Provenance(),
		}
	}

	batch, err := p.ProcessBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("rewriting: %w", err)
	}

	for i, r := range batch.Results {
		dest := files[i].Path
		if cfg.OutDir != "" {
			dest = filepath.Join(cfg.OutDir, r.Path)
		}
		if err := writeChunk(files[i], r, dest, cfg); err != nil {
			return err
		}
	}

	// Summary goes to stderr for json so stdout stays pure JSON
	summary := cmd.OutOrStdout()
	if rewriteFormat == "json" {
		summary = cmd.ErrOrStderr()
	}
	fmt.Fprintf(summary, "Rewrite complete: %d chunks, %d rewritten, %d unchanged, %d rewrites",
		len(batch.Results), batch.Rewritten, batch.Unchanged, batch.Rewrites)
	if cfg.Incremental {
		fmt.Fprintf(summary, " (%d cached)", batch.Cached)
	}
	fmt.Fprintln(summary)
	if cfg.StorePath != store.MemoryPath {
		fmt.Fprintf(summary, "Results stored in: %s\n", cfg.StorePath)
	}

	if rewriteFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(batch)
	}
	return outputRewritten(cmd, batch)
}

// chunkName is the name a chunk carries in maps and output paths: its
// path relative to the target directory, or its base name when the
// target is a single file.
func chunkName(target string, isDir bool, path string) string {
	if !isDir {
		return filepath.Base(path)
	}
	rel, err := filepath.Rel(target, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// writeChunk writes a chunk's output to dest. Unchanged chunks are left
// alone in place, or copied with their map when writing elsewhere.
func writeChunk(f *enum.ChunkFile, r *pipeline.ChunkResult, dest string, cfg *config.Config) error {
	if !r.Changed {
		if dest == f.Path {
			return nil
		}
		if err := writeFile(dest, f.Content); err != nil {
			return err
		}
		if f.Map != nil {
			return writeFile(dest+cfg.MapSuffix, f.Map)
		}
		return nil
	}

	code := r.Code
	if cfg.InlineMap {
		m, err := sourcemap.Parse(r.Map)
		if err != nil {
			return fmt.Errorf("encoding inline map for %s: %w", r.Path, err)
		}
		code = sourcemap.SetComment(code, m.ToURL())
	} else {
		mapPath := dest + cfg.MapSuffix
		if err := writeFile(mapPath, r.Map); err != nil {
			return err
		}
		code = sourcemap.SetComment(code, filepath.Base(mapPath))
	}
	return writeFile(dest, []byte(code))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func outputRewritten(cmd *cobra.Command, batch *pipeline.BatchResult) error {
	out := cmd.OutOrStdout()
	if batch.Rewritten == 0 {
		fmt.Fprintf(out, "\nNo chunks rewritten.\n")
		return nil
	}

	fmt.Fprintf(out, "\nRewritten chunks:\n")
	n := 0
	for _, r := range batch.Results {
		if !r.Changed {
			continue
		}
		n++
		fmt.Fprintf(out, "%d. %s (%d rewrites)\n", n, r.Path, len(r.Rewrites))
	}
	return nil
}
