// Package importshim rewrites dynamic import() calls in bundled JavaScript
// so they go through a page-level polyfill: every literal import( becomes
// window.import(, and a high-resolution source map describes the change.
//
// # Basic Usage
//
// Rewrite a single chunk with no state:
//
//	res := importshim.Transform(`x(); import("./a"); y();`)
//	if res.Changed() {
//	    fmt.Println(res.Code) // x(); window.import("./a"); y();
//	    fmt.Println(res.Map)  // {"version":3,...}
//	}
//
// # Build Integration
//
// A Shim carries the build mode and an optional result store, and composes
// the rewrite's map with the bundler's map:
//
//	shim, err := importshim.New(importshim.WithMode(importshim.Development))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer shim.Close()
//
//	out, err := shim.Transform(ctx, "entry.js", code, bundlerMap)
//	var defect *importshim.DefectError
//	if errors.As(err, &defect) {
//	    log.Fatalf("rewrite defect: %v", defect)
//	}
package importshim

import (
	"context"
	"fmt"
	"os"

	"github.com/praetorian-inc/importshim/pkg/config"
	"github.com/praetorian-inc/importshim/pkg/pipeline"
	"github.com/praetorian-inc/importshim/pkg/rewriter"
	"github.com/praetorian-inc/importshim/pkg/rule"
	"github.com/praetorian-inc/importshim/pkg/sourcemap"
	"github.com/praetorian-inc/importshim/pkg/store"
	"github.com/praetorian-inc/importshim/pkg/types"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/importshim" without subpackages.
type (
	// Result is the outcome of a stateless transform.
	Result = rewriter.Result

	// Chunk is one generated code artifact to transform.
	Chunk = pipeline.Chunk

	// ChunkResult is the outcome of transforming a chunk through a Shim.
	ChunkResult = pipeline.ChunkResult

	// BatchResult summarizes a batch of chunks.
	BatchResult = pipeline.BatchResult

	// DefectError reports an internal invariant violation; it is fatal.
	DefectError = pipeline.DefectError

	// Mode is the build mode.
	Mode = config.Mode

	// Rule describes a literal rewrite.
	Rule = types.Rule

	// Rewrite is one applied replacement.
	Rewrite = types.Rewrite

	// SourceMap is a revision 3 source map.
	SourceMap = sourcemap.Map
)

// Re-export result kinds and build modes.
const (
	Unchanged = rewriter.Unchanged
	Rewritten = rewriter.Rewritten

	Production  = config.Production
	Development = config.Development
)

// Shim transforms chunks for one build.
type Shim struct {
	pipeline *pipeline.Pipeline
}

// shimConfig holds shim configuration.
type shimConfig struct {
	mode           config.Mode
	storePath      string
	incremental    bool
	workers        int
	sourcesContent *bool
	rule           *types.Rule
}

// Option configures a Shim.
type Option func(*shimConfig)

// WithMode sets the build mode. Default is production.
func WithMode(m Mode) Option {
	return func(c *shimConfig) {
		c.mode = m
	}
}

// WithStore records results in a SQLite store at path instead of memory.
func WithStore(path string) Option {
	return func(c *shimConfig) {
		c.storePath = path
	}
}

// WithIncremental reuses stored results for chunks seen before.
func WithIncremental() Option {
	return func(c *shimConfig) {
		c.incremental = true
	}
}

// WithWorkers bounds TransformBatch concurrency.
func WithWorkers(n int) Option {
	return func(c *shimConfig) {
		c.workers = n
	}
}

// WithSourcesContent overrides whether maps embed the input text. The
// default follows the mode: on in development, off in production.
func WithSourcesContent(include bool) Option {
	return func(c *shimConfig) {
		c.sourcesContent = &include
	}
}

// WithRule replaces the builtin dynamic-import rule.
func WithRule(r *Rule) Option {
	return func(c *shimConfig) {
		c.rule = r
	}
}

// New creates a Shim. Without options it runs in production mode with an
// in-memory store.
func New(opts ...Option) (*Shim, error) {
	cfg := &shimConfig{
		mode:      config.Production,
		storePath: store.MemoryPath,
		workers:   1,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s, err := store.New(store.Config{Path: cfg.storePath})
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	p, err := pipeline.New(pipeline.Config{
		Mode:           cfg.mode,
		Incremental:    cfg.incremental,
		Workers:        cfg.workers,
		SourcesContent: cfg.sourcesContent,
		Rule:           cfg.rule,
	}, s)
	if err != nil {
		s.Close()
		return nil, err
	}
	return &Shim{pipeline: p}, nil
}

// Transform rewrites one chunk. upstream is the bundler's map for code,
// or nil.
func (s *Shim) Transform(ctx context.Context, fileName, code string, upstream []byte) (*ChunkResult, error) {
	return s.pipeline.Process(ctx, Chunk{
		Path:       fileName,
		Content:    []byte(code),
		Map:        upstream,
		Provenance: types.HookProvenance{FileName: fileName},
	})
}

// TransformFile rewrites the chunk at path, using path+".map" as its
// upstream map when present. Nothing is written back.
func (s *Shim) TransformFile(ctx context.Context, path string) (*ChunkResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chunk: %w", err)
	}
	upstream, err := os.ReadFile(path + config.DefaultMapSuffix)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading source map: %w", err)
	}
	return s.pipeline.Process(ctx, Chunk{Path: path, Content: content, Map: upstream})
}

// TransformBatch rewrites chunks concurrently. Results keep input order.
func (s *Shim) TransformBatch(ctx context.Context, chunks []Chunk) (*BatchResult, error) {
	return s.pipeline.ProcessBatch(ctx, chunks)
}

// Mode returns the build mode.
func (s *Shim) Mode() Mode {
	return s.pipeline.Mode()
}

// Close releases the shim's store.
func (s *Shim) Close() error {
	return s.pipeline.Close()
}

// Transform rewrites code with the builtin rule. It is pure and safe for
// concurrent use.
func Transform(code string) Result {
	return rewriter.Transform(code)
}

// BuiltinRule returns the dynamic-import rule.
func BuiltinRule() *Rule {
	return rule.Builtin()
}
