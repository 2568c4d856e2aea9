// Package pipeline runs the rewriter over chunks: it consults and fills
// the incremental result store, composes upstream source maps, and fans
// batches out over a bounded worker pool.
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/importshim/pkg/config"
	"github.com/praetorian-inc/importshim/pkg/overlay"
	"github.com/praetorian-inc/importshim/pkg/prefilter"
	"github.com/praetorian-inc/importshim/pkg/rewriter"
	"github.com/praetorian-inc/importshim/pkg/rule"
	"github.com/praetorian-inc/importshim/pkg/sourcemap"
	"github.com/praetorian-inc/importshim/pkg/store"
	"github.com/praetorian-inc/importshim/pkg/types"
)

// Config is fixed for the life of a Pipeline.
type Config struct {
	Mode config.Mode
	// Incremental reuses stored results for chunks seen before.
	Incremental bool
	// Workers bounds ProcessBatch concurrency; values below 1 mean 1.
	Workers int
	// SourcesContent overrides the mode default (on in development).
	SourcesContent *bool
	// Rule defaults to the builtin dynamic-import rule.
	Rule *types.Rule
}

// TransformFunc rewrites one chunk's code and composes its map with the
// upstream map. rewriter.Rewriter.TransformWithUpstream is the default.
type TransformFunc func(code string, upstream []byte, opts ...rewriter.Option) (rewriter.Result, error)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTransform replaces the transform applied to each chunk. Rewrite
// records are still derived from the configured rule. A custom transform
// sees every chunk, including those without the rule's keywords.
func WithTransform(f TransformFunc) Option {
	return func(p *Pipeline) {
		p.transform = f
		p.prefilter = nil
	}
}

// Pipeline transforms chunks and records the outcome in a store.
// It is safe for concurrent use.
type Pipeline struct {
	cfg            Config
	rewriter       *rewriter.Rewriter
	transform      TransformFunc
	prefilter      *prefilter.Prefilter // nil sends every chunk to transform
	store          store.Store
	sourcesContent bool
}

// New creates a pipeline writing to s. A nil store keeps results in memory.
func New(cfg Config, s store.Store, opts ...Option) (*Pipeline, error) {
	mode, err := config.ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	rw := rewriter.Default()
	if cfg.Rule != nil {
		if err := rule.ValidateRule(cfg.Rule); err != nil {
			return nil, fmt.Errorf("invalid rule: %w", err)
		}
		r := *cfg.Rule
		if r.StructuralID == "" {
			r.StructuralID = r.ComputeStructuralID()
		}
		rw = rewriter.New(&r)
	}
	if s == nil {
		s = store.NewMemory()
	}

	sourcesContent := mode.IsDevelopment()
	if cfg.SourcesContent != nil {
		sourcesContent = *cfg.SourcesContent
	}

	Logger().Debug("pipeline created",
		zap.Stringer("mode", mode),
		zap.Bool("incremental", cfg.Incremental),
		zap.Int("workers", cfg.Workers),
		zap.Bool("sources_content", sourcesContent),
		zap.String("rule", rw.Rule().ID),
	)

	p := &Pipeline{
		cfg:            cfg,
		rewriter:       rw,
		transform:      rw.TransformWithUpstream,
		prefilter:      prefilter.New(rw.Rule()),
		store:          s,
		sourcesContent: sourcesContent,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Mode returns the build mode the pipeline was created with.
func (p *Pipeline) Mode() config.Mode {
	return p.cfg.Mode
}

// Store returns the store results are written to.
func (p *Pipeline) Store() store.Store {
	return p.store
}

// resultKey identifies a transform outcome: the same content yields the
// same output only under the same rule, name, upstream map and options.
func (p *Pipeline) resultKey(c Chunk) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s\x00%s\x00%t\x00", p.rewriter.Rule().StructuralID, c.Path, p.sourcesContent)
	h.Write(c.Map)
	return hex.EncodeToString(h.Sum(nil))
}

// outputKey is the result key under which the pipeline marks its own
// output, so that output fed back in is not rewritten again.
func (p *Pipeline) outputKey() string {
	return "output\x00" + p.rewriter.Rule().StructuralID
}

// outputID identifies code regardless of its sourceMappingURL comment,
// which is rewritten when the output is written out.
func outputID(code string) types.ChunkID {
	return types.ComputeChunkID([]byte(sourcemap.StripComment(code)))
}

// Process transforms one chunk. An invariant violation is returned as a
// *DefectError; callers must treat it as fatal.
func (p *Pipeline) Process(ctx context.Context, c Chunk) (*ChunkResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := Logger().With(zap.String("path", c.Path))
	id := types.ComputeChunkID(c.Content)
	key := p.resultKey(c)

	if p.cfg.Incremental {
		cached, err := p.store.GetResult(id, key)
		switch {
		case err == nil:
			log.Debug("using cached result", zap.Bool("changed", cached.Changed))
			return p.fromCache(id, c, cached)
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("looking up cached result for %s: %w", c.Path, err)
		}

		_, err = p.store.GetResult(outputID(string(c.Content)), p.outputKey())
		switch {
		case err == nil:
			log.Debug("chunk is previous output, leaving it unchanged")
			return &ChunkResult{Path: c.Path, ID: id, Cached: true}, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("looking up output record for %s: %w", c.Path, err)
		}
	}

	if p.prefilter != nil && len(p.prefilter.Filter(c.Content)) == 0 {
		cached := &store.CachedResult{ChunkID: id, Key: key}
		if err := p.record(id, c, nil, cached); err != nil {
			return nil, err
		}
		return &ChunkResult{Path: c.Path, ID: id}, nil
	}

	res, err := p.safeTransform(c)
	if err != nil {
		return nil, err
	}

	result := &ChunkResult{Path: c.Path, ID: id, Changed: res.Changed()}
	cached := &store.CachedResult{ChunkID: id, Key: key, Changed: res.Changed()}
	if res.Changed() {
		mapJSON, err := res.Map.JSON()
		if err != nil {
			return nil, fmt.Errorf("encoding source map for %s: %w", c.Path, err)
		}
		result.Code = res.Code
		result.Map = mapJSON
		result.Rewrites = p.rewriter.Rewrites(id, string(c.Content), res.Matches)
		cached.Code = res.Code
		cached.Map = mapJSON
	}

	if err := p.record(id, c, result.Rewrites, cached); err != nil {
		return nil, err
	}

	if res.Changed() {
		log.Debug("rewrote chunk", zap.Int("rewrites", len(res.Matches)))
	}
	return result, nil
}

// safeTransform runs the transform, converting an overlay invariant panic
// into a *DefectError. Any other panic propagates.
func (p *Pipeline) safeTransform(c Chunk) (res rewriter.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			inv, ok := r.(*overlay.InvariantError)
			if !ok {
				panic(r)
			}
			Logger().Error("overlay invariant violated", zap.String("path", c.Path), zap.Error(inv))
			err = &DefectError{Path: c.Path, Err: inv}
		}
	}()

	res, err = p.transform(string(c.Content), c.Map,
		rewriter.WithFile(c.Path),
		rewriter.WithSourcesContent(p.sourcesContent),
	)
	if err != nil {
		return rewriter.Result{}, fmt.Errorf("transforming %s: %w", c.Path, err)
	}
	return res, nil
}

func (p *Pipeline) record(id types.ChunkID, c Chunk, rewrites []*types.Rewrite, cached *store.CachedResult) error {
	if err := p.store.AddChunk(id, int64(len(c.Content)), c.provenance()); err != nil {
		return fmt.Errorf("storing chunk %s: %w", c.Path, err)
	}
	for _, r := range rewrites {
		if err := p.store.AddRewrite(r); err != nil {
			return fmt.Errorf("storing rewrite for %s: %w", c.Path, err)
		}
	}
	if err := p.store.PutResult(cached); err != nil {
		return fmt.Errorf("storing result for %s: %w", c.Path, err)
	}
	if cached.Changed {
		marker := &store.CachedResult{ChunkID: outputID(cached.Code), Key: p.outputKey()}
		if err := p.store.PutResult(marker); err != nil {
			return fmt.Errorf("storing output record for %s: %w", c.Path, err)
		}
	}
	return nil
}

func (p *Pipeline) fromCache(id types.ChunkID, c Chunk, cached *store.CachedResult) (*ChunkResult, error) {
	if err := p.store.AddChunk(id, int64(len(c.Content)), c.provenance()); err != nil {
		return nil, fmt.Errorf("storing chunk %s: %w", c.Path, err)
	}
	result := &ChunkResult{
		Path:    c.Path,
		ID:      id,
		Changed: cached.Changed,
		Cached:  true,
		Code:    cached.Code,
		Map:     cached.Map,
	}
	if cached.Changed {
		rewrites, err := p.store.GetRewrites(id)
		if err != nil {
			return nil, fmt.Errorf("loading rewrites for %s: %w", c.Path, err)
		}
		ruleID := p.rewriter.Rule().ID
		for _, r := range rewrites {
			if r.RuleID == ruleID {
				result.Rewrites = append(result.Rewrites, r)
			}
		}
	}
	return result, nil
}

// ProcessBatch transforms chunks concurrently. Results keep input order.
// The first error cancels the remaining work and is returned.
func (p *Pipeline) ProcessBatch(ctx context.Context, chunks []Chunk) (*BatchResult, error) {
	results := make([]*ChunkResult, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i := range chunks {
		g.Go(func() error {
			r, err := p.Process(ctx, chunks[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &BatchResult{Results: results}
	for _, r := range results {
		if r.Changed {
			batch.Rewritten++
		} else {
			batch.Unchanged++
		}
		if r.Cached {
			batch.Cached++
		}
		batch.Rewrites += len(r.Rewrites)
	}

	Logger().Info("batch processed",
		zap.Int("chunks", len(chunks)),
		zap.Int("rewritten", batch.Rewritten),
		zap.Int("cached", batch.Cached),
		zap.Int("rewrites", batch.Rewrites),
	)
	return batch, nil
}

// Close closes the underlying store.
func (p *Pipeline) Close() error {
	return p.store.Close()
}
