package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/importshim/pkg/config"
	"github.com/praetorian-inc/importshim/pkg/overlay"
	"github.com/praetorian-inc/importshim/pkg/rewriter"
	"github.com/praetorian-inc/importshim/pkg/sourcemap"
	"github.com/praetorian-inc/importshim/pkg/store"
	"github.com/praetorian-inc/importshim/pkg/types"
)

func newPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg, store.NewMemory())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestNew(t *testing.T) {
	p := newPipeline(t, Config{})
	assert.Equal(t, config.Production, p.Mode())
	assert.NotNil(t, p.Store())
}

func TestNew_InvalidMode(t *testing.T) {
	_, err := New(Config{Mode: "staging"}, nil)
	assert.ErrorIs(t, err, config.ErrInvalidMode)
}

func TestNew_InvalidRule(t *testing.T) {
	_, err := New(Config{Rule: &types.Rule{ID: "broken"}}, nil)
	assert.Error(t, err)
}

func TestProcess_Rewritten(t *testing.T) {
	p := newPipeline(t, Config{})

	res, err := p.Process(context.Background(), Chunk{
		Path:    "dist/app.js",
		Content: []byte(`x(); import("./a"); y();`),
	})
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.False(t, res.Cached)
	assert.Equal(t, "dist/app.js", res.Path)
	assert.Equal(t, `x(); window.import("./a"); y();`, res.Code)
	require.Len(t, res.Rewrites, 1)
	assert.Equal(t, types.Span{Start: 5, End: 12}, res.Rewrites[0].Location.Offset)

	m, err := sourcemap.Parse(res.Map)
	require.NoError(t, err)
	assert.Equal(t, "dist/app.js", m.File)
	assert.Nil(t, m.SourcesContent, "production mode omits sourcesContent")

	exists, err := p.Store().ChunkExists(res.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	stored, err := p.Store().GetRewrites(res.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestProcess_Unchanged(t *testing.T) {
	p := newPipeline(t, Config{})

	res, err := p.Process(context.Background(), Chunk{Path: "a.js", Content: []byte("no dynamic calls here")})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Code)
	assert.Nil(t, res.Map)
	assert.Empty(t, res.Rewrites)

	exists, err := p.Store().ChunkExists(res.ID)
	require.NoError(t, err)
	assert.True(t, exists, "unchanged chunks are still recorded")
}

func TestProcess_ModeControlsSourcesContent(t *testing.T) {
	chunk := Chunk{Path: "a.js", Content: []byte("import('a')")}

	dev := newPipeline(t, Config{Mode: config.Development})
	res, err := dev.Process(context.Background(), chunk)
	require.NoError(t, err)
	m, err := sourcemap.Parse(res.Map)
	require.NoError(t, err)
	require.Len(t, m.SourcesContent, 1)
	assert.Equal(t, "import('a')", *m.SourcesContent[0])

	off := false
	devNoContent := newPipeline(t, Config{Mode: config.Development, SourcesContent: &off})
	res, err = devNoContent.Process(context.Background(), chunk)
	require.NoError(t, err)
	m, err = sourcemap.Parse(res.Map)
	require.NoError(t, err)
	assert.Nil(t, m.SourcesContent)
}

func TestProcess_UpstreamMap(t *testing.T) {
	p := newPipeline(t, Config{})

	res, err := p.Process(context.Background(), Chunk{
		Path:    "dist/app.js",
		Content: []byte("import('a')"),
		Map:     []byte(`{"version":3,"sources":["src/app.ts"],"names":[],"mappings":"AAAA"}`),
	})
	require.NoError(t, err)
	m, err := sourcemap.Parse(res.Map)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.ts"}, m.Sources)
}

func TestProcess_InvalidUpstreamMap(t *testing.T) {
	p := newPipeline(t, Config{})

	_, err := p.Process(context.Background(), Chunk{
		Path:    "dist/app.js",
		Content: []byte("import('a')"),
		Map:     []byte(`{`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dist/app.js")
}

func TestProcess_Incremental(t *testing.T) {
	p := newPipeline(t, Config{Incremental: true})
	chunk := Chunk{Path: "a.js", Content: []byte("import('a'); import('b');")}

	first, err := p.Process(context.Background(), chunk)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	calls := 0
	WithTransform(func(code string, upstream []byte, opts ...rewriter.Option) (rewriter.Result, error) {
		calls++
		return rewriter.Result{}, nil
	})(p)

	second, err := p.Process(context.Background(), chunk)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 0, calls)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Map, second.Map)
	assert.Len(t, second.Rewrites, 2)

	// a different name changes the map, so it is not served from cache
	_, err = p.Process(context.Background(), Chunk{Path: "b.js", Content: chunk.Content})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestProcess_IncrementalUnchanged(t *testing.T) {
	p := newPipeline(t, Config{Incremental: true})
	chunk := Chunk{Path: "a.js", Content: []byte("plain")}

	_, err := p.Process(context.Background(), chunk)
	require.NoError(t, err)
	res, err := p.Process(context.Background(), chunk)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.False(t, res.Changed)
}

func TestProcess_IncrementalSkipsOwnOutput(t *testing.T) {
	p := newPipeline(t, Config{Incremental: true})

	first, err := p.Process(context.Background(), Chunk{Path: "a.js", Content: []byte("import('a')")})
	require.NoError(t, err)
	require.True(t, first.Changed)

	// the output as written to disk, with its map comment
	written := sourcemap.SetComment(first.Code, "a.js.map")
	second, err := p.Process(context.Background(), Chunk{Path: "a.js", Content: []byte(written), Map: first.Map})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.True(t, second.Cached)
	assert.Empty(t, second.Code)
	assert.Empty(t, second.Rewrites)
}

func TestProcess_OwnOutputRewrittenWithoutIncremental(t *testing.T) {
	p := newPipeline(t, Config{})

	first, err := p.Process(context.Background(), Chunk{Path: "a.js", Content: []byte("import('a')")})
	require.NoError(t, err)
	second, err := p.Process(context.Background(), Chunk{Path: "a.js", Content: []byte(first.Code)})
	require.NoError(t, err)
	assert.True(t, second.Changed)
	assert.Equal(t, "window.window.import('a')", second.Code)
}

func TestProcess_IncrementalRewritesOfOtherRules(t *testing.T) {
	s := store.NewMemory()
	p, err := New(Config{Incremental: true}, s)
	require.NoError(t, err)
	chunk := Chunk{Path: "a.js", Content: []byte("import('a')")}

	first, err := p.Process(context.Background(), chunk)
	require.NoError(t, err)
	require.Len(t, first.Rewrites, 1)

	require.NoError(t, s.AddRewrite(&types.Rewrite{
		ChunkID:     first.ID,
		RuleID:      "other.rule",
		Location:    types.Location{Offset: types.Span{Start: 0, End: 6}},
		Original:    "import",
		Replacement: "load",
	}))

	second, err := p.Process(context.Background(), chunk)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	require.Len(t, second.Rewrites, 1)
	assert.Equal(t, p.rewriter.Rule().ID, second.Rewrites[0].RuleID)
}

func TestProcess_NotIncremental(t *testing.T) {
	p := newPipeline(t, Config{})
	chunk := Chunk{Path: "a.js", Content: []byte("import('a')")}

	_, err := p.Process(context.Background(), chunk)
	require.NoError(t, err)
	res, err := p.Process(context.Background(), chunk)
	require.NoError(t, err)
	assert.False(t, res.Cached)
}

func TestProcess_DefectError(t *testing.T) {
	p := newPipeline(t, Config{})
	WithTransform(func(code string, upstream []byte, opts ...rewriter.Option) (rewriter.Result, error) {
		text := overlay.New(code)
		text.Overwrite(0, 3, "x")
		text.Overwrite(1, 2, "y")
		return rewriter.Result{}, nil
	})(p)

	_, err := p.Process(context.Background(), Chunk{Path: "bad.js", Content: []byte("import('a')")})
	require.Error(t, err)

	var defect *DefectError
	require.True(t, errors.As(err, &defect))
	assert.Equal(t, "bad.js", defect.Path)
	assert.Contains(t, defect.Error(), "bad.js")

	var inv *overlay.InvariantError
	assert.True(t, errors.As(err, &inv))
}

func TestProcess_OtherPanicsPropagate(t *testing.T) {
	p := newPipeline(t, Config{})
	WithTransform(func(code string, upstream []byte, opts ...rewriter.Option) (rewriter.Result, error) {
		panic("boom")
	})(p)
	assert.PanicsWithValue(t, "boom", func() {
		_, _ = p.Process(context.Background(), Chunk{Path: "a.js", Content: []byte("x")})
	})
}

func TestProcess_CanceledContext(t *testing.T) {
	p := newPipeline(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, Chunk{Path: "a.js", Content: []byte("import('a')")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_CustomRule(t *testing.T) {
	p := newPipeline(t, Config{Rule: &types.Rule{
		ID:          "test.require",
		Name:        "require shim",
		Pattern:     "require(",
		Replacement: "__require(",
	}})

	res, err := p.Process(context.Background(), Chunk{Path: "a.js", Content: []byte("require('x'); import('y')")})
	require.NoError(t, err)
	assert.Equal(t, "__require('x'); import('y')", res.Code)
}

func TestProcess_KeywordPrefilter(t *testing.T) {
	p := newPipeline(t, Config{Rule: &types.Rule{
		ID:          "test.gated",
		Name:        "gated import",
		Pattern:     "import(",
		Replacement: "window.import(",
		Keywords:    []string{"/* dyn */"},
	}})

	res, err := p.Process(context.Background(), Chunk{Path: "a.js", Content: []byte("import('a')")})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	exists, err := p.Store().ChunkExists(res.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	res, err = p.Process(context.Background(), Chunk{Path: "b.js", Content: []byte("/* dyn */ import('a')")})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "/* dyn */ window.import('a')", res.Code)
}

func TestProcess_CustomTransformSeesEveryChunk(t *testing.T) {
	p := newPipeline(t, Config{})
	var seen []string
	WithTransform(func(code string, upstream []byte, opts ...rewriter.Option) (rewriter.Result, error) {
		seen = append(seen, code)
		return rewriter.Result{Kind: rewriter.Unchanged}, nil
	})(p)

	_, err := p.Process(context.Background(), Chunk{Path: "a.js", Content: []byte("plain")})
	require.NoError(t, err)
	assert.Equal(t, []string{"plain"}, seen)
}

func TestProcessBatch(t *testing.T) {
	p := newPipeline(t, Config{Workers: 4})

	var chunks []Chunk
	for i := 0; i < 20; i++ {
		content := fmt.Sprintf("const n = %d;", i)
		if i%2 == 0 {
			content = fmt.Sprintf("import('./chunk-%d.js');", i)
		}
		chunks = append(chunks, Chunk{Path: fmt.Sprintf("chunk-%d.js", i), Content: []byte(content)})
	}

	batch, err := p.ProcessBatch(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, batch.Results, 20)
	for i, r := range batch.Results {
		assert.Equal(t, chunks[i].Path, r.Path, "results keep input order")
		assert.Equal(t, i%2 == 0, r.Changed)
	}
	assert.Equal(t, 10, batch.Rewritten)
	assert.Equal(t, 10, batch.Unchanged)
	assert.Equal(t, 10, batch.Rewrites)
	assert.Equal(t, 0, batch.Cached)
}

func TestProcessBatch_DefectAbortsBatch(t *testing.T) {
	p := newPipeline(t, Config{Workers: 2})
	WithTransform(func(code string, upstream []byte, opts ...rewriter.Option) (rewriter.Result, error) {
		if code == "bad" {
			overlay.New(code).Overwrite(5, 9, "x")
		}
		return rewriter.Result{Kind: rewriter.Unchanged}, nil
	})(p)

	_, err := p.ProcessBatch(context.Background(), []Chunk{
		{Path: "ok.js", Content: []byte("ok")},
		{Path: "bad.js", Content: []byte("bad")},
	})
	var defect *DefectError
	require.True(t, errors.As(err, &defect))
	assert.Equal(t, "bad.js", defect.Path)
}

func TestProcessBatch_Empty(t *testing.T) {
	p := newPipeline(t, Config{})
	batch, err := p.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Results)
}

func TestChunk_Provenance(t *testing.T) {
	assert.Equal(t, types.FileProvenance{FilePath: "a.js"}, Chunk{Path: "a.js"}.provenance())
	hook := types.HookProvenance{FileName: "entry.js"}
	assert.Equal(t, hook, Chunk{Path: "a.js", Provenance: hook}.provenance())
}

func TestWithTransform(t *testing.T) {
	called := false
	p, err := New(Config{}, nil, WithTransform(func(code string, upstream []byte, opts ...rewriter.Option) (rewriter.Result, error) {
		called = true
		return rewriter.Result{Kind: rewriter.Unchanged}, nil
	}))
	require.NoError(t, err)
	defer p.Close()

	res, err := p.Process(context.Background(), Chunk{Path: "a.js", Content: []byte("import('a')")})
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, res.Changed)
}
