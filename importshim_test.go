package importshim

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/importshim/pkg/sourcemap"
)

func TestTransform(t *testing.T) {
	res := Transform(`x(); import("./a"); y();`)
	require.Equal(t, Rewritten, res.Kind)
	assert.Equal(t, `x(); window.import("./a"); y();`, res.Code)
	require.NotNil(t, res.Map)
	assert.Equal(t, sourcemap.Version, res.Map.Version)

	res = Transform("no dynamic calls here")
	assert.Equal(t, Unchanged, res.Kind)
	assert.Empty(t, res.Code)
	assert.Nil(t, res.Map)
}

func TestNew(t *testing.T) {
	shim, err := New()
	require.NoError(t, err)
	defer shim.Close()

	assert.Equal(t, Production, shim.Mode())
}

func TestNewWithOptions(t *testing.T) {
	shim, err := New(
		WithMode(Development),
		WithStore(filepath.Join(t.TempDir(), "shim.db")),
		WithIncremental(),
		WithWorkers(4),
		WithSourcesContent(false),
	)
	require.NoError(t, err)
	defer shim.Close()

	assert.Equal(t, Development, shim.Mode())

	out, err := shim.Transform(context.Background(), "a.js", "import('a')", nil)
	require.NoError(t, err)
	m, err := sourcemap.Parse(out.Map)
	require.NoError(t, err)
	assert.Empty(t, m.SourcesContent, "explicit override beats the mode default")

	again, err := shim.Transform(context.Background(), "a.js", "import('a')", nil)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, out.Code, again.Code)
}

func TestNewInvalidMode(t *testing.T) {
	_, err := New(WithMode("staging"))
	assert.Error(t, err)
}

func TestShimTransform(t *testing.T) {
	shim, err := New(WithMode(Development))
	require.NoError(t, err)
	defer shim.Close()

	upstream := []byte(`{"version":3,"sources":["src/entry.ts"],"names":[],"mappings":"AAAA"}`)
	out, err := shim.Transform(context.Background(), "entry.js", "import('a'); import('b');", upstream)
	require.NoError(t, err)

	assert.True(t, out.Changed)
	assert.Equal(t, "window.import('a'); window.import('b');", out.Code)
	assert.Len(t, out.Rewrites, 2)

	m, err := sourcemap.Parse(out.Map)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/entry.ts"}, m.Sources)
}

func TestShimTransformFile(t *testing.T) {
	shim, err := New()
	require.NoError(t, err)
	defer shim.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(path, []byte("import('a')"), 0644))
	require.NoError(t, os.WriteFile(path+".map", []byte(`{"version":3,"sources":["a.ts"],"names":[],"mappings":"AAAA"}`), 0644))

	out, err := shim.TransformFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "window.import('a')", out.Code)

	m, err := sourcemap.Parse(out.Map)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ts"}, m.Sources)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "import('a')", string(data), "files are not written back")

	_, err = shim.TransformFile(context.Background(), filepath.Join(dir, "missing.js"))
	assert.Error(t, err)
}

func TestShimTransformBatch(t *testing.T) {
	shim, err := New(WithWorkers(3))
	require.NoError(t, err)
	defer shim.Close()

	batch, err := shim.TransformBatch(context.Background(), []Chunk{
		{Path: "a.js", Content: []byte("import('a')")},
		{Path: "b.js", Content: []byte("const b = 1;")},
		{Path: "c.js", Content: []byte("import('c')")},
	})
	require.NoError(t, err)
	require.Len(t, batch.Results, 3)
	assert.Equal(t, 2, batch.Rewritten)
	assert.Equal(t, 1, batch.Unchanged)
	assert.Equal(t, "c.js", batch.Results[2].Path)
}

func TestWithRule(t *testing.T) {
	r := *BuiltinRule()
	r.ID = "custom.require"
	r.Name = "Custom"
	r.Pattern = "require("
	r.Replacement = "__require("
	r.Keywords = []string{"require("}
	r.Examples = []string{"require('a')"}
	r.NegativeExamples = nil
	r.StructuralID = ""

	shim, err := New(WithRule(&r))
	require.NoError(t, err)
	defer shim.Close()

	out, err := shim.Transform(context.Background(), "a.js", "require('a'); import('b');", nil)
	require.NoError(t, err)
	assert.Equal(t, "__require('a'); import('b');", out.Code)
}

func TestBuiltinRule(t *testing.T) {
	r := BuiltinRule()
	assert.Equal(t, "import(", r.Pattern)
	assert.Equal(t, "window.import(", r.Replacement)
}
