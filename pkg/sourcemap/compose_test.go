package sourcemap

import (
	"testing"

	gosourcemap "github.com/go-sourcemap/sourcemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstreamMap maps a two-line bundle back to src/app.ts, shifted by two
// lines and four columns.
const upstreamMap = `{
	"version": 3,
	"sourceRoot": "",
	"sources": ["src/app.ts"],
	"sourcesContent": ["// header\n\n    foo();\n    bar();\n"],
	"names": ["foo"],
	"mappings": "AAEIA;AACA"
}`

func TestCompose(t *testing.T) {
	var b Builder
	b.Add(0, Segment{GeneratedColumn: 0, SourceLine: 0, SourceColumn: 0, NameIndex: NoName})
	b.Add(1, Segment{GeneratedColumn: 0, SourceLine: 1, SourceColumn: 0, NameIndex: NoName})
	b.Add(1, Segment{GeneratedColumn: 3, SourceLine: 1, SourceColumn: 0, NameIndex: NoName})
	delta := &Map{
		Version:  Version,
		File:     "bundle.js",
		Sources:  []string{"bundle.js"},
		Names:    []string{},
		Mappings: b.Encode(),
	}

	composed, err := Compose(delta, []byte(upstreamMap))
	require.NoError(t, err)

	assert.Equal(t, "bundle.js", composed.File)
	assert.Equal(t, []string{"src/app.ts"}, composed.Sources)
	require.Len(t, composed.SourcesContent, 1)
	assert.Contains(t, *composed.SourcesContent[0], "foo();")
	assert.Equal(t, []string{"foo"}, composed.Names)

	data, err := composed.JSON()
	require.NoError(t, err)
	consumer, err := gosourcemap.Parse("", data)
	require.NoError(t, err)

	source, name, line, col, ok := consumer.Source(1, 0)
	require.True(t, ok)
	assert.Equal(t, "src/app.ts", source)
	assert.Equal(t, "foo", name)
	assert.Equal(t, 3, line)
	assert.Equal(t, 4, col)

	source, _, line, col, ok = consumer.Source(2, 3)
	require.True(t, ok)
	assert.Equal(t, "src/app.ts", source)
	assert.Equal(t, 4, line)
	assert.Equal(t, 4, col)
}

func TestCompose_InvalidUpstream(t *testing.T) {
	delta := &Map{Version: Version, Sources: []string{"a.js"}, Names: []string{}, Mappings: "AAAA"}
	_, err := Compose(delta, []byte(`not json`))
	assert.Error(t, err)

	_, err = Compose(delta, []byte(`{"version":2,"sources":["x"],"names":[],"mappings":"AAAA"}`))
	assert.Error(t, err)
}

func TestCompose_InvalidDelta(t *testing.T) {
	delta := &Map{Version: Version, Sources: []string{"a.js"}, Names: []string{}, Mappings: "A$"}
	_, err := Compose(delta, []byte(upstreamMap))
	assert.Error(t, err)
}

func TestCompose_DropsUncoveredSegments(t *testing.T) {
	var b Builder
	// column 0 precedes the only upstream segment on line 0
	b.Add(0, Segment{GeneratedColumn: 0, SourceLine: 0, SourceColumn: 0, NameIndex: NoName})
	b.Add(0, Segment{GeneratedColumn: 1, SourceLine: 0, SourceColumn: 6, NameIndex: NoName})
	// line 5 does not exist upstream
	b.Add(1, Segment{GeneratedColumn: 0, SourceLine: 5, SourceColumn: 0, NameIndex: NoName})
	delta := &Map{Version: Version, Sources: []string{"mid.js"}, Names: []string{}, Mappings: b.Encode()}

	upstream := `{"version":3,"sources":["a.js"],"names":[],"mappings":"IAAA"}`
	composed, err := Compose(delta, []byte(upstream))
	require.NoError(t, err)

	lines, err := composed.Decode()
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	assert.Equal(t, []Segment{{GeneratedColumn: 1, NameIndex: NoName}}, lines[0])
	for _, l := range lines[1:] {
		assert.Empty(t, l)
	}
}

func TestLookup(t *testing.T) {
	lines := [][]Segment{
		{{GeneratedColumn: 2, SourceColumn: 10}, {GeneratedColumn: 8, SourceColumn: 20}},
	}
	_, ok := lookup(lines, 0, 1)
	assert.False(t, ok)

	seg, ok := lookup(lines, 0, 2)
	require.True(t, ok)
	assert.Equal(t, 10, seg.SourceColumn)

	seg, ok = lookup(lines, 0, 100)
	require.True(t, ok)
	assert.Equal(t, 20, seg.SourceColumn)

	_, ok = lookup(lines, 1, 0)
	assert.False(t, ok)
}
