package overlay

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/praetorian-inc/importshim/pkg/sourcemap"
	"github.com/praetorian-inc/importshim/pkg/types"
)

// MapOptions controls GenerateMap.
type MapOptions struct {
	// Source is the name recorded in "sources".
	Source string
	// File is the name of the generated file.
	File string
	// IncludeContent embeds the source text as "sourcesContent".
	IncludeContent bool
	// Hires emits a segment for every character of unchanged text instead
	// of one per segment and line.
	Hires bool
}

// GenerateMap describes the rendered output in terms of the source text.
// Unchanged text maps character by character (or at segment and line
// starts without Hires); each replacement maps its start, and the start of
// each line it spans, to the start of the replaced range.
func (t *Text) GenerateMap(opts MapOptions) *sourcemap.Map {
	m := &sourcemap.Map{
		Version: sourcemap.Version,
		File:    opts.File,
		Sources: []string{opts.Source},
		Names:   []string{},
	}
	if opts.IncludeContent {
		m.SourcesContent = []*string{sourcemap.StringPtr(t.original)}
	}

	g := &mapGenerator{index: types.NewLineIndex(t.original), hires: opts.Hires}
	for _, seg := range t.Segments() {
		if seg.Kind == Replacement {
			g.replacement(seg)
		} else {
			g.unchanged(seg)
		}
	}
	m.Mappings = g.b.Encode()
	return m
}

type mapGenerator struct {
	b     sourcemap.Builder
	index *types.LineIndex
	hires bool

	line, column int // generated position, UTF-16 columns
}

func (g *mapGenerator) add(at types.Point) {
	g.b.Add(g.line, sourcemap.Segment{
		GeneratedColumn: g.column,
		SourceLine:      at.Line,
		SourceColumn:    at.Column,
		NameIndex:       sourcemap.NoName,
	})
}

func (g *mapGenerator) unchanged(seg Segment) {
	src := g.index.Point(seg.Original.Start)
	first := true
	for _, r := range seg.Text {
		if r == '\n' {
			g.line++
			g.column = 0
			src.Line++
			src.Column = 0
			first = true
			continue
		}
		if g.hires || first {
			g.add(src)
		}
		n := runeUnits(r)
		g.column += n
		src.Column += n
		first = false
	}
}

func (g *mapGenerator) replacement(seg Segment) {
	src := g.index.Point(seg.Original.Start)
	first := true
	for _, r := range seg.Text {
		if r == '\n' {
			g.line++
			g.column = 0
			first = true
			continue
		}
		if first {
			g.add(src)
			first = false
		}
		g.column += runeUnits(r)
	}
}

// runeUnits returns the UTF-16 width of r. Invalid bytes decode to
// utf8.RuneError and count as one unit, matching types.UTF16Len.
func runeUnits(r rune) int {
	if r == utf8.RuneError {
		return 1
	}
	return utf16.RuneLen(r)
}
