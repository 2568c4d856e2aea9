// Package overlay implements a mutable view over an immutable source text.
// Edits replace ranges addressed in original coordinates; the rendered
// output keeps a table from output offsets back to original offsets, from
// which a source map is generated.
package overlay

import (
	"sort"
	"strings"

	"github.com/praetorian-inc/importshim/pkg/types"
)

// SegmentKind distinguishes original text from replacement text.
type SegmentKind int

const (
	// Original is an unchanged slice of the source text.
	Original SegmentKind = iota
	// Replacement is text written by Overwrite.
	Replacement
)

func (k SegmentKind) String() string {
	if k == Replacement {
		return "replacement"
	}
	return "original"
}

// Segment is one piece of the rendered output.
type Segment struct {
	Kind SegmentKind
	Text string
	// Original is the range of the source text this segment stands for.
	Original types.Span
	// Output is where Text lands in the rendered output.
	Output types.Span
}

type edit struct {
	span    types.Span
	content string
}

// Text is a source string plus a set of non-overlapping edits.
// A Text is not safe for concurrent mutation.
type Text struct {
	original string
	edits    []edit // sorted by span.Start

	segments []Segment // rendered lazily, reset on Overwrite
}

// New returns an overlay with no edits.
func New(original string) *Text {
	return &Text{original: original}
}

// Original returns the source text.
func (t *Text) Original() string {
	return t.original
}

// Overwrite replaces the original range [start, end) with content.
// It panics with *InvariantError if the range is empty, lies outside the
// source, or touches a range that was already overwritten.
func (t *Text) Overwrite(start, end int, content string) *Text {
	span := types.Span{Start: start, End: end}
	if !span.Within(len(t.original)) {
		violate("overwrite", span, "range outside source of length %d", len(t.original))
	}
	if span.Empty() {
		violate("overwrite", span, "empty range")
	}

	i := sort.Search(len(t.edits), func(i int) bool { return t.edits[i].span.Start >= start })
	if i > 0 && t.edits[i-1].span.Overlaps(span) {
		violate("overwrite", span, "overlaps earlier overwrite %s", t.edits[i-1].span)
	}
	if i < len(t.edits) && t.edits[i].span.Overlaps(span) {
		violate("overwrite", span, "overlaps earlier overwrite %s", t.edits[i].span)
	}

	t.edits = append(t.edits, edit{})
	copy(t.edits[i+1:], t.edits[i:])
	t.edits[i] = edit{span: span, content: content}
	t.segments = nil
	return t
}

// Edits returns the number of overwrites applied.
func (t *Text) Edits() int {
	return len(t.edits)
}

// HasChanged reports whether any overwrite was applied.
func (t *Text) HasChanged() bool {
	return len(t.edits) > 0
}

// Segments returns the rendered output as ordered segments. Empty original
// slices between adjacent edits are omitted.
func (t *Text) Segments() []Segment {
	if t.segments != nil || t.original == "" {
		return t.segments
	}

	segs := make([]Segment, 0, 2*len(t.edits)+1)
	pos, out := 0, 0
	add := func(kind SegmentKind, text string, orig types.Span) {
		segs = append(segs, Segment{
			Kind:     kind,
			Text:     text,
			Original: orig,
			Output:   types.Span{Start: out, End: out + len(text)},
		})
		out += len(text)
	}
	for _, e := range t.edits {
		if pos < e.span.Start {
			add(Original, t.original[pos:e.span.Start], types.Span{Start: pos, End: e.span.Start})
		}
		add(Replacement, e.content, e.span)
		pos = e.span.End
	}
	if pos < len(t.original) {
		add(Original, t.original[pos:], types.Span{Start: pos, End: len(t.original)})
	}
	t.segments = segs
	return segs
}

// String renders the output.
func (t *Text) String() string {
	if !t.HasChanged() {
		return t.original
	}
	segs := t.Segments()
	var sb strings.Builder
	sb.Grow(segs[len(segs)-1].Output.End)
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// OriginalOffset maps an output offset back to the source text. Offsets
// inside replacement text have no original counterpart: the start of the
// replaced range is returned with ok false. The end of the output maps to
// the end of the source.
func (t *Text) OriginalOffset(out int) (int, bool) {
	segs := t.Segments()
	if len(segs) == 0 {
		return out, out == 0
	}
	end := segs[len(segs)-1].Output.End
	if out < 0 || out > end {
		return 0, false
	}
	if out == end {
		return len(t.original), true
	}

	i := sort.Search(len(segs), func(i int) bool { return segs[i].Output.End > out })
	s := segs[i]
	if s.Kind == Replacement {
		return s.Original.Start, false
	}
	return s.Original.Start + (out - s.Output.Start), true
}
