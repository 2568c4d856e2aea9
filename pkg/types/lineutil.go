package types

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// ComputeLineColumn computes line and column numbers from a byte offset in content.
// Lines and columns are 1-indexed (first line is 1, first column is 1).
func ComputeLineColumn(content []byte, byteOffset int) (line, column int) {
	line = 1
	column = 1
	for i := 0; i < byteOffset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}

// Point is a zero-based position as source maps count it:
// Column is measured in UTF-16 code units.
type Point struct {
	Line   int
	Column int
}

// LineIndex answers offset -> Point queries over a fixed buffer.
type LineIndex struct {
	content string
	starts  []int // byte offset of each line start
}

// NewLineIndex indexes the line starts of content.
func NewLineIndex(content string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{content: content, starts: starts}
}

// Lines returns the number of lines (an empty buffer has one).
func (x *LineIndex) Lines() int {
	return len(x.starts)
}

// LineStart returns the byte offset where line (0-based) begins.
func (x *LineIndex) LineStart(line int) int {
	return x.starts[line]
}

// Point converts a byte offset into a zero-based line and UTF-16 column.
// Offsets past the end clamp to the end of the buffer.
func (x *LineIndex) Point(offset int) Point {
	if offset > len(x.content) {
		offset = len(x.content)
	}
	if offset < 0 {
		offset = 0
	}
	// largest line start <= offset
	line := sort.Search(len(x.starts), func(i int) bool { return x.starts[i] > offset }) - 1
	return Point{Line: line, Column: UTF16Len(x.content[x.starts[line]:offset])}
}

// UTF16Len returns the length of s in UTF-16 code units.
// Invalid UTF-8 bytes count as one unit each.
func UTF16Len(s string) int {
	n := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			n++
		} else {
			n += utf16.RuneLen(r)
		}
		i += size
	}
	return n
}
