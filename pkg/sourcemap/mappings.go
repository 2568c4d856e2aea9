package sourcemap

import (
	"fmt"
	"strings"
)

// NoName marks a segment without an entry in the names table.
const NoName = -1

// Segment maps one generated column to an original location.
// All fields are zero-based; columns count UTF-16 code units.
type Segment struct {
	GeneratedColumn int
	SourceIndex     int
	SourceLine      int
	SourceColumn    int
	NameIndex       int
}

// Builder collects segments line by line and encodes them as a
// "mappings" string.
type Builder struct {
	lines [][]Segment
}

// Add records seg on generated line (zero-based). Segments on a line must
// be added in ascending column order.
func (b *Builder) Add(line int, seg Segment) {
	for len(b.lines) <= line {
		b.lines = append(b.lines, nil)
	}
	b.lines[line] = append(b.lines[line], seg)
}

// Lines returns the collected segments, one slice per generated line.
func (b *Builder) Lines() [][]Segment {
	return b.lines
}

// Len returns the total number of segments.
func (b *Builder) Len() int {
	n := 0
	for _, l := range b.lines {
		n += len(l)
	}
	return n
}

// Encode returns the base64 VLQ "mappings" string.
func (b *Builder) Encode() string {
	return EncodeMappings(b.lines)
}

// EncodeMappings encodes decoded lines of segments.
func EncodeMappings(lines [][]Segment) string {
	var sb strings.Builder
	prevSource, prevLine, prevColumn, prevName := 0, 0, 0, 0
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte(';')
		}
		prevGenColumn := 0
		for j, seg := range line {
			if j > 0 {
				sb.WriteByte(',')
			}
			writeVLQ(&sb, seg.GeneratedColumn-prevGenColumn)
			prevGenColumn = seg.GeneratedColumn

			writeVLQ(&sb, seg.SourceIndex-prevSource)
			prevSource = seg.SourceIndex
			writeVLQ(&sb, seg.SourceLine-prevLine)
			prevLine = seg.SourceLine
			writeVLQ(&sb, seg.SourceColumn-prevColumn)
			prevColumn = seg.SourceColumn

			if seg.NameIndex != NoName {
				writeVLQ(&sb, seg.NameIndex-prevName)
				prevName = seg.NameIndex
			}
		}
	}
	return sb.String()
}

// DecodeMappings parses a "mappings" string. Segments carrying only a
// generated column are dropped since they map to nothing.
func DecodeMappings(mappings string) ([][]Segment, error) {
	var lines [][]Segment
	var current []Segment
	prevSource, prevLine, prevColumn, prevName := 0, 0, 0, 0
	prevGenColumn := 0

	i := 0
	for i <= len(mappings) {
		if i == len(mappings) || mappings[i] == ';' {
			lines = append(lines, current)
			current = nil
			prevGenColumn = 0
			i++
			continue
		}
		if mappings[i] == ',' {
			i++
			continue
		}

		var fields [5]int
		n := 0
		for i < len(mappings) && mappings[i] != ',' && mappings[i] != ';' {
			if n == len(fields) {
				return nil, fmt.Errorf("segment with more than 5 fields at %d", i)
			}
			v, next, err := readVLQ(mappings, i)
			if err != nil {
				return nil, err
			}
			fields[n] = v
			n++
			i = next
		}

		switch n {
		case 1:
			prevGenColumn += fields[0]
			continue
		case 4, 5:
		default:
			return nil, fmt.Errorf("segment with %d fields on line %d", n, len(lines))
		}

		prevGenColumn += fields[0]
		prevSource += fields[1]
		prevLine += fields[2]
		prevColumn += fields[3]
		seg := Segment{
			GeneratedColumn: prevGenColumn,
			SourceIndex:     prevSource,
			SourceLine:      prevLine,
			SourceColumn:    prevColumn,
			NameIndex:       NoName,
		}
		if n == 5 {
			prevName += fields[4]
			seg.NameIndex = prevName
		}
		current = append(current, seg)
	}
	return lines, nil
}
