package sourcemap

import (
	"fmt"
	"sort"
)

// Compose rewrites delta, whose sources are the generated output of the
// upstream map, so that it points at upstream's original sources.
// Each delta segment resolves through the closest upstream segment at or
// before it on the same line; segments the upstream map does not cover are
// dropped.
func Compose(delta *Map, upstream []byte) (*Map, error) {
	up, err := Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream map: %w", err)
	}
	upLines, err := up.Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding upstream mappings: %w", err)
	}
	lines, err := delta.Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding delta mappings: %w", err)
	}

	out := &Map{
		Version:    Version,
		File:       delta.File,
		SourceRoot: up.SourceRoot,
		Sources:    up.Sources,
		Names:      []string{},
	}
	if len(up.SourcesContent) > 0 {
		out.SourcesContent = up.SourcesContent
	}

	names := make(map[string]int)
	nameIndex := func(name string) int {
		if i, ok := names[name]; ok {
			return i
		}
		names[name] = len(out.Names)
		out.Names = append(out.Names, name)
		return len(out.Names) - 1
	}

	var b Builder
	for genLine, segs := range lines {
		for _, seg := range segs {
			target, ok := lookup(upLines, seg.SourceLine, seg.SourceColumn)
			if !ok || target.SourceIndex < 0 || target.SourceIndex >= len(up.Sources) {
				continue
			}
			composed := Segment{
				GeneratedColumn: seg.GeneratedColumn,
				SourceIndex:     target.SourceIndex,
				SourceLine:      target.SourceLine,
				SourceColumn:    target.SourceColumn,
				NameIndex:       NoName,
			}
			switch {
			case target.NameIndex >= 0 && target.NameIndex < len(up.Names):
				composed.NameIndex = nameIndex(up.Names[target.NameIndex])
			case seg.NameIndex >= 0 && seg.NameIndex < len(delta.Names):
				composed.NameIndex = nameIndex(delta.Names[seg.NameIndex])
			}
			b.Add(genLine, composed)
		}
	}
	out.Mappings = b.Encode()
	return out, nil
}

// lookup returns the segment of line covering column.
func lookup(lines [][]Segment, line, column int) (Segment, bool) {
	if line < 0 || line >= len(lines) {
		return Segment{}, false
	}
	segs := lines[line]
	i := sort.Search(len(segs), func(i int) bool { return segs[i].GeneratedColumn > column }) - 1
	if i < 0 {
		return Segment{}, false
	}
	return segs[i], true
}
