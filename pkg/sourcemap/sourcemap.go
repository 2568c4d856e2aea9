// Package sourcemap models revision 3 source maps: the JSON document, its
// base64 VLQ mappings, and composition of a transform's map with the map
// produced by the stage before it.
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Version is the only source map revision this package reads or writes.
const Version = 3

// Map is a source map document.
type Map struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

// indexHeader detects index maps, which carry sections instead of mappings.
type indexHeader struct {
	Sections json.RawMessage `json:"sections"`
}

// Parse decodes a source map document.
func Parse(data []byte) (*Map, error) {
	var header indexHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("parsing source map: %w", err)
	}
	if len(header.Sections) > 0 {
		return nil, fmt.Errorf("indexed source maps are not supported")
	}

	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing source map: %w", err)
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported source map version %d", m.Version)
	}
	if m.Sources == nil {
		m.Sources = []string{}
	}
	if m.Names == nil {
		m.Names = []string{}
	}
	return &m, nil
}

// JSON returns the encoded document.
func (m *Map) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// String returns the encoded document, or an empty string if it cannot be
// encoded (it always can: every field is a plain value).
func (m *Map) String() string {
	data, err := m.JSON()
	if err != nil {
		return ""
	}
	return string(data)
}

// ToURL returns the document as a base64 data URL, for inline maps.
func (m *Map) ToURL() string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString([]byte(m.String()))
}

// Decode returns the decoded mappings.
func (m *Map) Decode() ([][]Segment, error) {
	return DecodeMappings(m.Mappings)
}

// Position is an original source location. Line and Column are zero-based.
type Position struct {
	Source string
	Line   int
	Column int
	Name   string
}

// Source returns the original position of a zero-based generated line and
// column, taken from the closest segment at or before column on that line.
func (m *Map) Source(line, column int) (Position, bool, error) {
	lines, err := m.Decode()
	if err != nil {
		return Position{}, false, err
	}
	seg, ok := lookup(lines, line, column)
	if !ok || seg.SourceIndex < 0 || seg.SourceIndex >= len(m.Sources) {
		return Position{}, false, nil
	}
	pos := Position{
		Source: m.sourceName(seg.SourceIndex),
		Line:   seg.SourceLine,
		Column: seg.SourceColumn,
	}
	if seg.NameIndex >= 0 && seg.NameIndex < len(m.Names) {
		pos.Name = m.Names[seg.NameIndex]
	}
	return pos, true, nil
}

func (m *Map) sourceName(i int) string {
	src := m.Sources[i]
	if m.SourceRoot == "" || strings.HasPrefix(src, "/") || strings.Contains(src, "://") {
		return src
	}
	return strings.TrimSuffix(m.SourceRoot, "/") + "/" + src
}

// StringPtr returns a pointer to s, for SourcesContent entries.
func StringPtr(s string) *string {
	return &s
}
