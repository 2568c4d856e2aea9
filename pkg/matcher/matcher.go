package matcher

import (
	"bytes"

	"github.com/praetorian-inc/importshim/pkg/types"
)

// Matcher locates every occurrence of one rule's literal pattern.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	rule    *types.Rule
	pattern []byte
}

// New creates a Matcher for rule.
func New(rule *types.Rule) *Matcher {
	return &Matcher{
		rule:    rule,
		pattern: []byte(rule.Pattern),
	}
}

// Rule returns the rule this matcher searches for.
func (m *Matcher) Rule() *types.Rule {
	return m.rule
}

// FindSpans returns the spans of all non-overlapping occurrences of the
// pattern, left to right, in content coordinates.
func (m *Matcher) FindSpans(content []byte) []types.Span {
	if len(m.pattern) == 0 {
		return nil
	}

	var spans []types.Span
	offset := 0
	for {
		i := bytes.Index(content[offset:], m.pattern)
		if i < 0 {
			return spans
		}
		start := offset + i
		end := start + len(m.pattern)
		spans = append(spans, types.Span{Start: start, End: end})
		offset = end
	}
}

// Match returns one Rewrite record per occurrence, with 1-based
// line/column locations for reporting.
func (m *Matcher) Match(id types.ChunkID, content []byte) []*types.Rewrite {
	spans := m.FindSpans(content)
	if len(spans) == 0 {
		return nil
	}
	return m.Rewrites(id, content, spans)
}

// Rewrites converts spans found in content into Rewrite records.
func (m *Matcher) Rewrites(id types.ChunkID, content []byte, spans []types.Span) []*types.Rewrite {
	rewrites := make([]*types.Rewrite, 0, len(spans))

	// Walk lines incrementally instead of rescanning from the start for every span.
	line, col, pos := 1, 1, 0
	advance := func(to int) (int, int) {
		for ; pos < to && pos < len(content); pos++ {
			if content[pos] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
		return line, col
	}

	for _, span := range spans {
		startLine, startCol := advance(span.Start)
		endLine, endCol := advance(span.End)
		rewrites = append(rewrites, &types.Rewrite{
			ChunkID: id,
			RuleID:  m.rule.ID,
			Location: types.Location{
				Offset: span,
				Source: types.SourceSpan{
					Start: types.SourcePoint{Line: startLine, Column: startCol},
					End:   types.SourcePoint{Line: endLine, Column: endCol},
				},
			},
			Original:    string(content[span.Start:span.End]),
			Replacement: m.rule.Replacement,
		})
	}
	return rewrites
}
