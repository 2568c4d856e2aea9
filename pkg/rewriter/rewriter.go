// Package rewriter rewrites every literal dynamic import call in generated
// code to go through window.import, and reports the edit as a source map.
//
// Matching is textual: occurrences inside string literals and comments are
// rewritten too.
package rewriter

import (
	"fmt"
	"sync"

	"github.com/praetorian-inc/importshim/pkg/matcher"
	"github.com/praetorian-inc/importshim/pkg/overlay"
	"github.com/praetorian-inc/importshim/pkg/rule"
	"github.com/praetorian-inc/importshim/pkg/sourcemap"
	"github.com/praetorian-inc/importshim/pkg/types"
)

// Kind tells whether a transform changed its input.
type Kind int

const (
	// Unchanged means the caller must keep the original artifact.
	Unchanged Kind = iota
	// Rewritten means Code and Map replace the original artifact.
	Rewritten
)

func (k Kind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Rewritten:
		return "rewritten"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Result is the outcome of a transform. Code, Map and Matches are zero
// when Kind is Unchanged.
type Result struct {
	Kind    Kind
	Code    string
	Map     *sourcemap.Map
	Matches []types.Span // replaced ranges in original coordinates
}

// Changed reports whether the transform rewrote anything.
func (r Result) Changed() bool {
	return r.Kind == Rewritten
}

// Rewriter applies one rule. It is immutable and safe for concurrent use.
type Rewriter struct {
	rule    *types.Rule
	matcher *matcher.Matcher
}

// New creates a Rewriter for rule.
func New(r *types.Rule) *Rewriter {
	return &Rewriter{rule: r, matcher: matcher.New(r)}
}

// Rule returns the rule this rewriter applies.
func (rw *Rewriter) Rule() *types.Rule {
	return rw.rule
}

// Transform rewrites every occurrence of the rule's pattern in code.
// It panics with *overlay.InvariantError if the matcher ever produces
// overlapping or out-of-range spans.
func (rw *Rewriter) Transform(code string, opts ...Option) Result {
	if code == "" {
		return Result{Kind: Unchanged}
	}
	spans := rw.matcher.FindSpans([]byte(code))
	if len(spans) == 0 {
		return Result{Kind: Unchanged}
	}

	text := overlay.New(code)
	for _, span := range spans {
		text.Overwrite(span.Start, span.End, rw.rule.Replacement)
	}
	if !text.HasChanged() {
		return Result{Kind: Unchanged}
	}

	o := buildOptions(opts)
	return Result{
		Kind: Rewritten,
		Code: text.String(),
		Map: text.GenerateMap(overlay.MapOptions{
			Source:         o.sourceName(),
			File:           o.file,
			IncludeContent: o.sourcesContent,
			Hires:          true,
		}),
		Matches: spans,
	}
}

// TransformWithUpstream transforms code and composes the resulting map with
// upstream, the map of the stage that produced code. An empty upstream
// leaves the map as is. The only error is a malformed upstream map.
func (rw *Rewriter) TransformWithUpstream(code string, upstream []byte, opts ...Option) (Result, error) {
	res := rw.Transform(code, opts...)
	if !res.Changed() || len(upstream) == 0 {
		return res, nil
	}
	composed, err := sourcemap.Compose(res.Map, upstream)
	if err != nil {
		return Result{}, fmt.Errorf("composing with upstream map: %w", err)
	}
	res.Map = composed
	return res, nil
}

// Rewrites describes the replacements made in code at spans, as returned
// in Result.Matches, with 1-based line and column locations.
func (rw *Rewriter) Rewrites(id types.ChunkID, code string, spans []types.Span) []*types.Rewrite {
	if len(spans) == 0 {
		return nil
	}
	return rw.matcher.Rewrites(id, []byte(code), spans)
}

var (
	defaultOnce     sync.Once
	defaultRewriter *Rewriter
)

// Default returns the rewriter for the builtin dynamic-import rule.
func Default() *Rewriter {
	defaultOnce.Do(func() {
		defaultRewriter = New(rule.Builtin())
	})
	return defaultRewriter
}

// Transform rewrites code with the builtin rule, or the rule given by
// WithRule.
func Transform(code string, opts ...Option) Result {
	return forOptions(opts).Transform(code, opts...)
}

// TransformWithUpstream is Transform followed by composition with the
// upstream map.
func TransformWithUpstream(code string, upstream []byte, opts ...Option) (Result, error) {
	return forOptions(opts).TransformWithUpstream(code, upstream, opts...)
}

func forOptions(opts []Option) *Rewriter {
	if o := buildOptions(opts); o.rule != nil {
		return New(o.rule)
	}
	return Default()
}
