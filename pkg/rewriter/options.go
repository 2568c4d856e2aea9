package rewriter

import "github.com/praetorian-inc/importshim/pkg/types"

// Option configures a transform.
type Option func(*options)

type options struct {
	source         string
	file           string
	sourcesContent bool
	rule           *types.Rule
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) sourceName() string {
	if o.source != "" {
		return o.source
	}
	return o.file
}

// WithSource names the input in the map's "sources". Defaults to the file
// name given by WithFile.
func WithSource(name string) Option {
	return func(o *options) {
		o.source = name
	}
}

// WithFile sets the map's "file" field.
func WithFile(name string) Option {
	return func(o *options) {
		o.file = name
	}
}

// WithSourcesContent embeds the input text in the map.
func WithSourcesContent(include bool) Option {
	return func(o *options) {
		o.sourcesContent = include
	}
}

// WithRule replaces the builtin rule for the package-level functions.
// Rewriter methods ignore it.
func WithRule(r *types.Rule) Option {
	return func(o *options) {
		o.rule = r
	}
}
