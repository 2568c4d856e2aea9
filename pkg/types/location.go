package types

// SourcePoint is line:column position (1-based).
type SourcePoint struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SourceSpan is start-end line:column range.
type SourceSpan struct {
	Start SourcePoint `json:"start"`
	End   SourcePoint `json:"end"`
}

// Location combines byte offsets and source positions.
type Location struct {
	Offset Span       `json:"offset"`
	Source SourceSpan `json:"source"`
}
