package types

import "fmt"

// Span is byte range [Start, End) - half-open interval.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool {
	return s.Start == s.End
}

// Overlaps reports whether two spans share at least one byte.
// Empty spans never overlap anything.
func (s Span) Overlaps(other Span) bool {
	if s.Empty() || other.Empty() {
		return false
	}
	return s.Start < other.End && other.Start < s.End
}

// Contains reports whether offset falls inside the span.
func (s Span) Contains(offset int) bool {
	return s.Start <= offset && offset < s.End
}

// Within reports whether the span lies inside a buffer of the given length.
func (s Span) Within(length int) bool {
	return s.Start >= 0 && s.Start <= s.End && s.End <= length
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}
