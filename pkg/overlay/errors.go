package overlay

import (
	"fmt"

	"github.com/praetorian-inc/importshim/pkg/types"
)

// InvariantError is the panic value raised when an edit would corrupt the
// overlay. It always indicates a bug in the caller.
type InvariantError struct {
	Op     string
	Span   types.Span
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("overlay: %s %s: %s", e.Op, e.Span, e.Reason)
}

func violate(op string, span types.Span, format string, args ...any) {
	panic(&InvariantError{Op: op, Span: span, Reason: fmt.Sprintf(format, args...)})
}
