package rule

import (
	"fmt"
	"strings"

	"github.com/praetorian-inc/importshim/pkg/types"
)

// ValidateRule checks rule consistency and required fields.
// Returns error if rule is invalid.
func ValidateRule(r *types.Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}

	// Check required fields
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule pattern is required")
	}
	if r.Replacement == "" {
		return fmt.Errorf("rule %s replacement is required", r.ID)
	}

	// Matching is literal and line-local
	if strings.ContainsAny(r.Pattern, "\r\n") {
		return fmt.Errorf("rule %s pattern must not span lines", r.ID)
	}
	if r.Pattern == r.Replacement {
		return fmt.Errorf("rule %s replacement is identical to its pattern", r.ID)
	}

	for _, kw := range r.Keywords {
		if kw == "" {
			return fmt.Errorf("rule %s has an empty keyword", r.ID)
		}
	}

	for _, ex := range r.Examples {
		if !strings.Contains(ex, r.Pattern) {
			return fmt.Errorf("rule %s example %q does not contain the pattern", r.ID, ex)
		}
	}
	for _, ex := range r.NegativeExamples {
		if strings.Contains(ex, r.Pattern) {
			return fmt.Errorf("rule %s negative example %q contains the pattern", r.ID, ex)
		}
	}

	// Validate StructuralID matches computed value
	expectedID := r.ComputeStructuralID()
	if r.StructuralID != "" && r.StructuralID != expectedID {
		return fmt.Errorf("rule %s has inconsistent StructuralID: got %s, expected %s",
			r.ID, r.StructuralID, expectedID)
	}

	return nil
}
