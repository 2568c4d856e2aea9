package types

import (
	"crypto/sha1"
	"encoding/hex"
)

// Rule describes one literal token rewrite.
type Rule struct {
	ID               string   `json:"id"`          // e.g., "importshim.dynamic-import"
	Name             string   `json:"name"`        // human-readable name
	Pattern          string   `json:"pattern"`     // literal token sequence
	Replacement      string   `json:"replacement"` // literal text written over each match
	StructuralID     string   `json:"structural_id,omitempty"`
	Description      string   `json:"description,omitempty"`
	Examples         []string `json:"examples,omitempty"`          // inputs that must be rewritten
	NegativeExamples []string `json:"negative_examples,omitempty"` // inputs that must stay untouched
	References       []string `json:"references,omitempty"`
	Keywords         []string `json:"keywords,omitempty"` // keywords for Aho-Corasick prefiltering
}

// ComputeStructuralID computes SHA-1(pattern + '\0' + replacement).
// Two rules with the same structural ID produce identical output.
func (r *Rule) ComputeStructuralID() string {
	h := sha1.New()
	h.Write([]byte(r.Pattern))
	h.Write([]byte{0})
	h.Write([]byte(r.Replacement))
	return hex.EncodeToString(h.Sum(nil))
}
