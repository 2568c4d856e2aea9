package prefilter

import (
	"testing"

	"github.com/praetorian-inc/importshim/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dynamicImport() *types.Rule {
	return &types.Rule{
		ID:          "rule1",
		Name:        "Dynamic import",
		Pattern:     "import(",
		Replacement: "window.import(",
		Keywords:    []string{"import("},
	}
}

func TestPrefilter_KeywordPresent(t *testing.T) {
	rule := dynamicImport()
	pf := New(rule)

	filtered := pf.Filter([]byte(`x(); import("./a"); y();`))

	require.Len(t, filtered, 1)
	assert.Equal(t, "rule1", filtered[0].ID)
	assert.True(t, pf.MayMatch([]byte(`import("./a")`), rule))
}

func TestPrefilter_KeywordAbsent(t *testing.T) {
	rule := dynamicImport()
	pf := New(rule)

	for _, content := range []string{
		"no dynamic calls here",
		"import React from 'react';",
		"import ('spaced')",
		"",
	} {
		assert.Empty(t, pf.Filter([]byte(content)), content)
		assert.False(t, pf.MayMatch([]byte(content), rule), content)
	}
}

func TestPrefilter_RulesWithoutKeywords(t *testing.T) {
	rule := dynamicImport()
	rule.Keywords = nil
	pf := New(rule)

	// No keywords = always check
	filtered := pf.Filter([]byte("test content without matches"))
	require.Len(t, filtered, 1)
	assert.True(t, pf.MayMatch(nil, rule))
}

func TestPrefilter_MixedRules(t *testing.T) {
	first := dynamicImport()
	second := &types.Rule{
		ID:       "rule2",
		Name:     "Worker import",
		Pattern:  "importScripts(",
		Keywords: []string{"importScripts("},
	}
	third := &types.Rule{ID: "rule3", Name: "always"}

	pf := New(first, second, third)

	filtered := pf.Filter([]byte("importScripts('w.js')"))

	// "import(" does not occur inside "importScripts(", so only rule2 and rule3
	require.Len(t, filtered, 2)
	ids := []string{filtered[0].ID, filtered[1].ID}
	assert.Contains(t, ids, "rule2")
	assert.Contains(t, ids, "rule3")
	assert.False(t, pf.MayMatch([]byte("importScripts('w.js')"), first))
}
