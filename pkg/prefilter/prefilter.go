package prefilter

import (
	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/importshim/pkg/types"
)

// Prefilter uses Aho-Corasick to decide cheaply whether a chunk can contain
// any rewrite target before the span scan runs.
type Prefilter struct {
	matcher        *ahocorasick.Matcher
	keywords       []string                 // keyword at each index
	keywordRules   map[string][]*types.Rule // keyword -> rules needing it
	noKeywordRules []*types.Rule            // rules without keywords (always checked)
}

// New creates a prefilter from rules.
func New(rules ...*types.Rule) *Prefilter {
	pf := &Prefilter{
		keywordRules:   make(map[string][]*types.Rule),
		noKeywordRules: make([]*types.Rule, 0),
	}

	keywordSet := make(map[string]bool)
	for _, rule := range rules {
		if len(rule.Keywords) == 0 {
			pf.noKeywordRules = append(pf.noKeywordRules, rule)
			continue
		}
		for _, keyword := range rule.Keywords {
			if !keywordSet[keyword] {
				keywordSet[keyword] = true
				pf.keywords = append(pf.keywords, keyword)
			}
			pf.keywordRules[keyword] = append(pf.keywordRules[keyword], rule)
		}
	}

	if len(pf.keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(pf.keywords)
	}

	return pf
}

// Filter returns rules that might match content (keywords found OR no keywords defined).
func (pf *Prefilter) Filter(content []byte) []*types.Rule {
	result := make([]*types.Rule, 0, len(pf.noKeywordRules))
	result = append(result, pf.noKeywordRules...)

	if pf.matcher == nil {
		return result
	}

	hits := pf.matcher.Match(content)

	seenRules := make(map[*types.Rule]bool)
	for _, rule := range pf.noKeywordRules {
		seenRules[rule] = true
	}

	for _, hit := range hits {
		keyword := pf.keywords[hit]
		for _, rule := range pf.keywordRules[keyword] {
			if !seenRules[rule] {
				seenRules[rule] = true
				result = append(result, rule)
			}
		}
	}

	return result
}

// MayMatch reports whether rule could match content.
// A false answer is definitive; a true answer still needs the span scan.
func (pf *Prefilter) MayMatch(content []byte, rule *types.Rule) bool {
	for _, r := range pf.Filter(content) {
		if r == rule {
			return true
		}
	}
	return false
}
