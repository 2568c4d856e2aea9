package rule

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/praetorian-inc/importshim/pkg/types"
	"gopkg.in/yaml.v3"
)

// DynamicImportID is the ID of the builtin dynamic-import rewrite rule.
const DynamicImportID = "importshim.dynamic-import"

var (
	builtinOnce sync.Once
	builtinRule *types.Rule
	builtinErr  error
)

// Builtin returns the dynamic-import rule, loading and validating it once
// per process. A broken embedded rule is a build defect, so it panics.
func Builtin() *types.Rule {
	builtinOnce.Do(func() {
		var rules []*types.Rule
		rules, builtinErr = NewLoader().LoadBuiltinRules()
		if builtinErr != nil {
			return
		}
		for _, r := range rules {
			if r.ID == DynamicImportID {
				builtinRule = r
				break
			}
		}
		if builtinRule == nil {
			builtinErr = fmt.Errorf("builtin rule %s not found", DynamicImportID)
			return
		}
		builtinErr = ValidateRule(builtinRule)
	})
	if builtinErr != nil {
		panic(fmt.Sprintf("loading builtin rule: %v", builtinErr))
	}
	return builtinRule
}

// Loader handles loading rules from YAML files.
type Loader struct {
	fs fs.FS // embedded filesystem for built-in rules
}

// NewLoader creates a loader with built-in rules from embedded filesystem.
func NewLoader() *Loader {
	return &Loader{
		fs: builtinRulesFS,
	}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// LoadRule loads a single rule from YAML bytes.
// Returns error if YAML is invalid or multiple rules are present.
func (l *Loader) LoadRule(data []byte) (*types.Rule, error) {
	var yamlFile yamlRulesFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(yamlFile.Rules) == 0 {
		return nil, fmt.Errorf("no rules found in YAML")
	}
	if len(yamlFile.Rules) > 1 {
		return nil, fmt.Errorf("expected single rule, found %d", len(yamlFile.Rules))
	}

	return convertYAMLRule(yamlFile.Rules[0]), nil
}

// LoadRuleFile loads a rule from a YAML file path.
func (l *Loader) LoadRuleFile(path string) (*types.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.LoadRule(data)
}

// LoadBuiltinRules loads all rules under rules/ in the loader's filesystem.
func (l *Loader) LoadBuiltinRules() ([]*types.Rule, error) {
	var rules []*types.Rule

	err := fs.WalkDir(l.fs, "rules", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		// Parse all rules from the file
		var yamlFile yamlRulesFile
		if err := yaml.Unmarshal(data, &yamlFile); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		for _, yr := range yamlFile.Rules {
			rules = append(rules, convertYAMLRule(yr))
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return rules, nil
}

// convertYAMLRule converts yamlRule to types.Rule and computes StructuralID.
// Keywords default to the pattern itself.
func convertYAMLRule(yr yamlRule) *types.Rule {
	r := &types.Rule{
		ID:               yr.ID,
		Name:             yr.Name,
		Pattern:          yr.Pattern,
		Replacement:      yr.Replacement,
		Description:      strings.TrimSpace(yr.Description),
		Keywords:         yr.Keywords,
		Examples:         yr.Examples,
		NegativeExamples: yr.NegativeExamples,
		References:       yr.References,
	}
	if len(r.Keywords) == 0 && r.Pattern != "" {
		r.Keywords = []string{r.Pattern}
	}
	r.StructuralID = r.ComputeStructuralID()
	return r
}
