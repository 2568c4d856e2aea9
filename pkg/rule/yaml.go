package rule

// yamlRule is the intermediate struct for parsing the YAML rule format.
// Maps YAML fields to types.Rule structure.
type yamlRule struct {
	Name             string   `yaml:"name"`
	ID               string   `yaml:"id"`
	Pattern          string   `yaml:"pattern"`
	Replacement      string   `yaml:"replacement"`
	Description      string   `yaml:"description,omitempty"`
	Keywords         []string `yaml:"keywords,omitempty"`
	Examples         []string `yaml:"examples,omitempty"`
	NegativeExamples []string `yaml:"negative_examples,omitempty"`
	References       []string `yaml:"references,omitempty"`
}

// yamlRulesFile represents the top-level structure of a rules YAML file.
type yamlRulesFile struct {
	Rules []yamlRule `yaml:"rules"`
}
