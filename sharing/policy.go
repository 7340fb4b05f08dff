package sharing

import (
	_ "embed"
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed redaction.yaml
var defaultPolicyYAML []byte

// RedactionClass is one named sensitive pattern.
type RedactionClass struct {
	Name      string `yaml:"name"`
	DataClass string `yaml:"data_class"`
	Pattern   string `yaml:"pattern"`

	re *regexp.Regexp
}

// Policy is an ordered set of redaction classes. Earlier classes win when
// patterns overlap.
type Policy struct {
	Classes []RedactionClass `yaml:"classes"`
}

// DefaultPolicy returns the built-in redaction policy.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		panic("sharing: invalid built-in redaction policy: " + err.Error())
	}
	return p
}

// LoadPolicy reads a YAML redaction policy.
func LoadPolicy(r io.Reader) (*Policy, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read redaction policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and compiles a YAML redaction policy.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode redaction policy: %w", err)
	}
	for i := range p.Classes {
		c := &p.Classes[i]
		if c.Name == "" || c.Pattern == "" {
			return nil, fmt.Errorf("redaction class %d: name and pattern are required", i)
		}
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redaction class %s: %w", c.Name, err)
		}
		c.re = re
	}
	return &p, nil
}

// Apply replaces every match of a class the recipient is not cleared for
// with "[REDACTED:<name>]". It returns the redacted text and the names of
// the classes that matched.
func (p *Policy) Apply(text string, cleared map[string]bool) (string, []string) {
	if p == nil || text == "" {
		return text, nil
	}
	var hits []string
	for _, c := range p.Classes {
		if c.re == nil || cleared[c.DataClass] {
			continue
		}
		if !c.re.MatchString(text) {
			continue
		}
		text = c.re.ReplaceAllLiteralString(text, "[REDACTED:"+c.Name+"]")
		hits = append(hits, c.Name)
	}
	return text, hits
}
