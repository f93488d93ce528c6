package guardrail

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/sodmaster111/sodmaster/audit"
)

// RuleMatch selects the events a file rule applies to. Every non-empty
// field must match. Payload keys are gjson paths into the event payload.
type RuleMatch struct {
	Name          string            `yaml:"name"`
	NamePrefix    string            `yaml:"name_prefix"`
	CUnit         string            `yaml:"c_unit"`
	MinSeverity   string            `yaml:"min_severity"`
	Payload       map[string]string `yaml:"payload"`
	PayloadExists []string          `yaml:"payload_exists"`
}

// Rule is one guardrail as written in a YAML file.
type Rule struct {
	ID            string    `yaml:"id"`
	Description   string    `yaml:"description"`
	Severity      string    `yaml:"severity"`
	Match         RuleMatch `yaml:"match"`
	Reason        string    `yaml:"reason"`
	ReasonPath    string    `yaml:"reason_path"`
	ReasonDefault string    `yaml:"reason_default"`
}

// File is the top-level YAML document.
type File struct {
	Guardrails []Rule `yaml:"guardrails"`
}

// LoadFile reads and compiles the guardrails in path. An empty path
// yields no guardrails.
func LoadFile(path string) ([]Guardrail, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guardrails file: %w", err)
	}
	return Parse(b)
}

// Parse compiles the guardrails in a YAML document.
func Parse(data []byte) ([]Guardrail, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse guardrails file: %w", err)
	}
	out := make([]Guardrail, 0, len(f.Guardrails))
	for i, r := range f.Guardrails {
		g, err := r.Compile()
		if err != nil {
			return nil, fmt.Errorf("guardrail %d: %w", i, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Compile turns r into a Guardrail.
func (r Rule) Compile() (Guardrail, error) {
	sev := audit.SeverityHigh
	if r.Severity != "" {
		s, ok := audit.ParseSeverity(strings.ToLower(strings.TrimSpace(r.Severity)))
		if !ok {
			return Guardrail{}, fmt.Errorf("%s: unknown severity %q", r.ID, r.Severity)
		}
		sev = s
	}

	var minSev audit.Severity
	if r.Match.MinSeverity != "" {
		s, ok := audit.ParseSeverity(strings.ToLower(strings.TrimSpace(r.Match.MinSeverity)))
		if !ok {
			return Guardrail{}, fmt.Errorf("%s: unknown min_severity %q", r.ID, r.Match.MinSeverity)
		}
		minSev = s
	}

	m := r.Match
	if m.Name == "" && m.NamePrefix == "" && m.CUnit == "" && minSev == "" &&
		len(m.Payload) == 0 && len(m.PayloadExists) == 0 {
		return Guardrail{}, fmt.Errorf("%s: match is empty", r.ID)
	}

	g := Guardrail{
		ID:          r.ID,
		Description: r.Description,
		Severity:    sev,
		Predicate: func(evt audit.Event) bool {
			return m.matches(evt, minSev)
		},
		Reason: r.reason,
	}
	return g, g.Validate()
}

func (m RuleMatch) matches(evt audit.Event, minSev audit.Severity) bool {
	if m.Name != "" && evt.Name() != m.Name {
		return false
	}
	if m.NamePrefix != "" && !strings.HasPrefix(evt.Name(), m.NamePrefix) {
		return false
	}
	if m.CUnit != "" && evt.CUnit() != m.CUnit {
		return false
	}
	if minSev != "" && !evt.Severity().AtLeast(minSev) {
		return false
	}
	if len(m.Payload) == 0 && len(m.PayloadExists) == 0 {
		return true
	}

	doc, err := json.Marshal(evt.Payload())
	if err != nil {
		return false
	}
	for path, want := range m.Payload {
		res := gjson.GetBytes(doc, path)
		if !res.Exists() || res.String() != want {
			return false
		}
	}
	for _, path := range m.PayloadExists {
		if !gjson.GetBytes(doc, path).Exists() {
			return false
		}
	}
	return true
}

func (r Rule) reason(evt audit.Event) string {
	if r.ReasonPath != "" {
		doc, err := json.Marshal(evt.Payload())
		if err == nil {
			if res := gjson.GetBytes(doc, r.ReasonPath); res.Exists() && res.Type != gjson.Null {
				return res.String()
			}
		}
	}
	if r.Reason != "" {
		return r.Reason
	}
	return r.ReasonDefault
}
