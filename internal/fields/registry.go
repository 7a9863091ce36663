// Package fields turns normalized document text into a structured field record
// using per-document-type pattern rules.
package fields

import (
	"fmt"
	"regexp"
	"strings"
)

// Policy selects which capture group becomes the field value.
type Policy string

const (
	// PolicyValueThenLabel uses the value group, falling back to the label group.
	PolicyValueThenLabel Policy = "value_then_label"
	// PolicyValueOnly uses the value group or nothing.
	PolicyValueOnly Policy = "value_only"
)

// Record maps field name to its extracted value. Every declared field is
// present; unmatched fields are nil.
type Record map[string]*string

// Rule is a compiled field rule.
type Rule struct {
	Field   string
	Policy  Policy
	pattern *regexp.Regexp
	label   int
	value   int
}

// RuleSet is the ordered rule list for one document type.
type RuleSet struct {
	Name     string
	Aliases  []string
	Rules    []Rule
	boundary *regexp.Regexp
}

// Registry resolves document type names to rule sets.
type Registry struct {
	sets  []*RuleSet
	index map[string]*RuleSet
}

// NewRegistry compiles a catalog.
func NewRegistry(cat Catalog) (*Registry, error) {
	reg := &Registry{index: make(map[string]*RuleSet)}
	for _, spec := range cat.DocumentTypes {
		set, err := compileSet(spec)
		if err != nil {
			return nil, err
		}
		for _, name := range append([]string{spec.Name}, spec.Aliases...) {
			key := NormalizeType(name)
			if key == "" {
				return nil, fmt.Errorf("document type %q: empty name or alias", spec.Name)
			}
			if _, dup := reg.index[key]; dup {
				return nil, fmt.Errorf("document type %q: name %q already registered", spec.Name, name)
			}
			reg.index[key] = set
		}
		reg.sets = append(reg.sets, set)
	}
	return reg, nil
}

func compileSet(spec TypeSpec) (*RuleSet, error) {
	set := &RuleSet{Name: spec.Name, Aliases: spec.Aliases}
	seen := make(map[string]struct{}, len(spec.Rules))
	labels := make([]string, 0, len(spec.Rules))
	for _, rs := range spec.Rules {
		if _, dup := seen[rs.Field]; dup {
			return nil, fmt.Errorf("document type %q: duplicate field %q", spec.Name, rs.Field)
		}
		seen[rs.Field] = struct{}{}

		policy := rs.Policy
		if policy == "" {
			policy = PolicyValueThenLabel
		}
		if policy != PolicyValueThenLabel && policy != PolicyValueOnly {
			return nil, fmt.Errorf("document type %q field %q: unknown policy %q", spec.Name, rs.Field, rs.Policy)
		}
		re, err := regexp.Compile(`(?i)\b(?P<label>` + rs.Label + `)(?:\s*[:\-]\s*|\s+)(?P<value>` + rs.Value + `)`)
		if err != nil {
			return nil, fmt.Errorf("document type %q field %q: %w", spec.Name, rs.Field, err)
		}
		set.Rules = append(set.Rules, Rule{
			Field:   rs.Field,
			Policy:  policy,
			pattern: re,
			label:   re.SubexpIndex("label"),
			value:   re.SubexpIndex("value"),
		})
		labels = append(labels, rs.Label)
	}
	if len(labels) > 0 {
		b, err := regexp.Compile(`(?i)\b(?:` + strings.Join(labels, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("document type %q: boundary: %w", spec.Name, err)
		}
		set.boundary = b
	}
	return set, nil
}

// NormalizeType canonicalizes a document type name for lookup.
func NormalizeType(name string) string {
	name = strings.NewReplacer("’", "'", "‘", "'").Replace(name)
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Lookup returns the rule set for a document type name or alias.
func (r *Registry) Lookup(docType string) (*RuleSet, bool) {
	if r == nil {
		return nil, false
	}
	set, ok := r.index[NormalizeType(docType)]
	return set, ok
}

// Extract applies the rules for docType. Unknown types yield nil.
func (r *Registry) Extract(docType, text string) Record {
	set, ok := r.Lookup(docType)
	if !ok {
		return nil
	}
	return set.Extract(text)
}

// Columns returns every field name across all types in catalog order, once each.
func (r *Registry) Columns() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, set := range r.sets {
		for _, rule := range set.Rules {
			if _, ok := seen[rule.Field]; ok {
				continue
			}
			seen[rule.Field] = struct{}{}
			out = append(out, rule.Field)
		}
	}
	return out
}

// Types returns the canonical type names in catalog order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.sets))
	for _, set := range r.sets {
		out = append(out, set.Name)
	}
	return out
}

// Fields lists the declared field names in rule order.
func (s *RuleSet) Fields() []string {
	out := make([]string, 0, len(s.Rules))
	for _, rule := range s.Rules {
		out = append(out, rule.Field)
	}
	return out
}

// Empty returns a record with every declared field set to nil.
func (s *RuleSet) Empty() Record {
	rec := make(Record, len(s.Rules))
	for _, rule := range s.Rules {
		rec[rule.Field] = nil
	}
	return rec
}

// Extract runs every rule against text.
func (s *RuleSet) Extract(text string) Record {
	rec := s.Empty()
	for _, rule := range s.Rules {
		m := rule.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := s.clip(m[rule.value])
		if value == "" && rule.Policy == PolicyValueThenLabel {
			value = strings.TrimSpace(m[rule.label])
		}
		if value != "" {
			v := value
			rec[rule.Field] = &v
		}
	}
	return rec
}

// clip cuts a value where the next known label begins, so adjacent fields on
// one line do not run into each other.
func (s *RuleSet) clip(value string) string {
	if s.boundary != nil {
		if loc := s.boundary.FindStringIndex(value); loc != nil {
			value = value[:loc[0]]
		}
	}
	return strings.TrimSpace(value)
}

// Supported reports whether the set has any rules to apply.
func (s *RuleSet) Supported() bool {
	return s != nil && len(s.Rules) > 0
}
