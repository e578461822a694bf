// Package schema is the feature contract shared by training and inference.
//
// A Schema fixes the canonical feature order, the label column, the columns
// that must never reach the model, and the clipping rules applied to raw
// values. Every component that materializes a feature vector reads the
// order from here.
package schema

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"delayrisk/domain/core"
)

// Definition is the declarative form of a schema, as written in YAML.
type Definition struct {
	FeatureColumns []string   `yaml:"feature_columns" json:"feature_columns"`
	LabelColumn    string     `yaml:"label_column" json:"label_column"`
	DropColumns    []string   `yaml:"drop_columns" json:"drop_columns"`
	ClipRules      []ClipRule `yaml:"clip_rules" json:"clip_rules"`
}

// Schema is an immutable, validated feature contract.
type Schema struct {
	features    []string
	featureIdx  map[string]int
	label       string
	drop        []string
	clip        []ClipRule
	fingerprint core.SchemaHash
}

// New validates def and returns the schema. Every problem found is reported
// in a single ErrSchemaInvalid error.
func New(def Definition) (*Schema, error) {
	var problems []string

	if len(def.FeatureColumns) == 0 {
		problems = append(problems, "feature_columns is empty")
	}
	if strings.TrimSpace(def.LabelColumn) == "" {
		problems = append(problems, "label_column is empty")
	}

	featureIdx := make(map[string]int, len(def.FeatureColumns))
	for i, name := range def.FeatureColumns {
		if strings.TrimSpace(name) == "" {
			problems = append(problems, fmt.Sprintf("feature_columns[%d] is blank", i))
			continue
		}
		if _, dup := featureIdx[name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate feature column %q", name))
			continue
		}
		featureIdx[name] = i
	}

	if _, overlap := featureIdx[def.LabelColumn]; overlap {
		problems = append(problems, fmt.Sprintf("label column %q is also a feature column", def.LabelColumn))
	}

	dropSeen := make(map[string]bool, len(def.DropColumns))
	for _, name := range def.DropColumns {
		if dropSeen[name] {
			problems = append(problems, fmt.Sprintf("duplicate drop column %q", name))
			continue
		}
		dropSeen[name] = true
		if _, overlap := featureIdx[name]; overlap {
			problems = append(problems, fmt.Sprintf("drop column %q is also a feature column", name))
		}
		if name == def.LabelColumn {
			problems = append(problems, fmt.Sprintf("drop column %q is the label column", name))
		}
	}

	clipSeen := make(map[string]bool, len(def.ClipRules))
	for _, rule := range def.ClipRules {
		if _, ok := featureIdx[rule.Column]; !ok {
			problems = append(problems, fmt.Sprintf("clip rule column %q is not a feature column", rule.Column))
		}
		if clipSeen[rule.Column] {
			problems = append(problems, fmt.Sprintf("duplicate clip rule for %q", rule.Column))
		}
		clipSeen[rule.Column] = true
		if err := rule.validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return nil, core.NewSchemaError(problems)
	}

	s := &Schema{
		features:   append([]string(nil), def.FeatureColumns...),
		featureIdx: featureIdx,
		label:      def.LabelColumn,
		drop:       append([]string(nil), def.DropColumns...),
		clip:       append([]ClipRule(nil), def.ClipRules...),
	}
	s.fingerprint = core.NewSchemaHash([]byte(s.canonical()))
	return s, nil
}

// MustNew is New for definitions known at compile time.
func MustNew(def Definition) *Schema {
	s, err := New(def)
	if err != nil {
		panic(err)
	}
	return s
}

// Parse reads a YAML schema definition. Unknown keys are rejected.
func Parse(data []byte) (*Schema, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchemaInvalid, err)
	}
	return New(def)
}

// FeatureColumns returns a copy of the canonical feature order.
func (s *Schema) FeatureColumns() []string { return append([]string(nil), s.features...) }

// NumFeatures is len(FeatureColumns()).
func (s *Schema) NumFeatures() int { return len(s.features) }

// LabelColumn returns the binary target column name.
func (s *Schema) LabelColumn() string { return s.label }

// DropColumns returns a copy of the columns excluded before projection.
func (s *Schema) DropColumns() []string { return append([]string(nil), s.drop...) }

// ClipRules returns a copy of the range-normalization rules.
func (s *Schema) ClipRules() []ClipRule { return append([]ClipRule(nil), s.clip...) }

// IsFeature reports whether name is one of the feature columns.
func (s *Schema) IsFeature(name string) bool {
	_, ok := s.featureIdx[name]
	return ok
}

// IsDropped reports whether name is a drop column.
func (s *Schema) IsDropped(name string) bool {
	for _, d := range s.drop {
		if d == name {
			return true
		}
	}
	return false
}

// FeatureIndex returns the position of name in the canonical order.
func (s *Schema) FeatureIndex(name string) (int, bool) {
	i, ok := s.featureIdx[name]
	return i, ok
}

// Fingerprint identifies the contract; models record it at train time.
func (s *Schema) Fingerprint() core.SchemaHash { return s.fingerprint }

// Definition returns the declarative form of s.
func (s *Schema) Definition() Definition {
	return Definition{
		FeatureColumns: s.FeatureColumns(),
		LabelColumn:    s.label,
		DropColumns:    s.DropColumns(),
		ClipRules:      s.ClipRules(),
	}
}

// canonical renders every contract-relevant field in a stable form.
func (s *Schema) canonical() string {
	var b strings.Builder
	b.WriteString("features:")
	b.WriteString(strings.Join(s.features, ","))
	b.WriteString("|label:")
	b.WriteString(s.label)

	drop := append([]string(nil), s.drop...)
	sort.Strings(drop)
	b.WriteString("|drop:")
	b.WriteString(strings.Join(drop, ","))

	clip := append([]ClipRule(nil), s.clip...)
	sort.Slice(clip, func(i, j int) bool { return clip[i].Column < clip[j].Column })
	b.WriteString("|clip:")
	for _, r := range clip {
		fmt.Fprintf(&b, "%s[%g,%g];", r.Column, r.Min, r.Max)
	}
	return b.String()
}
