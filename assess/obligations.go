// Package assess is the boundary to the external compliance-assessment
// service: the obligations dataset, the applicability filter, request
// preparation, the forwarding client and the merge of its answers.
package assess

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed obligations.yaml
var obligationsYAML []byte

// Citation points an obligation at a passage of a regulatory source.
type Citation struct {
	SourceID string `json:"source_id" yaml:"source_id"`
	Quote    string `json:"quote" yaml:"quote"`
	Section  string `json:"section" yaml:"section"`
}

// AppliesWhen scopes an obligation to use cases and risk levels.
type AppliesWhen struct {
	UseCases  []string `json:"use_cases" yaml:"use_cases"`
	RiskLevel []string `json:"risk_level,omitempty" yaml:"risk_level"`
}

// Obligation is one regulatory requirement a policy is assessed against.
type Obligation struct {
	ID                string      `json:"obligation_id" yaml:"obligation_id"`
	Title             string      `json:"title" yaml:"title"`
	Description       string      `json:"description" yaml:"description"`
	RequirementType   string      `json:"requirement_type" yaml:"requirement_type"`
	Strength          string      `json:"obligation_strength" yaml:"obligation_strength"`
	Category          string      `json:"category" yaml:"category"`
	AppliesWhen       AppliesWhen `json:"applies_when" yaml:"applies_when"`
	SourceCitations   []Citation  `json:"source_citations" yaml:"source_citations"`
	WhatGoodLooksLike []string    `json:"what_good_looks_like" yaml:"what_good_looks_like"`
}

// Source is a regulatory publication cited by obligations.
type Source struct {
	ID              string `json:"source_id" yaml:"source_id"`
	Title           string `json:"title" yaml:"title"`
	IssuingBody     string `json:"issuing_body" yaml:"issuing_body"`
	URL             string `json:"url" yaml:"url"`
	BindingStrength string `json:"binding_strength" yaml:"binding_strength"`
	Description     string `json:"description" yaml:"description"`
}

// Dataset is the set of obligations and the sources they cite.
type Dataset struct {
	Sources     []Source     `json:"sources" yaml:"sources"`
	Obligations []Obligation `json:"obligations" yaml:"obligations"`
}

// Parse decodes a YAML dataset and checks that every citation resolves.
func Parse(data []byte) (*Dataset, error) {
	var d Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("assess: parse dataset: %w", err)
	}
	known := make(map[string]bool, len(d.Sources))
	for _, s := range d.Sources {
		known[s.ID] = true
	}
	seen := make(map[string]bool, len(d.Obligations))
	for _, o := range d.Obligations {
		if o.ID == "" {
			return nil, fmt.Errorf("assess: obligation %q has no id", o.Title)
		}
		if seen[o.ID] {
			return nil, fmt.Errorf("assess: duplicate obligation %s", o.ID)
		}
		seen[o.ID] = true
		for _, c := range o.SourceCitations {
			if !known[c.SourceID] {
				return nil, fmt.Errorf("assess: obligation %s cites unknown source %s", o.ID, c.SourceID)
			}
		}
	}
	return &d, nil
}

var (
	defaultOnce sync.Once
	defaultSet  *Dataset
	defaultErr  error
)

// Default returns the embedded UK obligations dataset.
func Default() (*Dataset, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Parse(obligationsYAML)
	})
	return defaultSet, defaultErr
}

// Obligation returns the obligation with id.
func (d *Dataset) Obligation(id string) (Obligation, bool) {
	for _, o := range d.Obligations {
		if o.ID == id {
			return o, true
		}
	}
	return Obligation{}, false
}

// Source returns the source with id.
func (d *Dataset) Source(id string) (Source, bool) {
	for _, s := range d.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}
