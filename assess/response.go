package assess

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Assessment statuses.
const (
	StatusFull    = "FULL"
	StatusPartial = "PARTIAL"
	StatusNotMet  = "NOT_MET"
)

// Item is the service's verdict on one obligation. The service may name the
// obligation as obligation_id or id.
type Item struct {
	ObligationID   string   `json:"obligation_id,omitempty"`
	ID             string   `json:"id,omitempty"`
	Status         string   `json:"status,omitempty"`
	Findings       string   `json:"findings,omitempty"`
	PolicyMatch    *string  `json:"policy_match,omitempty"`
	Gaps           []string `json:"gaps,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

func (it Item) key() string {
	if it.ObligationID != "" {
		return it.ObligationID
	}
	return it.ID
}

var itemsSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type": "object",
		"anyOf": []any{
			map[string]any{"required": []string{"obligation_id"}},
			map[string]any{"required": []string{"id"}},
		},
		"properties": map[string]any{
			"obligation_id":  map[string]any{"type": "string"},
			"id":             map[string]any{"type": "string"},
			"status":         map[string]any{"enum": []string{StatusFull, StatusPartial, StatusNotMet}},
			"findings":       map[string]any{"type": []string{"string", "null"}},
			"policy_match":   map[string]any{"type": []string{"string", "null"}},
			"gaps":           map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
			"recommendation": map[string]any{"type": []string{"string", "null"}},
		},
	},
}

var compiledItems = mustCompile(itemsSchema)

func mustCompile(schemaMap map[string]any) *jsonschema.Schema {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		panic(fmt.Sprintf("assess: marshal schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("items.json", bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("assess: add schema: %v", err))
	}
	return compiler.MustCompile("items.json")
}

// ParseItems decodes the service's answer: a JSON array of items, optionally
// wrapped in Markdown code fences or in an object under "results".
func ParseItems(raw []byte) ([]Item, error) {
	text := stripFences(string(raw))

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if obj, ok := v.(map[string]any); ok {
		results, ok := obj["results"]
		if !ok {
			return nil, fmt.Errorf("decode: object without results")
		}
		v = results
		b, err := json.Marshal(results)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		text = string(b)
	}
	if err := compiledItems.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}

	var items []Item
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
