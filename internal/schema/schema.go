// Package schema wraps JSON Schema Draft 2020-12 validation for tool
// arguments.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Property mirrors the subset of JSON Schema used to describe a single
// tool argument. It is kept as a typed Go struct (rather than a bare
// map[string]any) so tool authors get compile-time structure, and is
// marshalled to plain JSON before being handed to the compiler.
type Property struct {
	Type                 string              `json:"type,omitempty"`
	Description          string              `json:"description,omitempty"`
	Items                *Property           `json:"items,omitempty"`
	Format               string              `json:"format,omitempty"`
	Enum                 []any               `json:"enum,omitempty"`
	Default              any                 `json:"default,omitempty"`
	AdditionalProperties any                 `json:"additionalProperties,omitempty"`
	Required             []string            `json:"required,omitempty"`
	Properties           map[string]Property `json:"properties,omitempty"`
}

// Schema is an object-typed JSON Schema describing a tool's input
// arguments. It compiles itself lazily and caches the compiled validator.
type Schema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties,omitempty"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties any                 `json:"additionalProperties,omitempty"`

	mu       sync.Mutex
	compiled *jsonschema.Schema
}

// New creates an empty object Schema.
func New() *Schema {
	return &Schema{Type: "object", Properties: map[string]Property{}}
}

func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled != nil {
		return s.compiled, nil
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("round-tripping schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	const resourceName = "kiln://tool-schema.json"
	if err := c.AddResource(resourceName, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := c.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	s.compiled = compiled
	return compiled, nil
}

// Validate checks input against the schema, compiling it on first use.
func (s *Schema) Validate(input map[string]any) error {
	compiled, err := s.compile()
	if err != nil {
		return err
	}
	if err := compiled.Validate(input); err != nil {
		return fmt.Errorf("argument validation: %w", err)
	}
	return nil
}

// Keys returns the top-level property names this schema declares: the
// required ones first, in Required order, then the rest in no particular
// order. The argument inferencer
// introspects these keys to decide which repair prompt to send the model.
func (s *Schema) Keys() []string {
	keys := make([]string, 0, len(s.Properties))
	seen := make(map[string]bool, len(s.Properties))
	for _, k := range s.Required {
		if _, ok := s.Properties[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	for k := range s.Properties {
		if !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	return keys
}

// IsRequired reports whether key is one of the schema's required fields.
func (s *Schema) IsRequired(key string) bool {
	for _, r := range s.Required {
		if r == key {
			return true
		}
	}
	return false
}
