// Package schema defines extraction schemas: named lists of field records
// describing how to pull product data out of a page, plus their validation,
// correction, generation, merging, and caching.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PriceParsing carries the rules for turning a raw price string into a
// number.
type PriceParsing struct {
	CurrencySymbols    []string `json:"currency_symbols" yaml:"currency_symbols"`
	DecimalSeparator   string   `json:"decimal_separator" yaml:"decimal_separator"`
	ThousandsSeparator string   `json:"thousands_separator" yaml:"thousands_separator"`
	StripNonNumeric    bool     `json:"strip_non_numeric" yaml:"strip_non_numeric"`
}

// DefaultPriceParsing returns the rules injected by the corrector when a
// price field has none.
func DefaultPriceParsing() *PriceParsing {
	return &PriceParsing{
		CurrencySymbols:    []string{"$", "€", "£", "¥"},
		DecimalSeparator:   ".",
		ThousandsSeparator: ",",
		StripNonNumeric:    true,
	}
}

// Field describes how to extract one product field.
type Field struct {
	Name                 string        `json:"name" yaml:"name" validate:"required"`
	Selector             string        `json:"selector" yaml:"selector"`
	Attribute            string        `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Required             bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Array                bool          `json:"array,omitempty" yaml:"array,omitempty"`
	Description          string        `json:"description,omitempty" yaml:"description,omitempty"`
	AlternativeSelectors []string      `json:"alternative_selectors,omitempty" yaml:"alternative_selectors,omitempty"`
	PriceParsing         *PriceParsing `json:"price_parsing,omitempty" yaml:"price_parsing,omitempty"`
	PostProcess          []string      `json:"post_process,omitempty" yaml:"post_process,omitempty"`
}

// Schema is a named list of extraction fields. The title and price fields
// are always required.
type Schema struct {
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// RequiredFieldNames are the fields every schema must define.
var RequiredFieldNames = []string{"title", "price"}

// Field returns the field with the given name, if present.
func (s *Schema) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// FieldNames lists the schema's field names in order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// FromMap builds a Schema from a decoded document. Two shapes are
// accepted: the canonical {"fields": [...]} form, and a bare mapping of
// field name to either a selector string or a field config object. Bare
// selector strings get attribute "text" injected.
func FromMap(raw map[string]any) (Schema, error) {
	if raw == nil {
		return Schema{}, fmt.Errorf("schema must be a mapping")
	}

	var s Schema
	if name, ok := raw["name"].(string); ok {
		s.Name = name
	}

	if fieldsRaw, ok := raw["fields"]; ok {
		list, ok := fieldsRaw.([]any)
		if !ok {
			return Schema{}, fmt.Errorf("schema fields must be a list, got %T", fieldsRaw)
		}
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return Schema{}, fmt.Errorf("field %d must be a mapping, got %T", i, item)
			}
			f, err := fieldFromMap(asMapString(m, "name"), m)
			if err != nil {
				return Schema{}, fmt.Errorf("field %d: %w", i, err)
			}
			s.Fields = append(s.Fields, f)
		}
		return s, nil
	}

	// Bare mapping shape: {field_name: selector_or_config}.
	for name, val := range raw {
		if name == "name" {
			continue
		}
		switch v := val.(type) {
		case string:
			s.Fields = append(s.Fields, Field{
				Name:      name,
				Selector:  v,
				Attribute: "text",
			})
		case map[string]any:
			f, err := fieldFromMap(name, v)
			if err != nil {
				return Schema{}, fmt.Errorf("field %q: %w", name, err)
			}
			s.Fields = append(s.Fields, f)
		default:
			return Schema{}, fmt.Errorf("field %q must be a selector string or config mapping, got %T", name, val)
		}
	}
	return s, nil
}

func fieldFromMap(name string, m map[string]any) (Field, error) {
	f := Field{Name: name}
	if f.Name == "" {
		f.Name = asMapString(m, "name")
	}

	f.Selector = asMapString(m, "selector")
	f.Attribute = asMapString(m, "attribute")
	f.Description = asMapString(m, "description")

	if v, ok := m["required"]; ok {
		b, ok := v.(bool)
		if !ok {
			return f, fmt.Errorf("required must be a boolean, got %T", v)
		}
		f.Required = b
	}
	if v, ok := m["array"]; ok {
		b, ok := v.(bool)
		if !ok {
			return f, fmt.Errorf("array must be a boolean, got %T", v)
		}
		f.Array = b
	}
	if v, ok := m["alternative_selectors"]; ok {
		list, ok := v.([]any)
		if !ok {
			return f, fmt.Errorf("alternative_selectors must be a list, got %T", v)
		}
		for _, item := range list {
			if sel, ok := item.(string); ok {
				f.AlternativeSelectors = append(f.AlternativeSelectors, sel)
			}
		}
	}
	if v, ok := m["price_parsing"]; ok {
		pm, ok := v.(map[string]any)
		if !ok {
			return f, fmt.Errorf("price_parsing must be a mapping, got %T", v)
		}
		pp := &PriceParsing{
			DecimalSeparator:   asMapString(pm, "decimal_separator"),
			ThousandsSeparator: asMapString(pm, "thousands_separator"),
		}
		if syms, ok := pm["currency_symbols"].([]any); ok {
			for _, sym := range syms {
				if s, ok := sym.(string); ok {
					pp.CurrencySymbols = append(pp.CurrencySymbols, s)
				}
			}
		}
		if strip, ok := pm["strip_non_numeric"].(bool); ok {
			pp.StripNonNumeric = strip
		}
		f.PriceParsing = pp
	}

	return f, nil
}

func asMapString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// FromJSON creates a schema from JSON data, accepting both supported
// shapes.
func FromJSON(data []byte) (Schema, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Schema{}, fmt.Errorf("failed to parse JSON schema: %w", err)
	}
	return FromMap(raw)
}

// FromYAML creates a schema from YAML data, accepting both supported
// shapes.
func FromYAML(data []byte) (Schema, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Schema{}, fmt.Errorf("failed to parse YAML schema: %w", err)
	}
	return FromMap(raw)
}

// FromFile loads a schema from a JSON or YAML file.
func FromFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FromJSON(data)
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return Schema{}, fmt.Errorf("unsupported schema file format: %s", filepath.Ext(path))
	}
}

// ToJSON serialises the schema in the canonical shape.
func (s Schema) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Save writes the schema to a JSON or YAML file based on the extension.
func (s Schema) Save(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = s.ToJSON()
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		return fmt.Errorf("unsupported schema file format: %s", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
