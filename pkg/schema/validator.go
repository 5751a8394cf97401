package schema

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/go-playground/validator/v10"

	"github.com/hexleaf/prodex/internal/logger"
)

// ValidationError describes one problem found in a schema.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// Correction records one fix the corrector applied, kept as data so
// callers can report what changed.
type Correction struct {
	Field  string `json:"field"`
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}

// defaultSelectors maps common product field names to their fallback
// selectors. Fields not listed get ".<name>".
var defaultSelectors = map[string]string{
	"title":        "h1, .product-title, [itemprop='name']",
	"price":        ".price, .product-price, [itemprop='price']",
	"description":  ".description, .product-description, [itemprop='description']",
	"brand":        ".brand, [itemprop='brand']",
	"images":       ".product-image img, .gallery img, [itemprop='image']",
	"sku":          ".sku, [itemprop='sku']",
	"availability": ".availability, .stock, [itemprop='availability']",
	"category":     ".breadcrumb, .category, [itemprop='category']",
	"rating":       ".rating, [itemprop='ratingValue']",
}

// commonFields are the product fields counted for schema coverage.
var commonFields = []string{
	"title", "price", "description", "brand", "images", "sku", "availability",
}

// arrayByDefault lists fields that hold multiple values.
var arrayByDefault = map[string]bool{
	"images":     true,
	"categories": true,
	"reviews":    true,
	"variants":   true,
}

// Validator checks schemas and repairs common defects.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a schema validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate reports every problem in the schema. A nil result means the
// schema is usable as-is.
func (v *Validator) Validate(s Schema) []ValidationError {
	var errs []ValidationError

	if len(s.Fields) == 0 {
		return []ValidationError{{Message: "schema has no fields"}}
	}

	seen := make(map[string]bool)
	dupes := make(map[string]bool)
	for _, f := range s.Fields {
		if err := v.validate.Struct(f); err != nil {
			errs = append(errs, ValidationError{Field: f.Name, Message: "field name is required"})
			continue
		}
		if seen[f.Name] && !dupes[f.Name] {
			errs = append(errs, ValidationError{Field: f.Name, Message: "duplicate field name"})
			dupes[f.Name] = true
		}
		seen[f.Name] = true

		if f.Selector == "" {
			errs = append(errs, ValidationError{Field: f.Name, Message: "selector is empty"})
		} else if _, err := cascadia.Compile(f.Selector); err != nil {
			errs = append(errs, ValidationError{
				Field:   f.Name,
				Message: fmt.Sprintf("invalid selector %q: %v", f.Selector, err),
			})
		}
		for _, alt := range f.AlternativeSelectors {
			if _, err := cascadia.Compile(alt); err != nil {
				errs = append(errs, ValidationError{
					Field:   f.Name,
					Message: fmt.Sprintf("invalid alternative selector %q: %v", alt, err),
				})
			}
		}
		if f.Name == "price" && f.PriceParsing != nil && f.PriceParsing.DecimalSeparator == f.PriceParsing.ThousandsSeparator {
			errs = append(errs, ValidationError{
				Field:   f.Name,
				Message: "decimal and thousands separators must differ",
			})
		}
	}

	for _, required := range RequiredFieldNames {
		if !seen[required] {
			errs = append(errs, ValidationError{
				Field:   required,
				Message: "required field is missing",
			})
		}
	}

	return errs
}

// Correct repairs the schema so that Validate passes on the result:
// missing required fields are added with default selectors, empty or
// broken selectors are replaced, attribute/array defaults are filled, and
// a price field gains parsing rules. The applied corrections are returned
// as data.
func (v *Validator) Correct(s Schema) (Schema, []Correction) {
	out := Schema{Name: s.Name}
	var corrections []Correction

	seen := make(map[string]bool)
	for _, f := range s.Fields {
		if f.Name == "" {
			corrections = append(corrections, Correction{
				Action: "dropped_field",
				Detail: "field without a name removed",
			})
			continue
		}
		if seen[f.Name] {
			corrections = append(corrections, Correction{
				Field:  f.Name,
				Action: "dropped_duplicate",
			})
			continue
		}
		seen[f.Name] = true
		out.Fields = append(out.Fields, v.correctField(f, &corrections))
	}

	for _, required := range RequiredFieldNames {
		if seen[required] {
			continue
		}
		out.Fields = append(out.Fields, v.correctField(Field{
			Name:     required,
			Required: true,
		}, &corrections))
		corrections = append(corrections, Correction{
			Field:  required,
			Action: "added_required_field",
		})
	}

	if len(corrections) > 0 {
		logger.Debug("schema corrected",
			"schema", s.Name,
			"corrections", len(corrections))
	}
	return out, corrections
}

func (v *Validator) correctField(f Field, corrections *[]Correction) Field {
	if f.Selector == "" {
		f.Selector = DefaultSelector(f.Name)
		*corrections = append(*corrections, Correction{
			Field:  f.Name,
			Action: "default_selector",
			Detail: f.Selector,
		})
	} else if _, err := cascadia.Compile(f.Selector); err != nil {
		replaced := DefaultSelector(f.Name)
		*corrections = append(*corrections, Correction{
			Field:  f.Name,
			Action: "replaced_invalid_selector",
			Detail: fmt.Sprintf("%s -> %s", f.Selector, replaced),
		})
		f.Selector = replaced
	}

	// Filter into a fresh slice so the caller's schema is left untouched.
	if len(f.AlternativeSelectors) > 0 {
		kept := make([]string, 0, len(f.AlternativeSelectors))
		for _, alt := range f.AlternativeSelectors {
			if _, err := cascadia.Compile(alt); err != nil {
				*corrections = append(*corrections, Correction{
					Field:  f.Name,
					Action: "dropped_invalid_alternative",
					Detail: alt,
				})
				continue
			}
			kept = append(kept, alt)
		}
		f.AlternativeSelectors = kept
	}

	if f.Attribute == "" {
		f.Attribute = "text"
		if f.Name == "images" {
			f.Attribute = "src"
		}
		*corrections = append(*corrections, Correction{
			Field:  f.Name,
			Action: "default_attribute",
			Detail: f.Attribute,
		})
	}

	for _, required := range RequiredFieldNames {
		if f.Name == required && !f.Required {
			f.Required = true
			*corrections = append(*corrections, Correction{
				Field:  f.Name,
				Action: "marked_required",
			})
		}
	}
	if arrayByDefault[f.Name] && !f.Array {
		f.Array = true
		*corrections = append(*corrections, Correction{
			Field:  f.Name,
			Action: "marked_array",
		})
	}

	if f.Name == "price" {
		if f.PriceParsing == nil {
			f.PriceParsing = DefaultPriceParsing()
			*corrections = append(*corrections, Correction{
				Field:  f.Name,
				Action: "default_price_parsing",
			})
		} else if f.PriceParsing.DecimalSeparator == f.PriceParsing.ThousandsSeparator {
			f.PriceParsing.DecimalSeparator = "."
			f.PriceParsing.ThousandsSeparator = ","
			*corrections = append(*corrections, Correction{
				Field:  f.Name,
				Action: "fixed_price_separators",
			})
		}
	}

	return f
}

// DefaultSelector returns the registry selector for a field name, or the
// ".<name>" fallback.
func DefaultSelector(name string) string {
	if sel, ok := defaultSelectors[name]; ok {
		return sel
	}
	return "." + strings.ToLower(name)
}

// QualityScore rates a schema in [0, 1]. Each field scores up to 1.0:
// 0.5 for having a name and selector, 0.1 for marking an expected field
// required, 0.1 for a non-trivial selector, 0.1 for an explicit
// attribute, and 0.2 for price parsing rules on the price field. The
// field average is blended 70/30 with coverage of common product fields.
func (v *Validator) QualityScore(s Schema) float64 {
	if len(s.Fields) == 0 {
		return 0
	}

	var total float64
	present := make(map[string]bool)
	for _, f := range s.Fields {
		present[f.Name] = true

		var score float64
		if f.Name != "" && f.Selector != "" {
			score += 0.5
		}
		if f.Required && isRequiredName(f.Name) {
			score += 0.1
		}
		if len(f.Selector) > 5 {
			score += 0.1
		}
		if f.Attribute != "" {
			score += 0.1
		}
		if f.Name == "price" && f.PriceParsing != nil {
			score += 0.2
		}
		total += score
	}
	fieldAvg := total / float64(len(s.Fields))

	var covered int
	for _, name := range commonFields {
		if present[name] {
			covered++
		}
	}
	coverage := float64(covered) / float64(len(commonFields))

	return 0.7*fieldAvg + 0.3*coverage
}

func isRequiredName(name string) bool {
	for _, required := range RequiredFieldNames {
		if name == required {
			return true
		}
	}
	return false
}
