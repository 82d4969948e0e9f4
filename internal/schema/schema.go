// Package schema reflects structural schemas from tool input structs and
// validates candidate inputs against them.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// Field describes one declared input field of a tool.
type Field struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Schema is a compiled structural schema for a tool's input object.
type Schema struct {
	document map[string]any
	compiled *gojsonschema.Schema
	fields   []Field
	required []string
}

// ValidationError lists the structural violations found in an input.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Violations, "; ")
}

var reflector = &jsonschema.Reflector{
	AllowAdditionalProperties:  true,
	RequiredFromJSONSchemaTags: true,
	DoNotReference:             true,
	ExpandedStruct:             true,
	Anonymous:                  true,
}

// FromStruct builds a Schema from the exported fields of v.
// Fields tagged `jsonschema:"required"` are required.
func FromStruct(v any) (*Schema, error) {
	if v == nil || reflect.Indirect(reflect.ValueOf(v)).Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema source must be a struct, got %T", v)
	}
	reflected := reflector.Reflect(v)

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var document map[string]any
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	// gojsonschema only understands up to draft 7.
	delete(document, "$schema")
	delete(document, "$id")

	loader := gojsonschema.NewSchemaLoader()
	loader.Draft = gojsonschema.Draft7
	loader.AutoDetect = false
	compiled, err := loader.Compile(gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	s := &Schema{
		document: document,
		compiled: compiled,
		required: append([]string(nil), reflected.Required...),
	}
	requiredSet := make(map[string]bool, len(s.required))
	for _, name := range s.required {
		requiredSet[name] = true
	}
	if reflected.Properties != nil {
		for pair := reflected.Properties.Oldest(); pair != nil; pair = pair.Next() {
			fieldType := pair.Value.Type
			if fieldType == "" {
				fieldType = "any"
			}
			s.fields = append(s.fields, Field{
				Name:        pair.Key,
				Type:        fieldType,
				Description: pair.Value.Description,
				Required:    requiredSet[pair.Key],
			})
		}
	}
	return s, nil
}

// MustFromStruct is FromStruct for package-level tool schemas.
func MustFromStruct(v any) *Schema {
	s, err := FromStruct(v)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Required returns the names of the required fields.
func (s *Schema) Required() []string {
	return append([]string(nil), s.required...)
}

// Document returns the schema as a JSON-compatible map.
func (s *Schema) Document() map[string]any {
	return s.document
}

// Validate checks input against the schema. Null values count as omitted.
// It returns a *ValidationError listing every violation, or nil.
func (s *Schema) Validate(input map[string]any) error {
	doc := make(map[string]any, len(input))
	for k, v := range input {
		if v != nil {
			doc[k] = v
		}
	}
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationError{Violations: []string{fmt.Sprintf("input could not be validated: %v", err)}}
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, re.String())
	}
	return &ValidationError{Violations: violations}
}

// Violations flattens err into a message list. A *ValidationError yields its
// violations, any other error yields its message.
func Violations(err error) []string {
	if err == nil {
		return nil
	}
	if ve, ok := err.(*ValidationError); ok {
		return append([]string(nil), ve.Violations...)
	}
	return []string{err.Error()}
}

// HasValue reports whether v counts as present for a required field.
// nil, blank strings, and empty slices or maps are absent.
func HasValue(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// Decode copies a validated input map into a typed struct.
func Decode(input map[string]any, out any) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode input: %w", err)
	}
	return nil
}
