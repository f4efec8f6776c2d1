// Package validation checks job payloads against the JSON schemas shipped with the workers.
package validation

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	SchemaFieldBag     = "field_bag"
	SchemaPolicyRecord = "policy_record"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// NewSchema compiles raw as a JSON schema.
func NewSchema(name string, raw []byte) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

func (s *Schema) Name() string {
	return s.name
}

// Validate checks any JSON-marshalable value. The error is reserved for documents
// that cannot be loaded at all; schema violations are reported in the result.
func (s *Schema) Validate(document interface{}) (*ValidationResult, error) {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validate against %s: %w", s.name, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool {
		return out.Errors[i].Field < out.Errors[j].Field
	})
	return out, nil
}

var embedded = sync.OnceValues(func() (map[string]*Schema, error) {
	out := make(map[string]*Schema)
	for _, name := range []string{SchemaFieldBag, SchemaPolicyRecord} {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, err
		}
		s, err := NewSchema(name, raw)
		if err != nil {
			return nil, err
		}
		out[name] = s
	}
	return out, nil
})

// Lookup returns one of the embedded schemas.
func Lookup(name string) (*Schema, error) {
	schemas, err := embedded()
	if err != nil {
		return nil, err
	}
	s, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// ValidateFieldBag checks a map-policy-fields job payload.
func ValidateFieldBag(document interface{}) (*ValidationResult, error) {
	s, err := Lookup(SchemaFieldBag)
	if err != nil {
		return nil, err
	}
	return s.Validate(document)
}

// ValidatePolicyRecord checks the structure of a policy record.
func ValidatePolicyRecord(document interface{}) (*ValidationResult, error) {
	s, err := Lookup(SchemaPolicyRecord)
	if err != nil {
		return nil, err
	}
	return s.Validate(document)
}

// GetErrorMessages returns "field: message" for every error.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, e := range vr.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var out []ValidationError
	for _, e := range vr.Errors {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}
