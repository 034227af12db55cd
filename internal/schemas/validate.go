// Package schemas provides JSON Schema validation for the ontology and report artifacts.
// Schemas are embedded at compile time.
package schemas

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names accepted by Validate.
const (
	Ontology  = "ontology.schema.json"
	GapReport = "gap_report.schema.json"
)

//go:embed *.schema.json
var schemaFiles embed.FS

var (
	compileMu sync.Mutex
	compiled  = map[string]*gojsonschema.Schema{}
)

// FieldError is one schema violation, addressed by its dotted document path.
type FieldError struct {
	Field   string
	Message string
}

func (fe FieldError) String() string {
	return fe.Field + ": " + fe.Message
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d problem(s)", ve.Schema, len(ve.Errors))
	for i, fe := range ve.Errors {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, fe)
	}
	return sb.String()
}

// Messages returns one "field: message" line per violation.
func (ve *ValidationError) Messages() []string {
	out := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		out[i] = fe.String()
	}
	return out
}

// SchemaLoadError means validation could not run: the schema is missing or
// either side is not parseable JSON.
type SchemaLoadError struct {
	Name    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("schema %s: %s: %v", e.Name, e.Message, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error { return e.Cause }

func schemaFor(name string) (*gojsonschema.Schema, error) {
	compileMu.Lock()
	defer compileMu.Unlock()
	if s, ok := compiled[name]; ok {
		return s, nil
	}
	raw, err := schemaFiles.ReadFile(name)
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "not embedded", Cause: err}
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "invalid schema", Cause: err}
	}
	compiled[name] = s
	return s, nil
}

// Validate checks a JSON document against one of the embedded schemas.
// A document that is not JSON yields a SchemaLoadError; violations yield a ValidationError.
func Validate(name string, document []byte) error {
	schema, err := schemaFor(name)
	if err != nil {
		return err
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return &SchemaLoadError{Name: name, Message: "unreadable document", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Schema: name}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return ve
}
