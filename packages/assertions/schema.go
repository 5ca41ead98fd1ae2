package assertions

import (
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaError lists the ways a document violated a JSON Schema
type SchemaError struct {
	Schema     string
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed against %s: %s", e.Schema, strings.Join(e.Violations, "; "))
}

// Schema is a loaded JSON Schema document
type Schema struct {
	path   string
	schema *gojsonschema.Schema
}

// LoadSchema reads and compiles the schema at path
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", path, err)
	}

	return &Schema{path: path, schema: compiled}, nil
}

// Validate checks a raw JSON document. A violation yields *SchemaError.
func (s *Schema) Validate(document []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	// Collect validation errors
	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &SchemaError{Schema: s.path, Violations: violations}
}
