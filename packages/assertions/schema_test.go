package assertions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uploadSchema = `{
  "type": "object",
  "required": ["files"],
  "properties": {
    "files": {"type": "array", "minItems": 1}
  }
}`

func writeSchema(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.schema.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSchema_Validate(t *testing.T) {
	s, err := LoadSchema(writeSchema(t, uploadSchema))
	require.NoError(t, err)

	t.Run("valid document", func(t *testing.T) {
		assert.NoError(t, s.Validate([]byte(`{"files":["a.jpg"]}`)))
	})

	t.Run("missing files", func(t *testing.T) {
		err := s.Validate([]byte(`{"message":"ok"}`))
		require.Error(t, err)

		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.NotEmpty(t, schemaErr.Violations)
		assert.Contains(t, err.Error(), "files")
	})

	t.Run("wrong type", func(t *testing.T) {
		err := s.Validate([]byte(`{"files":"a.jpg"}`))
		var schemaErr *SchemaError
		assert.True(t, errors.As(err, &schemaErr))
	})

	t.Run("not json", func(t *testing.T) {
		err := s.Validate([]byte(`nope`))
		require.Error(t, err)
		var schemaErr *SchemaError
		assert.False(t, errors.As(err, &schemaErr))
	})
}

func TestLoadSchema_Errors(t *testing.T) {
	_, err := LoadSchema(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadSchema(writeSchema(t, `{"type": 12}`))
	assert.Error(t, err)
}
