package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
	"github.com/abdul-hamid-achik/uploadprobe/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func successResult() *runner.RunResult {
	return &runner.RunResult{
		UploadURL:    "http://localhost:3001/api/upload",
		AnalyzeURL:   "http://localhost:3001/api/analyze",
		Placeholders: []string{"test_image_0.jpg"},
		Upload: &http.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Body:       []byte(`{"files":["a.jpg"]}`),
			Duration:   12 * time.Millisecond,
		},
		UploadJSON:  map[string]any{"files": []any{"a.jpg"}},
		Files:       json.RawMessage(`["a.jpg"]`),
		Analyzed:    true,
		AnalyzeBody: []byte(`{"files":["a.jpg"]}`),
		Analyze: &http.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Body:       []byte(`{"message":"done"}`),
		},
		AnalyzeJSON: map[string]any{"message": "done"},
		Duration:    20 * time.Millisecond,
	}
}

func TestConsoleFormatter_Success(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	f.FormatHeader("1.0.0")
	f.FormatResult(successResult())

	out := buf.String()
	assert.Contains(t, out, "uploadprobe 1.0.0")
	assert.Contains(t, out, "upload response: {")
	assert.Contains(t, out, `"a.jpg"`)
	assert.Contains(t, out, "analyze response: {")
	assert.Contains(t, out, `"message": "done"`)
	assert.Contains(t, out, `analyze body: {"files":["a.jpg"]}`)
	assert.Contains(t, out, "✓ passed")
	assert.NotContains(t, out, "Error:")
}

func TestConsoleFormatter_FormatPhase(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
	result := successResult()

	f.FormatPhase(runner.PhaseUpload, result)
	assert.Contains(t, buf.String(), "upload response: {")
	assert.NotContains(t, buf.String(), "analyze response")

	f.FormatPhase(runner.PhaseAnalyze, result)
	assert.Contains(t, buf.String(), "analyze response: {")

	f.FormatResult(result)
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "upload response:"))
	assert.Equal(t, 1, strings.Count(out, "analyze response:"))
	assert.Contains(t, out, "✓ passed")

	// the next run starts fresh
	buf.Reset()
	f.FormatResult(result)
	assert.Contains(t, buf.String(), "upload response:")
}

func TestJSONFormatter_FormatPhaseWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	f.FormatPhase(runner.PhaseUpload, successResult())
	assert.Zero(t, buf.Len())
}

func TestConsoleFormatter_SkippedAnalyze(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	result := &runner.RunResult{
		UploadURL:  "http://localhost:3001/api/upload",
		Upload:     &http.Response{StatusCode: 400, Body: []byte(`{"error":"need 5"}`)},
		UploadJSON: map[string]any{"error": "need 5"},
	}
	f.FormatResult(result)

	out := buf.String()
	assert.Contains(t, out, "analyze skipped (upload status 400)")
	assert.NotContains(t, out, "analyze response")
}

func TestConsoleFormatter_Failure(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	result := &runner.RunResult{
		Err:           errors.New("upload request to http://x failed: connection refused"),
		CleanupErrors: []error{errors.New("removing test_image_1.jpg: permission denied")},
	}
	f.FormatResult(result)

	out := buf.String()
	assert.Contains(t, out, "✗ failed")
	assert.Contains(t, out, "Error: upload request to http://x failed")
	assert.Contains(t, out, "cleanup: removing test_image_1.jpg")
}

func TestJSONFormatter_Success(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	f.FormatHeader("1.0.0")
	f.FormatResult(successResult())
	require.NoError(t, f.Err())

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.True(t, out.Passed)
	assert.Equal(t, "1.0.0", out.Version)
	require.NotNil(t, out.Upload)
	assert.Equal(t, 200, out.Upload.StatusCode)
	require.NotNil(t, out.Analyze)
	assert.JSONEq(t, `{"files":["a.jpg"]}`, string(out.Analyze.RequestBody))
	assert.Equal(t, map[string]any{"message": "done"}, out.Analyze.Body)
}

func TestJSONFormatter_InvalidBody(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	f.FormatResult(&runner.RunResult{
		Upload: &http.Response{StatusCode: 502, Body: []byte("Bad Gateway")},
		Err:    errors.New("upload response: response body is not valid JSON"),
	})

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.False(t, out.Passed)
	assert.Equal(t, "Bad Gateway", out.Upload.RawBody)
	assert.Nil(t, out.Analyze)
	assert.Contains(t, out.Error, "not valid JSON")
}

func TestJSONFormatter_FormatError(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	f.FormatError(errors.New("invalid config"))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.False(t, out.Passed)
	assert.Equal(t, "invalid config", out.Error)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	f, err := New("console", &buf, false, true)
	require.NoError(t, err)
	assert.IsType(t, &ConsoleFormatter{}, f)

	f, err = New("JSON", &buf, false, true)
	require.NoError(t, err)
	assert.IsType(t, &JSONFormatter{}, f)

	_, err = New("junit", &buf, false, true)
	assert.Error(t, err)
}
