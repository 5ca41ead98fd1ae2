package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Version      string        `json:"version,omitempty"`
	Passed       bool          `json:"passed"`
	Error        string        `json:"error,omitempty"`
	Placeholders []string      `json:"placeholders,omitempty"`
	Upload       *JSONExchange `json:"upload,omitempty"`
	Analyze      *JSONExchange `json:"analyze,omitempty"`
	Cleanup      []string      `json:"cleanupErrors,omitempty"`
	Duration     float64       `json:"duration"`
	Time         string        `json:"time"`
}

// JSONExchange represents one request/response pair
type JSONExchange struct {
	URL         string            `json:"url"`
	RequestBody json.RawMessage   `json:"requestBody,omitempty"`
	StatusCode  int               `json:"statusCode,omitempty"`
	Status      string            `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        any               `json:"body,omitempty"`
	RawBody     string            `json:"rawBody,omitempty"`
	Duration    float64           `json:"duration"`
}

// JSONFormatter writes a single JSON document per run
type JSONFormatter struct {
	writer  io.Writer
	version string
	err     error
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		if w != nil {
			f.writer = w
		}
	}
}

func (f *JSONFormatter) FormatHeader(version string) {
	f.version = version
}

// FormatPhase does nothing; the document is written once the run ends
func (f *JSONFormatter) FormatPhase(phase runner.Phase, result *runner.RunResult) {}

// FormatError emits a standalone document for errors that happen before a run
func (f *JSONFormatter) FormatError(err error) {
	out := JSONOutput{
		Version: f.version,
		Passed:  false,
		Error:   err.Error(),
		Time:    time.Now().Format(time.RFC3339),
	}
	f.err = f.encode(out)
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	out := JSONOutput{
		Version:      f.version,
		Passed:       result.Passed(),
		Placeholders: result.Placeholders,
		Duration:     float64(result.Duration.Milliseconds()),
		Time:         time.Now().Format(time.RFC3339),
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}

	if result.Upload != nil {
		out.Upload = &JSONExchange{
			URL:        result.UploadURL,
			StatusCode: result.Upload.StatusCode,
			Status:     result.Upload.Status,
			Headers:    result.Upload.Headers,
			Body:       result.UploadJSON,
			Duration:   float64(result.Upload.Duration.Milliseconds()),
		}
		if result.UploadJSON == nil {
			out.Upload.RawBody = result.Upload.BodyString()
		}
	}

	if result.Analyzed {
		out.Analyze = &JSONExchange{
			URL:         result.AnalyzeURL,
			RequestBody: json.RawMessage(result.AnalyzeBody),
		}
		if result.Analyze != nil {
			out.Analyze.StatusCode = result.Analyze.StatusCode
			out.Analyze.Status = result.Analyze.Status
			out.Analyze.Headers = result.Analyze.Headers
			out.Analyze.Body = result.AnalyzeJSON
			out.Analyze.Duration = float64(result.Analyze.Duration.Milliseconds())
			if result.AnalyzeJSON == nil {
				out.Analyze.RawBody = result.Analyze.BodyString()
			}
		}
	}

	for _, err := range result.CleanupErrors {
		out.Cleanup = append(out.Cleanup, err.Error())
	}

	f.err = f.encode(out)
}

// Err returns the last write error, if any
func (f *JSONFormatter) Err() error {
	return f.err
}

func (f *JSONFormatter) encode(out JSONOutput) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
