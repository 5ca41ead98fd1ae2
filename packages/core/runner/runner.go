package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/assertions"
	"github.com/abdul-hamid-achik/uploadprobe/packages/capture"
	"github.com/abdul-hamid-achik/uploadprobe/packages/core/config"
	"github.com/abdul-hamid-achik/uploadprobe/packages/http"
	"github.com/abdul-hamid-achik/uploadprobe/packages/logging"
	"github.com/abdul-hamid-achik/uploadprobe/packages/placeholder"
	"github.com/sirupsen/logrus"
)

type Runner struct {
	client *http.Client
	config *Config
	schema *assertions.Schema
	log    *logrus.Entry
	hooks  []PhaseHook
}

type Config struct {
	BaseURL        string
	UploadPath     string
	AnalyzePath    string
	FieldName      string
	FilesField     string
	ContentType    string
	Count          int
	Prefix         string
	Extension      string
	Content        []byte
	WorkDir        string
	Timeout        time.Duration // 0 = wait indefinitely
	FollowRedirect bool
	MaxRedirects   int // 0 = client default
	ValidateSSL    bool
	Proxy          string
	DefaultHeaders map[string]string
	FormFields     map[string]string // plain parts sent ahead of the files
	UploadSchema   string
}

// DefaultConfig mirrors the stock smoke test: five placeholders against
// localhost:3001 with no timeout.
func DefaultConfig() *Config {
	return FromConfig(config.DefaultConfig())
}

// FromConfig converts a loaded file/env configuration into runner settings
func FromConfig(c *config.Config) *Config {
	return &Config{
		BaseURL:        c.BaseURL,
		UploadPath:     c.UploadPath,
		AnalyzePath:    c.AnalyzePath,
		FieldName:      c.FieldName,
		FilesField:     c.FilesField,
		ContentType:    c.ContentType,
		Count:          c.GetCount(),
		Prefix:         c.Prefix,
		Extension:      c.Extension,
		Content:        []byte(c.GetContent()),
		WorkDir:        c.WorkDir,
		Timeout:        time.Duration(c.Timeout) * time.Millisecond,
		FollowRedirect: c.GetFollowRedirects(),
		MaxRedirects:   c.MaxRedirects,
		ValidateSSL:    c.GetValidateSSL(),
		Proxy:          c.Proxy,
		DefaultHeaders: c.Headers,
		FormFields:     c.Form,
		UploadSchema:   c.UploadSchema,
	}
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the diagnostics logger
func WithLogger(logger *logrus.Logger) Option {
	return func(r *Runner) {
		r.log = logging.Entry(logger, "uploadprobe")
	}
}

// Phase names a request of a run
type Phase string

const (
	PhaseUpload  Phase = "upload"
	PhaseAnalyze Phase = "analyze"
)

// PhaseHook is called once a phase's response has been read and parsed,
// before the run moves on. The result is still being filled in.
type PhaseHook func(phase Phase, result *RunResult)

// WithPhaseHook adds a hook called after each response
func WithPhaseHook(hook PhaseHook) Option {
	return func(r *Runner) {
		if hook != nil {
			r.hooks = append(r.hooks, hook)
		}
	}
}

// WithHTTPClient replaces the client built from Config
func WithHTTPClient(client *http.Client) Option {
	return func(r *Runner) {
		r.client = client
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	clientOpts := []http.ClientOption{
		http.WithFollowRedirects(cfg.FollowRedirect),
		http.WithMaxRedirects(cfg.MaxRedirects),
		http.WithValidateSSL(cfg.ValidateSSL),
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
	}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
	}
	if len(cfg.DefaultHeaders) > 0 {
		clientOpts = append(clientOpts, http.WithDefaultHeaders(cfg.DefaultHeaders))
	}

	r := &Runner{
		client: http.NewClient(clientOpts...),
		config: cfg,
		log:    logging.Entry(logging.Discard(), ""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UploadURL is the endpoint receiving the multipart upload
func (r *Runner) UploadURL() string {
	return http.JoinURL(r.config.BaseURL, r.config.UploadPath)
}

// AnalyzeURL is the endpoint receiving the follow-up request
func (r *Runner) AnalyzeURL() string {
	return http.JoinURL(r.config.BaseURL, r.config.AnalyzePath)
}

// RunResult records everything observed during one run. Fields for phases
// that never happened are left zero.
type RunResult struct {
	UploadURL     string
	AnalyzeURL    string
	Placeholders  []string
	Upload        *http.Response
	UploadJSON    any
	Files         json.RawMessage
	Analyzed      bool
	AnalyzeBody   []byte
	Analyze       *http.Response
	AnalyzeJSON   any
	CleanupErrors []error
	Duration      time.Duration
	Err           error
}

// Passed reports whether the run completed without a fault
func (r *RunResult) Passed() bool {
	return r.Err == nil
}

// Run creates the placeholders, uploads them, forwards the returned file
// list to the analyze endpoint on a 200 and always removes the placeholders
// before returning. The result is non-nil even when err is not.
func (r *Runner) Run(ctx context.Context) (result *RunResult, err error) {
	start := time.Now()
	result = &RunResult{
		UploadURL:  r.UploadURL(),
		AnalyzeURL: r.AnalyzeURL(),
	}
	defer func() {
		result.Duration = time.Since(start)
		result.Err = err
	}()

	if r.config.UploadSchema != "" && r.schema == nil {
		r.schema, err = assertions.LoadSchema(r.config.UploadSchema)
		if err != nil {
			return result, fmt.Errorf("loading upload schema: %w", err)
		}
	}

	set, err := placeholder.Create(r.workDir(),
		placeholder.WithCount(r.config.Count),
		placeholder.WithPrefix(r.config.Prefix),
		placeholder.WithExtension(r.config.Extension),
		placeholder.WithContent(r.config.Content),
	)
	if err != nil {
		return result, fmt.Errorf("creating placeholder files: %w", err)
	}
	result.Placeholders = set.Names()
	r.log.WithField("count", len(set.Names())).WithField("dir", set.Dir()).Debug("created placeholder files")

	defer func() {
		result.CleanupErrors = set.Cleanup()
		for _, cerr := range result.CleanupErrors {
			r.log.WithError(cerr).Warn("placeholder cleanup failed")
		}
		r.log.Debug("placeholder cleanup finished")
	}()

	upload, err := r.upload(ctx, set)
	if err != nil {
		return result, err
	}
	result.Upload = upload

	result.UploadJSON, err = capture.ParseJSON(upload)
	r.report(PhaseUpload, result)
	if err != nil {
		return result, fmt.Errorf("upload response: %w", err)
	}

	if !upload.IsOK() {
		r.log.WithField("status", upload.StatusCode).Info("upload did not return 200, skipping analyze")
		return result, nil
	}

	if r.schema != nil {
		if err := r.schema.Validate(upload.Body); err != nil {
			return result, fmt.Errorf("upload response: %w", err)
		}
	}

	result.Files, err = capture.Field(upload, r.config.FilesField)
	if err != nil {
		return result, fmt.Errorf("upload response: %w", err)
	}

	result.AnalyzeBody, err = forwardBody(r.config.FilesField, result.Files)
	if err != nil {
		return result, err
	}

	result.Analyzed = true
	analyze, err := r.analyze(ctx, result.AnalyzeBody)
	if err != nil {
		return result, err
	}
	result.Analyze = analyze

	result.AnalyzeJSON, err = capture.ParseJSON(analyze)
	r.report(PhaseAnalyze, result)
	if err != nil {
		return result, fmt.Errorf("analyze response: %w", err)
	}

	return result, nil
}

func (r *Runner) report(phase Phase, result *RunResult) {
	for _, hook := range r.hooks {
		hook(phase, result)
	}
}

func (r *Runner) workDir() string {
	if r.config.WorkDir == "" {
		return "."
	}
	return filepath.Clean(r.config.WorkDir)
}

func (r *Runner) upload(ctx context.Context, set *placeholder.Set) (*http.Response, error) {
	names := make([]string, 0, len(r.config.FormFields))
	for name := range r.config.FormFields {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]*http.MultipartField, 0, len(names)+len(set.Files()))
	for _, name := range names {
		fields = append(fields, http.ValueField(name, r.config.FormFields[name]))
	}
	for _, f := range set.Files() {
		fields = append(fields, http.FileField(r.config.FieldName, f.Name, r.config.ContentType, f.Reader()))
	}

	resp, err := r.client.PostMultipart(ctx, r.UploadURL(), fields)
	if cerr := set.Close(); cerr != nil {
		r.log.WithError(cerr).Warn("closing placeholder files")
	}
	if err != nil {
		return nil, &NetworkError{Op: "upload", URL: r.UploadURL(), Err: err}
	}

	r.log.WithFields(logrus.Fields{
		"request_id": resp.RequestID,
		"status":     resp.StatusCode,
		"duration":   resp.Duration,
	}).Info("upload finished")
	return resp, nil
}

func (r *Runner) analyze(ctx context.Context, body []byte) (*http.Response, error) {
	req := http.NewRequest("POST", r.AnalyzeURL()).
		SetBody(body).
		SetHeader("Content-Type", "application/json")

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		return nil, &NetworkError{Op: "analyze", URL: req.URL, Err: err}
	}

	r.log.WithFields(logrus.Fields{
		"request_id": resp.RequestID,
		"status":     resp.StatusCode,
		"duration":   resp.Duration,
	}).Info("analyze finished")
	return resp, nil
}

// forwardBody builds {"<field>": <raw>} without re-encoding raw
func forwardBody(field string, raw json.RawMessage) ([]byte, error) {
	key, err := json.Marshal(field)
	if err != nil {
		return nil, fmt.Errorf("encoding analyze body: %w", err)
	}

	body := make([]byte, 0, len(key)+len(raw)+3)
	body = append(body, '{')
	body = append(body, key...)
	body = append(body, ':')
	body = append(body, raw...)
	body = append(body, '}')
	return body, nil
}

// NetworkError wraps a transport failure for one of the two calls
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s request to %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err came from the transport
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
