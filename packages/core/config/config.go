package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the uploadprobe configuration
type Config struct {
	BaseURL         string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	UploadPath      string            `json:"uploadPath,omitempty" yaml:"uploadPath,omitempty"`
	AnalyzePath     string            `json:"analyzePath,omitempty" yaml:"analyzePath,omitempty"`
	FieldName       string            `json:"fieldName,omitempty" yaml:"fieldName,omitempty"`
	FilesField      string            `json:"filesField,omitempty" yaml:"filesField,omitempty"`
	ContentType     string            `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	Count           *int              `json:"count,omitempty" yaml:"count,omitempty"`
	Prefix          string            `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Extension       string            `json:"extension,omitempty" yaml:"extension,omitempty"`
	Content         *string           `json:"content,omitempty" yaml:"content,omitempty"`
	WorkDir         string            `json:"workDir,omitempty" yaml:"workDir,omitempty"`
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds, 0 = none
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"` // 0 = client default
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	Form            map[string]string `json:"form,omitempty" yaml:"form,omitempty"`       // Plain fields sent with the upload
	UploadSchema    string            `json:"uploadSchema,omitempty" yaml:"uploadSchema,omitempty"`
	Output          string            `json:"output,omitempty" yaml:"output,omitempty"`
	LogLevel        string            `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Verbose         *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to i
func IntPtr(i int) *int {
	return &i
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetCount returns the placeholder count, defaulting to DefaultCount
func (c *Config) GetCount() int {
	if c.Count == nil {
		return DefaultCount
	}
	return *c.Count
}

// GetContent returns the placeholder body, defaulting to DefaultContent
func (c *Config) GetContent() string {
	if c.Content == nil {
		return DefaultContent
	}
	return *c.Content
}

// Validate reports settings that cannot produce a run
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("baseUrl must not be empty")
	}
	if c.GetCount() < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.GetCount())
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", c.Timeout)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects must not be negative, got %d", c.MaxRedirects)
	}
	if c.Proxy != "" {
		if err := validateProxy(c.Proxy); err != nil {
			return err
		}
	}
	if c.FieldName == "" {
		return fmt.Errorf("fieldName must not be empty")
	}
	if c.FilesField == "" {
		return fmt.Errorf("filesField must not be empty")
	}
	switch strings.ToLower(c.Output) {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown output format %q (use console or json)", c.Output)
	}
	return nil
}

func validateProxy(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid proxy URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return fmt.Errorf("invalid proxy URL %q: unsupported scheme %q (use http, https or socks5)", raw, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid proxy URL %q: missing host", raw)
	}
	return nil
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".uploadprobe.json",
	"uploadprobe.config.json",
	".uploadprobe.yaml",
	".uploadprobe.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile loads configuration from a specific file.
// YAML is used for .yaml/.yml files, JSON otherwise.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fileConfig := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fileConfig)
	default:
		err = json.Unmarshal(data, fileConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return DefaultConfig().Merge(fileConfig), nil
}

// EnvPrefix prefixes every environment variable read by ApplyEnv
const EnvPrefix = "UPLOADPROBE_"

// ApplyEnv overlays values from a prefix-stripped variable map such as
// env.LoadPrefixed(EnvPrefix). Unparseable numbers and booleans are errors.
func (c *Config) ApplyEnv(vars map[string]string) (*Config, error) {
	overlay := &Config{}

	strs := map[string]*string{
		"BASE_URL":      &overlay.BaseURL,
		"UPLOAD_PATH":   &overlay.UploadPath,
		"ANALYZE_PATH":  &overlay.AnalyzePath,
		"FIELD_NAME":    &overlay.FieldName,
		"FILES_FIELD":   &overlay.FilesField,
		"CONTENT_TYPE":  &overlay.ContentType,
		"PREFIX":        &overlay.Prefix,
		"EXTENSION":     &overlay.Extension,
		"WORK_DIR":      &overlay.WorkDir,
		"PROXY":         &overlay.Proxy,
		"UPLOAD_SCHEMA": &overlay.UploadSchema,
		"OUTPUT":        &overlay.Output,
		"LOG_LEVEL":     &overlay.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := vars[key]; ok && v != "" {
			*dst = v
		}
	}

	if v, ok := vars["CONTENT"]; ok {
		overlay.Content = StringPtr(v)
	}

	if v := vars["COUNT"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %sCOUNT %q: %w", EnvPrefix, v, err)
		}
		overlay.Count = IntPtr(n)
	}

	if v := vars["TIMEOUT"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %sTIMEOUT %q (milliseconds): %w", EnvPrefix, v, err)
		}
		overlay.Timeout = n
	}

	if v := vars["MAX_REDIRECTS"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %sMAX_REDIRECTS %q: %w", EnvPrefix, v, err)
		}
		overlay.MaxRedirects = n
	}

	bools := map[string]**bool{
		"FOLLOW_REDIRECTS": &overlay.FollowRedirects,
		"VALIDATE_SSL":     &overlay.ValidateSSL,
		"VERBOSE":          &overlay.Verbose,
		"NO_COLOR":         &overlay.NoColor,
	}
	for key, dst := range bools {
		v := vars[key]
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
		}
		*dst = BoolPtr(b)
	}

	return c.Merge(overlay), nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy
	result.Headers = mergeMaps(nil, c.Headers)
	result.Form = mergeMaps(nil, c.Form)

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.UploadPath != "" {
		result.UploadPath = other.UploadPath
	}
	if other.AnalyzePath != "" {
		result.AnalyzePath = other.AnalyzePath
	}
	if other.FieldName != "" {
		result.FieldName = other.FieldName
	}
	if other.FilesField != "" {
		result.FilesField = other.FilesField
	}
	if other.ContentType != "" {
		result.ContentType = other.ContentType
	}
	if other.Prefix != "" {
		result.Prefix = other.Prefix
	}
	if other.Extension != "" {
		result.Extension = other.Extension
	}
	if other.WorkDir != "" {
		result.WorkDir = other.WorkDir
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.UploadSchema != "" {
		result.UploadSchema = other.UploadSchema
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}

	// Pointer fields - only override if explicitly set in other config
	if other.Count != nil {
		result.Count = other.Count
	}
	if other.Content != nil {
		result.Content = other.Content
	}
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	result.Headers = mergeMaps(result.Headers, other.Headers)
	result.Form = mergeMaps(result.Form, other.Form)

	return &result
}

// mergeMaps copies src into dst, allocating dst when needed
func mergeMaps(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
