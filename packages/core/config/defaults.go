package config

const (
	DefaultBaseURL     = "http://localhost:3001"
	DefaultUploadPath  = "/api/upload"
	DefaultAnalyzePath = "/api/analyze"
	DefaultFieldName   = "images"
	DefaultFilesField  = "files"
	DefaultContentType = "image/jpeg"
	DefaultCount       = 5
	DefaultPrefix      = "test_image_"
	DefaultExtension   = ".jpg"
	DefaultContent     = "test"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		UploadPath:  DefaultUploadPath,
		AnalyzePath: DefaultAnalyzePath,
		FieldName:   DefaultFieldName,
		FilesField:  DefaultFilesField,
		ContentType: DefaultContentType,
		Prefix:      DefaultPrefix,
		Extension:   DefaultExtension,
		WorkDir:     ".",
		Timeout:     0, // no timeout
		Output:      "console",
		LogLevel:    "warn",
	}
}
