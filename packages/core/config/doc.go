// Package config handles configuration loading and management for uploadprobe.
//
// It provides functionality for:
//   - Loading configuration from .uploadprobe.json or .uploadprobe.yaml files
//   - Default configuration values matching the stock smoke test
//   - Overrides from UPLOADPROBE_* environment variables
package config
