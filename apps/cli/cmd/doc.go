// Package cmd implements the uploadprobe CLI commands using Cobra.
//
// Available commands:
//   - (root) / run: Run the upload/analyze smoke test
//   - serve: Start a local stand-in for the upload/analyze backend
//   - version: Show uploadprobe version information
//   - completion: Generate shell completion scripts
//
// Settings come from defaults, a config file, UPLOADPROBE_* environment
// variables and flags, in increasing order of precedence.
package cmd
