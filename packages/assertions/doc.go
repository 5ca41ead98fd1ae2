// Package assertions validates response bodies against JSON Schema files.
//
// Validation is opt-in: the smoke test only checks the upload response when
// a schema path is configured.
package assertions
