// Package http is the transport used by the upload smoke test.
//
// It wraps the standard library's http package with:
//   - Optional timeouts (none by default)
//   - Redirect, proxy and TLS verification settings
//   - Multipart bodies with a per-part Content-Type
//   - JSON request helpers
//   - A generated X-Request-ID on every request
package http
