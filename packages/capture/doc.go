// Package capture pulls values out of JSON response bodies.
//
// Values are returned as raw JSON so they can be forwarded into a follow-up
// request without being re-encoded.
package capture
