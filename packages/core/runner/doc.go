// Package runner drives the upload/analyze smoke test.
//
// A run creates placeholder image files, uploads them as multipart form data,
// forwards the server's file list to the analyze endpoint when the upload
// returns 200, and removes the placeholders no matter how the run ends.
package runner
