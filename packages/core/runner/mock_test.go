package runner

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/abdul-hamid-achik/uploadprobe/packages/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBackend(t *testing.T, opts ...mock.Option) (*mock.Server, *httptest.Server) {
	t.Helper()
	opts = append([]mock.Option{mock.WithStorageDir(t.TempDir())}, opts...)
	s, err := mock.NewServer(opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestRunner_Run_AgainstMockBackend(t *testing.T) {
	backend, ts := newMockBackend(t)
	dir := t.TempDir()

	result, err := NewRunner(testConfig(ts.URL, dir)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 200, result.Upload.StatusCode)
	assert.True(t, result.Analyzed)
	require.NotNil(t, result.Analyze)
	assert.Equal(t, 200, result.Analyze.StatusCode)

	var files []map[string]any
	require.NoError(t, json.Unmarshal(result.Files, &files))
	assert.Len(t, files, 5)

	analyze, ok := result.AnalyzeJSON.(map[string]any)
	require.True(t, ok)
	res, ok := analyze["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), res["imageCount"])

	// analyze consumed every stored upload
	assert.Equal(t, 0, backend.Store().Count())
	assertPlaceholdersRemoved(t, dir)
}

func TestRunner_Run_MockBackendRejectsTooFew(t *testing.T) {
	_, ts := newMockBackend(t)
	dir := t.TempDir()

	cfg := testConfig(ts.URL, dir)
	cfg.Count = 3
	result, err := NewRunner(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 400, result.Upload.StatusCode)
	assert.False(t, result.Analyzed)
	body, ok := result.UploadJSON.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, body["error"], "at least 5")
	assertPlaceholdersRemoved(t, dir)
}

func TestRunner_Run_MockBackendRejectsContentType(t *testing.T) {
	_, ts := newMockBackend(t)
	dir := t.TempDir()

	cfg := testConfig(ts.URL, dir)
	cfg.ContentType = "text/plain"
	result, err := NewRunner(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 400, result.Upload.StatusCode)
	assert.False(t, result.Analyzed)
	assertPlaceholdersRemoved(t, dir)
}
