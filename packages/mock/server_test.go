package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	opts = append([]Option{WithStorageDir(t.TempDir())}, opts...)
	s, err := NewServer(opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

type part struct {
	field, filename, contentType, data string
}

func imageParts(n int) []part {
	parts := make([]part, n)
	for i := range parts {
		parts[i] = part{"images", fmt.Sprintf("test_image_%d.jpg", i), "image/jpeg", "test"}
	}
	return parts
}

func postParts(t *testing.T, url string, parts []part) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	resp, err := http.Post(url+"/api/upload", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, r io.Reader, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r).Decode(v))
}

func TestServer_Index(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decode(t, resp.Body, &body)
	assert.NotEmpty(t, body["message"])
}

func TestServer_Upload(t *testing.T) {
	s, ts := newTestServer(t)

	resp := postParts(t, ts.URL, imageParts(5))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body uploadResponse
	decode(t, resp.Body, &body)
	assert.Equal(t, 5, body.FileCount)
	require.Len(t, body.Files, 5)
	for _, f := range body.Files {
		assert.True(t, strings.HasPrefix(f.Filename, "images-"))
		assert.True(t, strings.HasSuffix(f.Filename, ".jpg"))
		assert.Equal(t, int64(4), f.Size)
		assert.Equal(t, "image/jpeg", f.Mimetype)
		assert.True(t, s.Store().Exists(f.Path))
	}
	assert.Equal(t, 5, s.Store().Count())
}

func TestServer_UploadTooFew(t *testing.T) {
	s, ts := newTestServer(t)

	resp := postParts(t, ts.URL, imageParts(3))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decode(t, resp.Body, &body)
	assert.Contains(t, body["error"], "at least 5")
	assert.Equal(t, 0, s.Store().Count())
}

func TestServer_UploadTooMany(t *testing.T) {
	s, ts := newTestServer(t, WithMaxFiles(6))

	resp := postParts(t, ts.URL, imageParts(7))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, s.Store().Count())
}

func TestServer_UploadRejectsNonImage(t *testing.T) {
	s, ts := newTestServer(t)

	parts := imageParts(5)
	parts[2].contentType = "text/plain"
	resp := postParts(t, ts.URL, parts)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decode(t, resp.Body, &body)
	assert.Equal(t, "only image files are accepted", body["error"])
	assert.Equal(t, 0, s.Store().Count())
}

func TestServer_UploadUnexpectedField(t *testing.T) {
	_, ts := newTestServer(t)

	parts := imageParts(5)
	parts[0].field = "photos"
	resp := postParts(t, ts.URL, parts)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_UploadTooLarge(t *testing.T) {
	s, ts := newTestServer(t, WithMaxFileSize(3))

	resp := postParts(t, ts.URL, imageParts(5))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, 0, s.Store().Count())
}

func TestServer_UploadBodyOverLimit(t *testing.T) {
	s, err := NewServer(WithStorageDir(t.TempDir()), WithMaxFiles(1), WithMaxFileSize(3))
	require.NoError(t, err)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="images"; filename="test_image_0.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	pw, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = pw.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("padding", strings.Repeat("x", 2<<20)))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body exceeds")
	assert.Equal(t, 0, s.Store().Count())
}

func TestServer_UploadNotMultipart(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/upload", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Analyze(t *testing.T) {
	s, ts := newTestServer(t)

	upload := postParts(t, ts.URL, imageParts(5))
	require.Equal(t, http.StatusOK, upload.StatusCode)
	var uploaded map[string]json.RawMessage
	decode(t, upload.Body, &uploaded)

	body := append(append([]byte(`{"files":`), uploaded["files"]...), '}')
	resp, err := http.Post(ts.URL+"/api/analyze", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var analyzed analyzeResponse
	decode(t, resp.Body, &analyzed)
	require.NotNil(t, analyzed.Result)
	assert.Equal(t, 5, analyzed.Result.ImageCount)
	assert.Equal(t, int64(20), analyzed.Result.TotalBytes)
	assert.Equal(t, map[string]int{"image/jpeg": 5}, analyzed.Result.Mimetypes)
	assert.Empty(t, analyzed.Result.Missing)
	assert.Equal(t, 0, s.Store().Count())
}

func TestServer_AnalyzeTooFew(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/analyze", "application/json", strings.NewReader(`{"files":[{"path":"x"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_AnalyzeInvalidBody(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/analyze", "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_AnalyzeKeepsOutsideFiles(t *testing.T) {
	_, ts := newTestServer(t, WithMinFiles(1))

	outside := filepath.Join(t.TempDir(), "keep.jpg")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))

	body := fmt.Sprintf(`{"files":[{"filename":"keep.jpg","path":%q}]}`, outside)
	resp, err := http.Post(ts.URL+"/api/analyze", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var analyzed analyzeResponse
	decode(t, resp.Body, &analyzed)
	assert.Equal(t, 0, analyzed.Result.ImageCount)
	assert.Equal(t, []string{"keep.jpg"}, analyzed.Result.Missing)
	assert.FileExists(t, outside)
}

func TestServer_NotFoundAndMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/upload")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_CORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/upload", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_Serve(t *testing.T) {
	s, err := NewServer(WithStorageDir(t.TempDir()))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_GetRoutes(t *testing.T) {
	s, err := NewServer(WithStorageDir(t.TempDir()))
	require.NoError(t, err)
	assert.Len(t, s.GetRoutes(), 3)
}
