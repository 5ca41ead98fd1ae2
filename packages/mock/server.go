// Package mock provides a stand-in for the image upload/analyze backend so
// the smoke test can run without it.
package mock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/abdul-hamid-achik/uploadprobe/packages/logging"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPort matches the backend's default listen port
	DefaultPort = 3001
	// DefaultMinFiles is the fewest images the endpoints accept
	DefaultMinFiles = 5
	// DefaultMaxFiles is the most images a single upload may carry
	DefaultMaxFiles = 20
	// DefaultMaxFileSize is the per-file upload limit
	DefaultMaxFileSize = 10 * 1024 * 1024
	// DefaultFieldName is the multipart field holding images
	DefaultFieldName = "images"
)

// Server is a mock upload/analyze HTTP server
type Server struct {
	router      *Router
	store       *Store
	port        int
	delay       time.Duration
	minFiles    int
	maxFiles    int
	maxFileSize int64
	fieldName   string
	storageDir  string
	log         *logrus.Entry
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithMinFiles sets the minimum number of images per request
func WithMinFiles(n int) Option {
	return func(s *Server) {
		s.minFiles = n
	}
}

// WithMaxFiles sets the maximum number of images per upload
func WithMaxFiles(n int) Option {
	return func(s *Server) {
		s.maxFiles = n
	}
}

// WithMaxFileSize sets the per-file size limit in bytes
func WithMaxFileSize(n int64) Option {
	return func(s *Server) {
		s.maxFileSize = n
	}
}

// WithStorageDir sets where uploaded files are kept until analyzed
func WithStorageDir(dir string) Option {
	return func(s *Server) {
		s.storageDir = dir
	}
}

// WithLogger sets the request logger
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) {
		s.log = logging.Entry(logger, "mock")
	}
}

// NewServer creates a new mock server. Storage defaults to a fresh
// directory under os.TempDir.
func NewServer(opts ...Option) (*Server, error) {
	s := &Server{
		router:      NewRouter(),
		port:        DefaultPort,
		minFiles:    DefaultMinFiles,
		maxFiles:    DefaultMaxFiles,
		maxFileSize: DefaultMaxFileSize,
		fieldName:   DefaultFieldName,
		log:         logging.Entry(logging.Discard(), "mock"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.storageDir == "" {
		dir, err := os.MkdirTemp("", "uploadprobe-mock-")
		if err != nil {
			return nil, fmt.Errorf("creating storage dir: %w", err)
		}
		s.storageDir = dir
	}

	store, err := NewStore(s.storageDir)
	if err != nil {
		return nil, err
	}
	s.store = store

	s.router.AddRoute(&Route{Method: "GET", Path: "/", Name: "index", Handler: s.handleIndex})
	s.router.AddRoute(&Route{Method: "POST", Path: "/api/upload", Name: "upload", Handler: s.handleUpload})
	s.router.AddRoute(&Route{Method: "POST", Path: "/api/analyze", Name: "analyze", Handler: s.handleAnalyze})

	return s, nil
}

// Handler returns the server's http.Handler, for use with httptest
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Store exposes the uploaded file store
func (s *Server) Store() *Store {
	return s.store
}

// GetRoutes returns all registered routes
func (s *Server) GetRoutes() []*Route {
	return s.router.Routes()
}

// StartWithContext serves until ctx is cancelled, then shuts down gracefully
func (s *Server) StartWithContext(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve handles connections from ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", ln.Addr().String()).Info("mock server listening")
	for _, route := range s.router.Routes() {
		s.log.Debugf("  %s %s", route.Method, route.Path)
	}

	err := server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	// permissive CORS, like the backend
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	route, pathKnown := s.router.Match(r.Method, r.URL.Path)
	if route == nil {
		status := http.StatusNotFound
		if pathKnown {
			status = http.StatusMethodNotAllowed
		}
		writeJSON(w, status, map[string]any{"error": http.StatusText(status)})
		s.logRequest(r, status, start)
		return
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	route.Handler(rec, r)
	s.logRequest(r, rec.status, start)
}

func (s *Server) logRequest(r *http.Request, status int, start time.Time) {
	s.log.WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     status,
		"duration":   time.Since(start),
		"request_id": r.Header.Get("X-Request-ID"),
	}).Info("request")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
