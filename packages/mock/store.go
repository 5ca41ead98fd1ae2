package mock

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrFileTooLarge is returned when an upload exceeds the size limit
var ErrFileTooLarge = errors.New("file exceeds size limit")

// StoredFile describes an uploaded file kept on disk
type StoredFile struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Mimetype string `json:"mimetype"`
}

// Store keeps uploaded files in a single directory until they are analyzed
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates dir if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving storage dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save copies r into a uniquely named file. Reading more than maxSize
// bytes aborts the save with ErrFileTooLarge.
func (s *Store) Save(field, originalName, mimetype string, r io.Reader, maxSize int64) (*StoredFile, error) {
	name := field + "-" + uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(f, io.LimitReader(r, maxSize+1))
	closeErr := f.Close()
	if err == nil && n > maxSize {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	return &StoredFile{
		Filename: name,
		Path:     path,
		Size:     n,
		Mimetype: mimetype,
	}, nil
}

// Remove deletes a stored file. Paths outside the store directory are
// refused; missing files are not an error.
func (s *Store) Remove(path string) error {
	if err := validatePathWithinBase(path, s.dir); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether path is a file inside the store
func (s *Store) Exists(path string) bool {
	if validatePathWithinBase(path, s.dir) != nil {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Count returns the number of files currently stored
func (s *Store) Count() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}
