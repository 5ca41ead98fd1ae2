package placeholder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// DefaultCount is the number of placeholder files created per run
	DefaultCount = 5
	// DefaultPrefix is the filename prefix for placeholder files
	DefaultPrefix = "test_image_"
	// DefaultExtension is the filename extension for placeholder files
	DefaultExtension = ".jpg"
	// DefaultContent is written into every placeholder file
	DefaultContent = "test"
)

type options struct {
	count   int
	prefix  string
	ext     string
	content []byte
}

// Option configures placeholder creation
type Option func(*options)

func WithCount(n int) Option {
	return func(o *options) {
		o.count = n
	}
}

func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func WithExtension(ext string) Option {
	return func(o *options) {
		o.ext = ext
	}
}

func WithContent(content []byte) Option {
	return func(o *options) {
		o.content = content
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		count:   DefaultCount,
		prefix:  DefaultPrefix,
		ext:     DefaultExtension,
		content: []byte(DefaultContent),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExpectedNames returns the filenames a Set with the given options owns
func ExpectedNames(opts ...Option) []string {
	o := newOptions(opts)
	names := make([]string, 0, o.count)
	for i := 0; i < o.count; i++ {
		names = append(names, o.prefix+strconv.Itoa(i)+o.ext)
	}
	return names
}

// File is a placeholder file held open for reading
type File struct {
	Name string
	Path string
	fh   *os.File
}

// Reader returns the open read handle
func (f *File) Reader() io.Reader {
	return f.fh
}

// Set is the group of placeholder files created for one run
type Set struct {
	dir    string
	names  []string
	files  []*File
	closed bool
}

// Create writes the placeholder files into dir and opens each for reading.
// On failure, anything already created is removed before returning.
func Create(dir string, opts ...Option) (*Set, error) {
	o := newOptions(opts)
	if o.count < 0 {
		return nil, fmt.Errorf("invalid placeholder count %d", o.count)
	}

	s := &Set{
		dir:   dir,
		names: ExpectedNames(opts...),
	}

	for _, name := range s.names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, o.content, 0644); err != nil {
			s.Cleanup()
			return nil, fmt.Errorf("writing placeholder %s: %w", name, err)
		}

		fh, err := os.Open(path)
		if err != nil {
			s.Cleanup()
			return nil, fmt.Errorf("opening placeholder %s: %w", name, err)
		}

		s.files = append(s.files, &File{Name: name, Path: path, fh: fh})
	}

	return s, nil
}

func (s *Set) Files() []*File {
	return s.files
}

func (s *Set) Dir() string {
	return s.dir
}

// Names returns every filename the set is responsible for removing
func (s *Set) Names() []string {
	return s.names
}

// Close releases all read handles. Safe to call more than once.
func (s *Set) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, f := range s.files {
		if err := f.fh.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Cleanup closes handles and removes every expected file that still exists.
// Missing files are skipped; other failures are collected and returned.
func (s *Set) Cleanup() []error {
	var errs []error
	if err := s.Close(); err != nil {
		errs = append(errs, err)
	}

	for _, name := range s.names {
		path := filepath.Join(s.dir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", name, err))
		}
	}

	return errs
}
