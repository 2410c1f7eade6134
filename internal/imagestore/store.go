// Package imagestore persists alert images under an id-derived filename and
// serves them back by name.
package imagestore

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/campusguard/edge-collector/internal/errors"
	"github.com/campusguard/edge-collector/internal/observability"
)

const (
	componentName = "imagestore"
	// FileExtension is appended to the alert id regardless of the real format.
	FileExtension = ".jpg"
	dirPerm       = 0o755
	filePerm      = 0o644
)

// Store writes decoded images into a single backing directory.
type Store struct {
	dir     string
	metrics *observability.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics counts written bytes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New returns a store rooted at dir. The directory is created lazily.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the backing directory if it does not exist yet.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("operation", "create_dir").
			Context("dir", s.dir).
			Build()
	}
	return nil
}

// FileName returns the stored name for an alert id.
func FileName(id string) string {
	return id + FileExtension
}

// Persist decodes encoded and writes the bytes to <id>.jpg, returning the
// filename. An empty payload is a no-op and returns "".
func (s *Store) Persist(id, encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", errors.Newf("invalid image id %q", id).
			Component(componentName).
			Category(errors.CategoryValidation).
			Build()
	}

	data := decodeLenient(encoded)
	name := FileName(id)
	if err := s.writeAtomic(name, data); err != nil {
		return "", errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("operation", "persist_image").
			Context("file", name).
			Context("bytes", len(data)).
			Build()
	}
	s.metrics.ImageWritten(len(data))
	return name, nil
}

// writeAtomic writes data to a temp file beside the target and renames it
// into place so readers never observe a partial image.
func (s *Store) writeAtomic(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return cause
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// Open returns the bytes of a stored image. Only bare filenames are
// accepted; anything that could escape the directory is reported as not
// found.
func (s *Store) Open(name string) ([]byte, error) {
	if !validName(name) {
		return nil, notFound(name, nil)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(name, err)
		}
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("operation", "read_image").
			Context("file", name).
			Build()
	}
	return data, nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	// Temp files are never served.
	return !strings.HasPrefix(name, ".")
}

func notFound(name string, cause error) error {
	if cause == nil {
		cause = errors.NewStd("image not found")
	}
	return errors.New(cause).
		Component(componentName).
		Category(errors.CategoryNotFound).
		Context("file", name).
		Build()
}
