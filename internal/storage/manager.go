package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound       = errors.New("storage: file not found")
	ErrTooLarge       = errors.New("storage: file exceeds size limit")
	ErrTypeNotAllowed = errors.New("storage: file type not allowed")
)

// Store defines the interface for attachment blob storage. Metadata
// lives in the attachments table; this layer only moves bytes.
type Store interface {
	Save(id, name string, r io.Reader) (int64, error)
	Open(id string) (io.ReadCloser, error)
	Path(id string) (string, error)
	Delete(id string) error
}

// LocalStore implements Store on the local filesystem. Files are kept
// under their record id, never under the user-supplied name.
type LocalStore struct {
	uploadDir string
	maxSize   int64
	allowed   map[string]struct{}
}

// NewLocalStore creates the upload directory and parses the allowed
// extension list (comma-separated, e.g. ".pdf,.png").
func NewLocalStore(uploadDir string, maxSize int64, allowedTypes string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	allowed := make(map[string]struct{})
	for _, ext := range strings.Split(allowedTypes, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &LocalStore{
		uploadDir: uploadDir,
		maxSize:   maxSize,
		allowed:   allowed,
	}, nil
}

// ValidateName checks the file extension against the allowlist. An
// empty allowlist accepts everything.
func (s *LocalStore) ValidateName(name string) error {
	if len(s.allowed) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := s.allowed[ext]; !ok {
		return fmt.Errorf("%w: %s", ErrTypeNotAllowed, ext)
	}
	return nil
}

// Save writes the reader to disk under id, enforcing the name
// allowlist and size limit. Returns the number of bytes stored.
func (s *LocalStore) Save(id, name string, r io.Reader) (int64, error) {
	if err := s.ValidateName(name); err != nil {
		return 0, err
	}
	path, err := s.safePath(id)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	limit := io.Reader(r)
	if s.maxSize > 0 {
		limit = io.LimitReader(r, s.maxSize+1)
	}
	size, err := io.Copy(f, limit)
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("writing file: %w", err)
	}
	if s.maxSize > 0 && size > s.maxSize {
		os.Remove(path)
		return 0, ErrTooLarge
	}
	return size, nil
}

// Open returns a reader over the stored bytes.
func (s *LocalStore) Open(id string) (io.ReadCloser, error) {
	path, err := s.safePath(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Path returns the on-disk location for id, for handlers that serve
// the file directly.
func (s *LocalStore) Path(id string) (string, error) {
	path, err := s.safePath(id)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return path, nil
}

// Delete removes the stored bytes. Missing files are not an error so
// metadata cleanup can always proceed.
func (s *LocalStore) Delete(id string) error {
	path, err := s.safePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStore) safePath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid file id %q", id)
	}
	return filepath.Join(s.uploadDir, id), nil
}
