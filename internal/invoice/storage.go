package invoice

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps captured page images and rendered export artifacts on
// disk. Records reference files by bare name; Path resolves a name to an
// absolute location for collaborators that need one (mail attachments).
type FileStore interface {
	// Save writes a file and returns its reference name
	Save(name string, data []byte) (string, error)

	// Get retrieves a file by reference name
	Get(name string) ([]byte, error)

	// Delete removes a file
	Delete(name string) error

	// Path returns the absolute filesystem path for a reference name
	Path(name string) string
}

// LocalFileStore implements the FileStore interface using local filesystem
type LocalFileStore struct {
	basePath string
}

// NewLocalFileStore creates a new LocalFileStore instance
func NewLocalFileStore(basePath string) (*LocalFileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalFileStore{basePath: basePath}, nil
}

// Save writes a file to local storage
func (l *LocalFileStore) Save(name string, data []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(l.basePath, name), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get retrieves a file from local storage
func (l *LocalFileStore) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.basePath, name))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalFileStore) Delete(name string) error {
	if err := os.Remove(filepath.Join(l.basePath, name)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Path returns the absolute path for a stored file
func (l *LocalFileStore) Path(name string) string {
	path, err := filepath.Abs(filepath.Join(l.basePath, name))
	if err != nil {
		return filepath.Join(l.basePath, name)
	}
	return path
}
