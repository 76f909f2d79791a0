// Package storage provides the filesystem port for attachment payloads:
// write bytes under an uploads root, delete a path if present, check
// existence, and read bytes back.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore writes attachment payloads under a single uploads root.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root returns the uploads root directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Save writes the payload to a uuid-prefixed file named after the upload and
// returns the storage path. The uploads root is created if absent; the uuid
// prefix keeps concurrent uploads of the same filename from colliding.
func (s *LocalStore) Save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads root: %w", err)
	}

	path := filepath.Join(s.root, uuid.NewString()+"_"+filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write attachment file: %w", err)
	}

	return path, nil
}

// Delete removes the file at path. Absence is not an error.
func (s *LocalStore) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete attachment file: %w", err)
	}
	return nil
}

// Exists reports whether a file is present at path.
func (s *LocalStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Read returns the bytes stored at path.
func (s *LocalStore) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment file: %w", err)
	}
	return data, nil
}
