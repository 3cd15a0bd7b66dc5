package embeddings

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrStoreNotFound is returned when no embeddings have been registered.
var ErrStoreNotFound = errors.New("embeddings store not found")

// FileRepository keeps the store in a single gob-encoded file.
type FileRepository struct {
	Path string
}

// NewFileRepository creates a repository backed by path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{Path: path}
}

// Load reads and decodes the store file.
func (r *FileRepository) Load(ctx context.Context) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("embeddings file %q does not exist, run \"attendx register\" first: %w", r.Path, ErrStoreNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read embeddings file: %w", err)
	}

	var s Store
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode embeddings file %q: %w", r.Path, err)
	}
	if s.Version != FormatVersion {
		return nil, fmt.Errorf("embeddings file %q has unsupported version %d", r.Path, s.Version)
	}
	return &s, nil
}

// Save encodes the store and atomically replaces the file.
func (r *FileRepository) Save(ctx context.Context, s *Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Version == 0 {
		s.Version = FormatVersion
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("failed to encode embeddings: %w", err)
	}

	dir := filepath.Dir(r.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".embeddings-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write embeddings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.Path); err != nil {
		return fmt.Errorf("failed to replace embeddings file: %w", err)
	}
	return nil
}
