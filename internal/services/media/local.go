package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps uploaded files on the local filesystem under a base
// directory. Stored paths are relative to that base.
type LocalStore struct {
	base string
}

func NewLocalStore(base string) *LocalStore {
	return &LocalStore{base: base}
}

func (l *LocalStore) Save(ctx context.Context, filePath string, r io.Reader, size int64, contentType string) error {
	full := filepath.Join(l.base, filepath.FromSlash(filePath))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return fmt.Errorf("failed to write file: %w", err)
	}

	return f.Close()
}

func (l *LocalStore) Remove(ctx context.Context, filePath string) error {
	full := filepath.Join(l.base, filepath.FromSlash(filePath))
	err := os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
