package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrInvalidName is returned for artifact names that are not plain file names.
	ErrInvalidName = errors.New("invalid artifact name")
)

// Compile-time checks.
var (
	_ Storage = (*LocalStorage)(nil)
	_ Storage = (*S3Storage)(nil)
)

// artifactMode is the permission of every saved artifact.
const artifactMode os.FileMode = 0o644

// LocalStorage implements the Storage interface using local disk.
// It does not support S3 operations unless wrapped with S3Storage.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates a new LocalStorage rooted at dir.
// If dir is empty, "<os.TempDir()>/urbanmel" is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "urbanmel")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &LocalStorage{dir: dir}, nil
}

// Dir returns the output directory path.
func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Save writes data to a temporary file in the output directory and renames
// it to name.
func (s *LocalStorage) Save(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dst, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	tmp := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	// CreateTemp creates the file with mode 0600.
	if err := f.Chmod(artifactMode); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("chmod temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", name, err)
	}

	return dst, nil
}

// Cleanup removes the named artifacts, returning the first error encountered.
// Missing files are ignored.
func (s *LocalStorage) Cleanup(ctx context.Context, names []string) error {
	var firstErr error
	for _, name := range names {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		p, err := s.resolve(name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove artifact %s: %w", name, err)
			}
		}
	}
	return firstErr
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
