package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/sharedcode/coverage"
)

// FileIO defines the file system operations used by the blob stores. The default
// implementation delegates to the os package and retries transient errors.
type FileIO interface {
	WriteFile(ctx context.Context, name string, data []byte, perm os.FileMode) error
	ReadFile(ctx context.Context, name string) ([]byte, error)
	Remove(ctx context.Context, name string) error
	Exists(ctx context.Context, path string) bool

	// Directory API.
	RemoveAll(ctx context.Context, path string) error
	MkdirAll(ctx context.Context, path string, perm os.FileMode) error
	ReadDir(ctx context.Context, sourceDir string) ([]os.DirEntry, error)
}

type defaultFileIO struct{}

// NewFileIO returns a FileIO that performs I/O via the os package with retries on transient errors.
func NewFileIO() FileIO {
	return defaultFileIO{}
}

func (dio defaultFileIO) WriteFile(ctx context.Context, name string, data []byte, perm os.FileMode) error {
	err := os.WriteFile(name, data, perm)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		if derr := dio.MkdirAll(ctx, filepath.Dir(name), perm); derr != nil {
			return derr
		}
	} else if !coverage.ShouldRetry(err) {
		return err
	}
	return coverage.RetryIO(ctx, coverage.FileIOError, func(context.Context) error {
		return os.WriteFile(name, data, perm)
	})
}

func (dio defaultFileIO) ReadFile(ctx context.Context, name string) ([]byte, error) {
	var ba []byte
	err := coverage.RetryIO(ctx, coverage.FileIOError, func(context.Context) error {
		var err error
		ba, err = os.ReadFile(name)
		return err
	})
	return ba, err
}

func (dio defaultFileIO) Remove(ctx context.Context, name string) error {
	return coverage.RetryIO(ctx, coverage.FileIOError, func(context.Context) error {
		return os.Remove(name)
	})
}

func (dio defaultFileIO) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	return coverage.RetryIO(ctx, coverage.FileIOError, func(context.Context) error {
		return os.MkdirAll(path, perm)
	})
}

func (dio defaultFileIO) RemoveAll(ctx context.Context, path string) error {
	return coverage.RetryIO(ctx, coverage.FileIOError, func(context.Context) error {
		return os.RemoveAll(path)
	})
}

func (dio defaultFileIO) Exists(ctx context.Context, path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func (dio defaultFileIO) ReadDir(ctx context.Context, sourceDir string) ([]os.DirEntry, error) {
	var r []os.DirEntry
	err := coverage.RetryIO(ctx, coverage.FileIOError, func(context.Context) error {
		var err error
		r, err = os.ReadDir(sourceDir)
		return err
	})
	return r, err
}
