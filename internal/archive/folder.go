package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FolderStorage stores entries as files under a root directory.
type FolderStorage struct {
	root string
	mode Mode
}

// NewFolderStorage creates storage rooted at root.
func NewFolderStorage(root string, mode Mode) *FolderStorage {
	return &FolderStorage{root: root, mode: mode}
}

// Setup checks (read) or creates (write) the root directory.
func (f *FolderStorage) Setup(ctx context.Context) error {
	if f.mode == Write {
		return os.MkdirAll(f.root, 0o755)
	}
	info, err := os.Stat(f.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", f.root)
	}
	return nil
}

func (f *FolderStorage) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the container", path)
	}
	return filepath.Join(f.root, clean), nil
}

// CreateInputStream opens the file at path.
func (f *FolderStorage) CreateInputStream(path string) (io.ReadCloser, error) {
	p, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// CreateOutputStream creates the file at path and its parent directories.
// A path ending in "/" creates a directory and returns a writer that discards.
func (f *FolderStorage) CreateOutputStream(path string) (io.WriteCloser, error) {
	if f.mode != Write {
		return nil, fmt.Errorf("container %s is read-only", f.root)
	}
	p, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, "/") {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return nil, err
		}
		return nopWriteCloser{io.Discard}, nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	return os.Create(p)
}

// Exists reports whether the file or directory exists.
func (f *FolderStorage) Exists(path string) bool {
	p, err := f.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	if strings.HasSuffix(path, "/") {
		return info.IsDir()
	}
	return true
}

// Finish is a no-op; files are complete once their writers are closed.
func (f *FolderStorage) Finish() error { return nil }

// Root returns the directory the storage is rooted at.
func (f *FolderStorage) Root() string { return f.root }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
