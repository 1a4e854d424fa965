package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
)

// ZipStorage stores entries in a single zip file.
//
// Zip entries are written one at a time, so output streams are spooled to
// temporary files and appended to the archive when they are closed. This
// lets LOB files be written while a table document is still open.
type ZipStorage struct {
	path string
	mode Mode

	mu      sync.Mutex
	reader  *zip.ReadCloser
	entries map[string]*zip.File
	file    *os.File
	writer  *zip.Writer
	written map[string]bool
	open    int
}

// NewZipStorage creates storage for the zip file at path.
func NewZipStorage(path string, mode Mode) *ZipStorage {
	return &ZipStorage{path: path, mode: mode}
}

// Setup opens the zip for reading or creates it for writing.
func (z *ZipStorage) Setup(ctx context.Context) error {
	if z.mode == Write {
		f, err := os.Create(z.path)
		if err != nil {
			return err
		}
		z.file = f
		z.writer = zip.NewWriter(f)
		z.written = make(map[string]bool)
		return nil
	}

	r, err := zip.OpenReader(z.path)
	if err != nil {
		return err
	}
	z.reader = r
	z.entries = make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		z.entries[f.Name] = f
	}
	log.Printf("[ARCHIVE] Opened %s (%d entries)", z.path, len(z.entries))
	return nil
}

// CreateInputStream opens the entry at path.
func (z *ZipStorage) CreateInputStream(path string) (io.ReadCloser, error) {
	if z.reader == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotSetUp, z.path)
	}
	f, ok := z.entries[strings.TrimPrefix(path, "./")]
	if !ok {
		return nil, fmt.Errorf("entry %s not found in %s: %w", path, z.path, os.ErrNotExist)
	}
	return f.Open()
}

// CreateOutputStream returns a writer spooled to a temporary file. The entry
// is appended to the zip when the writer is closed. A path ending in "/"
// becomes a directory entry.
func (z *ZipStorage) CreateOutputStream(path string) (io.WriteCloser, error) {
	if z.writer == nil {
		return nil, fmt.Errorf("container %s is not open for writing", z.path)
	}
	if strings.HasSuffix(path, "/") {
		z.mu.Lock()
		defer z.mu.Unlock()
		if _, err := z.writer.CreateHeader(&zip.FileHeader{Name: path, Modified: time.Now()}); err != nil {
			return nil, err
		}
		z.written[path] = true
		return nopWriteCloser{io.Discard}, nil
	}

	tmp, err := os.CreateTemp("", "dbarchive-entry-*")
	if err != nil {
		return nil, err
	}
	z.mu.Lock()
	z.open++
	z.mu.Unlock()
	return &spooledEntry{storage: z, name: path, tmp: tmp}, nil
}

func (z *ZipStorage) appendEntry(name string, tmp *os.File) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.open--

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	w, err := z.writer.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, tmp); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", name, err)
	}
	z.written[name] = true
	return nil
}

// Exists reports whether an entry exists. A path ending in "/" matches a
// directory entry or any entry below it.
func (z *ZipStorage) Exists(path string) bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.reader == nil {
		return z.written[path]
	}
	if _, ok := z.entries[path]; ok {
		return true
	}
	if strings.HasSuffix(path, "/") {
		for name := range z.entries {
			if strings.HasPrefix(name, path) {
				return true
			}
		}
	}
	return false
}

// Finish closes the zip. Output streams still open are an error.
func (z *ZipStorage) Finish() error {
	if z.reader != nil {
		return z.reader.Close()
	}
	if z.writer == nil {
		return nil
	}
	z.mu.Lock()
	pending := z.open
	z.mu.Unlock()

	var errs []error
	if pending > 0 {
		errs = append(errs, fmt.Errorf("%d zip entries were never closed", pending))
	}
	if err := z.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := z.file.Close(); err != nil {
		errs = append(errs, err)
	}
	log.Printf("[ARCHIVE] Wrote %s (%d entries)", z.path, len(z.written))
	return errors.Join(errs...)
}

type spooledEntry struct {
	storage *ZipStorage
	name    string
	tmp     *os.File
	closed  bool
}

func (e *spooledEntry) Write(p []byte) (int, error) {
	return e.tmp.Write(p)
}

func (e *spooledEntry) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	defer os.Remove(e.tmp.Name())
	defer e.tmp.Close()
	return e.storage.appendEntry(e.name, e.tmp)
}
