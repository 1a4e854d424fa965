package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/core"
)

// ErrNoManifest is returned when a container carries no checksum manifest.
var ErrNoManifest = errors.New("archive has no checksum manifest")

var manifestSchemes = []ChecksumScheme{MD5, SHA256, SHA3_256, BLAKE2b512}

// ManifestName is the root-level file holding the manifest for scheme.
func ManifestName(s ChecksumScheme) string {
	return "manifest-" + string(s) + ".txt"
}

func isManifestName(rel string) bool {
	for _, s := range manifestSchemes {
		if rel == ManifestName(s) {
			return true
		}
	}
	return false
}

// WriteManifest digests every file below root and writes one
// "<checksum>  <path>" line per file, sorted by path, to the manifest at
// root. It returns the number of files listed.
func WriteManifest(root string, scheme ChecksumScheme) (int, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !isManifestName(rel) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", root, err)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, rel := range paths {
		sum, err := sumFile(filepath.Join(root, filepath.FromSlash(rel)), scheme)
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(&b, "%s  %s\n", sum, rel)
	}
	if err := os.WriteFile(filepath.Join(root, ManifestName(scheme)), []byte(b.String()), 0o644); err != nil {
		return 0, err
	}
	return len(paths), nil
}

func sumFile(path string, scheme ChecksumScheme) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sum, err := scheme.Sum(f)
	if err != nil {
		return "", fmt.Errorf("failed to digest %s: %w", path, err)
	}
	return sum, nil
}

// ReadManifest loads the manifest written by WriteManifest. When several
// are present the first scheme in MD5, SHA256, SHA3_256, BLAKE2b512 order
// wins.
func ReadManifest(s core.ArchiveStorage) ([]ManifestEntry, error) {
	for _, scheme := range manifestSchemes {
		name := ManifestName(scheme)
		if !s.Exists(name) {
			continue
		}
		r, err := s.CreateInputStream(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}
		defer r.Close()
		return parseManifest(r, scheme)
	}
	return nil, ErrNoManifest
}

func parseManifest(r io.Reader, scheme ChecksumScheme) ([]ManifestEntry, error) {
	var out []ManifestEntry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		sum, path, ok := strings.Cut(text, "  ")
		if !ok || len(sum) != scheme.HexLength() || path == "" {
			return nil, fmt.Errorf("%w: %s line %d", core.ErrParse, ManifestName(scheme), line)
		}
		out = append(out, ManifestEntry{Path: path, Checksum: strings.ToLower(sum), Scheme: scheme})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ManifestName(scheme), err)
	}
	return out, nil
}
