package archive

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rzpsarthak13/dbarchive/internal/core"
)

// ManifestEntry is one file listed in a checksum manifest.
type ManifestEntry struct {
	Path     string
	Checksum string
	Scheme   ChecksumScheme
}

// Mismatch describes a manifest entry whose content does not match.
type Mismatch struct {
	Path     string
	Expected string
	Actual   string
	Err      error
}

func (m Mismatch) String() string {
	if m.Err != nil {
		return fmt.Sprintf("%s: %v", m.Path, m.Err)
	}
	return fmt.Sprintf("%s: expected %s, got %s", m.Path, m.Expected, m.Actual)
}

// DefaultVerifyWorkers is used when Verify is called with workers <= 0.
const DefaultVerifyWorkers = 4

// Verify recomputes the checksum of every entry with up to workers files
// read concurrently. Mismatches and unreadable files are returned in
// manifest order; the error is non-nil only if ctx was cancelled.
func Verify(ctx context.Context, s core.ArchiveStorage, entries []ManifestEntry, workers int) ([]Mismatch, error) {
	if workers <= 0 {
		workers = DefaultVerifyWorkers
	}

	results := make([]*Mismatch, len(entries))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m := verifyEntry(s, e)
			if m != nil {
				mu.Lock()
				results[i] = m
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Mismatch
	for _, m := range results {
		if m != nil {
			out = append(out, *m)
		}
	}
	log.Printf("[ARCHIVE] Verified %d entries, %d mismatches", len(entries), len(out))
	return out, nil
}

func verifyEntry(s core.ArchiveStorage, e ManifestEntry) *Mismatch {
	r, err := s.CreateInputStream(e.Path)
	if err != nil {
		return &Mismatch{Path: e.Path, Expected: e.Checksum, Err: err}
	}
	defer r.Close()

	scheme := e.Scheme
	if scheme == "" {
		scheme = MD5
	}
	sum, err := scheme.Sum(r)
	if err != nil {
		return &Mismatch{Path: e.Path, Expected: e.Checksum, Err: err}
	}
	if !strings.EqualFold(sum, e.Checksum) {
		return &Mismatch{Path: e.Path, Expected: e.Checksum, Actual: sum}
	}
	return nil
}
