package converter

import (
	"context"
	"fmt"
	"log"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
)

// Verify recomputes the checksums recorded in the archive's manifest. Every
// mismatch or unreadable file is reported as a problem.
func (c *Impl) Verify(ctx context.Context) (*Result, error) {
	collector, done, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	result := newResult(collector)

	opts, err := parseArchiveConfig(c.configMgr.GetConfig().Archive)
	if err != nil {
		return nil, fmt.Errorf("invalid archive configuration: %w", err)
	}

	main := archive.NewContainer(opts.path, opts.kind, archive.Main, archive.VersionUnknown)
	if err := main.Setup(ctx, archive.Read); err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", opts.path, err)
	}
	defer main.Finish()
	storage, err := main.Storage()
	if err != nil {
		return nil, err
	}
	result.Version = string(main.Version)

	var entries []archive.ManifestEntry
	if main.Version == archive.VersionDK {
		entries, err = pathstrategy.NewManifestResolver(storage, nil).Entries()
	} else {
		entries, err = archive.ReadManifest(storage)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest of %s: %w", opts.path, err)
	}

	mismatches, err := archive.Verify(ctx, storage, entries, opts.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to verify %s: %w", opts.path, err)
	}
	for _, m := range mismatches {
		if m.Err != nil {
			collector.Failed("File `"+m.Path+"`", "could not be read: "+m.Err.Error())
			continue
		}
		collector.Failed("File `"+m.Path+"`", fmt.Sprintf("checksum %s does not match recorded %s", m.Actual, m.Expected))
	}
	result.Mismatches = mismatches
	result.Files = len(entries)
	log.Printf("[CONVERTER] Verified %d files of %s, %d mismatches", len(entries), opts.path, len(mismatches))
	return result.finish(), nil
}
