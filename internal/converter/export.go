package converter

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/content"
	"github.com/rzpsarthak13/dbarchive/internal/database"
	"github.com/rzpsarthak13/dbarchive/internal/lob"
	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
)

// Export copies the configured schemas of the database into a new archive.
func (c *Impl) Export(ctx context.Context) (*Result, error) {
	collector, done, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()
	result := newResult(collector)

	config := c.configMgr.GetConfig()
	opts, err := parseArchiveConfig(config.Archive)
	if err != nil {
		return nil, fmt.Errorf("invalid archive configuration: %w", err)
	}
	if opts.version == archive.VersionDK {
		return nil, fmt.Errorf("archive version %s can only be read", opts.version)
	}

	conn, err := c.connect(ctx, collector)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	db, err := conn.Introspect(ctx, config.Database.Schemas)
	if err != nil {
		return nil, fmt.Errorf("failed to describe database: %w", err)
	}
	for _, problem := range db.CheckReferences() {
		collector.Failed("Database `"+db.Name+"`", problem)
	}
	log.Printf("[CONVERTER] Exporting %s (%d tables) to %s archive %s", db.Name, len(db.Tables()), opts.kind, opts.path)

	main := archive.NewContainer(opts.path, opts.kind, archive.Main, opts.version)
	main.Checksum = opts.checksum
	if err := main.Setup(ctx, archive.Write); err != nil {
		return nil, err
	}
	defer main.Finish()
	storage, err := main.Storage()
	if err != nil {
		return nil, err
	}

	layout := pathstrategy.NewLayout(opts.version)
	sinkOpts := content.SinkOptions{Segments: opts.segments}
	if opts.lobMode == lob.External {
		aux := archive.NewContainer(filepath.Dir(opts.path), archive.Folder, archive.Auxiliary, opts.version)
		if err := aux.Setup(ctx, archive.Write); err != nil {
			return nil, err
		}
		defer aux.Finish()
		auxStorage, err := aux.Storage()
		if err != nil {
			return nil, err
		}
		sinkOpts.Strategy = lob.NewExternal(layout, opts.path)
		sinkOpts.Auxiliary = auxStorage
	}

	sink, err := content.NewArchiveSink(storage, layout, sinkOpts)
	if err != nil {
		return nil, err
	}

	if err := c.pump(ctx, database.NewSource(conn, db), sink, result); err != nil {
		return result.finish(), fmt.Errorf("failed to export %s: %w", db.Name, err)
	}
	if err := main.Finish(); err != nil {
		return result.finish(), err
	}
	log.Printf("[CONVERTER] Exported %d tables, %d rows (%d rejected)", result.Tables, result.Rows, result.Rejected)
	return result.finish(), nil
}
