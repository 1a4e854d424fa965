package converter

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/content"
	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/database"
	"github.com/rzpsarthak13/dbarchive/internal/metadata"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
)

// openedArchive is a main container set up for reading together with its
// imported metadata.
type openedArchive struct {
	container *archive.Container
	storage   core.ArchiveStorage
	db        *model.Database
	resolver  pathstrategy.ContentResolver
	manifest  *pathstrategy.ManifestResolver
}

func (a *openedArchive) close() {
	if err := a.container.Finish(); err != nil {
		log.Printf("[CONVERTER] Failed to close archive %s: %v", a.container.Path, err)
	}
}

// openArchive detects the version of the archive at opts.path and reads its
// metadata. Tables that cannot be described are reported to reporter.
func openArchive(ctx context.Context, opts archiveOptions, reporter core.Reporter) (*openedArchive, error) {
	main := archive.NewContainer(opts.path, opts.kind, archive.Main, archive.VersionUnknown)
	if err := main.Setup(ctx, archive.Read); err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", opts.path, err)
	}
	storage, err := main.Storage()
	if err != nil {
		main.Finish()
		return nil, err
	}
	a := &openedArchive{container: main, storage: storage}

	builder := pathstrategy.NewBuilder(pathstrategy.NewLayout(main.Version))
	im := &metadata.Importer{
		Storage:  storage,
		Version:  main.Version,
		Builder:  builder,
		Reporter: reporter,
	}
	db, err := im.Import(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to read metadata of %s: %w", opts.path, err)
	}
	a.db = db

	tables := builder.Freeze()
	a.resolver = tables
	if main.Version == archive.VersionDK {
		a.manifest = pathstrategy.NewManifestResolver(storage, tables)
		a.resolver = a.manifest
	}
	return a, nil
}

// Import loads the content of the configured archive into the database.
func (c *Impl) Import(ctx context.Context) (*Result, error) {
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

	a, err := openArchive(ctx, opts, collector)
	if err != nil {
		return nil, err
	}
	defer a.close()
	result.Version = string(a.container.Version)
	result.Database = a.db

	aux := archive.NewContainer(filepath.Dir(opts.path), archive.Folder, archive.Auxiliary, a.container.Version)
	if err := aux.Setup(ctx, archive.Read); err != nil {
		return nil, fmt.Errorf("failed to open LOB folder of %s: %w", opts.path, err)
	}
	defer aux.Finish()
	auxStorage, err := aux.Storage()
	if err != nil {
		return nil, err
	}

	conn, err := c.connect(ctx, collector)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	log.Printf("[CONVERTER] Importing %s (%d tables) from %s archive %s into %s", a.db.Name, len(a.db.Tables()), a.container.Version, opts.path, conn.Dialect().Name())

	writer := database.NewTableWriter(conn, collector, database.WriterOptions{
		BatchSize:        config.Transfer.BatchSize,
		BatchesPerSecond: config.Transfer.BatchesPerSecond,
		CreateTables:     config.Transfer.CreateTables,
	})
	src := content.NewArchiveSource(a.storage, a.resolver, a.db, auxStorage)
	if err := c.pump(ctx, src, writer, result); err != nil {
		return result.finish(), fmt.Errorf("failed to import %s: %w", a.db.Name, err)
	}
	log.Printf("[CONVERTER] Imported %d tables, %d rows (%d rejected)", result.Tables, result.Rows, result.Rejected)
	return result.finish(), nil
}

// Inspect reads the metadata of the configured archive without touching
// its content. Summaries carry the row counts the metadata declares.
func (c *Impl) Inspect(ctx context.Context) (*Result, error) {
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
	a, err := openArchive(ctx, opts, collector)
	if err != nil {
		return nil, err
	}
	defer a.close()

	result.Version = string(a.container.Version)
	result.Database = a.db
	for _, t := range a.db.Tables() {
		result.Tables++
		result.Rows += t.RowCount
		result.Summaries = append(result.Summaries, TableSummary{ID: t.ID(), Rows: t.RowCount})
	}
	for _, problem := range a.db.CheckReferences() {
		collector.Failed("Database `"+a.db.Name+"`", problem)
	}
	return result.finish(), nil
}
