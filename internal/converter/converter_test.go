package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/database"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/normalize"
	"github.com/rzpsarthak13/dbarchive/internal/registry"
)

// fakeConn describes booksDatabase, serves rows for every select and
// records every insert.
type fakeConn struct {
	db      *model.Database
	rows    [][]any
	execs   []string
	inserts [][]any
	closed  bool
}

func (f *fakeConn) Dialect() database.Dialect { return database.MySQLDialect{} }

func (f *fakeConn) Introspect(ctx context.Context, schemas []string) (*model.Database, error) {
	if f.db == nil {
		return nil, errors.New("nothing to describe")
	}
	return f.db, nil
}

func (f *fakeConn) Query(ctx context.Context, query string) (database.Cursor, error) {
	return &sliceCursor{rows: f.rows, pos: -1}, nil
}

func (f *fakeConn) Exec(ctx context.Context, query string) error {
	f.execs = append(f.execs, query)
	return nil
}

func (f *fakeConn) Begin(ctx context.Context) (core.BatchExecutor, error) {
	return &recordingExecutor{conn: f}, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

type sliceCursor struct {
	rows [][]any
	pos  int
}

func (c *sliceCursor) Next() bool {
	c.pos++
	return c.pos < len(c.rows)
}

func (c *sliceCursor) Values() ([]any, error) { return c.rows[c.pos], nil }
func (c *sliceCursor) Err() error             { return nil }
func (c *sliceCursor) Close() error           { return nil }

type recordingExecutor struct {
	conn    *fakeConn
	pending [][]any
}

func (e *recordingExecutor) ExecBatch(ctx context.Context, stmts []core.Statement) error {
	for _, s := range stmts {
		e.pending = append(e.pending, s.Args)
	}
	return nil
}

func (e *recordingExecutor) Commit(ctx context.Context) error {
	e.conn.inserts = append(e.conn.inserts, e.pending...)
	e.pending = nil
	return nil
}

func (e *recordingExecutor) Close() error { return nil }

func booksDatabase() *model.Database {
	n := normalize.New(normalize.SQL2008)
	db := model.NewDatabase("library")
	s := db.AddSchema("shop")
	t := s.AddTable("books")
	t.AddColumn("id", n.MustNormalize("INTEGER"))
	t.AddColumn("title", n.MustNormalize("CHARACTER VARYING(40)")).Nillable = true
	t.AddColumn("price", n.MustNormalize("DECIMAL(8,2)"))
	t.PrimaryKey = &model.PrimaryKey{Name: "pk_books", Columns: []string{"id"}}
	if err := db.Index(); err != nil {
		panic(err)
	}
	return db
}

func bookRows() [][]any {
	return [][]any{
		{int64(1), "Dune", "9.99"},
		{int64(2), nil, "5.00"},
	}
}

func newTestConverter(t *testing.T, archivePath string, extra string) *Impl {
	t.Helper()
	yaml := fmt.Sprintf(`
database:
  driver: mysql
  host: localhost
  database: library
archive:
  path: '%s'
  version: "2.1"
  kind: folder-with-checksums
report:
  run_id: test
  backends:
    - type: memory
%s`, archivePath, extra)
	mgr := registry.NewConfigManager()
	if err := mgr.LoadFromYAML([]byte(yaml)); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return NewWithManager(mgr)
}

func serve(conn *fakeConn) OpenFunc {
	return func(ctx context.Context, cfg database.ConnConfig) (database.Conn, error) {
		return conn, nil
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "library.siard")
	ctx := context.Background()

	exporter := newTestConverter(t, archivePath, "")
	source := &fakeConn{db: booksDatabase(), rows: bookRows()}
	exporter.open = serve(source)

	result, err := exporter.Export(ctx)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !result.OK() || result.Tables != 1 || result.Rows != 2 {
		t.Fatalf("unexpected export result %+v", result)
	}
	if len(result.Summaries) != 1 || result.Summaries[0] != (TableSummary{ID: "shop.books", Rows: 2}) {
		t.Fatalf("unexpected summaries %+v", result.Summaries)
	}
	if !source.closed {
		t.Fatalf("expected the source connection to be closed")
	}
	if _, err := os.Stat(filepath.Join(archivePath, archive.ManifestName(archive.MD5))); err != nil {
		t.Fatalf("expected an md5 manifest: %v", err)
	}

	inspected, err := exporter.Inspect(ctx)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if inspected.Version != "2.1" || inspected.Database.Name != "library" || inspected.Rows != 2 {
		t.Fatalf("unexpected inspection %+v", inspected)
	}

	verified, err := exporter.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !verified.OK() || verified.Files == 0 {
		t.Fatalf("expected a clean verification, got %+v", verified)
	}

	importer := newTestConverter(t, archivePath, "")
	target := &fakeConn{}
	importer.open = serve(target)

	imported, err := importer.Import(ctx)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !imported.OK() || imported.Rows != 2 {
		t.Fatalf("unexpected import result %+v", imported)
	}
	want := fmt.Sprint([][]any{{int64(1), "Dune", "9.99"}, {int64(2), nil, "5.00"}})
	if got := fmt.Sprint(target.inserts); got != want {
		t.Fatalf("expected inserts %s, got %s", want, got)
	}
	if len(target.execs) == 0 || !strings.Contains(strings.Join(target.execs, "\n"), "CREATE TABLE IF NOT EXISTS `shop`.`books`") {
		t.Fatalf("expected the table to be created, got %v", target.execs)
	}
}

func TestVerifyReportsTampering(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "library.siard")
	c := newTestConverter(t, archivePath, "")
	c.open = serve(&fakeConn{db: booksDatabase(), rows: bookRows()})
	if _, err := c.Export(context.Background()); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	metadataFile := filepath.Join(archivePath, filepath.FromSlash(archive.MetadataPath))
	if err := os.WriteFile(metadataFile, []byte("<siardArchive/>"), 0o644); err != nil {
		t.Fatalf("failed to tamper: %v", err)
	}

	result, err := c.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.OK() || len(result.Mismatches) != 1 || result.Mismatches[0].Path != archive.MetadataPath {
		t.Fatalf("expected one metadata mismatch, got %+v", result.Mismatches)
	}
	if !strings.Contains(result.Problems[0].Subject, archive.MetadataPath) {
		t.Fatalf("unexpected problem %+v", result.Problems[0])
	}
}

func TestVerifyWithoutManifest(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "library.siard")
	c := newTestConverter(t, archivePath, "")
	c.open = serve(&fakeConn{db: booksDatabase(), rows: bookRows()})
	if _, err := c.Export(context.Background()); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if err := os.Remove(filepath.Join(archivePath, archive.ManifestName(archive.MD5))); err != nil {
		t.Fatalf("failed to remove manifest: %v", err)
	}

	if _, err := c.Verify(context.Background()); !errors.Is(err, archive.ErrNoManifest) {
		t.Fatalf("expected ErrNoManifest, got %v", err)
	}
}

func TestConnectRetryWithoutTLS(t *testing.T) {
	tests := []struct {
		name     string
		extra    string
		failWith error
		attempts int
		wantErr  bool
	}{
		{
			name:     "retried without tls",
			failWith: core.Connectivity("dial", errors.New("tls: handshake failure")),
			attempts: 2,
		},
		{
			name:     "retry disabled",
			extra:    "transfer:\n  retry_without_tls: false\n",
			failWith: core.Connectivity("dial", errors.New("tls: handshake failure")),
			attempts: 1,
			wantErr:  true,
		},
		{
			name:     "not a connectivity failure",
			failWith: errors.New("access denied"),
			attempts: 1,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConverter(t, filepath.Join(t.TempDir(), "a.siard"), tt.extra)
			c.configMgr.GetConfig().Database.TLS = true

			var attempts int
			c.open = func(ctx context.Context, cfg database.ConnConfig) (database.Conn, error) {
				attempts++
				if cfg.TLS {
					return nil, tt.failWith
				}
				return &fakeConn{}, nil
			}

			var problems []string
			_, err := c.connect(context.Background(), core.ReporterFunc(func(subject, reason string) {
				problems = append(problems, subject)
			}))
			if attempts != tt.attempts {
				t.Fatalf("expected %d attempts, got %d", tt.attempts, attempts)
			}
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(problems) != 1 || problems[0] != "Connection to `localhost`" {
				t.Fatalf("expected the degraded connection to be reported, got %v", problems)
			}
		})
	}
}

func TestLifecycleHooks(t *testing.T) {
	c := newTestConverter(t, filepath.Join(t.TempDir(), "library.siard"), "")
	c.open = serve(&fakeConn{db: booksDatabase(), rows: bookRows()})

	var closed []string
	c.Lifecycle().RegisterHook(&registry.LifecycleHookFunc{
		OnCloseFunc: func(ctx context.Context, table *model.Table, rows int64) error {
			closed = append(closed, fmt.Sprintf("%s:%d", table.ID(), rows))
			return nil
		},
	})

	result, err := c.Export(context.Background())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if fmt.Sprint(closed) != "[shop.books:2]" {
		t.Fatalf("unexpected close hook calls %v", closed)
	}

	c.Lifecycle().RegisterHook(&registry.LifecycleHookFunc{
		OnOpenFunc: func(ctx context.Context, table *model.Table) error {
			return errors.New("table is excluded")
		},
	})
	result, err = c.Export(context.Background())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.OK() || result.Rows != 0 || len(result.Summaries) != 0 {
		t.Fatalf("expected the table to be skipped, got %+v", result)
	}
	if got := result.Problems[0].String(); got != "Table `shop.books` failed because table is excluded" {
		t.Fatalf("unexpected problem %q", got)
	}
}

func TestExportRejectsReadOnlyVersion(t *testing.T) {
	c := newTestConverter(t, filepath.Join(t.TempDir(), "a.siard"), "")
	c.configMgr.GetConfig().Archive.Version = "dk"
	c.open = serve(&fakeConn{db: booksDatabase()})

	if _, err := c.Export(context.Background()); err == nil || !strings.Contains(err.Error(), "can only be read") {
		t.Fatalf("expected a read-only version error, got %v", err)
	}
}

func TestParseArchiveConfig(t *testing.T) {
	base := registry.DefaultInternalConfig().Archive
	base.Path = "a.siard"

	tests := []struct {
		name   string
		modify func(a *registry.InternalArchiveConfig)
		want   string
	}{
		{name: "defaults", modify: func(a *registry.InternalArchiveConfig) {}},
		{name: "missing path", modify: func(a *registry.InternalArchiveConfig) { a.Path = " " }, want: "archive.path is required"},
		{name: "unknown version", modify: func(a *registry.InternalArchiveConfig) { a.Version = "3.0" }, want: "unknown archive version"},
		{name: "unknown kind", modify: func(a *registry.InternalArchiveConfig) { a.Kind = "tarball" }, want: "unknown archive kind"},
		{name: "unknown lob mode", modify: func(a *registry.InternalArchiveConfig) { a.LOBMode = "cloud" }, want: "unknown lob mode"},
		{name: "unknown checksum", modify: func(a *registry.InternalArchiveConfig) { a.Checksum = "crc32" }, want: "unknown checksum scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			opts, err := parseArchiveConfig(cfg)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if opts.version != archive.Version22 || opts.kind != archive.Packed || opts.segments.MaxFiles != 1000 {
					t.Fatalf("unexpected defaults %+v", opts)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

type yamlProvider string

func (p yamlProvider) GetYAML() ([]byte, error) { return []byte(p), nil }

func TestNewAndClose(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected an error for a nil provider")
	}
	if _, err := New(yamlProvider("transfer: {batch_size: 0}")); err == nil {
		t.Fatalf("expected a validation error")
	}

	c, err := New(yamlProvider("archive: {path: a.siard}"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Lifecycle().RegisterHook(&registry.LifecycleHookFunc{})
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if c.Lifecycle().HookCount() != 0 {
		t.Fatalf("expected hooks to be cleared")
	}
	if _, err := c.Export(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
