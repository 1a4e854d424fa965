package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rzpsarthak13/dbarchive/internal/model"
)

func TestLoadFromYAML(t *testing.T) {
	cm := NewConfigManager()
	data := []byte(`
database:
  driver: postgres
  host: db.local
  port: 5433
  database: library
  schemas: [public, sales]
  connection_timeout: 3s
archive:
  path: /tmp/library.siard
  kind: folder-with-checksums
  checksum: sha256
transfer:
  batch_size: 250
  batches_per_second: 2.5
`)
	if err := cm.LoadFromYAML(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := cm.GetConfig()
	if c.Database.Driver != "postgres" || c.Database.Port != 5433 || c.Database.Database != "library" {
		t.Fatalf("unexpected database section: %+v", c.Database)
	}
	if len(c.Database.Schemas) != 2 || c.Database.Schemas[1] != "sales" {
		t.Fatalf("expected schemas [public sales], got %v", c.Database.Schemas)
	}
	if c.Database.ConnectionTimeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", c.Database.ConnectionTimeout)
	}
	if c.Database.MaxOpenConns != 4 {
		t.Fatalf("expected default pool size to survive, got %d", c.Database.MaxOpenConns)
	}
	if c.Archive.Kind != "folder-with-checksums" || c.Archive.Checksum != "sha256" || c.Archive.Version != "2.2" {
		t.Fatalf("unexpected archive section: %+v", c.Archive)
	}
	if c.Transfer.BatchSize != 250 || c.Transfer.BatchesPerSecond != 2.5 || !c.Transfer.CreateTables {
		t.Fatalf("unexpected transfer section: %+v", c.Transfer)
	}
}

func TestLoadFromJSON(t *testing.T) {
	cm := NewConfigManager()
	data := []byte(`{"database":{"driver":"mysql","host":"127.0.0.1","port":3307},"transfer":{"batch_size":10}}`)
	if err := cm.LoadFromJSON(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := cm.GetConfig()
	if c.Database.Host != "127.0.0.1" || c.Database.Port != 3307 || c.Transfer.BatchSize != 10 {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "unknown driver", yaml: "database: {driver: oracle}", want: "unsupported database driver"},
		{name: "empty host", yaml: "database: {driver: mysql, host: ''}", want: "host is required"},
		{name: "port out of range", yaml: "database: {port: 70000}", want: "database.port"},
		{name: "zero batch size", yaml: "transfer: {batch_size: 0}", want: "transfer.batch_size"},
		{name: "negative rate", yaml: "transfer: {batches_per_second: -1}", want: "batches_per_second"},
		{name: "backend without type", yaml: "report: {backends: [{}]}", want: "report.backends[0].type"},
		{name: "unknown backend", yaml: "report: {backends: [{type: carrier-pigeon}]}", want: "unsupported report backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := NewConfigManager()
			err := cm.LoadFromYAML([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
			if cm.GetConfig().Database.Driver != "mysql" {
				t.Fatalf("expected the previous configuration to be kept")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "dbarchive.yml")
	if err := os.WriteFile(yamlPath, []byte("database: {driver: pgx}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cm := NewConfigManager()
	if err := cm.LoadFromFile(yamlPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cm.GetConfig().Database.Driver != "pgx" {
		t.Fatalf("expected driver pgx, got %s", cm.GetConfig().Database.Driver)
	}

	tomlPath := filepath.Join(dir, "dbarchive.toml")
	if err := os.WriteFile(tomlPath, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := cm.LoadFromFile(tomlPath); err == nil || !strings.Contains(err.Error(), "unsupported config file format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
	if err := cm.LoadFromFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DBARCHIVE_DATABASE_DRIVER", "postgresql")
	t.Setenv("DBARCHIVE_DATABASE_PORT", "6543")
	t.Setenv("DBARCHIVE_DATABASE_TLS", "true")
	t.Setenv("DBARCHIVE_DATABASE_SCHEMAS", "public, audit ,")
	t.Setenv("DBARCHIVE_ARCHIVE_SEGMENT_MAX_BYTES", "1048576")
	t.Setenv("DBARCHIVE_TRANSFER_BATCHES_PER_SECOND", "0.5")
	t.Setenv("DBARCHIVE_TRANSFER_CREATE_TABLES", "0")
	t.Setenv("DBARCHIVE_DATABASE_MAX_IDLE_CONNS", "not-a-number")

	cm := NewConfigManager()
	if err := cm.LoadFromYAML([]byte("database: {database: ledger}")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cm.LoadFromEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := cm.GetConfig()
	if c.Database.Driver != "postgresql" || c.Database.Port != 6543 || !c.Database.TLS {
		t.Fatalf("unexpected database section: %+v", c.Database)
	}
	if c.Database.Database != "ledger" {
		t.Fatalf("expected file settings to survive, got %q", c.Database.Database)
	}
	if strings.Join(c.Database.Schemas, "|") != "public|audit" {
		t.Fatalf("expected schemas [public audit], got %v", c.Database.Schemas)
	}
	if c.Database.MaxIdleConns != 2 {
		t.Fatalf("expected malformed value to be ignored, got %d", c.Database.MaxIdleConns)
	}
	if c.Archive.SegmentMaxBytes != 1<<20 || c.Transfer.BatchesPerSecond != 0.5 || c.Transfer.CreateTables {
		t.Fatalf("unexpected archive/transfer sections: %+v %+v", c.Archive, c.Transfer)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("DBARCHIVE_TEST_DOTENV_KEY=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("DBARCHIVE_TEST_DOTENV_KEY") })

	if err := LoadDotEnv(filepath.Join(dir, "absent.env"), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("DBARCHIVE_TEST_DOTENV_KEY"); got != "from-file" {
		t.Fatalf("expected from-file, got %q", got)
	}
	if err := LoadDotEnv(filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("expected missing files to be ignored, got %v", err)
	}
}

func TestValidatorRegistry(t *testing.T) {
	for _, name := range []string{"mysql", "MariaDB", "pgx"} {
		if _, ok := GetValidator(name); !ok {
			t.Fatalf("expected a validator for %s", name)
		}
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected duplicate registration to panic")
		}
	}()
	RegisterValidator(&DriverConfigValidator{name: "mysql"})
}

type recordingHook struct {
	events *[]string
	fail   bool
}

func (h *recordingHook) OnOpen(ctx context.Context, table *model.Table) error {
	*h.events = append(*h.events, "open "+table.ID())
	if h.fail {
		return errors.New("refused")
	}
	return nil
}

func (h *recordingHook) OnClose(ctx context.Context, table *model.Table, rows int64) error {
	*h.events = append(*h.events, "close "+table.ID())
	return nil
}

func TestLifecycleManager(t *testing.T) {
	db := model.NewDatabase("db")
	table := db.AddSchema("s").AddTable("t")

	var events []string
	first := &recordingHook{events: &events}
	second := &recordingHook{events: &events, fail: true}
	third := &recordingHook{events: &events}

	lm := NewLifecycleManager()
	lm.RegisterHook(first)
	lm.RegisterHook(second)
	lm.RegisterHook(third)

	if err := lm.ExecuteOpenHooks(context.Background(), table); err == nil {
		t.Fatalf("expected the failing hook to stop execution")
	}
	if strings.Join(events, ",") != "open s.t,open s.t" {
		t.Fatalf("unexpected events %v", events)
	}

	lm.UnregisterHook(second)
	if lm.HookCount() != 2 {
		t.Fatalf("expected 2 hooks, got %d", lm.HookCount())
	}
	events = nil
	if err := lm.ExecuteCloseHooks(context.Background(), table, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected both remaining hooks to run, got %v", events)
	}

	lm.ClearHooks()
	if lm.HookCount() != 0 {
		t.Fatalf("expected no hooks, got %d", lm.HookCount())
	}
}
