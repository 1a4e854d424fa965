package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/database"
	"github.com/rzpsarthak13/dbarchive/internal/lob"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/registry"
	"github.com/rzpsarthak13/dbarchive/internal/report"
)

// ErrClosed is returned by every operation once Close was called.
var ErrClosed = errors.New("converter is closed")

// ConfigProvider is an interface to provide configuration as YAML without importing the public package.
type ConfigProvider interface {
	GetYAML() ([]byte, error)
}

// OpenFunc opens a database connection.
type OpenFunc func(ctx context.Context, cfg database.ConnConfig) (database.Conn, error)

// TableSummary describes one table handled by an operation.
type TableSummary struct {
	ID   string
	Rows int64
}

// Result is the outcome of one operation.
type Result struct {
	Run      string
	Tables   int
	Rows     int64
	Rejected int64

	// Summaries lists the tables in the order they were handled.
	Summaries []TableSummary

	// Version and Database describe the archive read by Import and Inspect.
	Version  string
	Database *model.Database

	// Files and Mismatches are only filled by Verify.
	Files      int
	Mismatches []archive.Mismatch

	Problems []report.Problem

	collector *report.Collector
}

// OK reports whether the operation completed without any reported problem.
func (r *Result) OK() bool {
	return len(r.Problems) == 0
}

// WriteJSON writes the problem report of the run to w.
func (r *Result) WriteJSON(w io.Writer) error {
	if r.collector == nil {
		_, err := io.WriteString(w, "[]\n")
		return err
	}
	return r.collector.WriteJSON(w)
}

// Impl runs conversions described by one configuration. Operations are
// serialized; each one opens its own connection and archive.
type Impl struct {
	mu        sync.Mutex
	configMgr *registry.ConfigManager
	lifecycle *registry.LifecycleManager
	open      OpenFunc
	closed    bool
}

// New creates a converter from the YAML returned by provider.
// It accepts a config provider to avoid import cycles.
func New(provider ConfigProvider) (*Impl, error) {
	if provider == nil {
		return nil, fmt.Errorf("config provider cannot be nil")
	}

	configMgr := registry.NewConfigManager()
	yamlData, err := provider.GetYAML()
	if err != nil {
		return nil, fmt.Errorf("failed to get config YAML: %w", err)
	}
	if err := configMgr.LoadFromYAML(yamlData); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithManager(configMgr), nil
}

// NewWithManager creates a converter over an already loaded configuration.
func NewWithManager(configMgr *registry.ConfigManager) *Impl {
	return &Impl{
		configMgr: configMgr,
		lifecycle: registry.NewLifecycleManager(),
		open:      database.Open,
	}
}

// Lifecycle returns the hooks run around every transferred table.
func (c *Impl) Lifecycle() *registry.LifecycleManager {
	return c.lifecycle
}

// Config returns the active configuration.
func (c *Impl) Config() *registry.InternalConfig {
	return c.configMgr.GetConfig()
}

// Close rejects further operations and drops registered hooks.
func (c *Impl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.lifecycle.ClearHooks()
	return nil
}

// begin locks the converter for one operation and opens its problem
// collector. The returned func releases both.
func (c *Impl) begin(ctx context.Context) (*report.Collector, func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, nil, ErrClosed
	}
	collector, err := report.Open(ctx, c.configMgr.GetConfig().Report)
	if err != nil {
		c.mu.Unlock()
		return nil, nil, fmt.Errorf("failed to open problem report: %w", err)
	}
	done := func() {
		if err := collector.Close(); err != nil {
			log.Printf("[CONVERTER] Failed to close report backends: %v", err)
		}
		c.mu.Unlock()
	}
	return collector, done, nil
}

func newResult(collector *report.Collector) *Result {
	return &Result{Run: collector.Run(), collector: collector}
}

// finish copies the collected problems into r.
func (r *Result) finish() *Result {
	r.Problems = r.collector.Problems()
	return r
}

// connect opens the configured database. A connectivity failure with TLS
// enabled is retried once without TLS when the configuration allows it.
func (c *Impl) connect(ctx context.Context, reporter core.Reporter) (database.Conn, error) {
	config := c.configMgr.GetConfig()
	cc := connConfig(config.Database)

	conn, err := c.open(ctx, cc)
	if err == nil {
		return conn, nil
	}
	if !cc.TLS || !config.Transfer.RetryWithoutTLS || !errors.Is(err, core.ErrConnectivity) {
		return nil, fmt.Errorf("failed to connect to %s database %s: %w", cc.Driver, cc.Database, err)
	}

	log.Printf("[CONVERTER] Connection to %s failed with TLS, retrying without: %v", cc.Host, err)
	reporter.Failed("Connection to `"+cc.Host+"`", "could not be encrypted, continuing without TLS: "+err.Error())
	cc.TLS = false
	conn, err = c.open(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database %s: %w", cc.Driver, cc.Database, err)
	}
	return conn, nil
}

func connConfig(d registry.InternalDatabaseConfig) database.ConnConfig {
	return database.ConnConfig{
		Driver:            d.Driver,
		Host:              d.Host,
		Port:              d.Port,
		Database:          d.Database,
		Username:          d.Username,
		Password:          d.Password,
		TLS:               d.TLS,
		MaxOpenConns:      d.MaxOpenConns,
		MaxIdleConns:      d.MaxIdleConns,
		ConnMaxLifetime:   d.ConnMaxLifetime,
		ConnectionTimeout: d.ConnectionTimeout,
	}
}

// archiveOptions is the parsed archive section.
type archiveOptions struct {
	path     string
	version  archive.Version
	kind     archive.Kind
	lobMode  lob.Mode
	segments lob.SegmentPolicy
	checksum archive.ChecksumScheme
	workers  int
}

func parseArchiveConfig(a registry.InternalArchiveConfig) (archiveOptions, error) {
	opts := archiveOptions{
		path:     a.Path,
		segments: lob.SegmentPolicy{MaxFiles: a.SegmentMaxFiles, MaxBytes: a.SegmentMaxBytes},
		workers:  a.VerifyWorkers,
	}
	if strings.TrimSpace(a.Path) == "" {
		return opts, fmt.Errorf("archive.path is required")
	}

	version, err := parseVersion(a.Version)
	if err != nil {
		return opts, err
	}
	opts.version = version

	if opts.kind, err = archive.ParseKind(a.Kind); err != nil {
		return opts, err
	}
	if opts.lobMode, err = lob.ParseMode(strings.ToLower(a.LOBMode)); err != nil {
		return opts, err
	}
	if opts.checksum, err = archive.ParseChecksumScheme(a.Checksum); err != nil {
		return opts, err
	}
	if opts.segments.MaxFiles == 0 && opts.segments.MaxBytes == 0 {
		opts.segments = lob.DefaultSegmentPolicy
	}
	return opts, nil
}

func parseVersion(s string) (archive.Version, error) {
	switch v := archive.Version(strings.ToLower(strings.TrimSpace(s))); v {
	case archive.Version10, archive.Version20, archive.Version21, archive.Version22, archive.VersionDK:
		return v, nil
	case "":
		return archive.Version22, nil
	}
	return archive.VersionUnknown, fmt.Errorf("unknown archive version %q", s)
}
