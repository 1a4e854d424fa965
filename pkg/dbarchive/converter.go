package dbarchive

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/dbarchive/internal/converter"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/registry"
)

// Converter moves databases into preservation archives and back.
//
// Typical usage:
//
//	conv, _ := dbarchive.NewConverter(config)
//	defer conv.Close()
//
//	result, err := conv.Export(ctx)
//	if err == nil && !result.OK() {
//		for _, p := range result.Problems {
//			fmt.Println(p)
//		}
//	}
type Converter interface {
	// Export copies the configured database into a new archive at Archive.Path.
	// Rows and tables that cannot be copied are reported and skipped.
	Export(ctx context.Context) (*Result, error)

	// Import loads the archive at Archive.Path into the configured database.
	// The archive version is detected.
	Import(ctx context.Context) (*Result, error)

	// Inspect reads only the archive's metadata. Summaries carry the
	// declared row counts.
	Inspect(ctx context.Context) (*Result, error)

	// Verify recomputes the checksums recorded in the archive's manifest.
	Verify(ctx context.Context) (*Result, error)

	// Close releases the converter. Operations fail afterwards.
	Close() error
}

// TableInfo describes a table passed to a TableHook.
type TableInfo struct {
	ID      string
	Schema  string
	Name    string
	Columns []string

	// DeclaredRows is the row count recorded in the archive metadata when
	// importing, and zero when exporting.
	DeclaredRows int64
}

// TableHook is called around every transferred table. Either func may be nil.
type TableHook struct {
	// OnOpen is called before the first row. An error skips the table and is reported.
	OnOpen func(ctx context.Context, table TableInfo) error

	// OnClose is called after the last row with the number of rows written.
	OnClose func(ctx context.Context, table TableInfo, rows int64) error
}

// Option configures a converter.
type Option func(*converterWrapper)

// WithTableHook registers hook for every operation of the converter.
func WithTableHook(hook TableHook) Option {
	return func(cw *converterWrapper) {
		cw.hooks = append(cw.hooks, hook)
	}
}

// TableSummary is the row count of one table.
type TableSummary struct {
	ID   string `json:"id"`
	Rows int64  `json:"rows"`
}

// Mismatch is a file whose checksum differs from the manifest.
type Mismatch struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Problem is one item of the itemized report.
type Problem struct {
	Seq     int       `json:"seq"`
	Subject string    `json:"subject"`
	Reason  string    `json:"reason"`
	Time    time.Time `json:"time"`
}

func (p Problem) String() string {
	return p.Subject + " failed because " + p.Reason
}

// Result is the outcome of one operation.
type Result struct {
	Run      string `json:"run"`
	Database string `json:"database,omitempty"`
	Version  string `json:"version,omitempty"`

	Tables   int   `json:"tables"`
	Rows     int64 `json:"rows"`
	Rejected int64 `json:"rejected"`

	Summaries []TableSummary `json:"summaries,omitempty"`

	// Files and Mismatches are only filled by Verify.
	Files      int        `json:"files,omitempty"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`

	Problems []Problem `json:"problems"`

	report func(io.Writer) error
}

// OK reports whether nothing was reported during the operation.
func (r *Result) OK() bool {
	return len(r.Problems) == 0
}

// WriteReport writes the problems as a JSON array to w.
func (r *Result) WriteReport(w io.Writer) error {
	if r.report == nil {
		_, err := io.WriteString(w, "[]\n")
		return err
	}
	return r.report(w)
}

// configProvider implements converter.ConfigProvider to provide config as YAML without import cycles.
type configProvider struct {
	config *Config
}

func (cp *configProvider) GetYAML() ([]byte, error) {
	return yaml.Marshal(cp.config)
}

// converterWrapper wraps the internal converter to provide the public Converter interface.
type converterWrapper struct {
	impl  *converter.Impl
	hooks []TableHook
}

// NewConverter creates a converter for config. The configuration is
// validated here; connections are only opened by the operations.
func NewConverter(config *Config, opts ...Option) (Converter, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	impl, err := converter.New(&configProvider{config: config})
	if err != nil {
		return nil, err
	}

	cw := &converterWrapper{impl: impl}
	for _, opt := range opts {
		opt(cw)
	}
	for _, hook := range cw.hooks {
		impl.Lifecycle().RegisterHook(lifecycleHook(hook))
	}
	return cw, nil
}

func lifecycleHook(hook TableHook) registry.LifecycleHook {
	h := &registry.LifecycleHookFunc{}
	if hook.OnOpen != nil {
		h.OnOpenFunc = func(ctx context.Context, table *model.Table) error {
			return hook.OnOpen(ctx, tableInfo(table))
		}
	}
	if hook.OnClose != nil {
		h.OnCloseFunc = func(ctx context.Context, table *model.Table, rows int64) error {
			return hook.OnClose(ctx, tableInfo(table), rows)
		}
	}
	return h
}

func tableInfo(t *model.Table) TableInfo {
	info := TableInfo{ID: t.ID(), Name: t.Name, DeclaredRows: t.RowCount}
	if s := t.Schema(); s != nil {
		info.Schema = s.Name
	}
	for _, c := range t.Columns {
		info.Columns = append(info.Columns, c.Name)
	}
	return info
}

func (cw *converterWrapper) Export(ctx context.Context) (*Result, error) {
	return publicResult(cw.impl.Export(ctx))
}

func (cw *converterWrapper) Import(ctx context.Context) (*Result, error) {
	return publicResult(cw.impl.Import(ctx))
}

func (cw *converterWrapper) Inspect(ctx context.Context) (*Result, error) {
	return publicResult(cw.impl.Inspect(ctx))
}

func (cw *converterWrapper) Verify(ctx context.Context) (*Result, error) {
	return publicResult(cw.impl.Verify(ctx))
}

func (cw *converterWrapper) Close() error {
	return cw.impl.Close()
}

// publicResult converts an internal result. A failed operation may still
// carry a partial result.
func publicResult(r *converter.Result, err error) (*Result, error) {
	if r == nil {
		return nil, err
	}
	out := &Result{
		Run:      r.Run,
		Version:  r.Version,
		Tables:   r.Tables,
		Rows:     r.Rows,
		Rejected: r.Rejected,
		Files:    r.Files,
		report:   r.WriteJSON,
	}
	if r.Database != nil {
		out.Database = r.Database.Name
	}
	for _, s := range r.Summaries {
		out.Summaries = append(out.Summaries, TableSummary{ID: s.ID, Rows: s.Rows})
	}
	for _, m := range r.Mismatches {
		pm := Mismatch{Path: m.Path, Expected: m.Expected, Actual: m.Actual}
		if m.Err != nil {
			pm.Error = m.Err.Error()
		}
		out.Mismatches = append(out.Mismatches, pm)
	}
	out.Problems = make([]Problem, 0, len(r.Problems))
	for _, p := range r.Problems {
		out.Problems = append(out.Problems, Problem{Seq: p.Seq, Subject: p.Subject, Reason: p.Reason, Time: p.Time})
	}
	return out, err
}
