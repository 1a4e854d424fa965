package converter

import (
	"context"
	"log"

	"github.com/rzpsarthak13/dbarchive/internal/content"
	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/registry"
)

// hookedSink runs the lifecycle hooks around every table the wrapped sink
// handles.
type hookedSink struct {
	core.RowSink
	lifecycle *registry.LifecycleManager

	db      *model.Database
	table   *model.Table
	rows    int64
	handled []TableSummary
}

func withHooks(sink core.RowSink, lifecycle *registry.LifecycleManager) *hookedSink {
	return &hookedSink{RowSink: sink, lifecycle: lifecycle}
}

func (h *hookedSink) HandleStructure(ctx context.Context, db *model.Database) error {
	h.db = db
	return h.RowSink.HandleStructure(ctx, db)
}

// HandleOpenTable skips the table when an open hook fails.
func (h *hookedSink) HandleOpenTable(ctx context.Context, tableID string) error {
	t, ok := h.db.LookupTable(tableID)
	if !ok {
		return h.RowSink.HandleOpenTable(ctx, tableID)
	}
	if err := h.lifecycle.ExecuteOpenHooks(ctx, t); err != nil {
		return &core.TableError{TableID: tableID, Err: err}
	}
	if err := h.RowSink.HandleOpenTable(ctx, tableID); err != nil {
		return err
	}
	h.table = t
	h.rows = 0
	return nil
}

func (h *hookedSink) HandleRow(ctx context.Context, row *model.Row) error {
	if err := h.RowSink.HandleRow(ctx, row); err != nil {
		return err
	}
	h.rows++
	return nil
}

// HandleCloseTable runs the close hooks once the wrapped sink closed the
// table. Hook failures are logged only; the rows are already written.
func (h *hookedSink) HandleCloseTable(ctx context.Context, tableID string) error {
	err := h.RowSink.HandleCloseTable(ctx, tableID)
	if h.table != nil {
		h.handled = append(h.handled, TableSummary{ID: tableID, Rows: h.rows})
		if herr := h.lifecycle.ExecuteCloseHooks(ctx, h.table, h.rows); herr != nil {
			log.Printf("[CONVERTER] Close hook failed for table %s: %v", tableID, herr)
		}
	}
	h.table = nil
	return err
}

func (h *hookedSink) Abort(ctx context.Context) error {
	if a, ok := h.RowSink.(content.Aborter); ok {
		return a.Abort(ctx)
	}
	return nil
}

// pump drains src into sink with the lifecycle hooks installed and closes
// src afterwards.
func (c *Impl) pump(ctx context.Context, src content.Source, sink core.RowSink, result *Result) error {
	hooked := withHooks(sink, c.lifecycle)
	stats, err := content.Pump(ctx, src, hooked, result.collector)
	if cerr := src.Close(); cerr != nil {
		log.Printf("[CONVERTER] Failed to close source: %v", cerr)
	}
	result.Tables = stats.Tables
	result.Rows = stats.Rows
	result.Rejected = stats.Rejected
	result.Summaries = hooked.handled
	return err
}
