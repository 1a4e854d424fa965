package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/model"
)

// Aborter is implemented by sinks that hold resources which must be
// released when the conversion fails before Finish.
type Aborter interface {
	Abort(ctx context.Context) error
}

// Stats summarizes a pump run.
type Stats struct {
	Tables   int
	Rows     int64
	Rejected int64
}

// Pump drains src into sink. Row-local failures from either side are
// reported and the row skipped; table-local failures are reported and the
// table skipped. Any other failure closes the open scopes on the sink and
// is returned.
//
// Once a table closes, its RowCount holds the number of rows the sink
// accepted.
func Pump(ctx context.Context, src Source, sink core.RowSink, reporter core.Reporter) (Stats, error) {
	p := &pump{sink: sink, reporter: reporter, seq: NewSequencer()}
	err := p.run(ctx, src)
	if err != nil {
		p.unwind(ctx)
		if a, ok := sink.(Aborter); ok {
			if aerr := a.Abort(ctx); aerr != nil {
				log.Printf("[CONTENT] Abort failed: %v", aerr)
			}
		}
	}
	return p.stats, err
}

type pump struct {
	sink     core.RowSink
	reporter core.Reporter
	seq      *Sequencer
	stats    Stats

	db        *model.Database
	table     *model.Table
	expected  []int
	rows      int64
	sinkTable bool // sink accepted HandleOpenTable for the open table
	sinkScope bool // sink accepted HandleOpenSchema for the open schema
}

func (p *pump) run(ctx context.Context, src Source) error {
	if err := p.sink.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize sink: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			if !p.seq.Done() {
				return fmt.Errorf("%w: source ended before end event", core.ErrNesting)
			}
			return nil
		}
		if err != nil {
			if herr := p.sourceFailure(ctx, err); herr != nil {
				return herr
			}
			continue
		}
		if err := p.seq.Accept(e); err != nil {
			if e.Kind == EventRow {
				e.Row.Release()
			}
			return err
		}
		if err := p.dispatch(ctx, e); err != nil {
			return err
		}
		if e.Kind == EventEnd {
			return nil
		}
	}
}

func (p *pump) sourceFailure(ctx context.Context, err error) error {
	switch {
	case core.IsRowLocal(err):
		p.reportError(err)
		p.stats.Rejected++
		return nil
	case core.IsTableLocal(err):
		p.reportError(err)
		_, open := p.seq.Open()
		if open != "" {
			log.Printf("[CONTENT] Abandoning table %s: %v", open, err)
			p.seq.Abandon()
			if p.sinkTable {
				p.sinkTable = false
				if cerr := p.sink.HandleCloseTable(ctx, open); cerr != nil {
					return fmt.Errorf("failed to close table %s: %w", open, cerr)
				}
			}
			p.table = nil
		}
		return nil
	}
	return fmt.Errorf("failed to read content: %w", err)
}

func (p *pump) dispatch(ctx context.Context, e Event) error {
	switch e.Kind {
	case EventStructure:
		p.db = e.Database
		return p.sink.HandleStructure(ctx, e.Database)

	case EventOpenSchema:
		if err := p.sink.HandleOpenSchema(ctx, e.Schema); err != nil {
			return fmt.Errorf("failed to open schema %s: %w", e.Schema, err)
		}
		p.sinkScope = true

	case EventOpenTable:
		t, _ := p.db.LookupTable(e.TableID)
		p.table = t
		p.rows = 0
		p.expected = expectedLeaves(t)
		if err := p.sink.HandleOpenTable(ctx, e.TableID); err != nil {
			if !core.IsTableLocal(err) {
				return fmt.Errorf("failed to open table %s: %w", e.TableID, err)
			}
			p.reportError(err)
			p.sinkTable = false
			return nil
		}
		p.sinkTable = true
		p.stats.Tables++

	case EventRow:
		defer e.Row.Release()
		if !p.sinkTable {
			return nil
		}
		if reason := p.checkShape(e.Row); reason != "" {
			p.reporter.Failed(rowSubject(p.table.ID(), e.Row.Index), reason)
			p.stats.Rejected++
			return nil
		}
		if err := p.sink.HandleRow(ctx, e.Row); err != nil {
			if !core.IsRowLocal(err) {
				return fmt.Errorf("failed to write row %d of %s: %w", e.Row.Index, p.table.ID(), err)
			}
			p.reportError(err)
			p.stats.Rejected++
			return nil
		}
		p.rows++
		p.stats.Rows++

	case EventCloseTable:
		if p.table != nil {
			p.table.RowCount = p.rows
		}
		p.table = nil
		if !p.sinkTable {
			return nil
		}
		p.sinkTable = false
		if err := p.sink.HandleCloseTable(ctx, e.TableID); err != nil {
			return fmt.Errorf("failed to close table %s: %w", e.TableID, err)
		}

	case EventCloseSchema:
		p.sinkScope = false
		if err := p.sink.HandleCloseSchema(ctx, e.Schema); err != nil {
			return fmt.Errorf("failed to close schema %s: %w", e.Schema, err)
		}

	case EventEnd:
		if err := p.sink.Finish(ctx); err != nil {
			return fmt.Errorf("failed to finish sink: %w", err)
		}
		log.Printf("[CONTENT] Pumped %d tables, %d rows (%d rejected)", p.stats.Tables, p.stats.Rows, p.stats.Rejected)
	}
	return nil
}

// checkShape returns a non-empty reason when the row does not fit the table.
func (p *pump) checkShape(row *model.Row) string {
	if len(row.Cells) != len(p.table.Columns) {
		return fmt.Sprintf("expected %d cells but got %d", len(p.table.Columns), len(row.Cells))
	}
	for i, want := range p.expected {
		if want < 0 {
			continue
		}
		c := row.Cells[i]
		if _, null := c.(model.NullCell); null {
			continue
		}
		if got := len(model.Leaves(c)); got != want {
			return fmt.Sprintf("column %s: expected %d subvalues but got %d", p.table.Columns[i].Name, want, got)
		}
	}
	return ""
}

// expectedLeaves returns the fixed leaf count per composed column, -1 for
// columns that need no check.
func expectedLeaves(t *model.Table) []int {
	out := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = -1
		if c.Type == nil || !c.Type.IsComposed() {
			continue
		}
		if n, ok := LeafCount(c.Type); ok {
			out[i] = n
		}
	}
	return out
}

// unwind closes whatever the sink still has open.
func (p *pump) unwind(ctx context.Context) {
	schema, table := p.seq.Open()
	if table != "" && p.sinkTable {
		if err := p.sink.HandleCloseTable(ctx, table); err != nil {
			log.Printf("[CONTENT] Failed to close table %s while unwinding: %v", table, err)
		}
	}
	p.sinkTable = false
	if schema != "" && p.sinkScope {
		if err := p.sink.HandleCloseSchema(ctx, schema); err != nil {
			log.Printf("[CONTENT] Failed to close schema %s while unwinding: %v", schema, err)
		}
	}
	p.sinkScope = false
}

func (p *pump) reportError(err error) {
	var de *core.DataError
	if errors.As(err, &de) {
		reason := de.Reason
		if de.Err != nil {
			reason += ": " + de.Err.Error()
		}
		p.reporter.Failed(de.Subject, reason)
		return
	}
	var te *core.TableError
	if errors.As(err, &te) {
		p.reporter.Failed("Table `"+te.TableID+"`", te.Err.Error())
		return
	}
	p.reporter.Failed("Content", err.Error())
}

func rowSubject(tableID string, index int64) string {
	return fmt.Sprintf("Row %d of table `%s`", index, tableID)
}
