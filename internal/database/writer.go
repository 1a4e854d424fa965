package database

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/model"
)

// WriterOptions tunes a TableWriter.
type WriterOptions struct {
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int

	// BatchesPerSecond throttles batch execution; zero does not throttle.
	BatchesPerSecond float64

	// CreateTables issues CREATE SCHEMA, TYPE and TABLE statements before
	// any rows are written.
	CreateTables bool
}

// TableWriter is a core.RowSink inserting rows into a live database, one
// transaction per table.
type TableWriter struct {
	conn     Conn
	dialect  Dialect
	binder   *Binder
	reporter core.Reporter
	opts     WriterOptions
	limiter  *rate.Limiter

	db     *model.Database
	schema string
	table  *model.Table
	insert string
	exec   core.BatchExecutor
	batch  *Batch
	broken bool

	Inserted int64
	Failed   int64
}

// NewTableWriter returns a writer inserting through conn.
func NewTableWriter(conn Conn, reporter core.Reporter, opts WriterOptions) *TableWriter {
	w := &TableWriter{
		conn:     conn,
		dialect:  conn.Dialect(),
		binder:   NewBinder(),
		reporter: reporter,
		opts:     opts,
	}
	if opts.BatchesPerSecond > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(opts.BatchesPerSecond), 1)
	}
	return w
}

func (w *TableWriter) Init(ctx context.Context) error { return ctx.Err() }

// HandleStructure creates the target objects when configured to. A table
// that cannot be created is reported; its inserts will fail and be
// reported one by one.
func (w *TableWriter) HandleStructure(ctx context.Context, db *model.Database) error {
	w.db = db
	if !w.opts.CreateTables {
		return nil
	}
	for _, s := range db.Schemas {
		if err := w.conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+w.dialect.QuoteIdent(s.Name)); err != nil {
			w.reporter.Failed("Schema `"+s.Name+"`", "could not be created: "+err.Error())
		}
		for _, t := range s.Types {
			if ddl, ok := CreateTypeSQL(w.dialect, t); ok {
				if err := w.conn.Exec(ctx, ddl); err != nil {
					log.Printf("[DATABASE] Type %s not created: %v", t, err)
				}
			}
		}
		for _, t := range s.Tables {
			if err := w.conn.Exec(ctx, CreateTableSQL(w.dialect, s.Name, t)); err != nil {
				w.reporter.Failed("Table `"+t.ID()+"`", "could not be created: "+err.Error())
			}
		}
	}
	return nil
}

func (w *TableWriter) HandleOpenSchema(ctx context.Context, schema string) error {
	w.schema = schema
	return nil
}

// HandleOpenTable fixes the insert statement and starts the transaction.
func (w *TableWriter) HandleOpenTable(ctx context.Context, tableID string) error {
	t, ok := w.db.LookupTable(tableID)
	if !ok {
		return fmt.Errorf("unknown table %s", tableID)
	}
	exec, err := w.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", tableID, err)
	}
	w.table = t
	w.insert = InsertSQL(w.dialect, w.schema, t)
	w.exec = exec
	w.broken = false
	w.batch = NewBatch(exec, w.reporter, tableID, w.opts.BatchSize, w.limiter)
	log.Printf("[DATABASE] Writing table %s", tableID)
	return nil
}

// HandleRow binds the row and queues it. A cell that cannot be bound
// rejects the row.
func (w *TableWriter) HandleRow(ctx context.Context, row *model.Row) error {
	args := make([]any, len(w.table.Columns))
	for i, c := range w.table.Columns {
		v, err := w.binder.Bind(c.Type, row.Cells[i])
		if err != nil {
			return &core.DataError{
				Subject: fmt.Sprintf("Row %d of table `%s`", row.Index, w.table.ID()),
				Reason:  "column " + c.Name,
				Err:     err,
			}
		}
		args[i] = v
	}
	err := w.batch.Add(ctx, core.Statement{
		SQL:      w.insert,
		Args:     args,
		RowIndex: row.Index,
		Text:     StatementText(w.dialect, w.insert, args),
	})
	if err != nil {
		w.broken = true
	}
	return err
}

// HandleCloseTable flushes, commits and releases the transaction. Release
// failures are only logged. A table whose batch failed fatally is only
// released.
func (w *TableWriter) HandleCloseTable(ctx context.Context, tableID string) error {
	if w.exec == nil {
		return nil
	}
	defer w.cleanup()
	if w.broken {
		return nil
	}

	if err := w.batch.Flush(ctx); err != nil {
		return err
	}
	if err := w.exec.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s: %w", tableID, err)
	}
	w.Inserted += w.batch.Executed
	w.Failed += w.batch.Failed
	log.Printf("[DATABASE] Committed table %s: %d inserted, %d failed", tableID, w.batch.Executed, w.batch.Failed)
	return nil
}

func (w *TableWriter) cleanup() {
	if err := w.exec.Close(); err != nil {
		log.Printf("[DATABASE] Cleanup of %s failed: %v", w.table.ID(), err)
	}
	w.exec, w.batch, w.table = nil, nil, nil
	w.broken = false
}

func (w *TableWriter) HandleCloseSchema(ctx context.Context, schema string) error {
	w.schema = ""
	return nil
}

func (w *TableWriter) Finish(ctx context.Context) error {
	log.Printf("[DATABASE] Import finished: %d rows inserted, %d failed", w.Inserted, w.Failed)
	return nil
}

// Abort rolls back an open transaction.
func (w *TableWriter) Abort(ctx context.Context) error {
	if w.exec == nil {
		return nil
	}
	err := w.exec.Close()
	w.exec, w.batch, w.table = nil, nil, nil
	return err
}
