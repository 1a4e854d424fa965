package core

import (
	"context"

	"github.com/rzpsarthak13/dbarchive/internal/model"
)

// RowSink consumes a database as a nested stream of events. The content
// pipeline is its only caller and always calls it in this order:
//
//	Init, HandleStructure, (HandleOpenSchema, (HandleOpenTable, HandleRow*, HandleCloseTable)*, HandleCloseSchema)*, Finish
//
// Archive writers and relational database writers both implement it.
type RowSink interface {
	// Init prepares the sink before any structure is known.
	Init(ctx context.Context) error

	// HandleStructure hands over the full structural description.
	// It is called exactly once, before any schema is opened.
	HandleStructure(ctx context.Context, db *model.Database) error

	// HandleOpenSchema starts the schema with the given name.
	HandleOpenSchema(ctx context.Context, schema string) error

	// HandleOpenTable starts the table with the given id ("<schema>.<table>").
	HandleOpenTable(ctx context.Context, tableID string) error

	// HandleRow consumes one row of the open table. The row and its binary
	// streams are released by the caller once HandleRow returns.
	// A *DataError result rejects only this row.
	HandleRow(ctx context.Context, row *model.Row) error

	// HandleCloseTable ends the open table and flushes pending writes.
	HandleCloseTable(ctx context.Context, tableID string) error

	// HandleCloseSchema ends the open schema.
	HandleCloseSchema(ctx context.Context, schema string) error

	// Finish completes the conversion and releases the sink's resources.
	Finish(ctx context.Context) error
}
