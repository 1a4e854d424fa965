// Package content streams table rows between archives and databases.
//
// A Source produces a nested sequence of events; Pump checks the nesting
// with a Sequencer and drives a core.RowSink with them, reporting per-row
// problems without aborting the table.
package content

import (
	"context"
	"fmt"

	"github.com/rzpsarthak13/dbarchive/internal/model"
)

// EventKind identifies a content event.
type EventKind int

const (
	EventStructure EventKind = iota
	EventOpenSchema
	EventOpenTable
	EventRow
	EventCloseTable
	EventCloseSchema
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventStructure:
		return "structure"
	case EventOpenSchema:
		return "open-schema"
	case EventOpenTable:
		return "open-table"
	case EventRow:
		return "row"
	case EventCloseTable:
		return "close-table"
	case EventCloseSchema:
		return "close-schema"
	case EventEnd:
		return "end"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one step of the content stream. Only the field matching Kind is set.
type Event struct {
	Kind     EventKind
	Database *model.Database
	Schema   string
	TableID  string
	Row      *model.Row
}

func (e Event) String() string {
	switch e.Kind {
	case EventOpenSchema, EventCloseSchema:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Schema)
	case EventOpenTable, EventCloseTable:
		return fmt.Sprintf("%s(%s)", e.Kind, e.TableID)
	case EventRow:
		if e.Row != nil {
			return fmt.Sprintf("row(%d)", e.Row.Index)
		}
	}
	return e.Kind.String()
}

// Structure, OpenSchema and the other constructors build events.
func Structure(db *model.Database) Event { return Event{Kind: EventStructure, Database: db} }
func OpenSchema(schema string) Event     { return Event{Kind: EventOpenSchema, Schema: schema} }
func OpenTable(tableID string) Event     { return Event{Kind: EventOpenTable, TableID: tableID} }
func Row(row *model.Row) Event           { return Event{Kind: EventRow, Row: row} }
func CloseTable(tableID string) Event    { return Event{Kind: EventCloseTable, TableID: tableID} }
func CloseSchema(schema string) Event    { return Event{Kind: EventCloseSchema, Schema: schema} }
func End() Event                         { return Event{Kind: EventEnd} }

// Source is a pull iterator over content events. Next returns io.EOF after
// the End event.
//
// A *core.DataError from Next rejects one row and the source continues
// with the next one. A table-local error (see core.IsTableLocal) abandons
// the current table and the source continues with the next table without
// emitting its CloseTable. Any other error is fatal.
type Source interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// SliceSource replays a fixed list of events.
type SliceSource struct {
	Events []Event
	pos    int
}

func (s *SliceSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if s.pos >= len(s.Events) {
		return Event{}, errEOF
	}
	e := s.Events[s.pos]
	s.pos++
	return e, nil
}

func (s *SliceSource) Close() error { return nil }
