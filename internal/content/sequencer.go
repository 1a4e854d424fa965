package content

import (
	"fmt"
	"io"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/model"
)

var errEOF = io.EOF

type seqState int

const (
	stDocument seqState = iota
	stStructure
	stSchema
	stTable
	stEnd
)

// Sequencer enforces the event grammar
//
//	Structure (OpenSchema (OpenTable Row* CloseTable)* CloseSchema)* End
//
// A schema must be closed before the next one opens, and a table may only
// be opened inside its own schema.
type Sequencer struct {
	state  seqState
	db     *model.Database
	schema string
	table  string
}

// NewSequencer returns a sequencer waiting for the Structure event.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Accept advances the state machine, returning an error wrapping
// core.ErrNesting for an out of order event.
func (s *Sequencer) Accept(e Event) error {
	switch e.Kind {
	case EventStructure:
		if s.state != stDocument {
			return nesting(e, "structure already received")
		}
		if e.Database == nil {
			return nesting(e, "structure without database")
		}
		s.db = e.Database
		s.state = stStructure

	case EventOpenSchema:
		switch s.state {
		case stStructure:
		case stSchema, stTable:
			return nesting(e, fmt.Sprintf("schema %s is still open", s.schema))
		default:
			return nesting(e, "no structure received")
		}
		if _, ok := s.db.Schema(e.Schema); !ok {
			return nesting(e, "unknown schema")
		}
		s.schema = e.Schema
		s.state = stSchema

	case EventOpenTable:
		switch s.state {
		case stSchema:
		case stTable:
			return nesting(e, fmt.Sprintf("table %s is still open", s.table))
		default:
			return nesting(e, "no schema is open")
		}
		t, ok := s.db.LookupTable(e.TableID)
		if !ok {
			return nesting(e, "unknown table")
		}
		if t.Schema().Name != s.schema {
			return nesting(e, fmt.Sprintf("table belongs to schema %s but %s is open", t.Schema().Name, s.schema))
		}
		s.table = e.TableID
		s.state = stTable

	case EventRow:
		if s.state != stTable {
			return nesting(e, "no table is open")
		}
		if e.Row == nil {
			return nesting(e, "row event without row")
		}

	case EventCloseTable:
		if s.state != stTable || s.table != e.TableID {
			return nesting(e, fmt.Sprintf("open table is %q", s.table))
		}
		s.table = ""
		s.state = stSchema

	case EventCloseSchema:
		if s.state != stSchema || s.schema != e.Schema {
			return nesting(e, fmt.Sprintf("open schema is %q", s.schema))
		}
		s.schema = ""
		s.state = stStructure

	case EventEnd:
		if s.state != stStructure {
			return nesting(e, "scopes are still open")
		}
		s.state = stEnd

	default:
		return nesting(e, "unknown event")
	}
	return nil
}

// Abandon drops the open table after a table-local failure.
func (s *Sequencer) Abandon() {
	if s.state == stTable {
		s.table = ""
		s.state = stSchema
	}
}

// Open returns the names of the open schema and table, if any.
func (s *Sequencer) Open() (schema, tableID string) {
	return s.schema, s.table
}

// Database returns the structure received so far.
func (s *Sequencer) Database() *model.Database { return s.db }

// Done reports whether End was accepted.
func (s *Sequencer) Done() bool { return s.state == stEnd }

func nesting(e Event, why string) error {
	return fmt.Errorf("%w: %s: %s", core.ErrNesting, e, why)
}
