package database

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/rzpsarthak13/dbarchive/internal/content"
	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/model"
)

type sourceState int

const (
	srcStart sourceState = iota
	srcSchema
	srcTable
	srcRows
	srcDone
)

// Source streams the content of a live database as content events. Tables
// are read in declaration order; composed columns are projected leaf by
// leaf and reassembled per row.
type Source struct {
	conn   Conn
	db     *model.Database
	binder *Binder

	state  sourceState
	si, ti int

	table *model.Table
	plan  []columnPlan
	cur   Cursor
	index int64
}

// columnPlan maps one table column onto its projected leaves.
type columnPlan struct {
	column *model.Column
	leaves []content.Projection
}

// NewSource streams the tables of db, usually obtained from conn.Introspect.
func NewSource(conn Conn, db *model.Database) *Source {
	return &Source{conn: conn, db: db, binder: NewBinder()}
}

// selectFor builds the select statement and leaf plan of t.
func selectFor(d Dialect, t *model.Table) (string, []columnPlan) {
	taken := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		taken[i] = c.Name
	}
	aliases := content.NewAliasAllocator(taken...)

	plan := make([]columnPlan, len(t.Columns))
	var items []string
	for i, c := range t.Columns {
		projs := content.Project(c.Name, c.Type, aliases)
		plan[i] = columnPlan{column: c, leaves: projs}
		for _, p := range projs {
			if p.Alias == "" {
				items = append(items, d.QuoteIdent(c.Name))
				continue
			}
			items = append(items, p.SQL())
		}
	}
	return SelectSQL(d, t.Schema().Name, t.Name, items), plan
}

func (s *Source) Next(ctx context.Context) (content.Event, error) {
	if err := ctx.Err(); err != nil {
		return content.Event{}, err
	}
	switch s.state {
	case srcStart:
		s.state = srcSchema
		return content.Structure(s.db), nil

	case srcSchema:
		if s.si >= len(s.db.Schemas) {
			s.state = srcDone
			return content.End(), nil
		}
		s.ti = 0
		s.state = srcTable
		return content.OpenSchema(s.db.Schemas[s.si].Name), nil

	case srcTable:
		schema := s.db.Schemas[s.si]
		if s.ti >= len(schema.Tables) {
			s.si++
			s.state = srcSchema
			return content.CloseSchema(schema.Name), nil
		}
		t := schema.Tables[s.ti]
		s.ti++
		query, plan := selectFor(s.conn.Dialect(), t)
		cur, err := s.conn.Query(ctx, query)
		if err != nil {
			return content.Event{}, &core.TableError{TableID: t.ID(), Err: err}
		}
		s.table, s.plan, s.cur, s.index = t, plan, cur, 0
		s.state = srcRows
		log.Printf("[DATABASE] Reading table %s", t.ID())
		return content.OpenTable(t.ID()), nil

	case srcRows:
		if s.cur.Next() {
			s.index++
			return s.row()
		}
		id := s.table.ID()
		err := s.cur.Err()
		s.closeCursor()
		s.state = srcTable
		if err != nil {
			return content.Event{}, &core.TableError{TableID: id, Err: err}
		}
		return content.CloseTable(id), nil
	}
	return content.Event{}, io.EOF
}

// row converts the current cursor row. Conversion failures reject the row.
func (s *Source) row() (content.Event, error) {
	values, err := s.cur.Values()
	if err != nil {
		return content.Event{}, s.rowError("could not be read", err)
	}
	row := model.NewRow(s.index, len(s.plan))
	pos := 0
	for i, cp := range s.plan {
		if pos+len(cp.leaves) > len(values) {
			row.Release()
			return content.Event{}, s.rowError("has too few values", fmt.Errorf("got %d", len(values)))
		}
		leaves := make([]model.Cell, len(cp.leaves))
		for j, p := range cp.leaves {
			c, err := s.binder.Lexical(p.Subtype.Type, values[pos+j])
			if err != nil {
				row.Release()
				return content.Event{}, s.rowError("column "+p.Subtype.Name(), err)
			}
			leaves[j] = c
		}
		pos += len(cp.leaves)

		if len(cp.leaves) == 1 && len(cp.leaves[0].Subtype.Path) == 1 {
			row.Cells[i] = leaves[0]
			continue
		}
		cell, _, err := content.Reassemble(cp.column.Type, leaves)
		if err != nil {
			row.Release()
			return content.Event{}, s.rowError("column "+cp.column.Name, err)
		}
		row.Cells[i] = cell
	}
	return content.Row(row), nil
}

func (s *Source) rowError(reason string, err error) error {
	return &core.DataError{
		Subject: fmt.Sprintf("Row %d of table `%s`", s.index, s.table.ID()),
		Reason:  reason,
		Err:     err,
	}
}

func (s *Source) closeCursor() {
	if s.cur == nil {
		return
	}
	if err := s.cur.Close(); err != nil {
		log.Printf("[DATABASE] Failed to close cursor of %s: %v", s.table.ID(), err)
	}
	s.cur = nil
}

// Close releases an open cursor. The connection stays open.
func (s *Source) Close() error {
	s.closeCursor()
	return nil
}
