package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/normalize"
)

// catalog assembles a model.Database from flat introspection rows.
type catalog struct {
	db     *model.Database
	norm   *normalize.Normalizer
	tables map[string]*model.Table
	keys   map[string]int
}

func newCatalog(name string, dialect normalize.Dialect) *catalog {
	return &catalog{
		db:     model.NewDatabase(name),
		norm:   normalize.New(dialect),
		tables: make(map[string]*model.Table),
		keys:   make(map[string]int),
	}
}

func (c *catalog) schema(name string) *model.Schema {
	if s, ok := c.db.Schema(name); ok {
		return s
	}
	return c.db.AddSchema(name)
}

func (c *catalog) table(schema, name string) *model.Table {
	id := model.TableID(schema, name)
	if t, ok := c.tables[id]; ok {
		return t
	}
	t := c.schema(schema).AddTable(name)
	c.tables[id] = t
	return t
}

// column adds a column whose type is either resolved already or normalized
// from typeName.
func (c *catalog) column(schema, table, name, typeName string, resolved *datatype.Type, nillable bool, def *string) {
	t, ok := c.tables[model.TableID(schema, table)]
	if !ok {
		return
	}
	typ := resolved
	if typ == nil {
		var err error
		if typ, err = c.norm.Normalize(typeName, 0, 0, 10); err != nil {
			log.Printf("[DATABASE] Column %s.%s has no usable type: %v", t.ID(), name, err)
			typ = datatype.NewUnsupported(typeName)
		}
	}
	col := t.AddColumn(name, typ)
	col.Nillable = nillable
	if def != nil {
		col.DefaultValue = *def
	}
}

// key records one column of a PRIMARY KEY, UNIQUE or FOREIGN KEY constraint.
func (c *catalog) key(schema, table, constraint, kind, column, refSchema, refTable, refColumn string) {
	t, ok := c.tables[model.TableID(schema, table)]
	if !ok {
		return
	}
	switch kind {
	case "PRIMARY KEY":
		if t.PrimaryKey == nil {
			t.PrimaryKey = &model.PrimaryKey{Name: constraint}
		}
		t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, column)
	case "UNIQUE":
		id := t.ID() + "#uk#" + constraint
		i, ok := c.keys[id]
		if !ok {
			t.CandidateKeys = append(t.CandidateKeys, model.CandidateKey{Name: constraint})
			i = len(t.CandidateKeys) - 1
			c.keys[id] = i
		}
		t.CandidateKeys[i].Columns = append(t.CandidateKeys[i].Columns, column)
	case "FOREIGN KEY":
		id := t.ID() + "#fk#" + constraint
		i, ok := c.keys[id]
		if !ok {
			t.ForeignKeys = append(t.ForeignKeys, model.ForeignKey{
				Name:             constraint,
				ReferencedSchema: refSchema,
				ReferencedTable:  refTable,
			})
			i = len(t.ForeignKeys) - 1
			c.keys[id] = i
		}
		t.ForeignKeys[i].References = append(t.ForeignKeys[i].References, model.Reference{Column: column, Referenced: refColumn})
	}
}

// finish indexes the database. Foreign keys pointing outside the
// introspected schemas are dropped with a log line.
func (c *catalog) finish() (*model.Database, error) {
	for _, t := range c.tables {
		kept := t.ForeignKeys[:0]
		for _, fk := range t.ForeignKeys {
			if _, ok := c.tables[fk.ReferencedTableID()]; !ok {
				log.Printf("[DATABASE] Dropping foreign key %s of %s: %s is not exported", fk.Name, t.ID(), fk.ReferencedTableID())
				continue
			}
			kept = append(kept, fk)
		}
		t.ForeignKeys = kept
	}
	if err := c.db.Index(); err != nil {
		return nil, fmt.Errorf("failed to index introspected database: %w", err)
	}
	return c.db, nil
}

// placeholders returns n comma separated placeholders starting at from.
func placeholders(d Dialect, from, n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = d.Placeholder(from + i)
	}
	return strings.Join(p, ", ")
}

// isFatal reports whether a statement error means the connection itself is
// unusable, as opposed to a rejected statement.
func isFatal(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
