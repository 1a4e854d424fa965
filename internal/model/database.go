// Package model holds the in-memory description of a database shared by the
// metadata, content and database packages.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/rzpsarthak13/dbarchive/internal/datatype"
)

// ErrDuplicateID is returned when two descriptors share an id.
var ErrDuplicateID = errors.New("duplicate descriptor id")

// Database is the root descriptor.
type Database struct {
	Name           string
	Description    string
	ProductName    string
	ProductVersion string
	ArchivalDate   time.Time
	DataOwner      string
	Producer       string

	// LOBFolder is the archive-level LOB base folder. Empty means ".".
	LOBFolder string

	Schemas    []*Schema
	Users      []User
	Roles      []Role
	Privileges []Privilege

	tables  map[string]*Table
	columns map[string]*Column
}

// Schema groups tables, views, routines and user defined types.
type Schema struct {
	Name        string
	Folder      string
	Description string

	// Types holds user defined structured types, each a datatype.Structure.
	Types    []*datatype.Type
	Tables   []*Table
	Views    []View
	Routines []Routine
}

// Table describes one base table.
type Table struct {
	id          string
	schema      *Schema
	Name        string
	Folder      string
	Description string

	Columns          []*Column
	PrimaryKey       *PrimaryKey
	ForeignKeys      []ForeignKey
	CandidateKeys    []CandidateKey
	CheckConstraints []CheckConstraint
	Triggers         []Trigger

	// RowCount is the declared count while reading metadata. Once the
	// table's content was streamed it is the number of rows the sink
	// accepted, so rejected rows are not counted.
	RowCount int64
}

// Column describes one table or view column.
type Column struct {
	id           string
	Name         string
	Type         *datatype.Type
	Nillable     bool
	DefaultValue string
	Description  string

	// Folder is the column's LOB folder, empty when the column has none.
	Folder string
}

// PrimaryKey names the columns of a table's primary key.
type PrimaryKey struct {
	Name        string
	Columns     []string
	Description string
}

// Reference pairs a local column with the column it points at.
type Reference struct {
	Column     string
	Referenced string
}

// ForeignKey points at another table by schema and name.
type ForeignKey struct {
	Name             string
	ReferencedSchema string
	ReferencedTable  string
	References       []Reference
	MatchType        string
	DeleteAction     string
	UpdateAction     string
	Description      string
}

// ReferencedTableID returns the id of the referenced table.
func (fk ForeignKey) ReferencedTableID() string {
	return TableID(fk.ReferencedSchema, fk.ReferencedTable)
}

// CandidateKey is a unique constraint.
type CandidateKey struct {
	Name        string
	Columns     []string
	Description string
}

// CheckConstraint is a table check condition.
type CheckConstraint struct {
	Name        string
	Condition   string
	Description string
}

// Trigger is a table trigger.
type Trigger struct {
	Name            string
	ActionTime      string
	Event           string
	AliasList       string
	TriggeredAction string
	Description     string
}

// View is a stored query.
type View struct {
	Name          string
	Query         string
	QueryOriginal string
	Columns       []*Column
	Description   string
}

// Parameter is a routine parameter.
type Parameter struct {
	Name        string
	Mode        string
	Type        *datatype.Type
	Description string
}

// Routine is a stored procedure or function.
type Routine struct {
	Name           string
	SpecificName   string
	Description    string
	Source         string
	Body           string
	Characteristic string
	ReturnType     string
	Parameters     []Parameter
}

// User is a database user.
type User struct {
	Name        string
	Description string
}

// Role is a database role.
type Role struct {
	Name        string
	Admin       string
	Description string
}

// Privilege is a grant.
type Privilege struct {
	Type        string
	Object      string
	Grantor     string
	Grantee     string
	Option      string
	Description string
}

// TableID returns the id of table in schema.
func TableID(schema, table string) string { return schema + "." + table }

// ColumnID returns the id of column in the table with tableID.
func ColumnID(tableID, column string) string { return tableID + "." + column }

// NewDatabase creates an empty database descriptor.
func NewDatabase(name string) *Database {
	return &Database{Name: name}
}

// AddSchema appends a schema.
func (d *Database) AddSchema(name string) *Schema {
	s := &Schema{Name: name}
	d.Schemas = append(d.Schemas, s)
	return s
}

// Schema returns the schema with name.
func (d *Database) Schema(name string) (*Schema, bool) {
	for _, s := range d.Schemas {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// AddTable appends a table and assigns its id.
func (s *Schema) AddTable(name string) *Table {
	t := &Table{id: TableID(s.Name, name), schema: s, Name: name}
	s.Tables = append(s.Tables, t)
	return t
}

// Type returns the user defined type with name.
func (s *Schema) Type(name string) (*datatype.Type, bool) {
	for _, t := range s.Types {
		if st, ok := t.Variant.(datatype.Structure); ok && st.Name == name {
			return t, true
		}
	}
	return nil, false
}

// ID returns "<schema>.<table>".
func (t *Table) ID() string { return t.id }

// Schema returns the schema the table belongs to.
func (t *Table) Schema() *Schema { return t.schema }

// AddColumn appends a column and assigns its id.
func (t *Table) AddColumn(name string, typ *datatype.Type) *Column {
	c := &Column{id: ColumnID(t.id, name), Name: name, Type: typ, Nillable: true}
	t.Columns = append(t.Columns, c)
	return c
}

// Column returns the column with name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnIndex returns the zero-based position of the column with name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ID returns "<schema>.<table>.<column>".
func (c *Column) ID() string { return c.id }

// Index builds the id lookup maps. It fails with ErrDuplicateID when
// two tables or two columns share an id.
func (d *Database) Index() error {
	tables := make(map[string]*Table)
	columns := make(map[string]*Column)
	for _, s := range d.Schemas {
		for _, t := range s.Tables {
			if _, dup := tables[t.id]; dup {
				return fmt.Errorf("%w: table %s", ErrDuplicateID, t.id)
			}
			tables[t.id] = t
			for _, c := range t.Columns {
				if _, dup := columns[c.id]; dup {
					return fmt.Errorf("%w: column %s", ErrDuplicateID, c.id)
				}
				columns[c.id] = c
			}
		}
	}
	d.tables = tables
	d.columns = columns
	return nil
}

// LookupTable finds a table by id.
func (d *Database) LookupTable(id string) (*Table, bool) {
	if t, ok := d.tables[id]; ok {
		return t, true
	}
	if err := d.Index(); err != nil {
		return nil, false
	}
	t, ok := d.tables[id]
	return t, ok
}

// LookupColumn finds a column by id.
func (d *Database) LookupColumn(id string) (*Column, bool) {
	if c, ok := d.columns[id]; ok {
		return c, true
	}
	if err := d.Index(); err != nil {
		return nil, false
	}
	c, ok := d.columns[id]
	return c, ok
}

// Tables returns every table in schema order.
func (d *Database) Tables() []*Table {
	var out []*Table
	for _, s := range d.Schemas {
		out = append(out, s.Tables...)
	}
	return out
}

// CheckReferences returns one message per foreign key that points at a
// missing table or column. Broken references are advisory.
func (d *Database) CheckReferences() []string {
	var problems []string
	for _, s := range d.Schemas {
		for _, t := range s.Tables {
			for _, fk := range t.ForeignKeys {
				ref, ok := d.LookupTable(fk.ReferencedTableID())
				if !ok {
					problems = append(problems, fmt.Sprintf("foreign key %s on %s references missing table %s",
						fk.Name, t.id, fk.ReferencedTableID()))
					continue
				}
				for _, r := range fk.References {
					if _, ok := t.Column(r.Column); !ok {
						problems = append(problems, fmt.Sprintf("foreign key %s on %s uses missing column %s",
							fk.Name, t.id, r.Column))
					}
					if _, ok := ref.Column(r.Referenced); !ok {
						problems = append(problems, fmt.Sprintf("foreign key %s on %s references missing column %s.%s",
							fk.Name, t.id, ref.id, r.Referenced))
					}
				}
			}
		}
	}
	return problems
}
