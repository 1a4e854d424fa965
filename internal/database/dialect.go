// Package database reads and writes relational databases for the content
// pipeline: introspection and row cursors on the source side, batched
// parameterized inserts with per-statement recovery on the sink side.
package database

import (
	"strconv"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/datatype"
)

// Dialect renders identifiers, placeholders and column types for one vendor.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
	Placeholder(i int) string
	ColumnType(t *datatype.Type) string
}

// MySQLDialect renders MySQL syntax.
type MySQLDialect struct{}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MySQLDialect) Placeholder(int) string { return "?" }

// ColumnType maps to native MySQL types. Composed values are stored as text.
func (MySQLDialect) ColumnType(t *datatype.Type) string {
	switch v := t.Variant.(type) {
	case datatype.Text:
		switch {
		case v.Large:
			return "LONGTEXT"
		case v.Length <= 0:
			return "TEXT"
		case v.Variable:
			return "VARCHAR(" + strconv.Itoa(v.Length) + ")"
		}
		return "CHAR(" + strconv.Itoa(v.Length) + ")"
	case datatype.Binary:
		switch {
		case v.Large || v.Length <= 0:
			return "LONGBLOB"
		case v.Variable:
			return "VARBINARY(" + strconv.Itoa(v.Length) + ")"
		}
		return "BINARY(" + strconv.Itoa(v.Length) + ")"
	case datatype.NumericExact:
		if v.Scale == 0 && v.Precision > 0 && v.Precision <= 18 {
			switch {
			case v.Precision <= 4:
				return "SMALLINT"
			case v.Precision <= 9:
				return "INT"
			}
			return "BIGINT"
		}
		if v.Precision <= 0 {
			return "DECIMAL(65,30)"
		}
		return "DECIMAL(" + strconv.Itoa(v.Precision) + "," + strconv.Itoa(v.Scale) + ")"
	case datatype.NumericApproximate:
		if v.Precision > 0 && v.Precision <= 24 {
			return "FLOAT"
		}
		return "DOUBLE"
	case datatype.Boolean:
		return "BOOLEAN"
	case datatype.DateTime:
		switch {
		case v.HasDate && v.HasTime:
			return "DATETIME(6)"
		case v.HasTime:
			return "TIME(6)"
		}
		return "DATE"
	case datatype.Enumeration:
		quoted := make([]string, len(v.Options))
		for i, o := range v.Options {
			quoted[i] = "'" + strings.ReplaceAll(o, "'", "''") + "'"
		}
		return "ENUM(" + strings.Join(quoted, ",") + ")"
	}
	return "LONGTEXT"
}

// PostgresDialect renders PostgreSQL syntax.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (PostgresDialect) Placeholder(i int) string { return "$" + strconv.Itoa(i) }

// ColumnType mostly keeps the standard name; large objects map to text and
// bytea, structures to their declared type.
func (d PostgresDialect) ColumnType(t *datatype.Type) string {
	switch v := t.Variant.(type) {
	case datatype.Text:
		if v.Large || v.Length <= 0 {
			return "TEXT"
		}
	case datatype.Binary:
		return "BYTEA"
	case datatype.NumericApproximate:
		if v.Precision > 0 && v.Precision <= 24 {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case datatype.DateTime:
		switch {
		case v.HasDate && v.HasTime && v.HasTimezone:
			return "TIMESTAMP WITH TIME ZONE"
		case v.HasDate && v.HasTime:
			return "TIMESTAMP"
		case v.HasTime && v.HasTimezone:
			return "TIME WITH TIME ZONE"
		case v.HasTime:
			return "TIME"
		}
		return "DATE"
	case datatype.Interval:
		return "INTERVAL"
	case datatype.Enumeration, datatype.Unsupported:
		return "TEXT"
	case datatype.Array:
		return d.ColumnType(v.Element) + "[]"
	case datatype.Structure:
		return d.QuoteIdent(v.Schema) + "." + d.QuoteIdent(v.Name)
	}
	return t.CanonicalName()
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, bool) {
	switch strings.ToLower(driver) {
	case "mysql", "mariadb":
		return MySQLDialect{}, true
	case "postgres", "postgresql", "pgx":
		return PostgresDialect{}, true
	}
	return nil, false
}
