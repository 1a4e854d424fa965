package database

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/model"
)

// QualifiedName returns schema.table quoted for d. An empty schema leaves
// the table unqualified.
func QualifiedName(d Dialect, schema, table string) string {
	if schema == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

// InsertSQL builds the parameterized insert for t, with columns in
// declaration order.
func InsertSQL(d Dialect, schema string, t *model.Table) string {
	cols := make([]string, len(t.Columns))
	params := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = d.QuoteIdent(c.Name)
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QualifiedName(d, schema, t.Name), strings.Join(cols, ", "), strings.Join(params, ", "))
}

// SelectSQL builds the select for a table from its projected expressions.
func SelectSQL(d Dialect, schema, table string, items []string) string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(items, ", "), QualifiedName(d, schema, table))
}

// CreateTableSQL builds a CREATE TABLE statement with the primary key.
func CreateTableSQL(d Dialect, schema string, t *model.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", QualifiedName(d, schema, t.Name))
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.QuoteIdent(c.Name) + " " + d.ColumnType(c.Type))
		if !c.Nillable {
			b.WriteString(" NOT NULL")
		}
	}
	if pk := t.PrimaryKey; pk != nil && len(pk.Columns) > 0 {
		cols := make([]string, len(pk.Columns))
		for i, c := range pk.Columns {
			cols[i] = d.QuoteIdent(c)
		}
		b.WriteString(", PRIMARY KEY (" + strings.Join(cols, ", ") + ")")
	}
	b.WriteString(")")
	return b.String()
}

// CreateTypeSQL builds CREATE TYPE for a structured type. Only PostgreSQL
// supports them.
func CreateTypeSQL(d Dialect, t *datatype.Type) (string, bool) {
	s, ok := t.Variant.(datatype.Structure)
	if !ok {
		return "", false
	}
	if _, pg := d.(PostgresDialect); !pg {
		return "", false
	}
	fields := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = d.QuoteIdent(f.Name) + " " + d.ColumnType(f.Type)
	}
	return fmt.Sprintf("CREATE TYPE %s AS (%s)", QualifiedName(d, s.Schema, s.Name), strings.Join(fields, ", ")), true
}

// StatementText inlines args into query for problem reports. It is not
// meant to be executed.
func StatementText(d Dialect, query string, args []any) string {
	if _, pg := d.(PostgresDialect); pg {
		for i := len(args); i >= 1; i-- {
			query = strings.ReplaceAll(query, d.Placeholder(i), literal(args[i-1]))
		}
		return query
	}
	var b strings.Builder
	next := 0
	for _, r := range query {
		if r == '?' && next < len(args) {
			b.WriteString(literal(args[next]))
			next++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case []byte:
		if len(x) > 32 {
			return "X'" + hex.EncodeToString(x[:32]) + "...'"
		}
		return "X'" + hex.EncodeToString(x) + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return "'" + x.Format(time.RFC3339Nano) + "'"
	}
	return fmt.Sprintf("'%v'", v)
}
