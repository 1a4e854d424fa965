package normalize

import (
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/datatype"
)

type postgresDialect struct{}

// PostgreSQL maps names as reported by format_type() and information_schema.
var PostgreSQL Dialect = postgresDialect{}

func (postgresDialect) Name() string     { return "postgresql" }
func (postgresDialect) Promotions() bool { return true }

var postgresAliases = map[string]string{
	"INT2":        "SMALLINT",
	"SMALLSERIAL": "SMALLINT",
	"INT4":        "INTEGER",
	"SERIAL":      "INTEGER",
	"SERIAL4":     "INTEGER",
	"INT8":        "BIGINT",
	"BIGSERIAL":   "BIGINT",
	"SERIAL8":     "BIGINT",
	"FLOAT4":      "REAL",
	"FLOAT8":      "DOUBLE PRECISION",
	"BOOL":        "BOOLEAN",
	"BPCHAR":      "CHARACTER",
	"VARBIT":      "BIT VARYING",
	"TEXT":        "CHARACTER LARGE OBJECT",
	"JSON":        "CHARACTER LARGE OBJECT",
	"JSONB":       "CHARACTER LARGE OBJECT",
	"XML":         "CHARACTER LARGE OBJECT",
	"BYTEA":       "BINARY LARGE OBJECT",
	"TIMESTAMPTZ": "TIMESTAMP",
	"TIMETZ":      "TIME",
}

func (postgresDialect) OverrideType(n *Normalizer, b Breakdown, a Args) (*datatype.Type, bool) {
	switch b.Base {
	case "MONEY":
		p := n.atLeast(a.ColumnSize, MinDoublePrecision)
		return datatype.New(datatype.NumericApproximate{Precision: p}, "DOUBLE PRECISION", b.Original), true
	case "UUID":
		return n.Standard("CHARACTER", b, Args{ColumnSize: 36}), true
	case "TEXT", "JSON", "JSONB", "XML":
		return n.Standard(postgresAliases[b.Base], b, Args{}), true
	}
	if std, ok := postgresAliases[b.Base]; ok {
		return n.Standard(std, b, a), true
	}
	return nil, false
}

// HasTimeZone recognizes the timestamptz and timetz spellings.
func (postgresDialect) HasTimeZone(b Breakdown) (bool, bool) {
	word := strings.ToLower(b.Original)
	if i := strings.IndexAny(word, " (["); i > 0 {
		word = word[:i]
	}
	if word == "timestamptz" || word == "timetz" {
		return true, true
	}
	return false, false
}
