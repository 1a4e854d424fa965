package normalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/datatype"
)

type mysqlDialect struct{}

// MySQL maps MySQL column types (as reported by INFORMATION_SCHEMA.COLUMNS.COLUMN_TYPE).
var MySQL Dialect = mysqlDialect{}

func (mysqlDialect) Name() string     { return "mysql" }
func (mysqlDialect) Promotions() bool { return true }

func (mysqlDialect) OverrideType(n *Normalizer, b Breakdown, a Args) (*datatype.Type, bool) {
	switch b.Base {
	case "TINYINT":
		if a.ColumnSize == 1 && !b.Unsigned {
			return n.Standard("BOOLEAN", b, a), true
		}
		if b.Unsigned {
			return n.Standard("SMALLINT", b, Args{}), true
		}
	case "SMALLINT":
		if b.Unsigned {
			return n.Standard("INTEGER", b, Args{}), true
		}
	case "MEDIUMINT":
		return n.Standard("INTEGER", b, Args{}), true
	case "INT", "INTEGER":
		if b.Unsigned {
			return n.Standard("BIGINT", b, Args{}), true
		}
	case "BIGINT":
		if b.Unsigned {
			return n.Standard("DECIMAL", b, Args{ColumnSize: 20}), true
		}
	case "TINYTEXT":
		return n.Standard("CHARACTER VARYING", b, Args{ColumnSize: 255}), true
	case "TEXT":
		return n.Standard("CHARACTER LARGE OBJECT", b, Args{ColumnSize: 65535}), true
	case "MEDIUMTEXT":
		return n.Standard("CHARACTER LARGE OBJECT", b, Args{ColumnSize: 16777215}), true
	case "LONGTEXT", "JSON":
		return n.Standard("CHARACTER LARGE OBJECT", b, Args{ColumnSize: math.MaxInt32}), true
	case "TINYBLOB":
		return n.Standard("BINARY VARYING", b, Args{ColumnSize: 255}), true
	case "MEDIUMBLOB", "LONGBLOB", "BLOB":
		return n.Standard("BINARY LARGE OBJECT", b, Args{}), true
	case "DATETIME":
		return n.Standard("TIMESTAMP", b, a), true
	case "YEAR":
		return datatype.New(datatype.NumericExact{Precision: 4}, "DECIMAL(4)", b.Original), true
	case "ENUM", "SET":
		opts := make([]string, len(b.RawParams))
		longest := 0
		for i, raw := range b.RawParams {
			opts[i] = strings.Trim(raw, `'"`)
			if len(opts[i]) > longest {
				longest = len(opts[i])
			}
		}
		if b.Base == "SET" {
			// a SET value lists any subset of the options joined by commas
			longest = len(strings.Join(opts, ","))
		}
		return datatype.New(datatype.Enumeration{Options: opts}, fmt.Sprintf("CHARACTER VARYING(%d)", longest), b.Original), true
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT":
		// MySQL's (M,D) on floating types is a display hint
		if len(b.Params) == 2 {
			return n.Standard("DOUBLE PRECISION", b, Args{}), true
		}
	}
	return nil, false
}
