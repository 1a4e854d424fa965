package normalize

import (
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/datatype"
)

// Dialect identifies a source of type names. The optional capability
// interfaces below let a dialect change part of the standard behaviour
// while the rest of the dispatch stays shared.
type Dialect interface {
	Name() string
}

// TypeOverrider replaces the standard constructor for some breakdowns.
// Returning false falls through to the standard dispatch.
type TypeOverrider interface {
	OverrideType(n *Normalizer, b Breakdown, a Args) (*datatype.Type, bool)
}

// ZoneDetector decides time zone presence from vendor tokens. Returning
// false for ok keeps the WITH/WITHOUT TIME ZONE clause as the answer.
type ZoneDetector interface {
	HasTimeZone(b Breakdown) (hasZone bool, ok bool)
}

// Promoter switches the minimum-width promotions on or off.
type Promoter interface {
	Promotions() bool
}

type standardDialect struct {
	name    string
	promote bool
}

func (d standardDialect) Name() string     { return d.name }
func (d standardDialect) Promotions() bool { return d.promote }

var (
	// SQL2008 applies the minimum-width promotions.
	SQL2008 Dialect = standardDialect{name: "sql2008", promote: true}

	// SQL99 keeps the sizes reported by the source.
	SQL99 Dialect = standardDialect{name: "sql99", promote: false}
)

// ForName returns the dialect registered under name, or SQL2008.
func ForName(name string) Dialect {
	switch strings.ToLower(name) {
	case "sql99":
		return SQL99
	case "mysql":
		return MySQL
	case "postgres", "postgresql":
		return PostgreSQL
	default:
		return SQL2008
	}
}
