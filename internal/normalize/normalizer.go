// Package normalize maps vendor and standard SQL type names onto datatype.Type.
package normalize

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/datatype"
)

// Minimum widths applied by the SQL:2008 profile.
const (
	MinSmallIntPrecision = 5
	MinIntegerPrecision  = 10
	MinBigIntPrecision   = 20
	MinFloatPrecision    = 53
	MinDoublePrecision   = 53
	MinRealPrecision     = 24
	MinCLOBLength        = 65535
)

// Args carries the size information a driver reports next to the type name.
// Values written inside the type name take precedence.
type Args struct {
	ColumnSize    int
	DecimalDigits int
	Radix         int
}

// constructor builds a type from a parsed name.
type constructor func(n *Normalizer, b Breakdown, a Args) *datatype.Type

// Normalizer turns type names into descriptors. A Normalizer is bound to one
// dialect and is safe for concurrent use.
type Normalizer struct {
	dialect    Dialect
	promote    bool
	dispatch   map[string]constructor
	overrider  TypeOverrider
	zoneDetect ZoneDetector
}

// New creates a normalizer for dialect. A nil dialect means SQL2008.
func New(dialect Dialect) *Normalizer {
	if dialect == nil {
		dialect = SQL2008
	}
	n := &Normalizer{
		dialect:  dialect,
		promote:  true,
		dispatch: standardDispatch,
	}
	if p, ok := dialect.(Promoter); ok {
		n.promote = p.Promotions()
	}
	if o, ok := dialect.(TypeOverrider); ok {
		n.overrider = o
	}
	if z, ok := dialect.(ZoneDetector); ok {
		n.zoneDetect = z
	}
	return n
}

// Dialect returns the dialect the normalizer was built with.
func (n *Normalizer) Dialect() Dialect { return n.dialect }

// Normalize parses name and returns its descriptor. Names the grammar or the
// dispatch table do not recognize become datatype.Unsupported; only a blank
// name fails.
func (n *Normalizer) Normalize(name string, columnSize, decimalDigits, radix int) (*datatype.Type, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty type name", core.ErrUnknownType)
	}

	b, err := Parse(trimmed)
	if err != nil {
		log.Printf("[NORMALIZE] Keeping %q as unsupported: %v", trimmed, err)
		return datatype.NewUnsupported(trimmed), nil
	}

	a := Args{ColumnSize: columnSize, DecimalDigits: decimalDigits, Radix: radix}
	if b.HasParams() {
		a.ColumnSize = b.Params[0]
		a.DecimalDigits = 0
		if len(b.Params) > 1 {
			a.DecimalDigits = b.Params[1]
		}
	}

	if !b.Array {
		return n.element(b, a), nil
	}

	elem := n.element(b.Element(), a)
	t := datatype.NewArray(elem, b.ArrayLength)
	t.OriginalName = trimmed
	return t, nil
}

// MustNormalize is Normalize for names known to be valid.
func (n *Normalizer) MustNormalize(name string) *datatype.Type {
	t, err := n.Normalize(name, 0, 0, 10)
	if err != nil {
		panic(err)
	}
	return t
}

func (n *Normalizer) element(b Breakdown, a Args) *datatype.Type {
	if n.overrider != nil {
		if t, ok := n.overrider.OverrideType(n, b, a); ok {
			if t.OriginalName == "" {
				t.OriginalName = b.Original
			}
			return t
		}
	}

	ctor, ok := n.dispatch[b.Base]
	if !ok && strings.HasPrefix(b.Base, "INTERVAL") {
		ctor = interval
		ok = true
	}
	if !ok {
		return datatype.NewUnsupported(b.Original)
	}
	t := ctor(n, b, a)
	t.OriginalName = b.Original
	return t
}

// Standard builds the type the base dispatch would produce for b, bypassing
// dialect overrides. Dialects call it to reuse the standard constructors.
func (n *Normalizer) Standard(base string, b Breakdown, a Args) *datatype.Type {
	b.Base = base
	ctor, ok := n.dispatch[base]
	if !ok {
		return datatype.NewUnsupported(b.Original)
	}
	t := ctor(n, b, a)
	t.OriginalName = b.Original
	return t
}

func (n *Normalizer) atLeast(v, min int) int {
	if n.promote && v < min {
		return min
	}
	return v
}

func (n *Normalizer) hasTimeZone(b Breakdown) bool {
	if n.zoneDetect != nil {
		if z, ok := n.zoneDetect.HasTimeZone(b); ok {
			return z
		}
	}
	return b.TimeZone == ZoneWith
}

var standardDispatch = map[string]constructor{
	"CHARACTER":                       character,
	"CHAR":                            character,
	"NATIONAL CHARACTER":              nationalCharacter,
	"NATIONAL CHAR":                   nationalCharacter,
	"NCHAR":                           nationalCharacter,
	"CHARACTER VARYING":               characterVarying,
	"CHAR VARYING":                    characterVarying,
	"VARCHAR":                         characterVarying,
	"NATIONAL CHARACTER VARYING":      nationalCharacterVarying,
	"NATIONAL CHAR VARYING":           nationalCharacterVarying,
	"NCHAR VARYING":                   nationalCharacterVarying,
	"NVARCHAR":                        nationalCharacterVarying,
	"CHARACTER LARGE OBJECT":          characterLargeObject,
	"CHAR LARGE OBJECT":               characterLargeObject,
	"CLOB":                            characterLargeObject,
	"NATIONAL CHARACTER LARGE OBJECT": nationalCharacterLargeObject,
	"NCHAR LARGE OBJECT":              nationalCharacterLargeObject,
	"NCLOB":                           nationalCharacterLargeObject,
	"LONGVARCHAR":                     longVarchar,
	"BINARY":                          binary,
	"BINARY VARYING":                  binaryVarying,
	"VARBINARY":                       binaryVarying,
	"BINARY LARGE OBJECT":             binaryLargeObject,
	"BLOB":                            binaryLargeObject,
	"LONGVARBINARY":                   binaryLargeObject,
	"BIT":                             bit,
	"BIT VARYING":                     bitVarying,
	"NUMERIC":                         numeric,
	"DECIMAL":                         decimal,
	"DEC":                             decimal,
	"TINYINT":                         smallInt,
	"SMALLINT":                        smallInt,
	"INTEGER":                         integer,
	"INT":                             integer,
	"BIGINT":                          bigInt,
	"FLOAT":                           approxFloat,
	"REAL":                            approxReal,
	"DOUBLE PRECISION":                approxDouble,
	"DOUBLE":                          approxDouble,
	"BOOLEAN":                         boolean,
	"DATE":                            date,
	"TIME":                            timeOfDay,
	"TIMESTAMP":                       timestamp,
}

func withParam(name string, v int) string {
	if v <= 0 {
		return name
	}
	return fmt.Sprintf("%s(%d)", name, v)
}

func textType(b Breakdown, v datatype.Text, name string) *datatype.Type {
	v.Charset = b.Charset
	v.Collation = b.Collation
	if b.Charset != "" {
		name += " CHARACTER SET " + b.Charset
	}
	if b.Collation != "" {
		name += " COLLATE " + b.Collation
	}
	return datatype.New(v, name, b.Original)
}

func character(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return textType(b, datatype.Text{Length: a.ColumnSize}, withParam("CHARACTER", a.ColumnSize))
}

func nationalCharacter(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return textType(b, datatype.Text{Length: a.ColumnSize, National: true}, withParam("NATIONAL CHARACTER", a.ColumnSize))
}

func characterVarying(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return textType(b, datatype.Text{Length: a.ColumnSize, Variable: true}, withParam("CHARACTER VARYING", a.ColumnSize))
}

func nationalCharacterVarying(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return textType(b, datatype.Text{Length: a.ColumnSize, Variable: true, National: true},
		withParam("NATIONAL CHARACTER VARYING", a.ColumnSize))
}

func clobName(base string, length int) string {
	if length == MinCLOBLength {
		return base
	}
	return withParam(base, length)
}

func characterLargeObject(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	l := n.atLeast(a.ColumnSize, MinCLOBLength)
	return textType(b, datatype.Text{Length: l, Variable: true, Large: true}, clobName("CHARACTER LARGE OBJECT", l))
}

func nationalCharacterLargeObject(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	l := n.atLeast(a.ColumnSize, MinCLOBLength)
	return textType(b, datatype.Text{Length: l, Variable: true, Large: true, National: true},
		clobName("NATIONAL CHARACTER LARGE OBJECT", l))
}

func longVarchar(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	l := a.ColumnSize
	if l == 0 {
		l = math.MaxInt32
	}
	l = n.atLeast(l, MinCLOBLength)
	return textType(b, datatype.Text{Length: l, Variable: true, Large: true}, clobName("CHARACTER LARGE OBJECT", l))
}

func binary(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	t := datatype.New(datatype.Binary{Length: a.ColumnSize}, withParam("BINARY", a.ColumnSize), b.Original)
	if a.ColumnSize > 0 {
		t.SQL99Name = fmt.Sprintf("BIT(%d)", a.ColumnSize*8)
	}
	return t
}

func binaryVarying(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	t := datatype.New(datatype.Binary{Length: a.ColumnSize, Variable: true}, withParam("BINARY VARYING", a.ColumnSize), b.Original)
	t.SQL99Name = withParam("BIT VARYING", a.ColumnSize*8)
	return t
}

func binaryLargeObject(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return datatype.New(datatype.Binary{Length: a.ColumnSize, Variable: true, Large: true},
		withParam("BINARY LARGE OBJECT", a.ColumnSize), b.Original)
}

// bit narrows single-bit strings to BOOLEAN.
func bit(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	if a.ColumnSize <= 1 {
		return boolean(n, b, a)
	}
	bytes := (a.ColumnSize + 7) / 8
	t := datatype.New(datatype.Binary{Length: bytes}, fmt.Sprintf("BIT(%d)", a.ColumnSize), b.Original)
	t.SQL2008Name = fmt.Sprintf("BINARY(%d)", bytes)
	return t
}

func bitVarying(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	bytes := (a.ColumnSize + 7) / 8
	t := datatype.New(datatype.Binary{Length: bytes, Variable: true}, withParam("BIT VARYING", a.ColumnSize), b.Original)
	t.SQL2008Name = withParam("BINARY VARYING", bytes)
	return t
}

func exactName(name string, p, s int) string {
	switch {
	case p <= 0:
		return name
	case s <= 0:
		return fmt.Sprintf("%s(%d)", name, p)
	default:
		return fmt.Sprintf("%s(%d,%d)", name, p, s)
	}
}

func numeric(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return datatype.New(datatype.NumericExact{Precision: a.ColumnSize, Scale: a.DecimalDigits},
		exactName("NUMERIC", a.ColumnSize, a.DecimalDigits), b.Original)
}

func decimal(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return datatype.New(datatype.NumericExact{Precision: a.ColumnSize, Scale: a.DecimalDigits},
		exactName("DECIMAL", a.ColumnSize, a.DecimalDigits), b.Original)
}

// The integer and approximate types below keep a wider precision in the
// descriptor only. Their standard names take no width.
func smallInt(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return datatype.New(datatype.NumericExact{Precision: n.atLeast(a.ColumnSize, MinSmallIntPrecision)}, "SMALLINT", b.Original)
}

func integer(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return datatype.New(datatype.NumericExact{Precision: n.atLeast(a.ColumnSize, MinIntegerPrecision)}, "INTEGER", b.Original)
}

func bigInt(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return datatype.New(datatype.NumericExact{Precision: n.atLeast(a.ColumnSize, MinBigIntPrecision)}, "BIGINT", b.Original)
}

func approxFloat(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	p := n.atLeast(a.ColumnSize, MinFloatPrecision)
	name := "FLOAT"
	if p != MinFloatPrecision {
		name = withParam("FLOAT", p)
	}
	return datatype.New(datatype.NumericApproximate{Precision: p}, name, b.Original)
}

func approxReal(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return datatype.New(datatype.NumericApproximate{Precision: n.atLeast(a.ColumnSize, MinRealPrecision)}, "REAL", b.Original)
}

func approxDouble(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return datatype.New(datatype.NumericApproximate{Precision: n.atLeast(a.ColumnSize, MinDoublePrecision)}, "DOUBLE PRECISION", b.Original)
}

func boolean(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return datatype.New(datatype.Boolean{}, "BOOLEAN", b.Original)
}

func date(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	return datatype.New(datatype.DateTime{HasDate: true}, "DATE", b.Original)
}

func timeOfDay(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	if n.hasTimeZone(b) {
		return datatype.New(datatype.DateTime{HasTime: true, HasTimezone: true}, "TIME WITH TIME ZONE", b.Original)
	}
	return datatype.New(datatype.DateTime{HasTime: true}, "TIME", b.Original)
}

func timestamp(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	if n.hasTimeZone(b) {
		return datatype.New(datatype.DateTime{HasDate: true, HasTime: true, HasTimezone: true}, "TIMESTAMP WITH TIME ZONE", b.Original)
	}
	return datatype.New(datatype.DateTime{HasDate: true, HasTime: true}, "TIMESTAMP", b.Original)
}

func interval(n *Normalizer, b Breakdown, a Args) *datatype.Type {
	q := strings.TrimSpace(strings.TrimPrefix(b.Base, "INTERVAL"))
	name := "INTERVAL"
	if q != "" {
		name += " " + q
	}
	return datatype.New(datatype.Interval{Qualifier: q}, name, b.Original)
}
