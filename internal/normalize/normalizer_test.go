package normalize

import (
	"errors"
	"math"
	"testing"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/datatype"
)

func TestNormalize_StandardNames(t *testing.T) {
	n := New(SQL2008)

	tests := []struct {
		name      string
		want      datatype.Variant
		canonical string
	}{
		{"INTEGER", datatype.NumericExact{Precision: 10}, "INTEGER"},
		{"int", datatype.NumericExact{Precision: 10}, "INTEGER"},
		{"SMALLINT", datatype.NumericExact{Precision: 5}, "SMALLINT"},
		{"TINYINT", datatype.NumericExact{Precision: 5}, "SMALLINT"},
		{"BIGINT", datatype.NumericExact{Precision: 20}, "BIGINT"},
		{"DECIMAL(10,2)", datatype.NumericExact{Precision: 10, Scale: 2}, "DECIMAL(10,2)"},
		{"numeric( 8 , 3 )", datatype.NumericExact{Precision: 8, Scale: 3}, "NUMERIC(8,3)"},
		{"VARCHAR(20)", datatype.Text{Length: 20, Variable: true}, "CHARACTER VARYING(20)"},
		{"character  varying(20)", datatype.Text{Length: 20, Variable: true}, "CHARACTER VARYING(20)"},
		{"CHAR(3)", datatype.Text{Length: 3}, "CHARACTER(3)"},
		{"NCHAR(5)", datatype.Text{Length: 5, National: true}, "NATIONAL CHARACTER(5)"},
		{"CLOB", datatype.Text{Length: 65535, Variable: true, Large: true}, "CHARACTER LARGE OBJECT"},
		{"BLOB", datatype.Binary{Variable: true, Large: true}, "BINARY LARGE OBJECT"},
		{"VARBINARY(16)", datatype.Binary{Length: 16, Variable: true}, "BINARY VARYING(16)"},
		{"BIT(1)", datatype.Boolean{}, "BOOLEAN"},
		{"BIT", datatype.Boolean{}, "BOOLEAN"},
		{"BIT(12)", datatype.Binary{Length: 2}, "BINARY(2)"},
		{"FLOAT", datatype.NumericApproximate{Precision: 53}, "FLOAT"},
		{"FLOAT(10)", datatype.NumericApproximate{Precision: 53}, "FLOAT"},
		{"REAL", datatype.NumericApproximate{Precision: 24}, "REAL"},
		{"DOUBLE", datatype.NumericApproximate{Precision: 53}, "DOUBLE PRECISION"},
		{"BOOLEAN", datatype.Boolean{}, "BOOLEAN"},
		{"DATE", datatype.DateTime{HasDate: true}, "DATE"},
		{"TIME", datatype.DateTime{HasTime: true}, "TIME"},
		{"TIME WITH TIME ZONE", datatype.DateTime{HasTime: true, HasTimezone: true}, "TIME WITH TIME ZONE"},
		{"timestamp(6) without time zone", datatype.DateTime{HasDate: true, HasTime: true}, "TIMESTAMP"},
		{"TIMESTAMP WITH TIME ZONE", datatype.DateTime{HasDate: true, HasTime: true, HasTimezone: true}, "TIMESTAMP WITH TIME ZONE"},
		{"INTERVAL YEAR TO MONTH", datatype.Interval{Qualifier: "YEAR TO MONTH"}, "INTERVAL YEAR TO MONTH"},
		{"LONGVARCHAR", datatype.Text{Length: math.MaxInt32, Variable: true, Large: true}, "CHARACTER LARGE OBJECT(2147483647)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.name, 0, 0, 10)
			if err != nil {
				t.Fatalf("Normalize(%q) failed: %v", tt.name, err)
			}
			if got.Variant != tt.want {
				t.Fatalf("Normalize(%q) = %#v, want %#v", tt.name, got.Variant, tt.want)
			}
			if got.CanonicalName() != tt.canonical {
				t.Fatalf("canonical name = %q, want %q", got.CanonicalName(), tt.canonical)
			}
			if got.OriginalName == "" {
				t.Fatalf("original name not retained")
			}
		})
	}
}

func TestNormalize_ColumnSizeUsedWithoutParams(t *testing.T) {
	n := New(SQL2008)

	got, err := n.Normalize("VARCHAR", 40, 0, 10)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.Variant != (datatype.Text{Length: 40, Variable: true}) {
		t.Fatalf("unexpected variant %#v", got.Variant)
	}

	got, err = n.Normalize("DECIMAL(12,4)", 40, 9, 10)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.Variant != (datatype.NumericExact{Precision: 12, Scale: 4}) {
		t.Fatalf("parameters in the name should win, got %#v", got.Variant)
	}
}

func TestNormalize_SQL99KeepsReportedWidths(t *testing.T) {
	n := New(SQL99)

	got, err := n.Normalize("INTEGER", 7, 0, 10)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.Variant != (datatype.NumericExact{Precision: 7}) {
		t.Fatalf("expected width 7 without promotion, got %#v", got.Variant)
	}
}

func TestNormalize_UnknownFallsBackToUnsupported(t *testing.T) {
	n := New(nil)

	for _, name := range []string{"GEOMETRY", "GEOGRAPHY(POINT,4326)", "FANCY((TYPE"} {
		got, err := n.Normalize(name, 0, 0, 10)
		if err != nil {
			t.Fatalf("Normalize(%q) should not fail: %v", name, err)
		}
		u, ok := got.Variant.(datatype.Unsupported)
		if !ok {
			t.Fatalf("Normalize(%q) = %#v, want Unsupported", name, got.Variant)
		}
		if u.OriginalName != name {
			t.Fatalf("original name = %q, want %q", u.OriginalName, name)
		}
	}
}

func TestNormalize_EmptyNameIsUnknownType(t *testing.T) {
	_, err := New(nil).Normalize("   ", 0, 0, 10)
	if !errors.Is(err, core.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestNormalize_CharsetAndCollation(t *testing.T) {
	n := New(SQL2008)

	got, err := n.Normalize("VARCHAR(10) CHARACTER SET utf8 COLLATE utf8_bin", 0, 0, 10)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	text, ok := got.Variant.(datatype.Text)
	if !ok {
		t.Fatalf("expected Text, got %#v", got.Variant)
	}
	if text.Charset != "utf8" || text.Collation != "utf8_bin" {
		t.Fatalf("unexpected charset/collation: %+v", text)
	}
	want := "CHARACTER VARYING(10) CHARACTER SET utf8 COLLATE utf8_bin"
	if got.CanonicalName() != want {
		t.Fatalf("canonical name = %q, want %q", got.CanonicalName(), want)
	}
}

func TestNormalize_ArrayWrapping(t *testing.T) {
	n := New(SQL2008)

	bases := []string{"INTEGER", "VARCHAR(10)", "TIMESTAMP WITH TIME ZONE", "DECIMAL(5,2)"}
	for _, base := range bases {
		arr, err := n.Normalize(base+" ARRAY", 0, 0, 10)
		if err != nil {
			t.Fatalf("Normalize(%q ARRAY) failed: %v", base, err)
		}
		a, ok := arr.Variant.(datatype.Array)
		if !ok {
			t.Fatalf("expected Array for %q, got %#v", base, arr.Variant)
		}
		direct, err := n.Normalize(base, 0, 0, 10)
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", base, err)
		}
		if a.Element.CanonicalName() != direct.CanonicalName() {
			t.Fatalf("element name %q, want %q", a.Element.CanonicalName(), direct.CanonicalName())
		}
		if !datatype.Equivalent(a.Element, direct) {
			t.Fatalf("element %#v not equivalent to %#v", a.Element.Variant, direct.Variant)
		}
		if a.DeclaredLength != nil {
			t.Fatalf("unexpected declared length %d", *a.DeclaredLength)
		}
	}

	arr, err := n.Normalize("VARCHAR(10) ARRAY[4]", 0, 0, 10)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	a := arr.Variant.(datatype.Array)
	if a.DeclaredLength == nil || *a.DeclaredLength != 4 {
		t.Fatalf("expected declared length 4, got %v", a.DeclaredLength)
	}
	if arr.CanonicalName() != "CHARACTER VARYING(10) ARRAY[4]" {
		t.Fatalf("unexpected array name %q", arr.CanonicalName())
	}
}

// Names are normalized with a column size of 0, so fixed-name types stay at
// their minimum width. Wider ones are covered by TestNormalize_FixedNameDropsWidth.
func TestNormalize_RoundTrip(t *testing.T) {
	names := []string{
		"INTEGER", "SMALLINT", "BIGINT", "TINYINT", "DECIMAL(10,2)", "NUMERIC", "NUMERIC(7)",
		"CHAR(3)", "VARCHAR(255)", "NCHAR VARYING(8)", "CLOB", "NCLOB", "CLOB(100000)", "LONGVARCHAR",
		"BINARY(4)", "VARBINARY(32)", "BLOB", "BIT(1)", "BIT(12)", "BIT VARYING(16)",
		"FLOAT", "FLOAT(60)", "REAL", "DOUBLE PRECISION", "BOOLEAN",
		"DATE", "TIME", "TIME WITH TIME ZONE", "TIMESTAMP", "TIMESTAMP WITH TIME ZONE",
		"INTERVAL DAY TO SECOND", "GEOMETRY", "INTEGER ARRAY", "VARCHAR(5) ARRAY[3]",
		"VARCHAR(10) CHARACTER SET latin1",
	}

	for _, dialect := range []Dialect{SQL2008, SQL99} {
		n := New(dialect)
		for _, name := range names {
			first, err := n.Normalize(name, 0, 0, 10)
			if err != nil {
				t.Fatalf("[%s] Normalize(%q) failed: %v", dialect.Name(), name, err)
			}
			second, err := n.Normalize(first.CanonicalName(), 0, 0, 10)
			if err != nil {
				t.Fatalf("[%s] Normalize(%q) failed: %v", dialect.Name(), first.CanonicalName(), err)
			}
			if !datatype.Equivalent(first, second) {
				t.Fatalf("[%s] %q -> %q: %#v != %#v", dialect.Name(), name, first.CanonicalName(), first.Variant, second.Variant)
			}
		}
	}
}

func TestNormalize_FixedNameDropsWidth(t *testing.T) {
	tests := []struct {
		name       string
		columnSize int
		want       datatype.Variant
		reparsed   datatype.Variant
	}{
		{"SMALLINT", 8, datatype.NumericExact{Precision: 8}, datatype.NumericExact{Precision: MinSmallIntPrecision}},
		{"INTEGER", 12, datatype.NumericExact{Precision: 12}, datatype.NumericExact{Precision: MinIntegerPrecision}},
		{"BIGINT", 25, datatype.NumericExact{Precision: 25}, datatype.NumericExact{Precision: MinBigIntPrecision}},
		{"REAL", 30, datatype.NumericApproximate{Precision: 30}, datatype.NumericApproximate{Precision: MinRealPrecision}},
		{"DOUBLE PRECISION", 60, datatype.NumericApproximate{Precision: 60}, datatype.NumericApproximate{Precision: MinDoublePrecision}},
	}

	n := New(SQL2008)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.name, tt.columnSize, 0, 10)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if got.Variant != tt.want {
				t.Fatalf("got %#v, want %#v", got.Variant, tt.want)
			}
			if got.CanonicalName() != tt.name {
				t.Fatalf("canonical name %q carries a width", got.CanonicalName())
			}
			again, err := n.Normalize(got.CanonicalName(), 0, 0, 10)
			if err != nil {
				t.Fatalf("Normalize(%q) failed: %v", got.CanonicalName(), err)
			}
			if again.Variant != tt.reparsed {
				t.Fatalf("reparsed %#v, want %#v", again.Variant, tt.reparsed)
			}
		})
	}
}

func TestNormalize_PostgreSQLDialect(t *testing.T) {
	n := New(PostgreSQL)

	tests := []struct {
		name string
		want datatype.Variant
	}{
		{"money", datatype.NumericApproximate{Precision: 53}},
		{"timestamptz", datatype.DateTime{HasDate: true, HasTime: true, HasTimezone: true}},
		{"timetz", datatype.DateTime{HasTime: true, HasTimezone: true}},
		{"timestamp without time zone", datatype.DateTime{HasDate: true, HasTime: true}},
		{"int4", datatype.NumericExact{Precision: 10}},
		{"bool", datatype.Boolean{}},
		{"bytea", datatype.Binary{Variable: true, Large: true}},
		{"text", datatype.Text{Length: 65535, Variable: true, Large: true}},
		{"uuid", datatype.Text{Length: 36}},
	}
	for _, tt := range tests {
		got, err := n.Normalize(tt.name, 0, 0, 10)
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", tt.name, err)
		}
		if got.Variant != tt.want {
			t.Fatalf("Normalize(%q) = %#v, want %#v", tt.name, got.Variant, tt.want)
		}
	}

	arr, err := n.Normalize("integer[]", 0, 0, 10)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	a, ok := arr.Variant.(datatype.Array)
	if !ok || a.Element.Variant != (datatype.NumericExact{Precision: 10}) {
		t.Fatalf("unexpected array %#v", arr.Variant)
	}
}

func TestNormalize_MySQLDialect(t *testing.T) {
	n := New(MySQL)

	tests := []struct {
		name string
		want datatype.Variant
	}{
		{"tinyint(1)", datatype.Boolean{}},
		{"tinyint(4)", datatype.NumericExact{Precision: 5}},
		{"int(10) unsigned", datatype.NumericExact{Precision: 20}},
		{"bigint(20) unsigned", datatype.NumericExact{Precision: 20}},
		{"mediumint(8)", datatype.NumericExact{Precision: 10}},
		{"datetime", datatype.DateTime{HasDate: true, HasTime: true}},
		{"longblob", datatype.Binary{Variable: true, Large: true}},
		{"year(4)", datatype.NumericExact{Precision: 4}},
	}
	for _, tt := range tests {
		got, err := n.Normalize(tt.name, 0, 0, 10)
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", tt.name, err)
		}
		if got.Variant == nil || got.Kind() == "enumeration" {
			t.Fatalf("Normalize(%q) returned %#v", tt.name, got.Variant)
		}
		if got.Variant != tt.want {
			t.Fatalf("Normalize(%q) = %#v, want %#v", tt.name, got.Variant, tt.want)
		}
	}

	got, err := n.Normalize("enum('small','medium')", 0, 0, 10)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	e, ok := got.Variant.(datatype.Enumeration)
	if !ok || len(e.Options) != 2 || e.Options[1] != "medium" {
		t.Fatalf("unexpected enumeration %#v", got.Variant)
	}
	if got.CanonicalName() != "CHARACTER VARYING(6)" {
		t.Fatalf("unexpected name %q", got.CanonicalName())
	}
}
