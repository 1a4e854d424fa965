package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/rzpsarthak13/dbarchive/internal/core"
	"github.com/rzpsarthak13/dbarchive/internal/datatype"
	"github.com/rzpsarthak13/dbarchive/internal/model"
	"github.com/rzpsarthak13/dbarchive/internal/normalize"
)

type problem struct{ subject, reason string }

func collector(out *[]problem) core.Reporter {
	return core.ReporterFunc(func(subject, reason string) {
		*out = append(*out, problem{subject, reason})
	})
}

// recordingSink logs every call and captures row values as strings.
type recordingSink struct {
	calls    []string
	rows     map[string][][]string
	table    string
	rejectAt int64
	fatalAt  int64
	aborted  bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{rows: make(map[string][][]string)}
}

func (s *recordingSink) Init(ctx context.Context) error {
	s.calls = append(s.calls, "init")
	return nil
}

func (s *recordingSink) HandleStructure(ctx context.Context, db *model.Database) error {
	s.calls = append(s.calls, "structure")
	return nil
}

func (s *recordingSink) HandleOpenSchema(ctx context.Context, schema string) error {
	s.calls = append(s.calls, "open-schema "+schema)
	return nil
}

func (s *recordingSink) HandleOpenTable(ctx context.Context, tableID string) error {
	s.calls = append(s.calls, "open-table "+tableID)
	s.table = tableID
	return nil
}

func (s *recordingSink) HandleRow(ctx context.Context, row *model.Row) error {
	if row.Index == s.rejectAt {
		return &core.DataError{Subject: "row", Reason: "rejected"}
	}
	if row.Index == s.fatalAt {
		return errors.New("disk full")
	}
	values := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		values[i] = cellString(c)
	}
	s.rows[s.table] = append(s.rows[s.table], values)
	return nil
}

func (s *recordingSink) HandleCloseTable(ctx context.Context, tableID string) error {
	s.calls = append(s.calls, "close-table "+tableID)
	return nil
}

func (s *recordingSink) HandleCloseSchema(ctx context.Context, schema string) error {
	s.calls = append(s.calls, "close-schema "+schema)
	return nil
}

func (s *recordingSink) Finish(ctx context.Context) error {
	s.calls = append(s.calls, "finish")
	return nil
}

func (s *recordingSink) Abort(ctx context.Context) error {
	s.aborted = true
	return nil
}

func cellString(c model.Cell) string {
	switch v := c.(type) {
	case model.NullCell:
		return "<null>"
	case model.SimpleCell:
		return v.Text
	case *model.BinaryCell:
		b, err := v.Bytes()
		if err != nil {
			return "<error " + err.Error() + ">"
		}
		return fmt.Sprintf("0x%x", b)
	case model.ComposedCell:
		parts := make([]string, len(v.Children))
		for i, child := range v.Children {
			parts[i] = cellString(child)
		}
		return "(" + strings.Join(parts, ",") + ")"
	}
	return "<unknown>"
}

func twoSchemaDatabase() *model.Database {
	n := normalize.New(normalize.SQL2008)
	db := model.NewDatabase("test")
	a := db.AddSchema("a")
	t := a.AddTable("t")
	t.AddColumn("id", n.MustNormalize("INTEGER"))
	t.AddColumn("name", n.MustNormalize("CHARACTER VARYING(20)"))
	b := db.AddSchema("b")
	u := b.AddTable("u")
	u.AddColumn("id", n.MustNormalize("INTEGER"))
	if err := db.Index(); err != nil {
		panic(err)
	}
	return db
}

func row(index int64, values ...string) *model.Row {
	r := model.NewRow(index, len(values))
	for i, v := range values {
		r.Cells[i] = model.SimpleCell{Text: v}
	}
	return r
}

func TestSequencer(t *testing.T) {
	db := twoSchemaDatabase()
	tests := []struct {
		name   string
		events []Event
		valid  bool
	}{
		{
			name: "well nested",
			events: []Event{
				Structure(db), OpenSchema("a"), OpenTable("a.t"), Row(row(1, "1", "x")), CloseTable("a.t"), CloseSchema("a"),
				OpenSchema("b"), CloseSchema("b"), End(),
			},
			valid: true,
		},
		{
			name:   "second schema while first open",
			events: []Event{Structure(db), OpenSchema("a"), OpenSchema("b")},
		},
		{
			name:   "table of another schema",
			events: []Event{Structure(db), OpenSchema("a"), OpenTable("b.u")},
		},
		{
			name:   "row outside table",
			events: []Event{Structure(db), OpenSchema("a"), Row(row(1, "1", "x"))},
		},
		{
			name:   "end with open schema",
			events: []Event{Structure(db), OpenSchema("a"), End()},
		},
		{
			name:   "schema before structure",
			events: []Event{OpenSchema("a")},
		},
		{
			name:   "mismatched close",
			events: []Event{Structure(db), OpenSchema("a"), OpenTable("a.t"), CloseTable("b.u")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := NewSequencer()
			var err error
			for _, e := range tt.events {
				if err = seq.Accept(e); err != nil {
					break
				}
			}
			if tt.valid {
				if err != nil {
					t.Fatalf("expected valid sequence, got %v", err)
				}
				if !seq.Done() {
					t.Fatalf("expected sequencer to be done")
				}
				return
			}
			if !errors.Is(err, core.ErrNesting) {
				t.Fatalf("expected ErrNesting, got %v", err)
			}
		})
	}
}

func TestPumpRejectsMalformedRows(t *testing.T) {
	db := twoSchemaDatabase()
	src := &SliceSource{Events: []Event{
		Structure(db), OpenSchema("a"), OpenTable("a.t"),
		Row(row(1, "1", "x")),
		Row(row(2, "2")),
		Row(row(3, "3", "y")),
		Row(row(4, "4", "z")),
		CloseTable("a.t"), CloseSchema("a"), OpenSchema("b"), CloseSchema("b"), End(),
	}}
	sink := newRecordingSink()
	sink.rejectAt = 3
	var problems []problem

	stats, err := Pump(context.Background(), src, sink, collector(&problems))
	if err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if stats.Rows != 2 || stats.Rejected != 2 {
		t.Fatalf("expected 2 rows and 2 rejected, got %+v", stats)
	}
	if len(problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", problems)
	}
	if problems[0].subject != "Row 2 of table `a.t`" || !strings.Contains(problems[0].reason, "expected 2 cells but got 1") {
		t.Fatalf("unexpected cardinality problem %+v", problems[0])
	}
	if got := sink.rows["a.t"]; !reflect.DeepEqual(got, [][]string{{"1", "x"}, {"4", "z"}}) {
		t.Fatalf("unexpected rows %v", got)
	}
	table, _ := db.LookupTable("a.t")
	if table.RowCount != 2 {
		t.Fatalf("expected row count 2, got %d", table.RowCount)
	}
	if sink.calls[len(sink.calls)-1] != "finish" {
		t.Fatalf("expected finish last, got %v", sink.calls)
	}
}

func TestPumpClosesScopesOnFatalError(t *testing.T) {
	db := twoSchemaDatabase()
	src := &SliceSource{Events: []Event{
		Structure(db), OpenSchema("a"), OpenTable("a.t"), Row(row(1, "1", "x")), Row(row(2, "2", "y")),
		CloseTable("a.t"), CloseSchema("a"), End(),
	}}
	sink := newRecordingSink()
	sink.fatalAt = 2
	var problems []problem

	_, err := Pump(context.Background(), src, sink, collector(&problems))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected disk full error, got %v", err)
	}
	want := []string{"init", "structure", "open-schema a", "open-table a.t", "close-table a.t", "close-schema a"}
	if !reflect.DeepEqual(sink.calls, want) {
		t.Fatalf("expected calls %v, got %v", want, sink.calls)
	}
	if !sink.aborted {
		t.Fatalf("expected sink to be aborted")
	}
}

func TestPumpNestingViolationIsFatal(t *testing.T) {
	db := twoSchemaDatabase()
	src := &SliceSource{Events: []Event{Structure(db), OpenSchema("a"), OpenTable("b.u")}}
	sink := newRecordingSink()

	_, err := Pump(context.Background(), src, sink, collector(new([]problem)))
	if !errors.Is(err, core.ErrNesting) {
		t.Fatalf("expected ErrNesting, got %v", err)
	}
	if sink.calls[len(sink.calls)-1] != "close-schema a" {
		t.Fatalf("expected open schema to be closed, got %v", sink.calls)
	}
}

// failingSource aborts a table after its first row.
type failingSource struct {
	SliceSource
	failAfter int
}

func (s *failingSource) Next(ctx context.Context) (Event, error) {
	if s.pos == s.failAfter {
		s.pos++
		return Event{}, &core.TableError{TableID: "a.t", Err: core.ErrParse}
	}
	return s.SliceSource.Next(ctx)
}

func TestPumpSkipsFailedTable(t *testing.T) {
	db := twoSchemaDatabase()
	src := &failingSource{
		SliceSource: SliceSource{Events: []Event{
			Structure(db), OpenSchema("a"), OpenTable("a.t"), Row(row(1, "1", "x")),
			Row(row(2, "2", "never")),
			CloseSchema("a"), OpenSchema("b"), OpenTable("b.u"), Row(row(1, "9")), CloseTable("b.u"), CloseSchema("b"), End(),
		}},
		failAfter: 4,
	}
	sink := newRecordingSink()
	var problems []problem

	if _, err := Pump(context.Background(), src, sink, collector(&problems)); err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if len(problems) != 1 || problems[0].subject != "Table `a.t`" {
		t.Fatalf("expected one table problem, got %v", problems)
	}
	if len(sink.rows["b.u"]) != 1 {
		t.Fatalf("expected the next table to be pumped, got %v", sink.rows)
	}
	if sink.calls[4] != "close-table a.t" {
		t.Fatalf("expected failed table to be closed, got %v", sink.calls)
	}
}

func TestPumpReportsSourceRowErrors(t *testing.T) {
	db := twoSchemaDatabase()
	src := &rowErrorSource{SliceSource: SliceSource{Events: []Event{
		Structure(db), OpenSchema("a"), OpenTable("a.t"), Row(row(2, "2", "y")), CloseTable("a.t"), CloseSchema("a"),
		OpenSchema("b"), CloseSchema("b"), End(),
	}}}
	var problems []problem
	stats, err := Pump(context.Background(), src, newRecordingSink(), collector(&problems))
	if err != nil {
		t.Fatalf("Pump failed: %v", err)
	}
	if stats.Rows != 1 || len(problems) != 1 || problems[0].reason != "bad hex" {
		t.Fatalf("unexpected result %+v %v", stats, problems)
	}
}

type rowErrorSource struct {
	SliceSource
	done bool
}

func (s *rowErrorSource) Next(ctx context.Context) (Event, error) {
	if s.pos == 3 && !s.done {
		s.done = true
		return Event{}, &core.DataError{Subject: "Row 1 of table `a.t`", Reason: "bad hex"}
	}
	return s.SliceSource.Next(ctx)
}

func TestPumpRequiresEnd(t *testing.T) {
	db := twoSchemaDatabase()
	src := &SliceSource{Events: []Event{Structure(db)}}
	_, err := Pump(context.Background(), src, newRecordingSink(), collector(new([]problem)))
	if !errors.Is(err, core.ErrNesting) {
		t.Fatalf("expected ErrNesting, got %v", err)
	}
}

func TestSliceSourceEOF(t *testing.T) {
	src := &SliceSource{}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func composedType() *datatype.Type {
	n := normalize.New(normalize.SQL2008)
	two := 2
	point := datatype.NewStructure("public", "point", []datatype.Field{
		{Name: "x", Type: n.MustNormalize("INTEGER")},
		{Name: "y", Type: n.MustNormalize("INTEGER")},
	})
	return datatype.NewStructure("public", "shape", []datatype.Field{
		{Name: "label", Type: n.MustNormalize("CHARACTER VARYING(10)")},
		{Name: "corners", Type: datatype.NewArray(point, &two)},
	})
}

func TestFlatten(t *testing.T) {
	subs := Flatten("geom", composedType())
	var names []string
	for _, s := range subs {
		names = append(names, s.Name())
	}
	want := []string{
		"geom.label",
		"geom.corners.[1].x", "geom.corners.[1].y",
		"geom.corners.[2].x", "geom.corners.[2].y",
	}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	if n, ok := LeafCount(composedType()); !ok || n != 5 {
		t.Fatalf("expected 5 fixed leaves, got %d %v", n, ok)
	}
	unbounded := datatype.NewArray(normalize.New(normalize.SQL2008).MustNormalize("INTEGER"), nil)
	if _, ok := LeafCount(unbounded); ok {
		t.Fatalf("expected unbounded array to have no fixed leaf count")
	}
	if got := Flatten("tags", unbounded); len(got) != 1 {
		t.Fatalf("expected unbounded array to be a single leaf, got %v", got)
	}
}

func TestReassembleInvertsLeaves(t *testing.T) {
	leaves := []model.Cell{
		model.SimpleCell{Text: "box"},
		model.SimpleCell{Text: "1"}, model.NullCell{},
		model.SimpleCell{Text: "3"}, model.SimpleCell{Text: "4"},
	}
	cell, used, err := Reassemble(composedType(), leaves)
	if err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	if used != len(leaves) {
		t.Fatalf("expected %d leaves used, got %d", len(leaves), used)
	}
	if got := cellString(cell); got != "(box,((1,<null>),(3,4)))" {
		t.Fatalf("unexpected cell %s", got)
	}
	if !reflect.DeepEqual(model.Leaves(cell), leaves) {
		t.Fatalf("expected leaves to round trip")
	}
	if _, _, err := Reassemble(composedType(), leaves[:2]); err == nil {
		t.Fatalf("expected error for missing leaves")
	}
}

func TestProject(t *testing.T) {
	aliases := NewAliasAllocator("geom")
	projs := Project("geom", composedType(), aliases)
	if len(projs) != 5 {
		t.Fatalf("expected 5 projections, got %d", len(projs))
	}
	if projs[0].Expr != `("geom")."label"` {
		t.Fatalf("unexpected expression %s", projs[0].Expr)
	}
	if projs[2].Expr != `((("geom")."corners")[1])."y"` {
		t.Fatalf("unexpected expression %s", projs[2].Expr)
	}
	seen := map[string]bool{}
	for _, p := range projs {
		if len(p.Alias) != AliasLength || strings.ToLower(p.Alias) != p.Alias {
			t.Fatalf("unexpected alias %q", p.Alias)
		}
		if seen[p.Alias] {
			t.Fatalf("duplicate alias %q", p.Alias)
		}
		seen[p.Alias] = true
		if !strings.HasSuffix(p.SQL(), ` AS "`+p.Alias+`"`) {
			t.Fatalf("unexpected select item %s", p.SQL())
		}
	}

	plain := Project("id", normalize.New(normalize.SQL2008).MustNormalize("INTEGER"), aliases)
	if len(plain) != 1 || plain[0].SQL() != `"id"` {
		t.Fatalf("unexpected plain projection %+v", plain)
	}
}

func TestAliasAllocatorRedrawsOnCollision(t *testing.T) {
	taken := strings.Repeat("a", AliasLength)
	a := NewAliasAllocator(taken)
	calls := 0
	a.intn = func(n int) int {
		calls++
		if calls <= AliasLength {
			return 0
		}
		return 1
	}
	if got := a.Next(); got != strings.Repeat("b", AliasLength) {
		t.Fatalf("expected redraw after collision, got %q", got)
	}
}

func TestEscapeText(t *testing.T) {
	tests := []struct{ in, out string }{
		{"plain", "plain"},
		{`back\slash`, `back\u005cslash`},
		{"bell\x07", `bell\u0007`},
		{"tab\tnew\nline", "tab\tnew\nline"},
	}
	for _, tt := range tests {
		if got := EscapeText(tt.in); got != tt.out {
			t.Fatalf("EscapeText(%q): expected %q, got %q", tt.in, tt.out, got)
		}
		if got := UnescapeText(tt.out); got != tt.in {
			t.Fatalf("UnescapeText(%q): expected %q, got %q", tt.out, tt.in, got)
		}
	}
	if got := UnescapeText(`\u00`); got != `\u00` {
		t.Fatalf("expected incomplete escape to be kept, got %q", got)
	}
}
