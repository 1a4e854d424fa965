package lob

import (
	"testing"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/internal/pathstrategy"
)

func TestInlinePath(t *testing.T) {
	s := NewInline(pathstrategy.NewLayout(archive.Version22))
	key := pathstrategy.LOBKey{Schema: 1, Table: 2, Column: 3}

	if got := s.InlinePath(key, 4, pathstrategy.Clob); got != "content/schema1/table2/lob3/record4.txt" {
		t.Errorf("InlinePath = %q", got)
	}
	if got := s.InlineFileName(4, pathstrategy.Blob); got != "record4.bin" {
		t.Errorf("InlineFileName = %q", got)
	}
}

func TestSegmentsAreMonotonic(t *testing.T) {
	s := NewExternal(pathstrategy.NewLayout(archive.Version22), "/tmp/out/db.siard")
	a := pathstrategy.LOBKey{Schema: 1, Table: 1, Column: 1}
	b := pathstrategy.LOBKey{Schema: 1, Table: 1, Column: 2}

	if got := s.Segment(a); got != -1 {
		t.Fatalf("Segment before first roll = %d, want -1", got)
	}

	tests := []struct {
		key  pathstrategy.LOBKey
		next bool
		want string
	}{
		{a, true, "db_lobs/s1_t1_c1/seg_0"},
		{a, false, "db_lobs/s1_t1_c1/seg_0"},
		{a, true, "db_lobs/s1_t1_c1/seg_1"},
		{b, false, "db_lobs/s1_t1_c2/seg_0"},
		{a, true, "db_lobs/s1_t1_c1/seg_2"},
		{b, true, "db_lobs/s1_t1_c2/seg_1"},
	}
	for i, tt := range tests {
		var got string
		if tt.next {
			got = s.NextContainerPath(tt.key)
		} else {
			got = s.CurrentContainerPath(tt.key)
		}
		if got != tt.want {
			t.Errorf("step %d: got %q, want %q", i, got, tt.want)
		}
	}
	if s.Segment(a) != 2 || s.Segment(b) != 1 {
		t.Errorf("segments = %d, %d; want 2, 1", s.Segment(a), s.Segment(b))
	}
}

func TestTrackerRollsOver(t *testing.T) {
	tests := []struct {
		name   string
		policy SegmentPolicy
		sizes  []int64
		want   []string
	}{
		{
			name:   "by file count",
			policy: SegmentPolicy{MaxFiles: 2},
			sizes:  []int64{1, 1, 1, 1, 1},
			want:   []string{"seg_0", "seg_0", "seg_1", "seg_1", "seg_2"},
		},
		{
			name:   "by bytes",
			policy: SegmentPolicy{MaxBytes: 10},
			sizes:  []int64{6, 4, 1, 20, 1},
			want:   []string{"seg_0", "seg_0", "seg_1", "seg_2", "seg_3"},
		},
		{
			name:   "unbounded",
			policy: SegmentPolicy{},
			sizes:  []int64{100, 100, 100},
			want:   []string{"seg_0", "seg_0", "seg_0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewExternal(pathstrategy.NewLayout(archive.Version22), "db.siard")
			tr := NewTracker(s, tt.policy)
			key := pathstrategy.LOBKey{Schema: 1, Table: 1, Column: 1}
			for i, size := range tt.sizes {
				got := tr.Place(key, size)
				want := "db_lobs/s1_t1_c1/" + tt.want[i]
				if got != want {
					t.Errorf("place %d: got %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": Inline, "inline": Inline, "external": External} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("cloud"); err == nil {
		t.Error("ParseMode(cloud) should fail")
	}
}
