package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rzpsarthak13/dbarchive/internal/core"
)

type problem struct{ subject, reason string }

func collector(out *[]problem) core.Reporter {
	return core.ReporterFunc(func(subject, reason string) {
		*out = append(*out, problem{subject, reason})
	})
}

// fakeExecutor fails the statements bound from failRows. With stopAtFirst
// it behaves like a driver that aborts the batch at the first failure.
type fakeExecutor struct {
	failRows    map[int64]bool
	stopAtFirst bool
	fatal       error

	calls     int
	executed  []int64
	committed bool
	closed    bool
}

func (f *fakeExecutor) ExecBatch(ctx context.Context, stmts []core.Statement) error {
	f.calls++
	if f.fatal != nil {
		return f.fatal
	}
	var outcomes []core.Outcome
	reasons := make(map[int]string)
	for i, s := range stmts {
		if f.failRows[s.RowIndex] {
			reasons[i] = fmt.Sprintf("duplicate entry for row %d", s.RowIndex)
			if f.stopAtFirst {
				return &core.BatchError{Outcomes: outcomes, Reasons: reasons}
			}
			outcomes = append(outcomes, core.ExecuteFailed)
			continue
		}
		f.executed = append(f.executed, s.RowIndex)
		outcomes = append(outcomes, 1)
	}
	if len(reasons) > 0 {
		return &core.BatchError{Outcomes: outcomes, Reasons: reasons}
	}
	return nil
}

func (f *fakeExecutor) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeExecutor) Close() error {
	f.closed = true
	return nil
}

func statements(n int) []core.Statement {
	out := make([]core.Statement, n)
	for i := range out {
		idx := int64(i)
		out[i] = core.Statement{
			SQL:      "INSERT INTO t (id) VALUES (?)",
			Args:     []any{idx},
			RowIndex: idx,
			Text:     fmt.Sprintf("INSERT INTO t (id) VALUES (%d)", idx),
		}
	}
	return out
}

func TestBatchRecovery(t *testing.T) {
	tests := []struct {
		name        string
		stopAtFirst bool
		wantCalls   int
	}{
		{name: "full outcome vector", stopAtFirst: false, wantCalls: 1},
		{name: "short outcome vector", stopAtFirst: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{failRows: map[int64]bool{2: true, 5: true}, stopAtFirst: tt.stopAtFirst}
			var problems []problem
			b := NewBatch(exec, collector(&problems), "s.t", 8, nil)

			for _, s := range statements(8) {
				if err := b.Add(context.Background(), s); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}

			if b.Pending() != 0 {
				t.Fatalf("expected empty queue, got %d", b.Pending())
			}
			if exec.calls != tt.wantCalls {
				t.Fatalf("expected %d executions, got %d", tt.wantCalls, exec.calls)
			}
			if b.Executed != 6 || b.Failed != 2 {
				t.Fatalf("expected 6 executed and 2 failed, got %d and %d", b.Executed, b.Failed)
			}
			want := []int64{0, 1, 3, 4, 6, 7}
			if fmt.Sprint(exec.executed) != fmt.Sprint(want) {
				t.Fatalf("expected rows %v executed, got %v", want, exec.executed)
			}
			if len(problems) != 2 {
				t.Fatalf("expected 2 problems, got %v", problems)
			}
			for i, row := range []int64{2, 5} {
				subject := fmt.Sprintf("Execution of query ``INSERT INTO t (id) VALUES (%d)``", row)
				if problems[i].subject != subject {
					t.Fatalf("expected subject %q, got %q", subject, problems[i].subject)
				}
				reason := fmt.Sprintf("of the following error: duplicate entry for row %d", row)
				if problems[i].reason != reason {
					t.Fatalf("expected reason %q, got %q", reason, problems[i].reason)
				}
			}
		})
	}
}

func TestBatchFlushesRemainder(t *testing.T) {
	exec := &fakeExecutor{}
	var problems []problem
	b := NewBatch(exec, collector(&problems), "s.t", 0, nil)

	for _, s := range statements(3) {
		if err := b.Add(context.Background(), s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if exec.calls != 0 {
		t.Fatalf("expected no execution before the batch is full, got %d", exec.calls)
	}
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.calls != 1 || b.Executed != 3 {
		t.Fatalf("expected one execution of 3 statements, got %d calls and %d executed", exec.calls, b.Executed)
	}
	if err := b.Flush(context.Background()); err != nil || exec.calls != 1 {
		t.Fatalf("expected flushing an empty batch to do nothing, got %v and %d calls", err, exec.calls)
	}
}

func TestBatchFatalErrorReportsRowRange(t *testing.T) {
	lost := errors.New("connection reset by peer")
	exec := &fakeExecutor{fatal: lost}
	var problems []problem
	b := NewBatch(exec, collector(&problems), "s.t", 10, nil)

	for _, s := range statements(4)[1:] {
		if err := b.Add(context.Background(), s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	err := b.Flush(context.Background())
	if !errors.Is(err, lost) {
		t.Fatalf("expected the driver error, got %v", err)
	}
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %v", problems)
	}
	if want := "In table `s.t`, inserting rows with index from 1 to 3"; problems[0].subject != want {
		t.Fatalf("expected subject %q, got %q", want, problems[0].subject)
	}
	if !strings.HasSuffix(problems[0].reason, "connection reset by peer") {
		t.Fatalf("unexpected reason %q", problems[0].reason)
	}
}
