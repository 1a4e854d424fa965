package core

import (
	"context"
	"fmt"
)

// Outcome is the per-statement result of a batch execution. Positive values
// are affected row counts.
type Outcome int

const (
	// SuccessNoInfo marks a statement that succeeded without a row count.
	SuccessNoInfo Outcome = -2

	// ExecuteFailed marks a statement that failed.
	ExecuteFailed Outcome = -3
)

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool {
	return o >= 0 || o == SuccessNoInfo
}

// Statement is one bound insert queued in a batch.
type Statement struct {
	SQL  string
	Args []any

	// RowIndex is the index of the row the statement was bound from.
	RowIndex int64

	// Text is the statement with its arguments inlined, used in reports.
	Text string
}

// BatchError is returned by a BatchExecutor when some statements of a batch
// failed. Outcomes is either as long as the batch or, for drivers that stop
// at the first failure, shorter.
type BatchError struct {
	Outcomes []Outcome

	// Reasons holds per-statement failure messages where the driver gave one.
	Reasons map[int]string

	Err error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch execution failed (%d outcomes): %v", len(e.Outcomes), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Reason returns the failure message for the statement at i.
func (e *BatchError) Reason(i int) string {
	if r, ok := e.Reasons[i]; ok {
		return r
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// BatchExecutor runs queued inserts for one table inside one transaction.
type BatchExecutor interface {
	// ExecBatch executes stmts in order. A partial failure is reported as a
	// *BatchError; any other error is fatal for the run.
	ExecBatch(ctx context.Context, stmts []Statement) error

	// Commit makes every successful statement durable.
	Commit(ctx context.Context) error

	// Close releases the prepared statement and transaction.
	Close() error
}
