package database

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/dbarchive/internal/core"
)

// DefaultBatchSize is the number of inserts queued before a batch executes.
const DefaultBatchSize = 100

// Batch queues bound inserts for one table and executes them in batches,
// recovering from partial failures statement by statement.
type Batch struct {
	exec     core.BatchExecutor
	reporter core.Reporter
	tableID  string
	size     int
	limiter  *rate.Limiter

	queue []core.Statement

	// first and last row index of the pending statements, kept across
	// retries for reports that cannot name a statement
	first, last int64

	Executed int64
	Failed   int64
}

// NewBatch creates a batch of size statements (DefaultBatchSize if <= 0).
// A nil limiter does not throttle.
func NewBatch(exec core.BatchExecutor, reporter core.Reporter, tableID string, size int, limiter *rate.Limiter) *Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batch{
		exec:     exec,
		reporter: reporter,
		tableID:  tableID,
		size:     size,
		limiter:  limiter,
		queue:    make([]core.Statement, 0, size),
	}
}

// Add queues stmt and executes the batch once it is full.
func (b *Batch) Add(ctx context.Context, stmt core.Statement) error {
	if len(b.queue) == 0 {
		b.first = stmt.RowIndex
	}
	b.last = stmt.RowIndex
	b.queue = append(b.queue, stmt)
	if len(b.queue) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Pending returns the number of queued statements.
func (b *Batch) Pending() int { return len(b.queue) }

// Flush executes the queued statements. Statements that succeed are
// dropped, failed ones are reported and dropped, and the rest is executed
// again until the queue is empty. Only errors that are not batch shaped
// are returned.
func (b *Batch) Flush(ctx context.Context) error {
	for len(b.queue) > 0 {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		err := b.exec.ExecBatch(ctx, b.queue)
		if err == nil {
			b.Executed += int64(len(b.queue))
			log.Printf("[BATCH] %s: executed %d statements (rows %d-%d)", b.tableID, len(b.queue), b.first, b.last)
			b.queue = b.queue[:0]
			return nil
		}

		var be *core.BatchError
		if !errors.As(err, &be) {
			b.reporter.Failed(b.rangeSubject(), "of the following error: "+err.Error())
			return fmt.Errorf("failed to execute batch for %s: %w", b.tableID, err)
		}

		n := len(be.Outcomes)
		if n > len(b.queue) {
			n = len(b.queue)
		}
		for i := 0; i < n; i++ {
			if be.Outcomes[i].Succeeded() {
				b.Executed++
				continue
			}
			b.report(b.queue[i], be.Reason(i))
		}
		rest := b.queue[n:]
		if len(rest) > 0 && len(be.Outcomes) < len(b.queue) {
			// the driver stopped at the first failure: it is the next statement
			b.report(rest[0], be.Reason(n))
			rest = rest[1:]
		}
		log.Printf("[BATCH] %s: partial failure, %d statements left to retry", b.tableID, len(rest))
		b.queue = append(b.queue[:0], rest...)
		if len(b.queue) > 0 {
			b.first = b.queue[0].RowIndex
		}
	}
	return nil
}

func (b *Batch) report(stmt core.Statement, reason string) {
	b.Failed++
	subject := "Execution of query ``" + stmt.Text + "``"
	if stmt.Text == "" {
		subject = fmt.Sprintf("In table `%s`, inserting row with index %d", b.tableID, stmt.RowIndex)
	}
	b.reporter.Failed(subject, "of the following error: "+reason)
}

func (b *Batch) rangeSubject() string {
	return fmt.Sprintf("In table `%s`, inserting rows with index from %d to %d", b.tableID, b.first, b.last)
}
