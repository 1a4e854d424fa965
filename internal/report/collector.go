package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/rzpsarthak13/dbarchive/internal/registry"
)

// DefaultPublishTimeout bounds a single Publish call.
const DefaultPublishTimeout = 10 * time.Second

// Collector is the run's problem reporter. Every problem is logged and kept
// in memory; configured publishers receive a copy. A failing publisher never
// fails the run.
type Collector struct {
	mu         sync.Mutex
	run        string
	problems   []Problem
	publishers []Publisher
	timeout    time.Duration
	now        func() time.Time
}

// NewCollector creates a collector for run.
func NewCollector(run string, publishers ...Publisher) *Collector {
	return &Collector{
		run:        run,
		publishers: publishers,
		timeout:    DefaultPublishTimeout,
		now:        time.Now,
	}
}

// Open creates a collector with a publisher per configured backend. When
// cfg.RunID is empty a run id is derived from the current time.
func Open(ctx context.Context, cfg registry.InternalReportConfig) (*Collector, error) {
	run := cfg.RunID
	if run == "" {
		run = time.Now().UTC().Format("20060102T150405Z")
	}

	var publishers []Publisher
	for _, b := range cfg.Backends {
		p, err := Create(ctx, b)
		if err != nil {
			for _, opened := range publishers {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("failed to create %s report backend: %w", b.Type, err)
		}
		log.Printf("[REPORT] Publishing problems of run %s to %s", run, p.Type())
		publishers = append(publishers, p)
	}
	return NewCollector(run, publishers...), nil
}

// Run returns the run id stamped on every problem.
func (c *Collector) Run() string {
	return c.run
}

// Failed records a problem. It implements core.Reporter.
func (c *Collector) Failed(subject, reason string) {
	c.mu.Lock()
	p := Problem{
		Run:     c.run,
		Seq:     len(c.problems) + 1,
		Subject: subject,
		Reason:  reason,
		Time:    c.now().UTC(),
	}
	c.problems = append(c.problems, p)
	publishers := c.publishers
	c.mu.Unlock()

	log.Printf("[REPORT] %s", p)
	for _, pub := range publishers {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		if err := pub.Publish(ctx, p); err != nil {
			log.Printf("[REPORT] ERROR: Failed to publish problem %d to %s: %v", p.Seq, pub.Type(), err)
		}
		cancel()
	}
}

// Problems returns a copy of the recorded problems in report order.
func (c *Collector) Problems() []Problem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Problem, len(c.problems))
	copy(out, c.problems)
	return out
}

// Len returns the number of recorded problems.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.problems)
}

// WriteJSON writes the recorded problems as an indented JSON array.
func (c *Collector) WriteJSON(w io.Writer) error {
	problems := c.Problems()
	if problems == nil {
		problems = []Problem{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(problems); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// Close closes every publisher.
func (c *Collector) Close() error {
	c.mu.Lock()
	publishers := c.publishers
	c.publishers = nil
	c.mu.Unlock()

	var errs []error
	for _, p := range publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s report backend: %w", p.Type(), err))
		}
	}
	return errors.Join(errs...)
}
