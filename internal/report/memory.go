package report

import (
	"context"
	"errors"
	"sync"

	"github.com/rzpsarthak13/dbarchive/internal/registry"
)

// ErrPublisherClosed is returned when publishing to a closed publisher.
var ErrPublisherClosed = errors.New("report publisher is closed")

// MemoryPublisher keeps published problems in process memory.
type MemoryPublisher struct {
	mu       sync.Mutex
	problems []Problem
	closed   bool
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (m *MemoryPublisher) Publish(ctx context.Context, p Problem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrPublisherClosed
	}
	m.problems = append(m.problems, p)
	return nil
}

// Published returns a copy of everything published so far.
func (m *MemoryPublisher) Published() []Problem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Problem, len(m.problems))
	copy(out, m.problems)
	return out
}

func (m *MemoryPublisher) Type() string { return "memory" }

func (m *MemoryPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MemoryPublisherFactory creates in-memory publishers.
type MemoryPublisherFactory struct{}

func (f *MemoryPublisherFactory) Create(ctx context.Context, config registry.InternalBackendConfig) (Publisher, error) {
	return NewMemoryPublisher(), nil
}

func (f *MemoryPublisherFactory) Type() string { return "memory" }

func (f *MemoryPublisherFactory) Validate(config registry.InternalBackendConfig) error {
	return nil
}

func init() {
	register(&MemoryPublisherFactory{})
}
