package registry

import (
	"context"
	"sync"

	"github.com/rzpsarthak13/dbarchive/internal/model"
)

// LifecycleHook defines a hook that is executed as tables are transferred.
// Hooks are called synchronously from the content pipeline.
type LifecycleHook interface {
	// OnOpen is called before the first row of table is handled.
	// If this hook returns an error, the table is skipped.
	OnOpen(ctx context.Context, table *model.Table) error

	// OnClose is called after the last row of table, with the number of
	// rows the sink accepted.
	OnClose(ctx context.Context, table *model.Table, rows int64) error
}

// LifecycleHookFunc is a function type that implements LifecycleHook.
// This allows simple functions to be used as hooks without implementing the interface.
type LifecycleHookFunc struct {
	OnOpenFunc  func(ctx context.Context, table *model.Table) error
	OnCloseFunc func(ctx context.Context, table *model.Table, rows int64) error
}

// OnOpen calls the OnOpenFunc if it's not nil.
func (f LifecycleHookFunc) OnOpen(ctx context.Context, table *model.Table) error {
	if f.OnOpenFunc != nil {
		return f.OnOpenFunc(ctx, table)
	}
	return nil
}

// OnClose calls the OnCloseFunc if it's not nil.
func (f LifecycleHookFunc) OnClose(ctx context.Context, table *model.Table, rows int64) error {
	if f.OnCloseFunc != nil {
		return f.OnCloseFunc(ctx, table, rows)
	}
	return nil
}

// LifecycleManager manages lifecycle hooks for tables.
type LifecycleManager struct {
	mu    sync.RWMutex
	hooks []LifecycleHook
}

// NewLifecycleManager creates a new lifecycle manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		hooks: make([]LifecycleHook, 0),
	}
}

// RegisterHook registers a lifecycle hook.
// Hooks are executed in the order they were registered.
func (lm *LifecycleManager) RegisterHook(hook LifecycleHook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = append(lm.hooks, hook)
}

// UnregisterHook removes a hook from the manager.
func (lm *LifecycleManager) UnregisterHook(hook LifecycleHook) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for i, h := range lm.hooks {
		if h == hook {
			lm.hooks = append(lm.hooks[:i], lm.hooks[i+1:]...)
			return
		}
	}
}

func (lm *LifecycleManager) snapshot() []LifecycleHook {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	hooks := make([]LifecycleHook, len(lm.hooks))
	copy(hooks, lm.hooks)
	return hooks
}

// ExecuteOpenHooks executes all registered open hooks in order.
// If any hook returns an error, execution stops and the error is returned.
func (lm *LifecycleManager) ExecuteOpenHooks(ctx context.Context, table *model.Table) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnOpen(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteCloseHooks executes all registered close hooks in order.
// If any hook returns an error, execution stops and the error is returned.
func (lm *LifecycleManager) ExecuteCloseHooks(ctx context.Context, table *model.Table, rows int64) error {
	for _, hook := range lm.snapshot() {
		if err := hook.OnClose(ctx, table, rows); err != nil {
			return err
		}
	}
	return nil
}

// ClearHooks removes all registered hooks.
func (lm *LifecycleManager) ClearHooks() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = make([]LifecycleHook, 0)
}

// HookCount returns the number of registered hooks.
func (lm *LifecycleManager) HookCount() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.hooks)
}
