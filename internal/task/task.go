// Package task manages the lifecycle of goroutines spawned by a session:
// queue drain loops and idle-disconnect watchers. Tasks are supervised — the
// owner can cancel all of them on teardown and wait for termination instead
// of leaking fire-and-forget goroutines.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmkit/go-modbus-session/logger"
)

// Func is a task body managed by the Manager. It should return true to be
// invoked again, or false to stop the task.
type Func func() bool

// Manager supervises goroutines owned by a session.
//
// A context.Context controls the lifecycle: when the manager is stopped, all
// running tasks observe the cancellation and exit. A sync.WaitGroup lets the
// owner block until every task has terminated.
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.RWMutex // protects ctx and cancel
	taskMu sync.RWMutex // protects task creation during Wait()
}

// NewManager creates a new Manager with the given parent context and logger.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the manager's current cancellation context.
// Tasks performing their own blocking waits should select on it.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start starts a new supervised goroutine with the given name.
//
// The task function is invoked repeatedly until it returns false or the
// manager is stopped. Panics inside the task are recovered and logged.
// Start blocks until the goroutine has actually begun running.
func (mgr *Manager) Start(name string, taskFunc Func) error {
	mgr.logger.Debug("start task", "name", name)

	if taskFunc == nil {
		return fmt.Errorf("task %s: nil task func", name)
	}

	ctx := mgr.Context()
	select {
	case <-ctx.Done():
		return fmt.Errorf("task %s: manager already stopped", name)
	default:
	}

	started := make(chan struct{})

	mgr.taskMu.RLock()
	defer mgr.taskMu.RUnlock()

	mgr.wg.Add(1)

	go func() {
		defer mgr.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				mgr.logger.Error("panic in task", "name", name, "panic", r)
			}
			mgr.count.Add(-1)
			mgr.logger.Debug(fmt.Sprintf("%s task terminated", name), "task_count", mgr.Count())
		}()

		mgr.count.Add(1)
		close(started)

		for {
			ctx := mgr.Context()
			select {
			case <-ctx.Done():
				return
			default:
				if !taskFunc() {
					return
				}
			}
		}
	}()

	select {
	case <-started:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for %s to start", name)
	}
}

// Sleep pauses the calling task for d, or until the manager is stopped.
// It returns false if the manager was stopped during the pause.
func (mgr *Manager) Sleep(d time.Duration) bool {
	ctx := mgr.Context()

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Stop signals all running tasks to terminate.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until all tasks have terminated, then re-arms the manager so
// new tasks can be started.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// Count returns the number of currently running tasks.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}
