package session

import (
	"fmt"
	"time"

	"github.com/dmkit/go-modbus-session/internal/pool"
)

// Action is a caller-supplied callback invoked with the session's capability
// facade. A non-nil returned error counts as a failure and consumes the
// action's single retry.
type Action func(Client) error

// ResultAction is an Action that produces a value, used with ExecuteAndReturn.
type ResultAction func(Client) (any, error)

// action is one pending queue entry.
type action struct {
	id      uint64
	fn      Action
	retried bool
}

type actionResult struct {
	value any
	err   error
}

// Execute enqueues fn for execution and returns immediately.
//
// If no drain loop is active, one is started as a supervised task; otherwise
// the running loop picks the action up in FIFO order. fn is invoked with the
// capability facade; its error, if any, triggers a single immediate retry.
// No failure from fn ever reaches the submitter.
//
// A nil fn is tolerated: the drain loop logs and skips it.
func (s *Session) Execute(fn Action) {
	if s.closed.Load() {
		s.logger.Warn("action rejected, session is shut down")
		return
	}

	s.actions.Enqueue(&action{id: s.actionID.Add(1), fn: fn})
	s.metrics.setQueueLength(s.actions.Length())

	s.tryDrain()
}

// ExecuteAndReturn enqueues fn and waits for its result up to timeout.
// A non-positive timeout falls back to DefaultResultTimeout.
//
// On timeout it returns ErrResultTimeout while the action keeps running in
// the background; the eventual result is discarded (fire-and-forget beyond
// the timeout). A result is only delivered for a successful run: if fn fails
// its first attempt and its retry, the call times out.
func (s *Session) ExecuteAndReturn(fn ResultAction, timeout time.Duration) (any, error) {
	if fn == nil {
		return nil, ErrCallbackNil
	}
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if timeout <= 0 {
		timeout = DefaultResultTimeout
	}

	id := s.actionID.Add(1)
	slot := make(chan actionResult, 1)
	s.inflight.Store(id, slot)

	s.Execute(func(c Client) error {
		value, err := fn(c)
		if err != nil {
			return err
		}

		if ch, ok := s.inflight.LoadAndDelete(id); ok {
			ch <- actionResult{value: value}
		} else {
			s.logger.Debug("action result discarded, caller gave up waiting", "action_id", id)
		}

		return nil
	})

	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	select {
	case res := <-slot:
		return res.value, res.err
	case <-timer.C:
		if _, ok := s.inflight.LoadAndDelete(id); ok {
			return nil, ErrResultTimeout
		}
		// delivery raced the timeout and already won the slot
		select {
		case res := <-slot:
			return res.value, res.err
		default:
			return nil, ErrResultTimeout
		}
	}
}

// tryDrain acquires the single-flight lock and starts the drain task.
// Losing the race means a drain loop is already active and will pick up the
// freshly queued work.
func (s *Session) tryDrain() {
	if !s.draining.CompareAndSwap(false, true) {
		return
	}

	gen := s.drainGen.Add(1)
	if err := s.taskMgr.Start(fmt.Sprintf("drain-%d", gen), s.drainStep); err != nil {
		s.logger.Error("failed to start drain task", "error", err)
		s.draining.Store(false)
	}
}

// drainStep processes one action per invocation; the task manager keeps
// calling it until it reports completion or the session shuts down.
func (s *Session) drainStep() bool {
	act := s.pendingRetry
	s.pendingRetry = nil

	if act == nil {
		next, ok := s.actions.Dequeue()
		if !ok {
			return s.finishDrain()
		}
		act = next
		s.metrics.setQueueLength(s.actions.Length())
	}

	if act.fn == nil {
		// invalid entry: skipped without consuming a retry slot
		s.logger.Warn("invalid queue entry skipped", "action_id", act.id)
		s.metrics.incActionSkipCount()

		return true
	}

	s.ensureConnected()

	s.metrics.incActionRunCount()
	err := s.invoke(act)
	if err == nil {
		return true
	}

	if act.retried {
		s.metrics.incActionDropCount()
		s.logger.Warn("action dropped after failed retry", "action_id", act.id, "error", err)

		return true
	}

	act.retried = true
	s.pendingRetry = act
	s.metrics.incActionRetryCount()
	s.logger.Debug("action failed, retrying once", "action_id", act.id, "error", err)

	// reclaim the link before the retry if the failure took it down
	if !s.client.Connected() {
		s.ensureConnected()
	}

	return true
}

// finishDrain releases the single-flight lock. An Execute call may enqueue
// between the last Dequeue and the release and lose its own CAS; re-checking
// here keeps that action from being stranded until the next submission.
func (s *Session) finishDrain() bool {
	s.draining.Store(false)

	if !s.actions.IsEmpty() && s.draining.CompareAndSwap(false, true) {
		s.drainGen.Add(1)
		return true
	}

	s.armIdleWatch()

	return false
}

// invoke runs one action against the facade with panic protection.
func (s *Session) invoke(act *action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
			s.logger.Error("panic in queued action", "action_id", act.id, "panic", r)
		}
	}()

	return act.fn(s.facade)
}
