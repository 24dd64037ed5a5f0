package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dmkit/go-modbus-session/internal/queue"
	"github.com/dmkit/go-modbus-session/internal/task"
	"github.com/dmkit/go-modbus-session/logger"
	"github.com/dmkit/go-modbus-session/modbus"
)

// idlePollInterval is the sampling interval of the idle-disconnect watcher.
const idlePollInterval = 100 * time.Millisecond

// Session owns one protocol client and serializes all register operations
// over it. See the package documentation for the execution model.
//
// A Session is safe for concurrent use by multiple goroutines.
type Session struct {
	cfg     *Config
	client  modbus.ProtocolClient
	logger  logger.Logger
	taskMgr *task.Manager
	facade  Client

	actions  queue.Queue[*action]
	draining atomic.Bool   // single-flight lock over the drain loop
	drainGen atomic.Uint64 // invalidates idle watchers armed by older drains

	// pendingRetry holds the one action that failed and is owed an immediate
	// re-run. Only the drain task touches it.
	pendingRetry *action

	actionID atomic.Uint64
	inflight *xsync.MapOf[uint64, chan actionResult]

	disconAnnounced atomic.Bool // "disconnected" logged since the last connect
	closed          atomic.Bool

	metrics SessionMetrics
}

// NewSession creates a session from cfg. The protocol client is instantiated
// exactly once here and reused across every reconnect; the link itself is not
// opened until the first action needs it.
func NewSession(ctx context.Context, cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if !logger.Valid(cfg.logger) {
		return nil, ErrLoggerNil
	}

	client, err := cfg.buildClient()
	if err != nil {
		return nil, err
	}

	l := cfg.logger
	if cfg.nameTag != "" {
		l = l.With("name", cfg.nameTag)
	}

	s := &Session{
		cfg:      cfg,
		client:   client,
		logger:   l,
		taskMgr:  task.NewManager(ctx, l),
		actions:  queue.NewLockFreeQueue[*action](),
		inflight: xsync.NewMapOf[uint64, chan actionResult](),
	}
	s.facade = &regClient{session: s}

	return s, nil
}

// State returns the connection state, derived from the protocol client's
// liveness flag.
func (s *Session) State() ConnState {
	if s.client.Connected() {
		return Connected
	}
	return Disconnected
}

// Connected reports whether the physical link is currently established.
func (s *Session) Connected() bool {
	return s.State().IsConnected()
}

// Metrics returns the session's metric counters.
func (s *Session) Metrics() *SessionMetrics {
	return &s.metrics
}

// Connect establishes the link for a persistent session. It is idempotent;
// connecting an already-connected session only logs a warning.
//
// A failed attempt is logged, not returned: callers observe the outcome
// through State. The queue-driven path connects on demand, so calling
// Connect up front is optional.
func (s *Session) Connect(ctx context.Context) {
	if s.client.Connected() {
		s.logger.Warn("client is already connected")
		return
	}

	_ = s.establish(ctx)
}

// Close unconditionally requests the protocol client to close the link.
// It is safe to call on an already-closed session; the disconnect transition
// is logged at most once per observed transition.
func (s *Session) Close() {
	s.closeLink("close requested")
}

// Shutdown closes the link and terminates the session's supervised tasks,
// waiting for them to finish. The session rejects new actions afterwards.
func (s *Session) Shutdown() {
	if s.closed.Swap(true) {
		return
	}

	s.taskMgr.Stop()
	s.taskMgr.Wait()
	s.closeLink("shutdown")
}

// establish performs one connection attempt and announces the transition.
func (s *Session) establish(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		s.logger.Error("connection error", "error", err)
		return err
	}

	s.disconAnnounced.Store(false)
	s.metrics.incConnectCount()
	s.logger.Info("connected")

	return nil
}

// ensureConnected brings the link up for the drain loop. Unlike the public
// Connect it is fully silent when already connected. On failure it pauses for
// the reconnect interval so a dead link is not hammered in a tight loop.
func (s *Session) ensureConnected() {
	if s.client.Connected() {
		return
	}

	if err := s.establish(s.taskMgr.Context()); err != nil {
		s.logger.Warn("reconnecting after pause", "pause", s.cfg.reconnectInterval)
		s.taskMgr.Sleep(s.cfg.reconnectInterval)
	}
}

// closeLink closes the physical link, logging the connected-to-disconnected
// transition exactly once per transition.
func (s *Session) closeLink(reason string) {
	wasConnected := s.client.Connected()

	if err := s.client.Close(); err != nil {
		s.logger.Debug("close error", "error", err)
	}

	if wasConnected && !s.disconAnnounced.Swap(true) {
		s.metrics.incDisconnectCount()
		s.logger.Info("disconnected", "reason", reason)
	}
}

// armIdleWatch starts a supervised watcher that releases the connection after
// the configured idle window without new work.
//
// Several watchers may be in flight when drains follow each other quickly;
// the generation number lets only the most recent one act, all earlier ones
// exit as soon as they notice a newer drain.
func (s *Session) armIdleWatch() {
	gen := s.drainGen.Load()

	var idle time.Duration
	err := s.taskMgr.Start(fmt.Sprintf("idleWatch-%d", gen), func() bool {
		if !s.taskMgr.Sleep(idlePollInterval) {
			return false
		}
		if s.draining.Load() || s.drainGen.Load() != gen {
			// new work arrived, this pending disconnect is invalidated
			return false
		}

		idle += idlePollInterval
		if idle < s.cfg.idleTimeout {
			return true
		}

		if s.client.Connected() {
			s.metrics.incIdleDisconnectCount()
			s.closeLink("idle timeout")
		}

		return false
	})
	if err != nil {
		s.logger.Debug("idle watch not started", "error", err)
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic recovered: %w", err)
	}
	return fmt.Errorf("panic recovered: %v", r)
}
