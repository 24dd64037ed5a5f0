package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmkit/go-modbus-session/logger"
	"github.com/dmkit/go-modbus-session/modbus"
)

// newSimSession builds a session over a fresh Simulator with test-friendly
// timings: no settling delay and a quiet logger.
func newSimSession(t *testing.T, opts ...Option) (*Session, *modbus.Simulator) {
	t.Helper()

	sim := modbus.NewSimulator()
	opts = append([]Option{
		WithSettleDelay(0),
		WithLogger(logger.NewSlog(logger.ErrorLevel, false)),
	}, opts...)

	cfg, err := NewClientConfig(sim, opts...)
	require.NoError(t, err)

	s, err := NewSession(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	return s, sim
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestNewSession(t *testing.T) {
	require := require.New(t)

	t.Run("Nil Config", func(t *testing.T) {
		_, err := NewSession(context.Background(), nil)
		require.ErrorIs(err, ErrConfigNil)
	})

	t.Run("Starts Disconnected", func(t *testing.T) {
		s, sim := newSimSession(t)
		require.Equal(Disconnected, s.State())
		require.False(s.Connected())
		require.Equal(0, sim.ConnectCount())
	})
}

func TestSession_ConnectClose(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	t.Run("Connect Then Close", func(t *testing.T) {
		s, sim := newSimSession(t)

		s.Connect(ctx)
		require.Equal(Connected, s.State())
		require.Equal(1, sim.ConnectCount())

		// idempotent: second connect is a warning, not a new attempt
		s.Connect(ctx)
		require.Equal(1, sim.ConnectCount())

		s.Close()
		require.Equal(Disconnected, s.State())
		require.Equal(uint64(1), s.Metrics().DisconnectCount.Load())
	})

	t.Run("Close Is Idempotent", func(t *testing.T) {
		s, _ := newSimSession(t)
		s.Connect(ctx)

		s.Close()
		s.Close()
		s.Close()

		// disconnect transition announced at most once
		require.Equal(uint64(1), s.Metrics().DisconnectCount.Load())
	})

	t.Run("Close Without Connect", func(t *testing.T) {
		s, _ := newSimSession(t)
		s.Close()
		require.Equal(uint64(0), s.Metrics().DisconnectCount.Load())
	})

	t.Run("Connect Failure Observed Via State", func(t *testing.T) {
		s, sim := newSimSession(t)
		sim.FailNextConnects(1)

		s.Connect(ctx)
		require.Equal(Disconnected, s.State())
	})
}

func TestSession_StateDerivedFromAdapter(t *testing.T) {
	require := require.New(t)

	s, sim := newSimSession(t)
	s.Connect(context.Background())
	require.True(s.Connected())

	// link loss shows up immediately, no duplicated state to diverge
	sim.DropLink()
	require.Equal(Disconnected, s.State())
}

func TestSession_IdleDisconnect(t *testing.T) {
	require := require.New(t)

	s, sim := newSimSession(t, WithIdleTimeout(time.Second))

	s.Execute(func(c Client) error {
		return c.WriteRegister(0, 42)
	})

	waitFor(t, time.Second, func() bool { return s.Connected() })
	require.Equal(1, sim.ConnectCount())

	// no new work: the idle window elapses and the link is released
	waitFor(t, 3*time.Second, func() bool { return !s.Connected() })
	require.Equal(uint64(1), s.Metrics().IdleDisconnectCount.Load())

	// the next action triggers exactly one reconnect before it runs
	done := make(chan []uint16, 1)
	s.Execute(func(c Client) error {
		values, err := c.ReadHoldingRegisters(0, 1)
		done <- values
		return err
	})

	select {
	case values := <-done:
		require.Equal([]uint16{42}, values)
	case <-time.After(2 * time.Second):
		t.Fatal("action did not run after idle disconnect")
	}
	require.Equal(2, sim.ConnectCount())
}

func TestSession_IdleWatchInvalidatedByNewWork(t *testing.T) {
	require := require.New(t)

	s, sim := newSimSession(t, WithIdleTimeout(time.Second))

	for i := 0; i < 4; i++ {
		s.Execute(func(c Client) error {
			return c.WriteRegister(0, 1)
		})
		time.Sleep(400 * time.Millisecond)
		require.True(s.Connected(), "link must stay up while work keeps arriving")
	}

	require.Equal(1, sim.ConnectCount())
	require.Equal(uint64(0), s.Metrics().IdleDisconnectCount.Load())
}

func TestSession_ShutdownRejectsNewWork(t *testing.T) {
	require := require.New(t)

	s, sim := newSimSession(t)
	s.Shutdown()

	s.Execute(func(c Client) error {
		return c.WriteRegister(0, 1)
	})

	time.Sleep(50 * time.Millisecond)
	require.Equal(0, sim.CallCount())

	_, err := s.ExecuteAndReturn(func(c Client) (any, error) {
		return c.ReadHoldingRegisters(0, 1)
	}, time.Second)
	require.ErrorIs(err, ErrSessionClosed)
}
