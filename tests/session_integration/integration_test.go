package sessionintegration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmkit/go-modbus-session/logger"
	"github.com/dmkit/go-modbus-session/modbus"
	"github.com/dmkit/go-modbus-session/session"
)

func newSession(t *testing.T, sim *modbus.Simulator, opts ...session.Option) *session.Session {
	t.Helper()

	base := []session.Option{
		session.WithSettleDelay(0),
		session.WithLogger(logger.NewSlog(logger.ErrorLevel, false)),
	}
	cfg, err := session.NewClientConfig(sim, append(base, opts...)...)
	require.NoError(t, err)

	s, err := session.NewSession(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)

	return s
}

func readRegisters(s *session.Session, address, count uint16) ([]uint16, error) {
	result, err := s.ExecuteAndReturn(func(c session.Client) (any, error) {
		return c.ReadHoldingRegisters(address, count)
	}, 2*time.Second)
	if err != nil {
		return nil, err
	}
	values, ok := result.([]uint16)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}

	return values, nil
}

func TestIntegration_MixedWorkloadStability(t *testing.T) {
	require := require.New(t)

	sim := modbus.NewSimulator()
	s := newSession(t, sim)

	const workers = 8
	const opsPerWorker = 25

	var wg sync.WaitGroup
	errCh := make(chan error, workers*opsPerWorker)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			base := uint16(w * 100)
			for i := 0; i < opsPerWorker; i++ {
				addr := base + uint16(i)
				val := uint16(w*1000 + i)
				_, err := s.ExecuteAndReturn(func(c session.Client) (any, error) {
					if err := c.WriteRegister(addr, val); err != nil {
						return nil, err
					}

					return c.ReadHoldingRegisters(addr, 1)
				}, 5*time.Second)
				if err != nil {
					errCh <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(err)
	}

	// spot-check a few written registers end to end
	for _, w := range []int{0, 3, 7} {
		values, err := readRegisters(s, uint16(w*100+10), 1)
		require.NoError(err)
		require.Equal([]uint16{uint16(w*1000 + 10)}, values)
	}

	m := s.Metrics()
	require.GreaterOrEqual(m.ActionRunCount.Load(), uint64(workers*opsPerWorker))
	require.Zero(m.ActionDropCount.Load())
	require.Equal(uint64(1), m.ConnectCount.Load())
}

func TestIntegration_TransportFaultRecovery(t *testing.T) {
	require := require.New(t)

	sim := modbus.NewSimulator()
	s := newSession(t, sim)

	_, err := s.ExecuteAndReturn(func(c session.Client) (any, error) {
		return nil, c.WriteRegister(7, 42)
	}, 2*time.Second)
	require.NoError(err)

	// next call fails at the transport level and drops the link; the retry
	// should reconnect and succeed transparently
	sim.FailNextCalls(1)

	values, err := readRegisters(s, 7, 1)
	require.NoError(err)
	require.Equal([]uint16{42}, values)

	m := s.Metrics()
	require.Equal(uint64(1), m.ActionRetryCount.Load())
	require.Zero(m.ActionDropCount.Load())
	require.Equal(2, sim.ConnectCount())
	require.True(s.State().IsConnected())
}

func TestIntegration_DeviceExceptionKeepsLink(t *testing.T) {
	require := require.New(t)

	sim := modbus.NewSimulator()
	s := newSession(t, sim)

	_, err := s.ExecuteAndReturn(func(c session.Client) (any, error) {
		return nil, c.WriteRegister(3, 9)
	}, 2*time.Second)
	require.NoError(err)

	// a device exception fails the attempt but must not tear the link down
	sim.ExceptionNextCalls(1)

	values, err := readRegisters(s, 3, 1)
	require.NoError(err)
	require.Equal([]uint16{9}, values)

	m := s.Metrics()
	require.Equal(uint64(1), m.ActionRetryCount.Load())
	require.Equal(uint64(1), m.ConnectCount.Load())
	require.Equal(1, sim.ConnectCount())
}

func TestIntegration_DoubleFaultDropsAction(t *testing.T) {
	require := require.New(t)

	sim := modbus.NewSimulator()
	s := newSession(t, sim)

	_, err := s.ExecuteAndReturn(func(c session.Client) (any, error) {
		return nil, c.WriteRegister(5, 1)
	}, 2*time.Second)
	require.NoError(err)

	sim.ExceptionNextCalls(2)

	_, err = s.ExecuteAndReturn(func(c session.Client) (any, error) {
		return c.ReadHoldingRegisters(5, 1)
	}, 300*time.Millisecond)
	require.ErrorIs(err, session.ErrResultTimeout)

	require.Eventually(func() bool {
		return s.Metrics().ActionDropCount.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// the session stays usable after the drop
	values, err := readRegisters(s, 5, 1)
	require.NoError(err)
	require.Equal([]uint16{1}, values)
}

func TestIntegration_IdleCycle(t *testing.T) {
	require := require.New(t)

	sim := modbus.NewSimulator()
	s := newSession(t, sim, session.WithIdleTimeout(1*time.Second))

	_, err := s.ExecuteAndReturn(func(c session.Client) (any, error) {
		return nil, c.WriteRegister(1, 11)
	}, 2*time.Second)
	require.NoError(err)
	require.True(s.State().IsConnected())

	require.Eventually(func() bool {
		return s.State() == session.Disconnected
	}, 3*time.Second, 50*time.Millisecond)
	require.Equal(uint64(1), s.Metrics().IdleDisconnectCount.Load())

	// new work re-establishes the link and sees the previous state
	values, err := readRegisters(s, 1, 1)
	require.NoError(err)
	require.Equal([]uint16{11}, values)
	require.Equal(2, sim.ConnectCount())
}

func TestIntegration_TempConnectRoundTrip(t *testing.T) {
	require := require.New(t)

	sim := modbus.NewSimulator()
	cfg, err := session.NewClientConfig(sim,
		session.WithSettleDelay(0),
		session.WithLogger(logger.NewSlog(logger.ErrorLevel, false)),
	)
	require.NoError(err)

	_, err = session.TempConnect(context.Background(), cfg, func(c session.Client) (any, error) {
		return nil, c.WriteRegisters(100, []uint16{1, 2, 3})
	})
	require.NoError(err)
	require.False(sim.Connected())

	result, err := session.TempConnect(context.Background(), cfg, func(c session.Client) (any, error) {
		return c.ReadHoldingRegisters(100, 3)
	})
	require.NoError(err)
	require.Equal([]uint16{1, 2, 3}, result)
	require.False(sim.Connected())
	require.Equal(2, sim.ConnectCount())
}

func TestIntegration_ShutdownLeavesLinkClosed(t *testing.T) {
	require := require.New(t)

	sim := modbus.NewSimulator()
	s := newSession(t, sim)

	for i := 0; i < 10; i++ {
		addr := uint16(i)
		s.Execute(func(c session.Client) error {
			return c.WriteRegister(addr, addr)
		})
	}

	require.Eventually(func() bool {
		return s.Metrics().ActionRunCount.Load() == 10
	}, 3*time.Second, 10*time.Millisecond)

	s.Shutdown()
	require.False(sim.Connected())
	require.Equal(session.Disconnected, s.State())

	// late submissions are ignored, not queued
	s.Execute(func(c session.Client) error {
		return c.WriteRegister(99, 99)
	})
	time.Sleep(50 * time.Millisecond)
	require.Equal(uint64(10), s.Metrics().ActionRunCount.Load())
}
