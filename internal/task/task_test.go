package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmkit/go-modbus-session/logger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logger.MockLogger {
	mockLogger := logger.NewMockLogger()
	mockLogger.On("Debug", mock.Anything, mock.Anything).Return()
	mockLogger.On("Info", mock.Anything, mock.Anything).Return()
	mockLogger.On("Warn", mock.Anything, mock.Anything).Return()
	mockLogger.On("Error", mock.Anything, mock.Anything).Return()

	return mockLogger
}

func TestManager_StartAndStop(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := NewManager(ctx, newTestLogger())

	var runs atomic.Int32
	err := mgr.Start("counter", func() bool {
		runs.Add(1)
		time.Sleep(time.Millisecond)
		return true
	})
	require.NoError(err)
	require.Equal(1, mgr.Count())

	time.Sleep(20 * time.Millisecond)
	require.Greater(runs.Load(), int32(0))

	mgr.Stop()
	mgr.Wait()
	require.Equal(0, mgr.Count())
}

func TestManager_TaskReturnsFalse(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), newTestLogger())

	done := make(chan struct{})
	err := mgr.Start("oneshot", func() bool {
		close(done)
		return false
	})
	require.NoError(err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}

	mgr.Stop()
	mgr.Wait()
	require.Equal(0, mgr.Count())
}

func TestManager_PanicRecovery(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), newTestLogger())

	err := mgr.Start("panicky", func() bool {
		panic("boom")
	})
	require.NoError(err)

	mgr.Stop()
	mgr.Wait()
	require.Equal(0, mgr.Count())
}

func TestManager_NilTaskFunc(t *testing.T) {
	mgr := NewManager(context.Background(), newTestLogger())
	require.Error(t, mgr.Start("nil", nil))
}

func TestManager_StartAfterStop(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), newTestLogger())
	mgr.Stop()

	err := mgr.Start("late", func() bool { return false })
	require.Error(err)

	// Wait re-arms the manager, starting must work again.
	mgr.Wait()
	require.NoError(mgr.Start("relaunched", func() bool { return false }))
	mgr.Stop()
	mgr.Wait()
}

func TestManager_Sleep(t *testing.T) {
	require := require.New(t)

	mgr := NewManager(context.Background(), newTestLogger())
	require.True(mgr.Sleep(time.Millisecond))

	mgr.Stop()
	require.False(mgr.Sleep(time.Second))
}
