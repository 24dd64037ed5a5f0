package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmkit/go-modbus-session/logger"
	"github.com/dmkit/go-modbus-session/modbus"
)

func newSimConfig(t *testing.T, sim *modbus.Simulator) *Config {
	t.Helper()

	cfg, err := NewClientConfig(sim,
		WithSettleDelay(0),
		WithLogger(logger.NewSlog(logger.ErrorLevel, false)),
	)
	require.NoError(t, err)

	return cfg
}

func TestTempConnect(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	t.Run("Runs Callback And Closes", func(t *testing.T) {
		sim := modbus.NewSimulator()

		result, err := TempConnect(ctx, newSimConfig(t, sim), func(c Client) (any, error) {
			if werr := c.WriteRegister(1, 11); werr != nil {
				return nil, werr
			}
			return c.ReadHoldingRegisters(1, 1)
		})
		require.NoError(err)
		require.Equal([]uint16{11}, result)

		// the link never survives a temp session
		require.False(sim.Connected())
		require.Equal(1, sim.ConnectCount())
	})

	t.Run("Connect Failure Is Returned", func(t *testing.T) {
		sim := modbus.NewSimulator()
		sim.FailNextConnects(1)

		_, err := TempConnect(ctx, newSimConfig(t, sim), func(c Client) (any, error) {
			t.Fatal("callback must not run without a connection")
			return nil, nil
		})
		require.ErrorIs(err, modbus.ErrNoConnection)
	})

	t.Run("Callback Error Still Closes", func(t *testing.T) {
		sim := modbus.NewSimulator()
		errBoom := errors.New("boom")

		result, err := TempConnect(ctx, newSimConfig(t, sim), func(c Client) (any, error) {
			return nil, errBoom
		})
		require.ErrorIs(err, errBoom)
		require.Nil(result)
		require.False(sim.Connected())
	})

	t.Run("Callback Panic Still Closes", func(t *testing.T) {
		sim := modbus.NewSimulator()

		result, err := TempConnect(ctx, newSimConfig(t, sim), func(c Client) (any, error) {
			panic("script bug")
		})
		require.Error(err)
		require.Nil(result)
		require.False(sim.Connected())
	})

	t.Run("Nil Callback Rejected", func(t *testing.T) {
		sim := modbus.NewSimulator()
		_, err := TempConnect(ctx, newSimConfig(t, sim), nil)
		require.ErrorIs(err, ErrCallbackNil)
	})
}
