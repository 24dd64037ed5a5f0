package modbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadCodec(t *testing.T) {
	require := require.New(t)

	t.Run("Register Bytes", func(t *testing.T) {
		values := []uint16{0x0102, 0xFFFF, 0}
		data := valuesToBytes(values)
		require.Equal([]byte{0x01, 0x02, 0xFF, 0xFF, 0x00, 0x00}, data)
		require.Equal(values, bytesToValues(data))
	})

	t.Run("Coil Bits", func(t *testing.T) {
		values := []uint16{1, 0, 1, 1, 0, 0, 0, 0, 1}
		data := valuesToBits(values)
		require.Equal([]byte{0x0D, 0x01}, data)
		require.Equal(values, bitsToValues(data, 9))
	})

	t.Run("Bit Truncation", func(t *testing.T) {
		// quantity larger than the payload carries
		require.Equal([]uint16{1, 1, 0, 0, 0, 0, 0, 0}, bitsToValues([]byte{0x03}, 16))
		// quantity smaller than a full byte
		require.Equal([]uint16{1, 1}, bitsToValues([]byte{0x03}, 2))
	})

	t.Run("Odd Register Payload", func(t *testing.T) {
		require.Equal([]uint16{0x0102}, bytesToValues([]byte{0x01, 0x02, 0x03}))
	})
}

func TestBurrowClient_NotConnected(t *testing.T) {
	require := require.New(t)

	client := NewTCPClient(TCPParams{Host: "127.0.0.1", Port: 5020}, 0)
	require.False(client.Connected())

	_, err := client.ReadCoils(0, 1, DefaultUnitID)
	require.ErrorIs(err, ErrNotConnected)

	// closing a never-opened client is a no-op
	require.NoError(client.Close())
}

func TestBurrowClient_ConnectCancelled(t *testing.T) {
	require := require.New(t)

	client := NewRTUClient(SerialParams{Port: "/dev/null"}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(client.Connect(ctx))
	require.False(client.Connected())
}
