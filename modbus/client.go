// Package modbus defines the protocol client adapter consumed by the session
// layer, plus concrete backends: goburrow/modbus (TCP and serial RTU),
// simonvetter/modbus (URL-configured), an in-memory Simulator for tests, and
// a testify MockClient.
//
// The session core never talks to a protocol library directly; it owns one
// ProtocolClient for its whole lifetime and only ever calls Connect and Close
// on it across reconnects.
package modbus

import (
	"context"
	"errors"
)

// Default protocol-level settings shared by all backends.
const (
	// DefaultUnitID is the unit (slave) identifier used when none is configured.
	DefaultUnitID uint8 = 1
)

var (
	// ErrNotConnected indicates that an operation was attempted on a closed link.
	ErrNotConnected = errors.New("client is not connected")

	// ErrNoConnection indicates that a connection attempt did not establish a link.
	ErrNoConnection = errors.New("no connection established")
)

// Response is the outcome of a single register operation.
//
// Err carries a device-level exception (an error response from the remote
// unit). Transport-level failures are reported through the operation's error
// return instead.
type Response struct {
	// Values holds the returned register values for read operations.
	// Coil and discrete-input reads are normalized to one value per point,
	// 0 or 1.
	Values []uint16

	// Err is the device exception carried by the response, if any.
	Err error
}

// IsError reports whether the response indicates a failed operation.
func (r *Response) IsError() bool {
	return r == nil || r.Err != nil
}

// ProtocolClient is the transport adapter owned by a session.
//
// Implementations encapsulate PDU encoding, framing and socket/serial I/O.
// Each register operation takes the unit identifier of the target device on
// the shared link.
type ProtocolClient interface {
	// Connect establishes the physical link. It is safe to call again after
	// Close; implementations must reuse their internal transport rather than
	// requiring a new client instance.
	Connect(ctx context.Context) error

	// Close releases the physical link. Closing an already-closed client is
	// a no-op.
	Close() error

	// Connected reports the link liveness.
	Connected() bool

	ReadCoils(address, quantity uint16, unitID uint8) (*Response, error)
	ReadDiscreteInputs(address, quantity uint16, unitID uint8) (*Response, error)
	ReadHoldingRegisters(address, quantity uint16, unitID uint8) (*Response, error)
	ReadInputRegisters(address, quantity uint16, unitID uint8) (*Response, error)

	WriteCoil(address, value uint16, unitID uint8) (*Response, error)
	WriteRegister(address, value uint16, unitID uint8) (*Response, error)
	WriteCoils(address uint16, values []uint16, unitID uint8) (*Response, error)
	WriteRegisters(address uint16, values []uint16, unitID uint8) (*Response, error)
}

// SerialParams holds the serial line settings for an RTU link.
type SerialParams struct {
	// Port is the serial device path, e.g. /dev/ttyUSB0.
	Port string
	// BaudRate is the serial bus speed in bps. Defaults to 9600.
	BaudRate int
	// DataBits is the number of bits per character, 7 or 8. Defaults to 8.
	DataBits int
	// StopBits is the number of stop bits, 1 or 2. Defaults to 2.
	StopBits int
	// Parity is the parity mode: "N", "E" or "O". Defaults to "N".
	Parity string
}

// TCPParams holds the network settings for a Modbus TCP link.
type TCPParams struct {
	Host string
	Port int
}
