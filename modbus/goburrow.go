package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goburrow/modbus"
)

// DefaultTimeout bounds every protocol request issued by the goburrow backend.
const DefaultTimeout = 1 * time.Second

// clientHandler is satisfied by both goburrow RTU and TCP client handlers.
type clientHandler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// burrowClient adapts a goburrow/modbus handler pair to the ProtocolClient
// interface. The handler survives reconnects: Connect and Close are called
// repeatedly on the same instance.
type burrowClient struct {
	mu        sync.Mutex
	handler   clientHandler
	client    modbus.Client
	slaveID   func(uint8)
	connected atomic.Bool
}

var _ ProtocolClient = (*burrowClient)(nil)

// NewTCPClient creates a Modbus TCP ProtocolClient backed by goburrow/modbus.
// A non-positive timeout falls back to DefaultTimeout.
func NewTCPClient(params TCPParams, timeout time.Duration) ProtocolClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", params.Host, params.Port))
	handler.Timeout = timeout

	return &burrowClient{
		handler: handler,
		client:  modbus.NewClient(handler),
		slaveID: func(id uint8) { handler.SlaveId = id },
	}
}

// NewRTUClient creates a Modbus RTU ProtocolClient backed by goburrow/modbus.
// Zero-valued serial settings fall back to 9600 baud, 8 data bits, 2 stop
// bits, no parity. A non-positive timeout falls back to DefaultTimeout.
func NewRTUClient(params SerialParams, timeout time.Duration) ProtocolClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	handler := modbus.NewRTUClientHandler(params.Port)
	handler.Timeout = timeout
	handler.BaudRate = params.BaudRate
	handler.DataBits = params.DataBits
	handler.StopBits = params.StopBits
	handler.Parity = params.Parity

	if handler.BaudRate == 0 {
		handler.BaudRate = 9600
	}
	if handler.DataBits == 0 {
		handler.DataBits = 8
	}
	if handler.StopBits == 0 {
		handler.StopBits = 2
	}
	if handler.Parity == "" {
		handler.Parity = "N"
	}

	return &burrowClient{
		handler: handler,
		client:  modbus.NewClient(handler),
		slaveID: func(id uint8) { handler.SlaveId = id },
	}
}

func (c *burrowClient) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return nil
	}
	if err := c.handler.Connect(); err != nil {
		return fmt.Errorf("%w: %w", ErrNoConnection, err)
	}
	c.connected.Store(true)

	return nil
}

func (c *burrowClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected.Store(false)

	return c.handler.Close()
}

func (c *burrowClient) Connected() bool {
	return c.connected.Load()
}

func (c *burrowClient) ReadCoils(address, quantity uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]byte, error) {
		return c.client.ReadCoils(address, quantity)
	}, func(data []byte) []uint16 {
		return bitsToValues(data, quantity)
	})
}

func (c *burrowClient) ReadDiscreteInputs(address, quantity uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]byte, error) {
		return c.client.ReadDiscreteInputs(address, quantity)
	}, func(data []byte) []uint16 {
		return bitsToValues(data, quantity)
	})
}

func (c *burrowClient) ReadHoldingRegisters(address, quantity uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]byte, error) {
		return c.client.ReadHoldingRegisters(address, quantity)
	}, bytesToValues)
}

func (c *burrowClient) ReadInputRegisters(address, quantity uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]byte, error) {
		return c.client.ReadInputRegisters(address, quantity)
	}, bytesToValues)
}

func (c *burrowClient) WriteCoil(address, value uint16, unitID uint8) (*Response, error) {
	// the wire format for a single coil write is 0xFF00 for on, 0x0000 for off
	coilValue := uint16(0x0000)
	if value != 0 {
		coilValue = 0xFF00
	}

	return c.call(unitID, func() ([]byte, error) {
		return c.client.WriteSingleCoil(address, coilValue)
	}, nil)
}

func (c *burrowClient) WriteRegister(address, value uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]byte, error) {
		return c.client.WriteSingleRegister(address, value)
	}, nil)
}

func (c *burrowClient) WriteCoils(address uint16, values []uint16, unitID uint8) (*Response, error) {
	quantity := uint16(len(values)) //nolint:gosec
	return c.call(unitID, func() ([]byte, error) {
		return c.client.WriteMultipleCoils(address, quantity, valuesToBits(values))
	}, nil)
}

func (c *burrowClient) WriteRegisters(address uint16, values []uint16, unitID uint8) (*Response, error) {
	quantity := uint16(len(values)) //nolint:gosec
	return c.call(unitID, func() ([]byte, error) {
		return c.client.WriteMultipleRegisters(address, quantity, valuesToBytes(values))
	}, nil)
}

// call serializes access to the handler, injects the unit identifier, and
// classifies the result: a device exception becomes Response.Err, while a
// transport failure marks the link down and is returned as the call error.
func (c *burrowClient) call(unitID uint8, op func() ([]byte, error), decode func([]byte) []uint16) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	c.slaveID(unitID)

	data, err := op()
	if err != nil {
		if _, ok := err.(*modbus.ModbusError); ok { //nolint:errorlint
			return &Response{Err: err}, nil
		}
		// transport-level failure, the link can no longer be trusted
		c.connected.Store(false)

		return nil, err
	}

	resp := &Response{}
	if decode != nil {
		resp.Values = decode(data)
	}

	return resp, nil
}

// bytesToValues converts big-endian register payload bytes to values.
func bytesToValues(data []byte) []uint16 {
	values := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		values = append(values, binary.BigEndian.Uint16(data[i:i+2]))
	}

	return values
}

// bitsToValues unpacks LSB-first bit payload bytes into one 0/1 value per
// point, truncated to the requested quantity.
func bitsToValues(data []byte, quantity uint16) []uint16 {
	values := make([]uint16, 0, quantity)
	for i := 0; i < int(quantity); i++ {
		if i/8 >= len(data) {
			break
		}
		values = append(values, uint16(data[i/8]>>(i%8)&0x01))
	}

	return values
}

// valuesToBytes packs register values into big-endian payload bytes.
func valuesToBytes(values []uint16) []byte {
	data := make([]byte, len(values)*2)
	for i, v := range values {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}

	return data
}

// valuesToBits packs 0/1 values into LSB-first bit payload bytes.
func valuesToBits(values []uint16) []byte {
	data := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v != 0 {
			data[i/8] |= 1 << (i % 8)
		}
	}

	return data
}
