package modbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	svmodbus "github.com/simonvetter/modbus"
)

// vetterClient adapts a simonvetter/modbus ModbusClient to the ProtocolClient
// interface. The backend is configured with a transport URL, e.g.
// tcp://hostname:502, rtu:///dev/ttyUSB0 or rtuovertcp://hostname:502.
type vetterClient struct {
	mu        sync.Mutex
	client    *svmodbus.ModbusClient
	connected atomic.Bool
}

var _ ProtocolClient = (*vetterClient)(nil)

// NewURLClient creates a ProtocolClient backed by simonvetter/modbus from a
// transport URL. Serial line settings are taken from params when the URL
// selects an RTU transport. A non-positive timeout falls back to
// DefaultTimeout.
func NewURLClient(url string, params SerialParams, timeout time.Duration) (ProtocolClient, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg := &svmodbus.ClientConfiguration{
		URL:     url,
		Timeout: timeout,
	}

	if params.BaudRate > 0 {
		cfg.Speed = uint(params.BaudRate)
	}
	if params.DataBits > 0 {
		cfg.DataBits = uint(params.DataBits)
	}
	if params.StopBits > 0 {
		cfg.StopBits = uint(params.StopBits)
	}
	switch params.Parity {
	case "", "N":
		cfg.Parity = svmodbus.PARITY_NONE
	case "E":
		cfg.Parity = svmodbus.PARITY_EVEN
	case "O":
		cfg.Parity = svmodbus.PARITY_ODD
	default:
		return nil, errors.New("invalid parity, should be N, E or O")
	}

	client, err := svmodbus.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &vetterClient{client: client}, nil
}

func (c *vetterClient) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return nil
	}
	if err := c.client.Open(); err != nil {
		return errors.Join(ErrNoConnection, err)
	}
	c.connected.Store(true)

	return nil
}

func (c *vetterClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected.Swap(false) {
		return nil
	}

	return c.client.Close()
}

func (c *vetterClient) Connected() bool {
	return c.connected.Load()
}

func (c *vetterClient) ReadCoils(address, quantity uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]uint16, error) {
		bits, err := c.client.ReadCoils(address, quantity)
		return boolsToValues(bits), err
	})
}

func (c *vetterClient) ReadDiscreteInputs(address, quantity uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]uint16, error) {
		bits, err := c.client.ReadDiscreteInputs(address, quantity)
		return boolsToValues(bits), err
	})
}

func (c *vetterClient) ReadHoldingRegisters(address, quantity uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]uint16, error) {
		return c.client.ReadRegisters(address, quantity, svmodbus.HOLDING_REGISTER)
	})
}

func (c *vetterClient) ReadInputRegisters(address, quantity uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]uint16, error) {
		return c.client.ReadRegisters(address, quantity, svmodbus.INPUT_REGISTER)
	})
}

func (c *vetterClient) WriteCoil(address, value uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]uint16, error) {
		return nil, c.client.WriteCoil(address, value != 0)
	})
}

func (c *vetterClient) WriteRegister(address, value uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]uint16, error) {
		return nil, c.client.WriteRegister(address, value)
	})
}

func (c *vetterClient) WriteCoils(address uint16, values []uint16, unitID uint8) (*Response, error) {
	bits := make([]bool, len(values))
	for i, v := range values {
		bits[i] = v != 0
	}

	return c.call(unitID, func() ([]uint16, error) {
		return nil, c.client.WriteCoils(address, bits)
	})
}

func (c *vetterClient) WriteRegisters(address uint16, values []uint16, unitID uint8) (*Response, error) {
	return c.call(unitID, func() ([]uint16, error) {
		return nil, c.client.WriteRegisters(address, values)
	})
}

// call serializes access to the backend, injects the unit identifier, and
// classifies failures the same way the goburrow backend does.
func (c *vetterClient) call(unitID uint8, op func() ([]uint16, error)) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	if err := c.client.SetUnitId(unitID); err != nil {
		return nil, err
	}

	values, err := op()
	if err != nil {
		if isDeviceException(err) {
			return &Response{Err: err}, nil
		}
		c.connected.Store(false)

		return nil, err
	}

	return &Response{Values: values}, nil
}

// isDeviceException reports whether err is a Modbus exception response from
// the remote unit rather than a transport failure.
func isDeviceException(err error) bool {
	for _, exception := range []error{
		svmodbus.ErrIllegalFunction,
		svmodbus.ErrIllegalDataAddress,
		svmodbus.ErrIllegalDataValue,
		svmodbus.ErrServerDeviceFailure,
		svmodbus.ErrAcknowledge,
		svmodbus.ErrServerDeviceBusy,
		svmodbus.ErrMemoryParityError,
		svmodbus.ErrGWPathUnavailable,
		svmodbus.ErrGWTargetFailedToRespond,
	} {
		if errors.Is(err, exception) {
			return true
		}
	}

	return false
}

func boolsToValues(bits []bool) []uint16 {
	if bits == nil {
		return nil
	}
	values := make([]uint16, len(bits))
	for i, b := range bits {
		if b {
			values[i] = 1
		}
	}

	return values
}
