package session

import (
	"github.com/dmkit/go-modbus-session/modbus"
)

// Client is the capability facade handed to every queued callback.
//
// It exposes only the eight register operations, bound to the owning session;
// callbacks cannot reach the queue or connection internals through it. Reads
// degrade to a nil slice plus an error on failure, writes to a non-nil error.
// No call ever panics past the facade.
type Client interface {
	// ReadCoils reads count coil states starting at address.
	// Returned values are normalized to 0 or 1.
	ReadCoils(address, count uint16) ([]uint16, error)
	// ReadDiscreteInputs reads count discrete input states starting at address.
	// Returned values are normalized to 0 or 1.
	ReadDiscreteInputs(address, count uint16) ([]uint16, error)
	// ReadHoldingRegisters reads count holding registers starting at address.
	ReadHoldingRegisters(address, count uint16) ([]uint16, error)
	// ReadInputRegisters reads count input registers starting at address.
	ReadInputRegisters(address, count uint16) ([]uint16, error)

	// WriteCoil writes a single coil at address; any non-zero value sets it.
	WriteCoil(address, value uint16) error
	// WriteRegister writes a single holding register at address.
	WriteRegister(address, value uint16) error
	// WriteCoils writes multiple coils starting at address.
	WriteCoils(address uint16, values []uint16) error
	// WriteRegisters writes multiple holding registers starting at address.
	WriteRegisters(address uint16, values []uint16) error
}

// regClient is the facade implementation. It is created once per session and
// shared by all actions; it holds no state of its own.
type regClient struct {
	session *Session
}

var _ Client = (*regClient)(nil)

func (c *regClient) ReadCoils(address, count uint16) ([]uint16, error) {
	return c.session.readOp("ReadCoils", address, count, c.session.client.ReadCoils)
}

func (c *regClient) ReadDiscreteInputs(address, count uint16) ([]uint16, error) {
	return c.session.readOp("ReadDiscreteInputs", address, count, c.session.client.ReadDiscreteInputs)
}

func (c *regClient) ReadHoldingRegisters(address, count uint16) ([]uint16, error) {
	return c.session.readOp("ReadHoldingRegisters", address, count, c.session.client.ReadHoldingRegisters)
}

func (c *regClient) ReadInputRegisters(address, count uint16) ([]uint16, error) {
	return c.session.readOp("ReadInputRegisters", address, count, c.session.client.ReadInputRegisters)
}

func (c *regClient) WriteCoil(address, value uint16) error {
	return c.session.writeOp("WriteCoil", address, []uint16{value}, func(unitID uint8) (*modbus.Response, error) {
		return c.session.client.WriteCoil(address, value, unitID)
	})
}

func (c *regClient) WriteRegister(address, value uint16) error {
	return c.session.writeOp("WriteRegister", address, []uint16{value}, func(unitID uint8) (*modbus.Response, error) {
		return c.session.client.WriteRegister(address, value, unitID)
	})
}

func (c *regClient) WriteCoils(address uint16, values []uint16) error {
	return c.session.writeOp("WriteCoils", address, values, func(unitID uint8) (*modbus.Response, error) {
		return c.session.client.WriteCoils(address, values, unitID)
	})
}

func (c *regClient) WriteRegisters(address uint16, values []uint16) error {
	return c.session.writeOp("WriteRegisters", address, values, func(unitID uint8) (*modbus.Response, error) {
		return c.session.client.WriteRegisters(address, values, unitID)
	})
}
