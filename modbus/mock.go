package modbus

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient is a testify-based ProtocolClient mock for asserting adapter
// interactions in tests.
type MockClient struct {
	mock.Mock
}

var _ ProtocolClient = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockClient) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockClient) ReadCoils(address, quantity uint16, unitID uint8) (*Response, error) {
	args := m.Called(address, quantity, unitID)
	return respArg(args.Get(0)), args.Error(1)
}

func (m *MockClient) ReadDiscreteInputs(address, quantity uint16, unitID uint8) (*Response, error) {
	args := m.Called(address, quantity, unitID)
	return respArg(args.Get(0)), args.Error(1)
}

func (m *MockClient) ReadHoldingRegisters(address, quantity uint16, unitID uint8) (*Response, error) {
	args := m.Called(address, quantity, unitID)
	return respArg(args.Get(0)), args.Error(1)
}

func (m *MockClient) ReadInputRegisters(address, quantity uint16, unitID uint8) (*Response, error) {
	args := m.Called(address, quantity, unitID)
	return respArg(args.Get(0)), args.Error(1)
}

func (m *MockClient) WriteCoil(address, value uint16, unitID uint8) (*Response, error) {
	args := m.Called(address, value, unitID)
	return respArg(args.Get(0)), args.Error(1)
}

func (m *MockClient) WriteRegister(address, value uint16, unitID uint8) (*Response, error) {
	args := m.Called(address, value, unitID)
	return respArg(args.Get(0)), args.Error(1)
}

func (m *MockClient) WriteCoils(address uint16, values []uint16, unitID uint8) (*Response, error) {
	args := m.Called(address, values, unitID)
	return respArg(args.Get(0)), args.Error(1)
}

func (m *MockClient) WriteRegisters(address uint16, values []uint16, unitID uint8) (*Response, error) {
	args := m.Called(address, values, unitID)
	return respArg(args.Get(0)), args.Error(1)
}

func respArg(v any) *Response {
	if v == nil {
		return nil
	}
	resp, _ := v.(*Response)

	return resp
}
