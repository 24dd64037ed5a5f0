package modbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSimException is the device exception returned by a Simulator configured
// to fail calls with an exception response.
var ErrSimException = errors.New("simulated device exception")

// ErrSimTransport is the transport failure returned by a Simulator configured
// to fail calls at the link level.
var ErrSimTransport = errors.New("simulated transport failure")

// Simulator is an in-memory ProtocolClient backed by four register tables.
// It behaves as a faithful device: writes to coils and holding registers are
// observable by subsequent reads.
//
// Fault injection knobs make it suitable for exercising the session layer's
// retry and reconnect policies without hardware.
type Simulator struct {
	mu       sync.Mutex
	coils    map[uint16]uint16
	discrete map[uint16]uint16
	holding  map[uint16]uint16
	input    map[uint16]uint16

	connected atomic.Bool

	// fault injection, consumed one call at a time
	failConnects   int
	failCalls      int
	exceptionCalls int

	callDelay time.Duration

	connectCount atomic.Int32
	callCount    atomic.Int32
}

var _ ProtocolClient = (*Simulator)(nil)

// NewSimulator creates an empty Simulator. All registers read as zero until
// written or seeded.
func NewSimulator() *Simulator {
	return &Simulator{
		coils:    make(map[uint16]uint16),
		discrete: make(map[uint16]uint16),
		holding:  make(map[uint16]uint16),
		input:    make(map[uint16]uint16),
	}
}

// SeedInput presets input register values.
func (s *Simulator) SeedInput(address uint16, values ...uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range values {
		s.input[address+uint16(i)] = v //nolint:gosec
	}
}

// SeedDiscrete presets discrete input values (0 or 1).
func (s *Simulator) SeedDiscrete(address uint16, values ...uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range values {
		s.discrete[address+uint16(i)] = normalizeBit(v) //nolint:gosec
	}
}

// FailNextConnects makes the next n Connect calls fail.
func (s *Simulator) FailNextConnects(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failConnects = n
}

// FailNextCalls makes the next n register operations fail at the transport
// level, dropping the simulated link.
func (s *Simulator) FailNextCalls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCalls = n
}

// ExceptionNextCalls makes the next n register operations return a device
// exception response. The link stays up.
func (s *Simulator) ExceptionNextCalls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptionCalls = n
}

// SetCallDelay makes every register operation take at least d.
func (s *Simulator) SetCallDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callDelay = d
}

// ConnectCount returns the number of successful Connect calls.
func (s *Simulator) ConnectCount() int {
	return int(s.connectCount.Load())
}

// CallCount returns the number of register operations attempted.
func (s *Simulator) CallCount() int {
	return int(s.callCount.Load())
}

// DropLink simulates an unexpected link loss.
func (s *Simulator) DropLink() {
	s.connected.Store(false)
}

func (s *Simulator) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failConnects > 0 {
		s.failConnects--
		return ErrNoConnection
	}

	s.connected.Store(true)
	s.connectCount.Add(1)

	return nil
}

func (s *Simulator) Close() error {
	s.connected.Store(false)
	return nil
}

func (s *Simulator) Connected() bool {
	return s.connected.Load()
}

func (s *Simulator) ReadCoils(address, quantity uint16, unitID uint8) (*Response, error) {
	return s.read(s.coils, address, quantity)
}

func (s *Simulator) ReadDiscreteInputs(address, quantity uint16, unitID uint8) (*Response, error) {
	return s.read(s.discrete, address, quantity)
}

func (s *Simulator) ReadHoldingRegisters(address, quantity uint16, unitID uint8) (*Response, error) {
	return s.read(s.holding, address, quantity)
}

func (s *Simulator) ReadInputRegisters(address, quantity uint16, unitID uint8) (*Response, error) {
	return s.read(s.input, address, quantity)
}

func (s *Simulator) WriteCoil(address, value uint16, unitID uint8) (*Response, error) {
	return s.write(s.coils, address, normalizeBit(value))
}

func (s *Simulator) WriteRegister(address, value uint16, unitID uint8) (*Response, error) {
	return s.write(s.holding, address, value)
}

func (s *Simulator) WriteCoils(address uint16, values []uint16, unitID uint8) (*Response, error) {
	bits := make([]uint16, len(values))
	for i, v := range values {
		bits[i] = normalizeBit(v)
	}

	return s.write(s.coils, address, bits...)
}

func (s *Simulator) WriteRegisters(address uint16, values []uint16, unitID uint8) (*Response, error) {
	return s.write(s.holding, address, values...)
}

func (s *Simulator) read(table map[uint16]uint16, address, quantity uint16) (*Response, error) {
	if err := s.beforeCall(); err != nil {
		return s.classify(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values := make([]uint16, quantity)
	for i := range values {
		values[i] = table[address+uint16(i)] //nolint:gosec
	}

	return &Response{Values: values}, nil
}

func (s *Simulator) write(table map[uint16]uint16, address uint16, values ...uint16) (*Response, error) {
	if err := s.beforeCall(); err != nil {
		return s.classify(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range values {
		table[address+uint16(i)] = v //nolint:gosec
	}

	return &Response{}, nil
}

func (s *Simulator) beforeCall() error {
	s.callCount.Add(1)

	s.mu.Lock()
	delay := s.callDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	if !s.connected.Load() {
		return ErrNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCalls > 0 {
		s.failCalls--
		return ErrSimTransport
	}
	if s.exceptionCalls > 0 {
		s.exceptionCalls--
		return ErrSimException
	}

	return nil
}

func (s *Simulator) classify(err error) (*Response, error) {
	if errors.Is(err, ErrSimException) {
		return &Response{Err: err}, nil
	}
	if errors.Is(err, ErrSimTransport) {
		s.connected.Store(false)
	}

	return nil, err
}

func normalizeBit(v uint16) uint16 {
	if v != 0 {
		return 1
	}
	return 0
}
