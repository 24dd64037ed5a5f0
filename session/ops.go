package session

import (
	"time"

	"github.com/dmkit/go-modbus-session/modbus"
)

// readCall is the shape shared by the four adapter read operations.
type readCall func(address, quantity uint16, unitID uint8) (*modbus.Response, error)

// writeCall wraps one adapter write operation with its parameters bound.
type writeCall func(unitID uint8) (*modbus.Response, error)

// readOp executes one read operation against the adapter, injecting the
// configured unit identifier. On success it returns the response values
// (an empty slice when the response carries none); a count mismatch is logged
// as a warning but the received values are still returned.
//
// Failures are classified and logged here and reported as a degraded
// (nil, error) result; they never escape as a panic.
func (s *Session) readOp(name string, address, count uint16, call readCall) ([]uint16, error) {
	resp, err := s.guardOp(name, func() (*modbus.Response, error) {
		return call(address, count, s.cfg.unitID)
	}, "address", address, "count", count)
	if err != nil {
		return nil, err
	}

	values := resp.Values
	if values == nil {
		values = []uint16{}
	}
	if len(values) != int(count) {
		s.logger.Warn("register count mismatch",
			"action", name, "address", address, "expected", count, "got", len(values))
	}

	s.settle()

	return values, nil
}

// writeOp executes one write operation against the adapter. The returned
// error is nil iff the adapter's response indicates no error.
func (s *Session) writeOp(name string, address uint16, values []uint16, call writeCall) error {
	_, err := s.guardOp(name, func() (*modbus.Response, error) {
		return call(s.cfg.unitID)
	}, "address", address, "values", values)
	if err != nil {
		return err
	}

	s.settle()

	return nil
}

// guardOp invokes one adapter call with panic protection and error
// classification: an error response, an error return or a panic all degrade
// to a logged, returned error.
func (s *Session) guardOp(name string, call func() (*modbus.Response, error), keysAndValues ...any) (resp *modbus.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
			s.logOpError(name, err, keysAndValues...)
		}
	}()

	resp, err = call()
	if err != nil {
		s.logOpError(name, err, keysAndValues...)
		return nil, err
	}
	if resp.IsError() {
		err = resp.Err
		if err == nil {
			err = modbus.ErrNotConnected
		}
		s.logOpError(name, err, keysAndValues...)

		return nil, err
	}

	return resp, nil
}

// logOpError logs a failed operation with its context. The error-logging
// toggle selects the level: errors are demoted to debug when disabled so a
// flaky bus does not flood production logs.
func (s *Session) logOpError(name string, err error, keysAndValues ...any) {
	kv := append([]any{"action", name, "error", err}, keysAndValues...)
	if s.cfg.errorLogging {
		s.logger.Error("register operation failed", kv...)
	} else {
		s.logger.Debug("register operation failed", kv...)
	}
}

// settle applies the configured settling delay after a successful call.
func (s *Session) settle() {
	if s.cfg.settleDelay > 0 {
		time.Sleep(s.cfg.settleDelay)
	}
}
