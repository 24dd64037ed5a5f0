package session

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("session config is nil")

	// ErrLoggerNil indicates that a nil logger was provided.
	// A valid logger is mandatory; there is no silent fallback.
	ErrLoggerNil = errors.New("logger is nil")

	// ErrCallbackNil indicates that a nil callback was provided where one is
	// required up front, e.g. TempConnect.
	ErrCallbackNil = errors.New("callback is nil")

	// ErrInvalidHost indicates that an invalid host was provided.
	ErrInvalidHost = errors.New("invalid host")

	// ErrInvalidPort indicates that a port number outside [1, 65535] was provided.
	ErrInvalidPort = errors.New("port is out of range [1, 65535]")

	// ErrInvalidSerialPort indicates that an empty serial device path was provided.
	ErrInvalidSerialPort = errors.New("serial port path is empty")

	// ErrInvalidBaudRate indicates a non-positive baud rate.
	ErrInvalidBaudRate = errors.New("invalid baud rate, should be positive")

	// ErrInvalidDataBits indicates an invalid byte size; valid values are 7 and 8.
	ErrInvalidDataBits = errors.New("invalid data bits, should be 7 or 8")

	// ErrInvalidStopBits indicates an invalid stop bit count; valid values are 1 and 2.
	ErrInvalidStopBits = errors.New("invalid stop bits, should be 1 or 2")

	// ErrInvalidParity indicates an invalid parity mode; valid values are N, E and O.
	ErrInvalidParity = errors.New("invalid parity, should be N, E or O")

	// ErrInvalidURL indicates an unsupported transport URL.
	ErrInvalidURL = errors.New("invalid transport URL")
)

var (
	// ErrInvalidIdleTimeout indicates an idle-disconnect timeout below one second.
	ErrInvalidIdleTimeout = errors.New("idle timeout should be at least 1 second")

	// ErrInvalidReconnectInterval indicates a reconnect interval below one second.
	ErrInvalidReconnectInterval = errors.New("reconnect interval should be at least 1 second")

	// ErrInvalidSettleDelay indicates a negative settling delay.
	ErrInvalidSettleDelay = errors.New("settle delay should not be negative")

	// ErrInvalidTimeout indicates a non-positive request timeout.
	ErrInvalidTimeout = errors.New("request timeout should be positive")
)

var (
	// ErrResultTimeout indicates that ExecuteAndReturn gave up waiting.
	// The underlying action keeps running in the background; its eventual
	// result is discarded.
	ErrResultTimeout = errors.New("timed out waiting for action result")

	// ErrSessionClosed indicates that the session has been shut down.
	ErrSessionClosed = errors.New("session is closed")
)
