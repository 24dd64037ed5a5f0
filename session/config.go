package session

import (
	"net"
	"strings"
	"time"

	"github.com/dmkit/go-modbus-session/logger"
	"github.com/dmkit/go-modbus-session/modbus"
)

// Default values applied by the config constructors.
const (
	// DefaultIdleTimeout is the idle window after which a drained session
	// releases its connection.
	DefaultIdleTimeout = 20 * time.Second

	// DefaultSettleDelay is the pause applied after each successful register
	// operation to respect bus timing between consecutive requests.
	DefaultSettleDelay = 3 * time.Millisecond

	// DefaultReconnectInterval is the pause between connection attempts when
	// the link cannot be established.
	DefaultReconnectInterval = 5 * time.Second

	// DefaultResultTimeout is the wait applied by ExecuteAndReturn when the
	// caller passes a non-positive timeout.
	DefaultResultTimeout = 1500 * time.Millisecond
)

// Config carries the session parameters consumed by NewSession and
// TempConnect. Create it with NewSerialConfig, NewTCPConfig, NewURLConfig or
// NewClientConfig, and customize it with the WithXXX functional options.
type Config struct {
	// exactly one source for the protocol client
	client modbus.ProtocolClient
	url    string
	serial *modbus.SerialParams
	tcp    *modbus.TCPParams

	timeout           time.Duration
	idleTimeout       time.Duration
	settleDelay       time.Duration
	reconnectInterval time.Duration
	errorLogging      bool
	nameTag           string
	unitID            uint8
	logger            logger.Logger
}

// Option represents a functional option for configuring a Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error { return o.applyFunc(cfg) }

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

func newConfig(opts []Option) (*Config, error) {
	cfg := &Config{
		timeout:           modbus.DefaultTimeout,
		idleTimeout:       DefaultIdleTimeout,
		settleDelay:       DefaultSettleDelay,
		reconnectInterval: DefaultReconnectInterval,
		unitID:            modbus.DefaultUnitID,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewSerialConfig creates a session configuration for a serial RTU link on
// the given device path, e.g. /dev/ttyUSB0.
//
// Line settings default to 9600 baud, 8 data bits, 2 stop bits, no parity.
func NewSerialConfig(port string, opts ...Option) (*Config, error) {
	if port == "" {
		return nil, ErrInvalidSerialPort
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if cfg.serial == nil {
		cfg.serial = &modbus.SerialParams{}
	}
	cfg.serial.Port = port

	return cfg, nil
}

// NewTCPConfig creates a session configuration for a Modbus TCP link.
func NewTCPConfig(host string, port int, opts ...Option) (*Config, error) {
	if host == "" {
		return nil, ErrInvalidHost
	}
	if ip := net.ParseIP(host); ip == nil {
		trimmed := strings.Trim(host, ".")
		if trimmed == "" {
			return nil, ErrInvalidHost
		}
		host = trimmed
	}
	if port < 1 || port > 65535 {
		return nil, ErrInvalidPort
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	cfg.tcp = &modbus.TCPParams{Host: host, Port: port}

	return cfg, nil
}

// NewURLConfig creates a session configuration from a transport URL, e.g.
// tcp://hostname:502, rtu:///dev/ttyUSB0 or rtuovertcp://hostname:502.
// Serial line options apply when the URL selects an RTU transport.
func NewURLConfig(url string, opts ...Option) (*Config, error) {
	valid := false
	for _, scheme := range []string{"tcp://", "tcp+tls://", "udp://", "rtu://", "rtuovertcp://", "rtuoverudp://"} {
		if strings.HasPrefix(url, scheme) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrInvalidURL
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	cfg.url = url

	return cfg, nil
}

// NewClientConfig creates a session configuration around an existing protocol
// client. It is the injection point for custom adapters and for the
// modbus.Simulator in tests.
func NewClientConfig(client modbus.ProtocolClient, opts ...Option) (*Config, error) {
	if client == nil {
		return nil, ErrConfigNil
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	cfg.client = client

	return cfg, nil
}

// buildClient constructs the protocol client owned by a session.
// It is called exactly once per session; reconnects reuse the instance.
func (cfg *Config) buildClient() (modbus.ProtocolClient, error) {
	switch {
	case cfg.client != nil:
		return cfg.client, nil
	case cfg.url != "":
		var serial modbus.SerialParams
		if cfg.serial != nil {
			serial = *cfg.serial
		}
		return modbus.NewURLClient(cfg.url, serial, cfg.timeout)
	case cfg.tcp != nil:
		return modbus.NewTCPClient(*cfg.tcp, cfg.timeout), nil
	case cfg.serial != nil:
		return modbus.NewRTUClient(*cfg.serial, cfg.timeout), nil
	default:
		return nil, ErrConfigNil
	}
}

// IdleTimeout returns the configured idle-disconnect timeout.
func (cfg *Config) IdleTimeout() time.Duration { return cfg.idleTimeout }

// SettleDelay returns the configured per-operation settling delay.
func (cfg *Config) SettleDelay() time.Duration { return cfg.settleDelay }

// ReconnectInterval returns the configured pause between connect attempts.
func (cfg *Config) ReconnectInterval() time.Duration { return cfg.reconnectInterval }

// UnitID returns the configured unit identifier.
func (cfg *Config) UnitID() uint8 { return cfg.unitID }

func (cfg *Config) serialParams() *modbus.SerialParams {
	if cfg.serial == nil {
		cfg.serial = &modbus.SerialParams{}
	}
	return cfg.serial
}

// WithBaudRate sets the serial bus speed in bps. Defaults to 9600.
func WithBaudRate(baudRate int) Option {
	return newOptFunc("WithBaudRate", func(cfg *Config) error {
		if baudRate <= 0 {
			return ErrInvalidBaudRate
		}
		cfg.serialParams().BaudRate = baudRate

		return nil
	})
}

// WithDataBits sets the number of bits per character, 7 or 8. Defaults to 8.
func WithDataBits(dataBits int) Option {
	return newOptFunc("WithDataBits", func(cfg *Config) error {
		if dataBits != 7 && dataBits != 8 {
			return ErrInvalidDataBits
		}
		cfg.serialParams().DataBits = dataBits

		return nil
	})
}

// WithStopBits sets the number of stop bits, 1 or 2. Defaults to 2.
func WithStopBits(stopBits int) Option {
	return newOptFunc("WithStopBits", func(cfg *Config) error {
		if stopBits != 1 && stopBits != 2 {
			return ErrInvalidStopBits
		}
		cfg.serialParams().StopBits = stopBits

		return nil
	})
}

// WithParity sets the parity mode: "N", "E" or "O". Defaults to "N".
func WithParity(parity string) Option {
	return newOptFunc("WithParity", func(cfg *Config) error {
		if parity != "N" && parity != "E" && parity != "O" {
			return ErrInvalidParity
		}
		cfg.serialParams().Parity = parity

		return nil
	})
}

// WithTimeout sets the per-request protocol timeout. Defaults to 1 second.
func WithTimeout(timeout time.Duration) Option {
	return newOptFunc("WithTimeout", func(cfg *Config) error {
		if timeout <= 0 {
			return ErrInvalidTimeout
		}
		cfg.timeout = timeout

		return nil
	})
}

// WithIdleTimeout sets the idle window after which a drained session closes
// its connection. It should be at least 1 second. Defaults to 20 seconds.
func WithIdleTimeout(timeout time.Duration) Option {
	return newOptFunc("WithIdleTimeout", func(cfg *Config) error {
		if timeout < time.Second {
			return ErrInvalidIdleTimeout
		}
		cfg.idleTimeout = timeout

		return nil
	})
}

// WithSettleDelay sets the pause applied after every successful register
// operation. Defaults to 3 milliseconds; zero disables it.
func WithSettleDelay(delay time.Duration) Option {
	return newOptFunc("WithSettleDelay", func(cfg *Config) error {
		if delay < 0 {
			return ErrInvalidSettleDelay
		}
		cfg.settleDelay = delay

		return nil
	})
}

// WithReconnectInterval sets the pause between connection attempts when the
// link cannot be established. It should be at least 1 second.
// Defaults to 5 seconds.
func WithReconnectInterval(interval time.Duration) Option {
	return newOptFunc("WithReconnectInterval", func(cfg *Config) error {
		if interval < time.Second {
			return ErrInvalidReconnectInterval
		}
		cfg.reconnectInterval = interval

		return nil
	})
}

// WithErrorLogging enables error-level logging of failed register operations.
// When disabled (the default), operation failures are logged at debug level.
func WithErrorLogging(enabled bool) Option {
	return newOptFunc("WithErrorLogging", func(cfg *Config) error {
		cfg.errorLogging = enabled
		return nil
	})
}

// WithNameTag sets a tag appended to the session's log context, used only for
// log-line identification.
func WithNameTag(tag string) Option {
	return newOptFunc("WithNameTag", func(cfg *Config) error {
		cfg.nameTag = tag
		return nil
	})
}

// WithUnitID sets the unit (slave) identifier injected into every register
// request. Defaults to 1.
func WithUnitID(unitID uint8) Option {
	return newOptFunc("WithUnitID", func(cfg *Config) error {
		cfg.unitID = unitID
		return nil
	})
}

// WithLogger sets the logger for session events. A nil logger is rejected.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if !logger.Valid(l) {
			return ErrLoggerNil
		}
		cfg.logger = l

		return nil
	})
}
