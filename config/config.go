// Package config loads session configuration from TOML files, mapping file
// keys onto the session package's functional options.
//
// Example:
//
//	# device.toml
//	transport = "serial"
//	port = "/dev/ttyUSB0"
//	baud_rate = 19200
//	idle_timeout_s = 10
//	error_logging = true
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dmkit/go-modbus-session/session"
)

// fileConfig is the TOML key mapping for one session.
type fileConfig struct {
	Transport string `toml:"transport"` // "serial", "tcp" or "url"

	// serial transport
	Port     string `toml:"port"`
	BaudRate int    `toml:"baud_rate"`
	DataBits int    `toml:"data_bits"`
	StopBits int    `toml:"stop_bits"`
	Parity   string `toml:"parity"`

	// tcp transport
	Host    string `toml:"host"`
	TCPPort int    `toml:"tcp_port"`

	// url transport
	URL string `toml:"url"`

	TimeoutMs     int    `toml:"timeout_ms"`
	IdleTimeoutS  int    `toml:"idle_timeout_s"`
	SettleDelayMs int    `toml:"settle_delay_ms"`
	ReconnectS    int    `toml:"reconnect_interval_s"`
	ErrorLogging  bool   `toml:"error_logging"`
	NameTag       string `toml:"name_tag"`
	UnitID        int    `toml:"unit_id"`
}

// LoadFile reads a TOML file and builds a session configuration from it.
// Keys absent from the file keep the session package defaults.
func LoadFile(path string, opts ...session.Option) (*session.Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load session config: %w", err)
	}

	fileOpts, err := buildOptions(&raw, meta)
	if err != nil {
		return nil, err
	}
	fileOpts = append(fileOpts, opts...)

	switch raw.Transport {
	case "serial":
		return session.NewSerialConfig(raw.Port, fileOpts...)
	case "tcp":
		return session.NewTCPConfig(raw.Host, raw.TCPPort, fileOpts...)
	case "url":
		return session.NewURLConfig(raw.URL, fileOpts...)
	default:
		return nil, fmt.Errorf("unknown transport %q, should be serial, tcp or url", raw.Transport)
	}
}

func buildOptions(raw *fileConfig, meta toml.MetaData) ([]session.Option, error) {
	var opts []session.Option

	if meta.IsDefined("baud_rate") {
		opts = append(opts, session.WithBaudRate(raw.BaudRate))
	}
	if meta.IsDefined("data_bits") {
		opts = append(opts, session.WithDataBits(raw.DataBits))
	}
	if meta.IsDefined("stop_bits") {
		opts = append(opts, session.WithStopBits(raw.StopBits))
	}
	if meta.IsDefined("parity") {
		opts = append(opts, session.WithParity(raw.Parity))
	}
	if meta.IsDefined("timeout_ms") {
		opts = append(opts, session.WithTimeout(time.Duration(raw.TimeoutMs)*time.Millisecond))
	}
	if meta.IsDefined("idle_timeout_s") {
		opts = append(opts, session.WithIdleTimeout(time.Duration(raw.IdleTimeoutS)*time.Second))
	}
	if meta.IsDefined("settle_delay_ms") {
		opts = append(opts, session.WithSettleDelay(time.Duration(raw.SettleDelayMs)*time.Millisecond))
	}
	if meta.IsDefined("reconnect_interval_s") {
		opts = append(opts, session.WithReconnectInterval(time.Duration(raw.ReconnectS)*time.Second))
	}
	if meta.IsDefined("error_logging") {
		opts = append(opts, session.WithErrorLogging(raw.ErrorLogging))
	}
	if meta.IsDefined("name_tag") {
		opts = append(opts, session.WithNameTag(raw.NameTag))
	}
	if meta.IsDefined("unit_id") {
		if raw.UnitID < 0 || raw.UnitID > 255 {
			return nil, errors.New("unit_id is out of range [0, 255]")
		}
		opts = append(opts, session.WithUnitID(uint8(raw.UnitID)))
	}

	return opts, nil
}
