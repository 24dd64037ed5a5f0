package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZerologLogger(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewZerolog(&buf, InfoLevel)
	require.True(Valid(l))
	require.Equal(InfoLevel, l.Level())

	l.Debug("should be filtered")
	require.Zero(buf.Len())

	l.Info("connected", "host", "10.0.0.5", "port", 502)

	var record map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &record))
	require.Equal("connected", record["message"])
	require.Equal("10.0.0.5", record["host"])
	require.Equal(float64(502), record["port"])
}

func TestZerologLoggerWith(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewZerolog(&buf, InfoLevel)

	child := l.With("name", "boiler")
	child.Warn("count mismatch")

	var record map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &record))
	require.Equal("boiler", record["name"])
	require.Equal("warn", record["level"])

	// parent context is unaffected by the child
	buf.Reset()
	l.Info("plain")
	record = map[string]any{}
	require.NoError(json.Unmarshal(buf.Bytes(), &record))
	require.NotContains(record, "name")
}

func TestZerologLoggerSetLevel(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewZerolog(&buf, ErrorLevel)

	l.Info("filtered")
	require.Zero(buf.Len())

	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, l.Level())

	l.Debug("visible now")
	require.NotZero(buf.Len())
}
