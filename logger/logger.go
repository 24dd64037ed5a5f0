// Package logger decouples go-modbus-session from any particular logging
// framework. The session core only talks to the Logger interface; the
// application picks the backend (slog, zerolog, or its own adapter).
//
// A valid logger is mandatory: session configuration rejects a nil logger
// instead of silently swallowing log output.
package logger

// Level indicates the logging severity level.
type Level = int8

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual
	// human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly,
	// it shouldn't generate any error-level logs.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Logger defines the common logging interface consumed by the session and
// modbus packages. Messages carry structured key-value pairs.
type Logger interface {
	// Debug logs a message at DebugLevel with the given key-value pairs.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel with the given key-value pairs.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel with the given key-value pairs.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel with the given key-value pairs.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel and then calls os.Exit(1), even if
	// logging at FatalLevel is disabled.
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger with additional structured context.
	// Key-values added to the child don't affect the parent, and vice versa.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() Level
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level Level)
}

// Valid reports whether l is a usable logger instance.
// Configuration layers use it to reject absent loggers up front.
func Valid(l Logger) bool {
	return l != nil
}
