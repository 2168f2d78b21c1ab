// Package log defines the structured logging contract shared by workerkit packages.
//
// Overview:
//   - Responsibility: Stable logging interface decoupled from the concrete handler
//   - Key Types: Logger interface, key-value helpers, Nop logger
//   - Concurrency Model: Logger implementations must be safe for concurrent use
//   - Error Semantics: Error method takes the error as its first parameter
//   - Performance Notes: Key-value pairs are passed through without reflection
//
// Usage:
//
//	logger.Info("service added", log.Str("key", "billing-charge-worker"))
package log

import "time"

// Logger is a structured, levelled logger.
// Implementations must be safe for concurrent use.
type Logger interface {
	// With returns a Logger that attaches kv to every record.
	With(kv ...any) Logger

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, kv ...any)

	// Info logs an informational message with optional key-value pairs.
	Info(msg string, kv ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, kv ...any)

	// Error logs err with a message and optional key-value pairs.
	Error(err error, msg string, kv ...any)
}

// Str creates a string key-value pair.
func Str(k, v string) any {
	return []any{k, v}
}

// Int creates an integer key-value pair.
func Int(k string, v int) any {
	return []any{k, v}
}

// Bool creates a boolean key-value pair.
func Bool(k string, v bool) any {
	return []any{k, v}
}

// Dur creates a duration key-value pair.
func Dur(k string, v time.Duration) any {
	return []any{k, v}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (l nopLogger) With(kv ...any) Logger                  { return l }
func (l nopLogger) Debug(msg string, kv ...any)            {}
func (l nopLogger) Info(msg string, kv ...any)             {}
func (l nopLogger) Warn(msg string, kv ...any)             {}
func (l nopLogger) Error(err error, msg string, kv ...any) {}

// OrNop returns l, or a Nop logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
