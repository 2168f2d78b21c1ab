// Package ui provides unified output formatting for the workerkit CLI.
//
// Overview:
//   - Responsibility: Status lines with the ✅/❌ convention, JSON mode, verbose gate
//   - Key Types: Message, OutputLevel
//   - Concurrency Model: Thread-safe output operations
//   - Error Semantics: Output failures are ignored
//   - Performance Notes: One write per message
//
// Usage:
//
//	ui.Success("Added service: %s", key)
//	ui.Error("Must be run from the project root")
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	verbose    bool
	jsonOutput bool
	stdout     io.Writer = os.Stdout
	stderr     io.Writer = os.Stderr
	mu         sync.RWMutex
)

// OutputLevel represents the severity level of a message.
type OutputLevel string

const (
	LevelDebug   OutputLevel = "debug"
	LevelInfo    OutputLevel = "info"
	LevelWarning OutputLevel = "warning"
	LevelError   OutputLevel = "error"
	LevelSuccess OutputLevel = "success"
)

// Message represents a structured output message.
//
// Parameters:
//   - Level: Message severity level
//   - Text: Human-readable message content
//   - Timestamp: When the message was created
//
// Returns:
//   - None (data structure)
//
// Concurrency:
//   - Safe for concurrent access
//
// Performance:
//   - Minimal memory allocation
type Message struct {
	Level     OutputLevel `json:"level"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
}

type prefix struct {
	symbol string
	paint  *color.Color
}

var prefixes = map[OutputLevel]prefix{
	LevelDebug:   {"🔍", color.New(color.FgMagenta)},
	LevelInfo:    {"ℹ️ ", color.New(color.FgCyan)},
	LevelWarning: {"⚠️ ", color.New(color.FgYellow)},
	LevelError:   {"❌", color.New(color.FgRed, color.Bold)},
	LevelSuccess: {"✅", color.New(color.FgGreen)},
}

// SetVerbose enables or disables debug output.
//
// Parameters:
//   - enabled: Whether to show debug messages
//
// Returns:
//   - None
//
// Concurrency:
//   - Thread-safe
//
// Performance:
//   - O(1) operation
func SetVerbose(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = enabled
}

// SetJSONOutput enables JSON-formatted output.
//
// Parameters:
//   - enabled: Whether to output in JSON format
//
// Returns:
//   - None
//
// Concurrency:
//   - Thread-safe
//
// Performance:
//   - O(1) operation
func SetJSONOutput(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonOutput = enabled
}

// SetOutput redirects output; nil arguments restore os.Stdout and os.Stderr.
//
// Parameters:
//   - out: Writer for non-error messages
//   - errOut: Writer for error messages
//
// Returns:
//   - None
//
// Concurrency:
//   - Thread-safe
//
// Performance:
//   - O(1) operation
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	stdout = out
	stderr = errOut
}

// SetColor forces colour on or off, overriding terminal detection.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

// ColorDisabled reports whether coloured output is off, either forced or
// because stdout is not a terminal.
func ColorDisabled() bool {
	return color.NoColor
}

func output(level OutputLevel, format string, args ...any) {
	mu.RLock()
	useJSON := jsonOutput
	useVerbose := verbose
	out, errOut := stdout, stderr
	mu.RUnlock()

	if level == LevelDebug && !useVerbose {
		return
	}

	text := fmt.Sprintf(format, args...)

	if useJSON {
		encoder := json.NewEncoder(out)
		if err := encoder.Encode(Message{Level: level, Text: text, Timestamp: time.Now()}); err != nil {
			fmt.Fprintf(errOut, "Failed to encode JSON output: %v\n", err)
		}
		return
	}

	writer := out
	if level == LevelError {
		writer = errOut
	}

	p := prefixes[level]
	fmt.Fprintf(writer, "%s %s\n", p.symbol, p.paint.Sprint(text))
}

// Debug outputs a debug message, only in verbose mode.
func Debug(format string, args ...any) {
	output(LevelDebug, format, args...)
}

// Info outputs an informational message.
func Info(format string, args ...any) {
	output(LevelInfo, format, args...)
}

// Warning outputs a warning message.
func Warning(format string, args ...any) {
	output(LevelWarning, format, args...)
}

// Error outputs an error message to stderr.
func Error(format string, args ...any) {
	output(LevelError, format, args...)
}

// Success outputs a success message.
func Success(format string, args ...any) {
	output(LevelSuccess, format, args...)
}

// Step outputs a step indicator with message.
//
// Parameters:
//   - step: Step number
//   - total: Total number of steps
//   - format: Printf-style format string
//   - args: Format arguments
//
// Returns:
//   - None
//
// Concurrency:
//   - Thread-safe
//
// Performance:
//   - Minimal formatting overhead
func Step(step, total int, format string, args ...any) {
	mu.RLock()
	useJSON := jsonOutput
	out := stdout
	mu.RUnlock()

	if useJSON {
		Info(format, args...)
		return
	}

	fmt.Fprintf(out, "  [%d/%d] %s\n", step, total, fmt.Sprintf(format, args...))
}
