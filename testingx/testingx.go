// Package testingx provides testing utilities for workerkit packages.
//
// Overview:
//   - Responsibility: Mock logger, temporary project trees, error assertions
//   - Key Types: MockLogger, LogEntry, Project
//   - Concurrency Model: MockLogger is thread-safe; Project is per-test
//   - Error Semantics: Test failures via testing.T
//   - Performance Notes: Files are written once per test under t.TempDir
//
// Usage:
//
//	logger := testingx.NewMockLogger(t)
//	root := testingx.NewProject(t, map[string]string{"pyproject.toml": ""})
package testingx

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.eggybyte.com/egg/workerkit/core/errors"
	"go.eggybyte.com/egg/workerkit/core/log"
)

// MockLogger records log entries for assertions.
type MockLogger struct {
	t       *testing.T
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry represents a single log entry.
type LogEntry struct {
	Level   string
	Message string
	Fields  []any
	Error   error
}

// NewMockLogger creates a new mock logger.
func NewMockLogger(t *testing.T) *MockLogger {
	return &MockLogger{t: t}
}

// With returns the same logger; attached fields are not recorded.
func (m *MockLogger) With(kv ...any) log.Logger {
	return m
}

// Debug logs a debug message.
func (m *MockLogger) Debug(msg string, kv ...any) {
	m.log("DEBUG", msg, nil, kv)
}

// Info logs an info message.
func (m *MockLogger) Info(msg string, kv ...any) {
	m.log("INFO", msg, nil, kv)
}

// Warn logs a warning message.
func (m *MockLogger) Warn(msg string, kv ...any) {
	m.log("WARN", msg, nil, kv)
}

// Error logs an error message.
func (m *MockLogger) Error(err error, msg string, kv ...any) {
	m.log("ERROR", msg, err, kv)
}

func (m *MockLogger) log(level, msg string, err error, kv []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  kv,
		Error:   err,
	})
}

// Entries returns a copy of all log entries.
func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]LogEntry, len(m.entries))
	copy(entries, m.entries)
	return entries
}

// Count returns how many entries were logged at level.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, entry := range m.entries {
		if entry.Level == level {
			n++
		}
	}
	return n
}

// AssertLogged fails the test unless a message was logged at level.
func (m *MockLogger) AssertLogged(level, msg string) {
	m.t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.entries {
		if entry.Level == level && entry.Message == msg {
			return
		}
	}
	m.t.Errorf("Expected log message not found: level=%s msg=%q", level, msg)
}

// AssertError asserts that err carries the expected code.
func AssertError(t *testing.T, err error, expectedCode errors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected error with code %s, got nil", expectedCode)
	}
	if code := errors.CodeOf(err); code != expectedCode {
		t.Errorf("Expected error code %s, got %s (%v)", expectedCode, code, err)
	}
}

// NewProject creates a temporary project tree and returns its root.
// Keys are slash-separated paths relative to the root; parent directories are
// created. A key ending in "/" creates an empty directory.
func NewProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "shop")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("failed to create project root: %v", err)
	}
	WriteFiles(t, root, files)
	return root
}

// WriteFiles writes files below root, creating parent directories.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(path, 0o755); err != nil {
				t.Fatalf("failed to create %s: %v", rel, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create parent of %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

// ReadFile returns the content of a file below root.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("failed to read %s: %v", rel, err)
	}
	return string(data)
}

// WorkerSource returns a minimal runnable worker module for class.
func WorkerSource(class string) string {
	return "class " + class + ":\n" +
		"    def __init__(self, redis):\n" +
		"        self.redis = redis\n\n" +
		"    async def start(self):\n" +
		"        pass\n\n\n" +
		"if __name__ == \"__main__\":\n" +
		"    worker = " + class + "(redis=redis_client)\n" +
		"    asyncio.run(worker.start())\n"
}
