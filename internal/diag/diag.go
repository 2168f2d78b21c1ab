// Package diag collects recoverable problems found while generating artifacts.
//
// Overview:
//   - Responsibility: Record error/warning/info findings with a path and a fix suggestion
//   - Key Types: Diagnostic, Severity, Diagnostics
//   - Concurrency Model: Diagnostics is safe for concurrent use
//   - Error Semantics: Diagnostics never abort a run; callers decide via HasErrors
//   - Performance Notes: Append-only slice guarded by a mutex
//
// Usage:
//
//	diags := diag.New()
//	diags.AddWarning("invalid YAML, starting from an empty document", "docker-compose.yml", "Fix the syntax or restore docker-compose.yml.bak")
//	if diags.HasErrors() { ... }
package diag

import (
	"fmt"
	"sync"
)

// Severity represents the severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic represents a single finding.
type Diagnostic struct {
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Path       string   `json:"path,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// String renders the diagnostic on one line.
func (d Diagnostic) String() string {
	s := d.Message
	if d.Path != "" {
		s = fmt.Sprintf("%s: %s", d.Path, s)
	}
	if d.Suggestion != "" {
		s = fmt.Sprintf("%s (%s)", s, d.Suggestion)
	}
	return s
}

// Diagnostics represents a collection of findings.
type Diagnostics struct {
	mu    sync.Mutex
	items []Diagnostic
}

// New creates an empty diagnostics collection.
//
// Parameters:
//   - None
//
// Returns:
//   - *Diagnostics: Empty diagnostics collection
//
// Concurrency:
//   - Safe for concurrent use
//
// Performance:
//   - Minimal allocation
func New() *Diagnostics {
	return &Diagnostics{items: make([]Diagnostic, 0)}
}

// Add adds a diagnostic to the collection.
//
// Parameters:
//   - severity: Diagnostic severity level
//   - message: Human-readable message
//   - path: Optional file path
//   - suggestion: Optional fix suggestion
//
// Returns:
//   - None
//
// Concurrency:
//   - Thread-safe
//
// Performance:
//   - O(1) append operation
func (d *Diagnostics) Add(severity Severity, message, path, suggestion string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, Diagnostic{
		Severity:   severity,
		Message:    message,
		Path:       path,
		Suggestion: suggestion,
	})
}

// AddError adds an error diagnostic.
func (d *Diagnostics) AddError(message, path, suggestion string) {
	d.Add(SeverityError, message, path, suggestion)
}

// AddWarning adds a warning diagnostic.
func (d *Diagnostics) AddWarning(message, path, suggestion string) {
	d.Add(SeverityWarning, message, path, suggestion)
}

// AddInfo adds an info diagnostic.
func (d *Diagnostics) AddInfo(message, path, suggestion string) {
	d.Add(SeverityInfo, message, path, suggestion)
}

// Merge appends every item of other.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil || other == d {
		return
	}
	items := other.Items()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, items...)
}

// HasErrors returns true if there are any error-level diagnostics.
func (d *Diagnostics) HasErrors() bool {
	return d.count(SeverityError) > 0
}

// HasWarnings returns true if there are any warning-level diagnostics.
func (d *Diagnostics) HasWarnings() bool {
	return d.count(SeverityWarning) > 0
}

// Count returns the number of diagnostics with severity.
func (d *Diagnostics) Count(severity Severity) int {
	return d.count(severity)
}

func (d *Diagnostics) count(severity Severity) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, item := range d.items {
		if item.Severity == severity {
			n++
		}
	}
	return n
}

// Len returns the number of diagnostics.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Items returns a copy of all diagnostics in insertion order.
//
// Parameters:
//   - None
//
// Returns:
//   - []Diagnostic: Copy of all diagnostics
//
// Concurrency:
//   - Thread-safe
//
// Performance:
//   - O(n) copy operation
func (d *Diagnostics) Items() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]Diagnostic, len(d.items))
	copy(result, d.items)
	return result
}
