package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	SetColor(false)
	t.Cleanup(func() {
		SetOutput(nil, nil)
		SetVerbose(false)
		SetJSONOutput(false)
	})
	return &out, &errOut
}

func TestPrefixes(t *testing.T) {
	out, errOut := capture(t)

	Success("Added service: %s", "billing-charge-worker")
	Warning("Invalid YAML, starting from an empty document")
	Info("Found %d worker files", 3)
	Error("Must be run from the project root")

	stdout := out.String()
	if !strings.Contains(stdout, "✅ Added service: billing-charge-worker\n") {
		t.Errorf("missing success line: %q", stdout)
	}
	if !strings.Contains(stdout, "⚠️  Invalid YAML") {
		t.Errorf("missing warning line: %q", stdout)
	}
	if !strings.Contains(stdout, "Found 3 worker files") {
		t.Errorf("missing info line: %q", stdout)
	}
	if strings.Contains(stdout, "project root") {
		t.Errorf("errors must go to stderr: %q", stdout)
	}
	if errOut.String() != "❌ Must be run from the project root\n" {
		t.Errorf("unexpected stderr: %q", errOut.String())
	}
}

func TestDebugRequiresVerbose(t *testing.T) {
	out, _ := capture(t)

	Debug("hidden")
	if out.Len() != 0 {
		t.Fatalf("debug output without verbose: %q", out.String())
	}

	SetVerbose(true)
	Debug("shown %d", 1)
	if !strings.Contains(out.String(), "🔍 shown 1") {
		t.Errorf("expected debug line, got %q", out.String())
	}
}

func TestJSONOutput(t *testing.T) {
	out, _ := capture(t)
	SetJSONOutput(true)

	Success("done")
	Step(1, 2, "step %s", "one")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d: %q", len(lines), out.String())
	}

	var msg Message
	if err := json.Unmarshal([]byte(lines[0]), &msg); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if msg.Level != LevelSuccess || msg.Text != "done" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestStep(t *testing.T) {
	out, _ := capture(t)

	Step(2, 3, "Writing %s", "docker-compose.yml")

	if out.String() != "  [2/3] Writing docker-compose.yml\n" {
		t.Errorf("unexpected step output: %q", out.String())
	}
}
