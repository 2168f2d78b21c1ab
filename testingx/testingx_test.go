package testingx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cerrors "go.eggybyte.com/egg/workerkit/core/errors"
)

func TestMockLogger(t *testing.T) {
	logger := NewMockLogger(t)

	logger.Debug("debug")
	logger.Info("service added", "key", "billing-charge-worker")
	logger.With("component", "x").Warn("warn")
	logger.Error(errors.New("boom"), "failed")

	entries := logger.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[3].Error == nil || entries[3].Level != "ERROR" {
		t.Errorf("unexpected error entry: %+v", entries[3])
	}
	if logger.Count("INFO") != 1 {
		t.Errorf("Count(INFO) = %d", logger.Count("INFO"))
	}
	logger.AssertLogged("INFO", "service added")
}

func TestAssertError(t *testing.T) {
	AssertError(t, cerrors.New(cerrors.CodeNotFound, "missing"), cerrors.CodeNotFound)
}

func TestNewProject(t *testing.T) {
	root := NewProject(t, map[string]string{
		"pyproject.toml":                       "[tool.poetry]\n",
		"src/api/":                             "",
		"src/workers/billing/charge_worker.py": WorkerSource("ChargeWorker"),
	})

	if filepath.Base(root) != "shop" {
		t.Errorf("project root should be named shop, got %s", root)
	}
	if info, err := os.Stat(filepath.Join(root, "src", "api")); err != nil || !info.IsDir() {
		t.Errorf("expected src/api directory: %v", err)
	}

	content := ReadFile(t, root, "src/workers/billing/charge_worker.py")
	if !strings.Contains(content, `if __name__ == "__main__":`) {
		t.Errorf("worker source should contain the entry-point marker: %q", content)
	}
	if !strings.Contains(content, "worker = ChargeWorker(redis=redis_client)") {
		t.Errorf("worker source should contain the launch line: %q", content)
	}
}
