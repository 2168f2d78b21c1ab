package diag

import (
	"sync"
	"testing"
)

func TestDiagnostics(t *testing.T) {
	d := New()
	if d.HasErrors() || d.HasWarnings() || d.Len() != 0 {
		t.Fatal("Expected empty diagnostics")
	}

	d.AddInfo("skipped non-UTF-8 file", "src/workers/blob.py", "")
	d.AddWarning("invalid YAML", "docker-compose.yml", "restore docker-compose.yml.bak")

	if d.HasErrors() {
		t.Error("Expected no errors")
	}
	if !d.HasWarnings() {
		t.Error("Expected warnings")
	}
	if got := d.Count(SeverityInfo); got != 1 {
		t.Errorf("Expected 1 info diagnostic, got %d", got)
	}

	other := New()
	other.AddError("section is not a mapping", "docker-compose.yml", "")
	d.Merge(other)
	d.Merge(d)

	items := d.Items()
	if len(items) != 3 {
		t.Fatalf("Expected 3 diagnostics, got %d", len(items))
	}
	if items[2].Severity != SeverityError || !d.HasErrors() {
		t.Errorf("Expected merged error last, got %+v", items[2])
	}
}

func TestDiagnosticString(t *testing.T) {
	tests := []struct {
		name string
		d    Diagnostic
		want string
	}{
		{"message only", Diagnostic{Message: "m"}, "m"},
		{"with path", Diagnostic{Message: "m", Path: "p"}, "p: m"},
		{"with suggestion", Diagnostic{Message: "m", Path: "p", Suggestion: "s"}, "p: m (s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.String(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDiagnosticsConcurrentAdd(t *testing.T) {
	d := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.AddInfo("x", "", "")
		}()
	}
	wg.Wait()
	if d.Len() != 50 {
		t.Errorf("Expected 50 diagnostics, got %d", d.Len())
	}
}
