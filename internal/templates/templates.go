// Package templates provides embedded text templates for generated files.
//
// Overview:
//   - Responsibility: Load and render the bodies appended to generated artifacts
//   - Key Types: Loader
//   - Concurrency Model: Parsed templates are cached; Loader is safe for concurrent use
//   - Error Semantics: Missing templates and render failures are returned with the template name
//   - Performance Notes: Each template is parsed once per Loader
//
// Usage:
//
//	loader := templates.NewLoader()
//	body, err := loader.LoadAndRender(templates.PytestWorker, data)
package templates

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// PytestWorker renders one pytest stub for a worker class.
const PytestWorker = "pytest_worker.py.tmpl"

// Loader provides template loading and rendering functionality.
//
// Parameters:
//   - templateDir: Directory of the embedded file system holding templates
//
// Returns:
//   - None (data structure)
//
// Concurrency:
//   - Safe for concurrent use
//
// Performance:
//   - Parsed templates are cached by name
type Loader struct {
	templateDir string

	mu     sync.Mutex
	parsed map[string]*template.Template
}

// NewLoader creates a new template loader.
func NewLoader() *Loader {
	return &Loader{
		templateDir: "templates",
		parsed:      make(map[string]*template.Template),
	}
}

// LoadTemplate loads a template file from the embedded filesystem.
//
// Parameters:
//   - templatePath: Path to template file relative to templates directory
//
// Returns:
//   - string: Template content
//   - error: Loading error if any
//
// Concurrency:
//   - Safe for concurrent use
//
// Performance:
//   - Embedded file system access
func (l *Loader) LoadTemplate(templatePath string) (string, error) {
	content, err := templateFS.ReadFile(path.Join(l.templateDir, templatePath))
	if err != nil {
		return "", fmt.Errorf("failed to load template %s: %w", templatePath, err)
	}
	return string(content), nil
}

// LoadAndRender renders the named template with data.
//
// Parameters:
//   - templatePath: Path to template file
//   - data: Template data
//
// Returns:
//   - string: Rendered content
//   - error: Loading or rendering error if any
//
// Concurrency:
//   - Safe for concurrent use
//
// Performance:
//   - Parses on first use, then executes the cached template
func (l *Loader) LoadAndRender(templatePath string, data any) (string, error) {
	tmpl, err := l.template(templatePath)
	if err != nil {
		return "", err
	}

	var result strings.Builder
	if err := tmpl.Execute(&result, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templatePath, err)
	}
	return result.String(), nil
}

func (l *Loader) template(templatePath string) (*template.Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tmpl, ok := l.parsed[templatePath]; ok {
		return tmpl, nil
	}
	content, err := l.LoadTemplate(templatePath)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(templatePath).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", templatePath, err)
	}
	l.parsed[templatePath] = tmpl
	return tmpl, nil
}

// ListTemplates lists all embedded template files.
func (l *Loader) ListTemplates() ([]string, error) {
	entries, err := templateFS.ReadDir(l.templateDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".tmpl") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
