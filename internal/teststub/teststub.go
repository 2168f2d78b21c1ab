// Package teststub appends pytest smoke tests for runnable workers.
//
// Overview:
//   - Responsibility: Keep the worker test module in step with the worker tree
//   - Key Types: Generator, Config, Launch, Result
//   - Concurrency Model: One Generate at a time per output file
//   - Error Semantics: All inputs are checked before the output is touched; any
//     malformed worker aborts the run with INVALID_ARGUMENT and nothing is written
//   - Performance Notes: One walk, one read and at most one write of the output
//
// Usage:
//
//	gen, err := teststub.New(".", teststub.DefaultConfig(), logger)
//	res, err := gen.Generate(ctx)
package teststub

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.eggybyte.com/egg/workerkit/core/errors"
	"go.eggybyte.com/egg/workerkit/core/log"
	"go.eggybyte.com/egg/workerkit/internal/diag"
	"go.eggybyte.com/egg/workerkit/internal/projectfs"
	"go.eggybyte.com/egg/workerkit/internal/templates"
)

var (
	// ErrMissingHelper is returned when the helper import is needed but the helper module is absent.
	ErrMissingHelper = fmt.Errorf("helper module required for the redis_client import is missing")
	// ErrNoLaunchLine is returned when a worker has no statement after its marker line.
	ErrNoLaunchLine = fmt.Errorf("worker has no launch line after the entry-point marker")
	// ErrNoClassName is returned when the launch line does not construct a class.
	ErrNoClassName = fmt.Errorf("could not find the worker class on the launch line")
)

// Result summarizes one Generate run.
type Result struct {
	Added        int      // Stubs appended
	AddedNames   []string // Worker names that received a stub
	Skipped      []string // Worker names that already had a test
	ImportsAdded []string
	Total        int // Workers discovered
	OutputPath   string
	Diagnostics  *diag.Diagnostics
}

// StubData is the template data for one stub.
type StubData struct {
	ImportPath     string
	ClassName      string
	Name           string
	TimeoutSeconds int
	LaunchLine     string
	Variable       string
}

// Generator appends missing stubs to the worker test module.
type Generator struct {
	cfg       Config
	fs        *projectfs.ProjectFS
	logger    log.Logger
	templates *templates.Loader
}

// New creates a Generator for the project at root.
func New(root string, cfg Config, logger log.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "tests config", err)
	}
	logger = log.OrNop(logger)
	return &Generator{
		cfg:       cfg,
		fs:        projectfs.New(root, logger),
		logger:    logger,
		templates: templates.NewLoader(),
	}, nil
}

// Generate appends header imports and one stub per discovered worker that has
// no test yet. Existing content is kept verbatim; missing imports go to the
// top of the file.
//
// Parameters:
//   - ctx: Cancels the run before the output is written
//
// Returns:
//   - *Result: Added and skipped workers
//   - error: FAILED_PRECONDITION for a missing root marker or helper module,
//     INVALID_ARGUMENT for a worker without launch line or class name
//
// Concurrency:
//   - Single-threaded
//
// Performance:
//   - One walk plus one read-modify-write of the output file
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	if err := g.fs.RequireMarker(g.cfg.RootMarkerFile); err != nil {
		return nil, err
	}

	res := &Result{OutputPath: g.cfg.OutputPath, Diagnostics: diag.New()}

	found, skipped, err := g.fs.Discover(g.cfg.SourceRoot, g.cfg.Extension, projectfs.Contains(g.cfg.Marker))
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "discover workers", err)
	}
	for _, sk := range skipped {
		res.Diagnostics.AddInfo(fmt.Sprintf("skipped: %v", sk.Reason), sk.Path, "")
	}
	res.Total = len(found)

	existing := ""
	if ok, err := g.fs.FileExists(g.cfg.OutputPath); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "read test module", err)
	} else if ok {
		data, err := g.fs.ReadFile(g.cfg.OutputPath)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, "read test module", err)
		}
		existing = string(data)
	}

	imports, err := g.missingImports(existing)
	if err != nil {
		return nil, err
	}
	res.ImportsAdded = imports

	var stubs []string
	for _, c := range found {
		name := WorkerName(c.Path, g.cfg.Extension)
		if hasTest(existing, name) || slices.Contains(res.AddedNames, name) {
			res.Skipped = append(res.Skipped, name)
			g.logger.Info("test already exists, skipping", log.Str("worker", name), log.Str("path", c.Path))
			continue
		}

		launch, err := ParseLaunch(string(c.Content), g.cfg.Marker)
		if err != nil {
			return nil, errors.Wrapf(errors.CodeInvalidArgument, "parse worker", err, "%s", c.Path)
		}

		stub, err := g.templates.LoadAndRender(templates.PytestWorker, StubData{
			ImportPath:     ImportPath(c.Path, g.cfg.Extension),
			ClassName:      launch.ClassName,
			Name:           name,
			TimeoutSeconds: g.cfg.TimeoutSeconds,
			LaunchLine:     launch.Line,
			Variable:       launch.Variable,
		})
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, "render stub", err)
		}
		stubs = append(stubs, stub)
		res.AddedNames = append(res.AddedNames, name)
	}
	res.Added = len(res.AddedNames)

	exists, err := g.fs.FileExists(g.cfg.OutputPath)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "write test module", err)
	}
	if exists && len(imports) == 0 && len(stubs) == 0 {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.CodeAborted, "generate tests", err)
	}

	var b strings.Builder
	for _, line := range imports {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(existing)
	if len(stubs) > 0 && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	for _, stub := range stubs {
		b.WriteString(stub)
		b.WriteString("\n")
	}

	if err := g.fs.WriteFile(g.cfg.OutputPath, []byte(b.String()), 0o644); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "write test module", err)
	}
	g.logger.Info("test module updated", log.Str("path", g.cfg.OutputPath), log.Int("added", res.Added), log.Int("total", res.Total))
	return res, nil
}

func (g *Generator) missingImports(existing string) ([]string, error) {
	present := make(map[string]bool)
	for _, line := range strings.Split(existing, "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, imp := range g.cfg.Imports {
		if present[imp] {
			continue
		}
		if imp == g.cfg.HelperImport && g.cfg.HelperFile != "" {
			ok, err := g.fs.FileExists(g.cfg.HelperFile)
			if err != nil {
				return nil, errors.Wrap(errors.CodeInternal, "check helper module", err)
			}
			if !ok {
				return nil, errors.Wrapf(errors.CodeFailedPrecondition, "check helper module", ErrMissingHelper,
					"add %s and run again", g.cfg.HelperFile)
			}
		}
		missing = append(missing, imp)
	}
	return missing, nil
}

// hasTest reports whether source defines test_<name> exactly.
func hasTest(source, name string) bool {
	return strings.Contains(source, "def test_"+name+"(")
}
