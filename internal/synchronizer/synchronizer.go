// Package synchronizer keeps a deployment document in step with the worker tree.
//
// Overview:
//   - Responsibility: Discover runnable workers and append a service entry for each one missing
//   - Key Types: Synchronizer, Config, EntryBlock, Result
//   - Concurrency Model: One Sync at a time per document; no internal goroutines
//   - Error Semantics: Precondition and data-loss failures are errors; skipped files,
//     path fallbacks and lenient parse recovery are Diagnostics
//   - Performance Notes: One walk of the source root, one read and one write of the document
//
// Usage:
//
//	s, err := synchronizer.New(".", synchronizer.DefaultConfig(), synchronizer.WithLogger(logger))
//	res, err := s.Sync(ctx)
//	fmt.Printf("added %d, total %d\n", res.Added, res.Total)
package synchronizer

import (
	"context"
	"fmt"

	"go.eggybyte.com/egg/workerkit/core/errors"
	"go.eggybyte.com/egg/workerkit/core/log"
	"go.eggybyte.com/egg/workerkit/internal/diag"
	"go.eggybyte.com/egg/workerkit/internal/document"
	"go.eggybyte.com/egg/workerkit/internal/projectfs"
)

// ErrParse is returned in strict mode when the document cannot be parsed.
var ErrParse = fmt.Errorf("deployment document is not a valid YAML mapping")

// Result summarizes one Sync run.
type Result struct {
	Added        int      // Entries appended in this run
	Total        int      // Entries in the document after the run
	AddedKeys    []string // Keys appended, in insertion order
	Discovered   []string // Root-relative worker paths, sorted
	DocumentPath string
	Diagnostics  *diag.Diagnostics
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = log.OrNop(logger)
	}
}

// WithWorkDir sets the directory entry commands are made relative to.
// The default is the project root.
func WithWorkDir(dir string) Option {
	return func(s *Synchronizer) {
		s.workDir = dir
	}
}

// Synchronizer appends missing worker entries to a deployment document.
type Synchronizer struct {
	cfg     Config
	fs      *projectfs.ProjectFS
	logger  log.Logger
	workDir string
}

// New creates a Synchronizer for the project at root.
//
// Parameters:
//   - root: Project root directory
//   - cfg: Validated configuration
//   - opts: Optional settings
//
// Returns:
//   - *Synchronizer: Ready to Sync
//   - error: INVALID_ARGUMENT when cfg fails validation
//
// Concurrency:
//   - The returned value must not run concurrent Syncs
//
// Performance:
//   - Validation only; no file system access
func New(root string, cfg Config, opts ...Option) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "compose config", err)
	}
	s := &Synchronizer{cfg: cfg, logger: log.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.fs = projectfs.New(root, s.logger)
	if s.workDir == "" {
		s.workDir = s.fs.Root()
	}
	return s, nil
}

// Config returns the configuration in use.
func (s *Synchronizer) Config() Config {
	return s.cfg
}

// Discover returns the root-relative paths of every source file under the
// source root that contains the marker. Unreadable and non-UTF-8 files are
// recorded in diags and skipped.
func (s *Synchronizer) Discover(diags *diag.Diagnostics) ([]string, error) {
	found, skipped, err := s.fs.Discover(s.cfg.SourceRoot, s.cfg.Extension, projectfs.Contains(s.cfg.Marker))
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "discover workers", err)
	}
	for _, sk := range skipped {
		diags.AddInfo(fmt.Sprintf("skipped: %v", sk.Reason), sk.Path, "")
	}
	paths := make([]string, len(found))
	for i, c := range found {
		paths[i] = c.Path
	}
	return paths, nil
}

// DeriveKey maps a discovered path to its entry key.
func (s *Synchronizer) DeriveKey(path string) string {
	return DeriveKey(path, s.cfg.Extension, s.cfg.GroupDepth, s.fs.ProjectName())
}

// LoadDocument reads the document and makes sure the entry and network
// sections exist.
//
// A missing or blank file gives an empty document. When the content cannot be
// parsed, or its top level is not a mapping, strict mode fails with
// INVALID_ARGUMENT; otherwise the file is copied to "<path>.bak", a warning
// is recorded and an empty document is used. An entry section that exists
// with a non-mapping value is always an error.
//
// Parameters:
//   - diags: Receives warnings about recovered content
//
// Returns:
//   - *document.Document: Document with both sections present
//   - error: Parse error (strict), backup failure or section kind error
//
// Concurrency:
//   - Single-threaded
//
// Performance:
//   - One read, plus one copy on recovery
func (s *Synchronizer) LoadDocument(diags *diag.Diagnostics) (*document.Document, error) {
	path := s.cfg.DocumentPath
	doc := document.New()

	exists, err := s.fs.FileExists(path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "load document", err)
	}
	if exists {
		data, err := s.fs.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, "load document", err)
		}
		parsed, perr := document.Parse(data)
		switch {
		case perr == nil:
			doc = parsed
		case s.cfg.Strict:
			return nil, errors.Wrapf(errors.CodeInvalidArgument, "load document", ErrParse, "%s: %v", path, perr)
		default:
			backup := path + ".bak"
			if err := s.fs.CopyFile(path, backup); err != nil {
				return nil, errors.Wrap(errors.CodeDataLoss, "back up unparseable document", err)
			}
			s.logger.Warn("unparseable document replaced", log.Str("path", path), log.Str("backup", backup), log.Str("cause", perr.Error()))
			diags.AddWarning(fmt.Sprintf("invalid YAML, starting from an empty document: %v", perr), path,
				"previous content saved to "+backup)
		}
	}

	if _, err := doc.EnsureSection(s.cfg.EntriesKey); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "load document", err)
	}
	if _, err := doc.SetDefault(s.cfg.NetworksKey, s.defaultNetworks()); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "load document", err)
	}
	return doc, nil
}

// networkBlock keeps the name key ahead of external.
type networkBlock struct {
	Name     string `yaml:"name"`
	External bool   `yaml:"external"`
}

func (s *Synchronizer) defaultNetworks() map[string]networkBlock {
	n := s.cfg.DefaultNetwork
	return map[string]networkBlock{n.Name: {Name: n.Name, External: n.External}}
}

// SynthesizeEntry builds the entry for key launching the root-relative path.
func (s *Synchronizer) SynthesizeEntry(key, path string, extraArgs []string, diags *diag.Diagnostics) EntryBlock {
	tmpl := s.cfg.Template
	if len(tmpl.Networks) == 0 {
		tmpl.Networks = []string{s.cfg.DefaultNetwork.Name}
	}
	return SynthesizeEntry(key, s.fs.Abs(path), s.workDir, tmpl, s.fs.ProjectName(), extraArgs, diags)
}

// Sync appends an entry for the entry point and for every discovered worker
// that has none yet, then writes the document back. Running it twice without
// source changes adds nothing the second time.
//
// Parameters:
//   - ctx: Cancels the run between entries, before anything is written
//
// Returns:
//   - *Result: Counts, added keys and diagnostics
//   - error: FAILED_PRECONDITION outside a project root; load and write failures
//
// Concurrency:
//   - Single-threaded
//
// Performance:
//   - One walk, one document read and one atomic write
func (s *Synchronizer) Sync(ctx context.Context) (*Result, error) {
	if err := s.fs.RequireMarker(s.cfg.RootMarkerFile); err != nil {
		return nil, err
	}

	res := &Result{DocumentPath: s.cfg.DocumentPath, Diagnostics: diag.New()}

	discovered, err := s.Discover(res.Diagnostics)
	if err != nil {
		return nil, err
	}
	res.Discovered = discovered
	s.logger.Info("workers discovered", log.Int("count", len(discovered)), log.Str("root", s.cfg.SourceRoot))

	doc, err := s.LoadDocument(res.Diagnostics)
	if err != nil {
		return nil, err
	}
	entries, err := doc.EnsureSection(s.cfg.EntriesKey)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidArgument, "sync", err)
	}

	add := func(key, path string, args []string) error {
		if entries.Has(key) {
			return nil
		}
		block := s.SynthesizeEntry(key, path, args, res.Diagnostics)
		if _, err := entries.Add(key, block); err != nil {
			return errors.Wrap(errors.CodeInternal, "add entry", err)
		}
		res.AddedKeys = append(res.AddedKeys, key)
		s.logger.Info("service added", log.Str("key", key), log.Str("path", path))
		return nil
	}

	if ep := s.cfg.EntryPoint; ep.Path != "" && ep.GuardDir != "" {
		ok, err := s.fs.DirectoryExists(ep.GuardDir)
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, "check entry point", err)
		}
		if ok {
			if err := add(s.fs.ProjectName()+"-"+ep.Suffix, ep.Path, ep.Args); err != nil {
				return nil, err
			}
		}
	}

	seen := make(map[string]string, len(discovered))
	for _, path := range discovered {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.CodeAborted, "sync", err)
		}
		key := s.DeriveKey(path)
		if prev, dup := seen[key]; dup {
			res.Diagnostics.AddWarning(fmt.Sprintf("key %q already derived from %s", key, prev), path,
				"rename the file or raise the group depth")
			continue
		}
		seen[key] = path
		if err := add(key, path, nil); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.CodeAborted, "sync", err)
	}
	data, err := doc.Marshal()
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "encode document", err)
	}
	if err := s.fs.WriteFile(s.cfg.DocumentPath, data, 0o644); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "write document", err)
	}

	res.Added = len(res.AddedKeys)
	res.Total = entries.Len()
	s.logger.Info("document updated", log.Str("path", s.cfg.DocumentPath), log.Int("added", res.Added), log.Int("total", res.Total))
	return res, nil
}

// Root returns the absolute project root.
func (s *Synchronizer) Root() string {
	return s.fs.Root()
}
