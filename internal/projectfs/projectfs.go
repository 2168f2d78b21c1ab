// Package projectfs provides project-root-relative file system operations.
//
// Overview:
//   - Responsibility: Root-marker detection, source discovery, read/modify/write of artifacts
//   - Key Types: ProjectFS, Candidate, Skipped, Predicate
//   - Concurrency Model: Sequential file operations; writes replace files by rename
//   - Error Semantics: Unreadable or non-text sources are reported as Skipped, not errors
//   - Performance Notes: One read per discovered file; the content is handed to callers
//
// Usage:
//
//	fs := projectfs.New(".", logger)
//	if err := fs.RequireMarker("pyproject.toml"); err != nil { ... }
//	found, skipped, err := fs.Discover("src/workers", ".py", projectfs.Contains(marker))
package projectfs

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"go.eggybyte.com/egg/workerkit/core/errors"
	"go.eggybyte.com/egg/workerkit/core/log"
)

// ErrNotProjectRoot is returned when the root marker file is missing.
var ErrNotProjectRoot = fmt.Errorf("not run from the project root")

// ErrNotText marks a source file that is not valid UTF-8.
var ErrNotText = fmt.Errorf("file is not valid UTF-8 text")

// ProjectFS provides file system operations relative to a project root.
//
// Parameters:
//   - rootDir: Absolute project root
//   - logger: Receives debug records for every write
//
// Returns:
//   - None (data structure)
//
// Concurrency:
//   - Not safe for concurrent writes to the same file
//
// Performance:
//   - Stateless apart from the root path
type ProjectFS struct {
	rootDir string
	logger  log.Logger
}

// Candidate is a discovered source file.
type Candidate struct {
	Path    string // Slash-separated, relative to the project root
	Content []byte
}

// Skipped is a file that discovery could not evaluate.
type Skipped struct {
	Path   string
	Reason error
}

// Predicate decides whether a file's content makes it a candidate.
type Predicate func(content []byte) bool

// Contains returns a Predicate matching content that includes marker.
func Contains(marker string) Predicate {
	m := []byte(marker)
	return func(content []byte) bool {
		return bytes.Contains(content, m)
	}
}

// New creates a ProjectFS rooted at rootDir, which is made absolute.
//
// Parameters:
//   - rootDir: Project root directory
//   - logger: Logger for debug records (nil discards)
//
// Returns:
//   - *ProjectFS: Project file system instance
//
// Concurrency:
//   - Safe for concurrent use
//
// Performance:
//   - One Abs call
func New(rootDir string, logger log.Logger) *ProjectFS {
	if abs, err := filepath.Abs(rootDir); err == nil {
		rootDir = abs
	}
	return &ProjectFS{
		rootDir: rootDir,
		logger:  log.OrNop(logger),
	}
}

// Root returns the absolute project root.
func (p *ProjectFS) Root() string {
	return p.rootDir
}

// ProjectName returns the base name of the project root directory.
func (p *ProjectFS) ProjectName() string {
	return filepath.Base(p.rootDir)
}

// Abs returns the absolute path of a root-relative path.
func (p *ProjectFS) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.rootDir, filepath.FromSlash(path))
}

// RequireMarker fails with FAILED_PRECONDITION unless marker exists in the root.
//
// Parameters:
//   - marker: Root-relative file that identifies the project root
//
// Returns:
//   - error: Wraps ErrNotProjectRoot when the marker is missing
//
// Concurrency:
//   - Safe for concurrent use
//
// Performance:
//   - One stat call
func (p *ProjectFS) RequireMarker(marker string) error {
	ok, err := p.FileExists(marker)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "check project root", err)
	}
	if !ok {
		return errors.Wrapf(errors.CodeFailedPrecondition, "check project root", ErrNotProjectRoot,
			"%s not found in %s", marker, p.rootDir)
	}
	return nil
}

// FileExists reports whether path exists.
func (p *ProjectFS) FileExists(path string) (bool, error) {
	_, err := os.Stat(p.Abs(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// DirectoryExists reports whether path exists and is a directory.
func (p *ProjectFS) DirectoryExists(path string) (bool, error) {
	info, err := os.Stat(p.Abs(path))
	if err == nil {
		return info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// ReadFile reads a root-relative file.
func (p *ProjectFS) ReadFile(path string) ([]byte, error) {
	content, err := os.ReadFile(p.Abs(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return content, nil
}

// WriteFile replaces path with content. The data is written to a temporary
// file in the same directory and renamed over the target, so a failed write
// never leaves a truncated file behind. An existing file keeps its mode.
//
// Parameters:
//   - path: Root-relative file path
//   - content: File content
//   - mode: Permissions for a new file
//
// Returns:
//   - error: File system error if any
//
// Concurrency:
//   - Single writer per file
//
// Performance:
//   - One temporary file plus rename
func (p *ProjectFS) WriteFile(path string, content []byte, mode fs.FileMode) error {
	fullPath := p.Abs(path)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}
	if info, err := os.Stat(fullPath); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return fmt.Errorf("failed to replace file %s: %w", path, err)
	}

	p.logger.Debug("file written", log.Str("path", path), log.Int("bytes", len(content)))
	return nil
}

// CopyFile copies src to dst, both root-relative.
func (p *ProjectFS) CopyFile(src, dst string) error {
	content, err := p.ReadFile(src)
	if err != nil {
		return err
	}
	if err := p.WriteFile(dst, content, 0o644); err != nil {
		return err
	}
	p.logger.Debug("file copied", log.Str("src", src), log.Str("dst", dst))
	return nil
}

// Discover walks dir and returns every file with extension ext whose content
// satisfies match. A missing dir yields no candidates. Files that cannot be
// read, are not valid UTF-8, or sit in unreadable directories are returned as
// Skipped. Candidates are sorted by path.
//
// Parameters:
//   - dir: Root-relative directory to walk
//   - ext: File extension including the dot, e.g. ".py"
//   - match: Content predicate
//
// Returns:
//   - []Candidate: Matching files with their content
//   - []Skipped: Files that could not be evaluated
//   - error: Only for failures to start the walk
//
// Concurrency:
//   - Single-threaded
//
// Performance:
//   - O(total size of files with ext)
func (p *ProjectFS) Discover(dir, ext string, match Predicate) ([]Candidate, []Skipped, error) {
	start := p.Abs(dir)
	if ok, err := p.DirectoryExists(dir); err != nil {
		return nil, nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	} else if !ok {
		p.logger.Debug("source directory missing", log.Str("dir", dir))
		return nil, nil, nil
	}

	var found []Candidate
	var skipped []Skipped

	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, walkErr error) error {
		rel := p.relSlash(path)
		if walkErr != nil {
			skipped = append(skipped, Skipped{Path: rel, Reason: walkErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != ext {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, Skipped{Path: rel, Reason: err})
			return nil
		}
		if !utf8.Valid(content) {
			skipped = append(skipped, Skipped{Path: rel, Reason: ErrNotText})
			return nil
		}
		if match == nil || match(content) {
			found = append(found, Candidate{Path: rel, Content: content})
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	p.logger.Debug("discovery finished", log.Str("dir", dir), log.Int("found", len(found)), log.Int("skipped", len(skipped)))
	return found, skipped, nil
}

func (p *ProjectFS) relSlash(path string) string {
	rel, err := filepath.Rel(p.rootDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
