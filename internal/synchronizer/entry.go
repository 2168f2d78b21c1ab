package synchronizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.eggybyte.com/egg/workerkit/internal/diag"
)

// EntryBlock is one generated service definition. Field order is the order
// written to the document.
type EntryBlock struct {
	Image         string   `yaml:"image"`
	Build         Build    `yaml:"build"`
	ContainerName string   `yaml:"container_name"`
	Command       string   `yaml:"command"`
	Restart       string   `yaml:"restart"`
	Volumes       []string `yaml:"volumes,omitempty"`
	EnvFile       []string `yaml:"env_file,omitempty"`
	Logging       *Logging `yaml:"logging,omitempty"`
	Networks      []string `yaml:"networks,omitempty"`
}

// Build is the build section of an EntryBlock.
type Build struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile"`
}

// Logging is the logging section of an EntryBlock.
type Logging struct {
	Options LoggingOptions `yaml:"options"`
}

// LoggingOptions holds driver options.
type LoggingOptions struct {
	MaxSize string `yaml:"max-size"`
}

// DeriveKey maps a source path to its entry key, "<group>-<base>".
//
// The base is the file name without ext, with underscores turned into
// hyphens; a name that does not end in ext gives an empty base. The group is
// the directory depth levels above the file. When that component does not
// exist or is empty, fallback is used. Both "/" and "\" separate components.
//
// Parameters:
//   - path: Source file path, relative or absolute
//   - ext: Source extension including the dot
//   - depth: Ancestor level of the group directory (1 = parent)
//   - fallback: Group used when the ancestor is missing, usually the project name
//
// Returns:
//   - string: Entry key; never fails
//
// Concurrency:
//   - Pure function
//
// Performance:
//   - O(len(path))
func DeriveKey(path, ext string, depth int, fallback string) string {
	parts := splitPath(path)

	base := ""
	if len(parts) > 0 {
		name := parts[len(parts)-1]
		if stem, ok := strings.CutSuffix(name, ext); ok && stem != "" {
			base = strings.ReplaceAll(stem, "_", "-")
		}
	}

	group := ""
	if i := len(parts) - 1 - depth; depth > 0 && i >= 0 {
		group = parts[i]
	}
	if strings.TrimSpace(group) == "" || group == ".." {
		group = fallback
	}

	return group + "-" + base
}

func splitPath(path string) []string {
	fields := strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' })
	parts := fields[:0]
	for _, f := range fields {
		if f != "." {
			parts = append(parts, f)
		}
	}
	return parts
}

// SynthesizeEntry builds the entry for key, launching the file at absPath.
//
// The command runs the launcher on the path relative to workDir with forward
// slashes. A path that cannot be expressed relative to workDir is used as an
// absolute path and a warning is recorded in diags.
func SynthesizeEntry(key, absPath, workDir string, tmpl Template, image string, extraArgs []string, diags *diag.Diagnostics) EntryBlock {
	rel := relativize(absPath, workDir, diags)

	if tmpl.Image != "" {
		image = tmpl.Image
	}

	block := EntryBlock{
		Image:         image,
		Build:         Build{Context: tmpl.BuildContext, Dockerfile: tmpl.Dockerfile},
		ContainerName: key,
		Command:       fmt.Sprintf("bash -c '%s %s %s'", tmpl.Launcher, rel, strings.Join(extraArgs, " ")),
		Restart:       tmpl.Restart,
		Volumes:       cloneStrings(tmpl.Volumes),
		EnvFile:       cloneStrings(tmpl.EnvFiles),
		Networks:      cloneStrings(tmpl.Networks),
	}
	if tmpl.LogMaxSize != "" {
		block.Logging = &Logging{Options: LoggingOptions{MaxSize: tmpl.LogMaxSize}}
	}
	return block
}

func relativize(absPath, workDir string, diags *diag.Diagnostics) string {
	rel, err := filepath.Rel(workDir, absPath)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(rel)
	}
	if diags != nil {
		diags.AddWarning("could not compute a relative path, using the absolute path", filepath.ToSlash(absPath),
			"run workerkit from the project root")
	}
	return filepath.ToSlash(absPath)
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}
