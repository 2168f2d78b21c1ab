// Package configx provides layered configuration loading for workerkit commands.
//
// Overview:
//   - Responsibility: Merge defaults, config files, environment and flag overrides
//   - Key Types: Source interface, Loader, EnvSource, FileSource, MapSource
//   - Concurrency Model: Sources are read once per Load; Loader is not shared
//   - Error Semantics: Parse, bind and validation failures are returned, never logged
//   - Performance Notes: One read per source, no watching
//
// Usage:
//
//	loader := configx.NewLoader(logger,
//	  configx.NewFileSource(".workerkit.yaml", configx.FileOptions{Optional: true}),
//	  configx.NewEnvSource(configx.EnvOptions{Prefix: "WORKERKIT_"}),
//	)
//	var cfg ComposeConfig
//	err := loader.Load(ctx, &cfg)
package configx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"

	"go.eggybyte.com/egg/workerkit/configx/internal"
	"go.eggybyte.com/egg/workerkit/core/log"
)

// Source produces a flat key-value snapshot.
type Source interface {
	// Name identifies the source in errors and logs.
	Name() string

	// Load reads the current snapshot.
	Load(ctx context.Context) (map[string]string, error)
}

// Loader merges sources in order; later sources override earlier ones.
type Loader struct {
	logger  log.Logger
	sources []Source
}

// NewLoader creates a Loader over sources.
func NewLoader(logger log.Logger, sources ...Source) *Loader {
	return &Loader{
		logger:  log.OrNop(logger),
		sources: sources,
	}
}

// Snapshot returns the merged key-value view of all sources.
func (l *Loader) Snapshot(ctx context.Context) (map[string]string, error) {
	merged := make(map[string]string)
	for _, source := range l.sources {
		values, err := source.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load config source %s: %w", source.Name(), err)
		}
		l.logger.Debug("config source loaded", log.Str("source", source.Name()), log.Int("keys", len(values)))
		maps.Copy(merged, values)
	}
	return merged, nil
}

// Load binds the merged snapshot into target and validates it.
// target must be a pointer to a struct using `env`, `default` and `validate` tags.
func (l *Loader) Load(ctx context.Context, target any) error {
	snapshot, err := l.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := internal.BindToStruct(snapshot, target); err != nil {
		return fmt.Errorf("failed to bind configuration: %w", err)
	}
	return ValidateStruct(nil, target)
}

// Bind fills target from snapshot without validating it.
func Bind(snapshot map[string]string, target any) error {
	return internal.BindToStruct(snapshot, target)
}

// EnvOptions configures an EnvSource.
type EnvOptions struct {
	Prefix  string          // Only variables with this prefix are read; the prefix is stripped
	Environ func() []string // Environment provider (default: os.Environ)
}

// EnvSource reads configuration from environment variables.
type EnvSource struct {
	prefix  string
	environ func() []string
}

// NewEnvSource creates an environment source.
func NewEnvSource(opts EnvOptions) *EnvSource {
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}
	return &EnvSource{prefix: opts.Prefix, environ: environ}
}

// Name implements Source.
func (s *EnvSource) Name() string {
	return "env:" + s.prefix + "*"
}

// Load implements Source.
func (s *EnvSource) Load(ctx context.Context) (map[string]string, error) {
	return internal.ReadEnv(s.prefix, s.environ()), nil
}

// FileOptions configures a FileSource.
type FileOptions struct {
	Format   string // "yaml", "toml" or "json" (default: from extension)
	Optional bool   // A missing file yields an empty snapshot instead of an error
}

// FileSource reads configuration from a YAML, TOML or JSON file.
// Nested keys are flattened to SECTION_KEY form.
type FileSource struct {
	path string
	opts FileOptions
}

// NewFileSource creates a file source.
func NewFileSource(path string, opts FileOptions) *FileSource {
	return &FileSource{path: path, opts: opts}
}

// Name implements Source.
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) (map[string]string, error) {
	values, err := internal.ReadFile(s.path, s.opts.Format)
	if err != nil {
		if s.opts.Optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return values, nil
}

// MapSource serves a fixed snapshot, typically built from explicitly set CLI flags.
type MapSource struct {
	name   string
	values map[string]string
}

// NewMapSource creates a fixed source.
func NewMapSource(name string, values map[string]string) *MapSource {
	return &MapSource{name: name, values: maps.Clone(values)}
}

// Name implements Source.
func (s *MapSource) Name() string {
	return s.name
}

// Load implements Source.
func (s *MapSource) Load(ctx context.Context) (map[string]string, error) {
	return maps.Clone(s.values), nil
}

// SplitList splits a comma-separated configuration value.
func SplitList(value string) []string {
	return internal.SplitList(value)
}
