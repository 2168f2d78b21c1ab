// Package configschema loads and validates the workerkit configuration.
//
// Overview:
//   - Responsibility: Layer defaults, .workerkit.yaml/.toml, WORKERKIT_* variables and
//     flag overrides into one Config, then validate the section a command needs
//   - Key Types: Config, LoadOptions, Section
//   - Concurrency Model: Immutable configuration after loading
//   - Error Semantics: Problems are returned as diagnostics with a path and a suggestion
//   - Performance Notes: One read per source
//
// Usage:
//
//	cfg, diags := configschema.Load(ctx, configschema.LoadOptions{Root: "."})
//	diags.Merge(cfg.Validate(configschema.SectionCompose))
//	if diags.HasErrors() { ... }
package configschema

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"go.eggybyte.com/egg/workerkit/configx"
	"go.eggybyte.com/egg/workerkit/core/log"
	"go.eggybyte.com/egg/workerkit/internal/civars"
	"go.eggybyte.com/egg/workerkit/internal/diag"
	"go.eggybyte.com/egg/workerkit/internal/synchronizer"
	"go.eggybyte.com/egg/workerkit/internal/teststub"
	"go.eggybyte.com/egg/workerkit/internal/watch"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "WORKERKIT_"

// DefaultFiles are looked up in the project root, in order, when no
// configuration file is given explicitly.
var DefaultFiles = []string{".workerkit.yaml", ".workerkit.yml", ".workerkit.toml"}

// Config represents the complete workerkit configuration.
//
// Parameters:
//   - LogLevel: Minimum structured log level
//   - LogFormat: Structured log encoding
//   - Compose: Deployment document synchronization
//   - Tests: Test stub generation
//   - CIVars: CI variable upload
//   - Watch: Watch mode batching
//
// Returns:
//   - None (data structure)
//
// Concurrency:
//   - Immutable after loading
//
// Performance:
//   - Single allocation
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" default:"warn" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" default:"logfmt" validate:"oneof=logfmt json"`

	Compose synchronizer.Config
	Tests   teststub.Config
	CIVars  civars.Config
	Watch   watch.Config
}

// Section names a part of Config validated on its own.
type Section string

const (
	SectionLogging Section = "logging"
	SectionCompose Section = "compose"
	SectionTests   Section = "tests"
	SectionCIVars  Section = "ci-vars"
	SectionWatch   Section = "watch"
)

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	Root       string            // Project root searched for DefaultFiles
	ConfigPath string            // Explicit file; must exist when set
	Environ    func() []string   // Environment provider (default: os.Environ)
	Overrides  map[string]string // Flag values keyed like `env` tags; highest precedence
	Logger     log.Logger
}

// Load builds the configuration. Defaults come from struct tags, then the
// configuration file, then WORKERKIT_* variables, then Overrides.
//
// Parameters:
//   - ctx: Passed to every source
//   - opts: Source locations
//
// Returns:
//   - *Config: Bound configuration, nil when loading failed
//   - *diag.Diagnostics: Load problems; sections are validated separately
//
// Concurrency:
//   - Single-threaded file I/O
//
// Performance:
//   - One read per source
func Load(ctx context.Context, opts LoadOptions) (*Config, *diag.Diagnostics) {
	diags := diag.New()

	file, explicit := opts.ConfigPath, opts.ConfigPath != ""
	if !explicit {
		file = findDefaultFile(opts.Root)
	}

	var sources []configx.Source
	if file != "" {
		sources = append(sources, configx.NewFileSource(file, configx.FileOptions{Optional: !explicit}))
	}
	sources = append(sources,
		configx.NewEnvSource(configx.EnvOptions{Prefix: EnvPrefix, Environ: opts.Environ}),
		configx.NewMapSource("flags", opts.Overrides),
	)

	loader := configx.NewLoader(opts.Logger, sources...)
	snapshot, err := loader.Snapshot(ctx)
	if err != nil {
		diags.AddError(fmt.Sprintf("Failed to load configuration: %v", err), file,
			"Check the file syntax or pass --config with an existing file")
		return nil, diags
	}

	var cfg Config
	if err := configx.Bind(snapshot, &cfg); err != nil {
		diags.AddError(fmt.Sprintf("Failed to bind configuration: %v", err), file,
			"Check value types: durations like 500ms, integers, true/false")
		return nil, diags
	}
	if file != "" {
		diags.AddInfo("configuration file loaded", file, "")
	}
	return &cfg, diags
}

func findDefaultFile(root string) string {
	if root == "" {
		root = "."
	}
	for _, name := range DefaultFiles {
		path := filepath.Join(root, name)
		if ok, _ := fileExists(path); ok {
			return path
		}
	}
	return ""
}

// Validate checks one section and reports every violated rule as an error
// diagnostic whose suggestion names the variable that sets the field.
func (c *Config) Validate(section Section) *diag.Diagnostics {
	diags := diag.New()

	var target any
	switch section {
	case SectionLogging:
		target = &struct {
			LogLevel  string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
			LogFormat string `env:"LOG_FORMAT" validate:"oneof=logfmt json"`
		}{c.LogLevel, c.LogFormat}
	case SectionCompose:
		target = &c.Compose
	case SectionTests:
		target = &c.Tests
	case SectionCIVars:
		target = &c.CIVars
	case SectionWatch:
		target = &c.Watch
	default:
		diags.AddError(fmt.Sprintf("unknown configuration section %q", section), "", "")
		return diags
	}

	err := configx.NewValidator().Struct(target)
	if err == nil {
		return diags
	}

	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		diags.AddError(err.Error(), string(section), "")
		return diags
	}
	rootType := reflect.TypeOf(target).Elem()
	for _, fe := range verrs {
		key := envKey(rootType, fe.StructNamespace())
		diags.AddError(
			fmt.Sprintf("%s fails the %q rule", fe.Field(), ruleString(fe)),
			string(section)+"."+fe.Field(),
			fmt.Sprintf("set %s%s in the environment, %s in the config file, or the matching flag", EnvPrefix, key, fileKey(key)),
		)
	}
	return diags
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func ruleString(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// envKey resolves the `env` tag of the field at namespace, e.g.
// "Config.Template.Restart" relative to t.
func envKey(t reflect.Type, namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	var field reflect.StructField
	for _, name := range parts {
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		f, ok := t.FieldByName(name)
		if !ok {
			return strings.ToUpper(name)
		}
		field, t = f, f.Type
		for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
			t = t.Elem()
		}
	}
	if tag := field.Tag.Get("env"); tag != "" {
		return tag
	}
	return strings.ToUpper(field.Name)
}

// fileKey renders an env key as the nested file key that flattens to it,
// e.g. CI_CSRF_TOKEN -> ci.csrf_token.
func fileKey(key string) string {
	section, rest, ok := strings.Cut(strings.ToLower(key), "_")
	if !ok {
		return section
	}
	return section + "." + rest
}
