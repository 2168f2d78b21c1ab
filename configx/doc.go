// Package configx loads workerkit configuration from layered sources.
//
// # Overview
//
// Sources are merged in order with last-wins semantics. The usual stack is
// struct-tag defaults, then .workerkit.yaml or .workerkit.toml in the project
// root, then WORKERKIT_* environment variables, then explicitly set flags.
// File keys are flattened: a nested "gitlab: {url: ...}" becomes GITLAB_URL,
// which is also what WORKERKIT_GITLAB_URL maps to once the prefix is stripped.
//
// # Binding
//
// Structs declare keys with `env:"KEY"`, fallbacks with `default:"value"`, and
// constraints with go-playground/validator `validate` tags. Slices of strings
// are comma-separated.
//
// # Usage
//
//	type Config struct {
//		SourceRoot string `env:"SOURCE_ROOT" default:"src/workers" validate:"required"`
//	}
//	var cfg Config
//	err := configx.NewLoader(logger, configx.NewEnvSource(configx.EnvOptions{Prefix: "WORKERKIT_"})).Load(ctx, &cfg)
package configx
