package teststub

import "go.eggybyte.com/egg/workerkit/configx"

// Config describes which workers get stubs and where the stubs are written.
type Config struct {
	RootMarkerFile string   `env:"ROOT_MARKER_FILE" default:"pyproject.toml" validate:"required"`
	SourceRoot     string   `env:"TESTS_SOURCE_ROOT" default:"src/workers" validate:"required"`
	OutputPath     string   `env:"TESTS_OUTPUT" default:"tests/workers/test_workers.py" validate:"required"`
	Marker         string   `env:"WORKER_MARKER" default:"__name__ == \"__main__\"" validate:"required"`
	Extension      string   `env:"WORKER_EXTENSION" default:".py" validate:"required,startswith=."`
	Imports        []string `env:"TESTS_IMPORTS" default:"import asyncio,import pytest,from src.helper import redis_client" validate:"dive,required"`

	// HelperImport may only be added while HelperFile exists.
	HelperImport   string `env:"TESTS_HELPER_IMPORT" default:"from src.helper import redis_client"`
	HelperFile     string `env:"TESTS_HELPER_FILE" default:"src/helper.py"`
	TimeoutSeconds int    `env:"TESTS_TIMEOUT_SECONDS" default:"2" validate:"min=1"`
}

// DefaultConfig returns the configuration built from the `default` tags.
func DefaultConfig() Config {
	var cfg Config
	_ = configx.Bind(map[string]string{}, &cfg)
	return cfg
}

// Validate checks cfg against its `validate` tags.
func (c Config) Validate() error {
	return configx.ValidateStruct(nil, &c)
}
