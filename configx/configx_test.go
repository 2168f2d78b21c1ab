package configx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	SourceRoot string   `env:"SOURCE_ROOT" default:"src/workers" validate:"required"`
	Document   string   `env:"COMPOSE_DOCUMENT" default:"docker-compose.yml" validate:"required"`
	Volumes    []string `env:"COMPOSE_VOLUMES" default:"./src:/application/src"`
	URL        string   `env:"GITLAB_URL" validate:"omitempty,url"`
}

func TestLoader_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".workerkit.yaml")
	require.NoError(t, os.WriteFile(file, []byte("source_root: src/jobs\ncompose:\n  document: file.yml\n"), 0o644))

	env := NewEnvSource(EnvOptions{
		Prefix:  "WORKERKIT_",
		Environ: func() []string { return []string{"WORKERKIT_COMPOSE_DOCUMENT=env.yml"} },
	})
	flags := NewMapSource("flags", map[string]string{"SOURCE_ROOT": "src/flag"})

	var cfg testConfig
	err := NewLoader(nil, NewFileSource(file, FileOptions{}), env, flags).Load(context.Background(), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "src/flag", cfg.SourceRoot, "flags override file")
	assert.Equal(t, "env.yml", cfg.Document, "env overrides file")
	assert.Equal(t, []string{"./src:/application/src"}, cfg.Volumes, "default applies when no source sets the key")
}

func TestLoader_OptionalFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), ".workerkit.toml")

	var cfg testConfig
	err := NewLoader(nil, NewFileSource(missing, FileOptions{Optional: true})).Load(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "src/workers", cfg.SourceRoot)

	err = NewLoader(nil, NewFileSource(missing, FileOptions{})).Load(context.Background(), &cfg)
	assert.Error(t, err, "required file must exist")
}

func TestLoader_Validation(t *testing.T) {
	flags := NewMapSource("flags", map[string]string{"GITLAB_URL": "not a url"})

	var cfg testConfig
	err := NewLoader(nil, flags).Load(context.Background(), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoader_ClearedRequiredField(t *testing.T) {
	flags := NewMapSource("flags", map[string]string{"SOURCE_ROOT": ""})

	var cfg testConfig
	err := NewLoader(nil, flags).Load(context.Background(), &cfg)
	assert.Error(t, err, "an explicitly emptied required field must fail validation")
}

func TestMapSource_Copies(t *testing.T) {
	values := map[string]string{"A": "1"}
	source := NewMapSource("flags", values)
	values["A"] = "2"

	got, err := source.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", got["A"])
	assert.Equal(t, "flags", source.Name())
}

func TestBind(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Bind(map[string]string{"GITLAB_URL": "https://gitlab.example.com"}, &cfg))
	assert.Equal(t, "https://gitlab.example.com", cfg.URL)
	assert.Equal(t, "docker-compose.yml", cfg.Document)
}
