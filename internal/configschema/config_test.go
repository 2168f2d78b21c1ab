package configschema

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.eggybyte.com/egg/workerkit/internal/diag"
	"go.eggybyte.com/egg/workerkit/testingx"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func TestLoad_Defaults(t *testing.T) {
	root := testingx.NewProject(t, nil)

	cfg, diags := Load(context.Background(), LoadOptions{Root: root, Environ: environ()})
	require.NotNil(t, cfg)
	assert.False(t, diags.HasErrors())

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "docker-compose.yml", cfg.Compose.DocumentPath)
	assert.Equal(t, "tests/workers/test_workers.py", cfg.Tests.OutputPath)
	assert.Equal(t, "APP_", cfg.CIVars.Prefix)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)

	for _, s := range []Section{SectionLogging, SectionCompose, SectionTests, SectionWatch} {
		assert.False(t, cfg.Validate(s).HasErrors(), "section %s", s)
	}
}

func TestLoad_Precedence(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		".workerkit.yaml": `
log_level: info
compose:
  source_root: app/workers
  group_depth: 2
  volumes:
    - ./app:/application/app
    - ./shared:/shared
ci:
  host: gitlab.example.com
  group: acme
`,
	})

	cfg, diags := Load(context.Background(), LoadOptions{
		Root:      root,
		Environ:   environ("WORKERKIT_COMPOSE_GROUP_DEPTH=3", "WORKERKIT_CI_GROUP=acme-env", "OTHER=1"),
		Overrides: map[string]string{"CI_GROUP": "acme-flag"},
	})
	require.NotNil(t, cfg, "%v", diags.Items())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "app/workers", cfg.Compose.SourceRoot)
	assert.Equal(t, 3, cfg.Compose.GroupDepth)
	assert.Equal(t, []string{"./app:/application/app", "./shared:/shared"}, cfg.Compose.Template.Volumes)
	assert.Equal(t, "gitlab.example.com", cfg.CIVars.Host)
	assert.Equal(t, "acme-flag", cfg.CIVars.Group)
	assert.Equal(t, 1, diags.Count(diag.SeverityInfo))
}

func TestLoad_TOML(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		".workerkit.toml": `
[tests]
output = "tests/test_generated.py"
timeout_seconds = 5

[watch]
debounce = "1s"
`,
	})

	cfg, diags := Load(context.Background(), LoadOptions{Root: root, Environ: environ()})
	require.NotNil(t, cfg, "%v", diags.Items())
	assert.Equal(t, "tests/test_generated.py", cfg.Tests.OutputPath)
	assert.Equal(t, 5, cfg.Tests.TimeoutSeconds)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	root := testingx.NewProject(t, nil)

	cfg, diags := Load(context.Background(), LoadOptions{
		Root:       root,
		ConfigPath: filepath.Join(root, "custom.yaml"),
		Environ:    environ(),
	})
	assert.Nil(t, cfg)
	assert.True(t, diags.HasErrors())
}

func TestLoad_BindError(t *testing.T) {
	cfg, diags := Load(context.Background(), LoadOptions{
		Root:    testingx.NewProject(t, nil),
		Environ: environ("WORKERKIT_WATCH_DEBOUNCE=soon"),
	})
	assert.Nil(t, cfg)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Items()[0].Suggestion, "durations")
}

func TestValidate_CIVars(t *testing.T) {
	cfg, diags := Load(context.Background(), LoadOptions{
		Root:      testingx.NewProject(t, nil),
		Environ:   environ(),
		Overrides: map[string]string{"CI_HOST": "gitlab.example.com", "CI_GROUP": "acme", "CI_PROJECT": "shop"},
	})
	require.NotNil(t, cfg, "%v", diags.Items())

	vd := cfg.Validate(SectionCIVars)
	require.True(t, vd.HasErrors())

	items := vd.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "ci-vars.CSRFToken", items[0].Path)
	assert.Contains(t, items[0].Suggestion, "WORKERKIT_CI_CSRF_TOKEN")
	assert.Contains(t, items[0].Suggestion, "ci.csrf_token")
	assert.Equal(t, "ci-vars.Session", items[1].Path)
}

func TestValidate_NestedField(t *testing.T) {
	cfg, _ := Load(context.Background(), LoadOptions{
		Root:    testingx.NewProject(t, nil),
		Environ: environ("WORKERKIT_COMPOSE_RESTART=sometimes", "WORKERKIT_LOG_LEVEL=loud"),
	})
	require.NotNil(t, cfg)

	vd := cfg.Validate(SectionCompose)
	require.Equal(t, 1, vd.Len())
	assert.True(t, strings.Contains(vd.Items()[0].Suggestion, "WORKERKIT_COMPOSE_RESTART"), vd.Items()[0].Suggestion)

	assert.True(t, cfg.Validate(SectionLogging).HasErrors())
	assert.True(t, cfg.Validate(Section("bogus")).HasErrors())
}
