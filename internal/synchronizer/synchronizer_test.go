package synchronizer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.eggybyte.com/egg/workerkit/configx"
	"go.eggybyte.com/egg/workerkit/core/errors"
	"go.eggybyte.com/egg/workerkit/internal/diag"
	"go.eggybyte.com/egg/workerkit/internal/document"
	"go.eggybyte.com/egg/workerkit/internal/projectfs"
	"go.eggybyte.com/egg/workerkit/testingx"
)

const launcher = "PYTHONPATH=/application poetry run python -u"

func newSync(t *testing.T, root string, mutate func(*Config), opts ...Option) *Synchronizer {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(root, cfg, append([]Option{WithLogger(testingx.NewMockLogger(t))}, opts...)...)
	require.NoError(t, err)
	return s
}

func loadEntries(t *testing.T, root string) (*document.Document, *document.Section) {
	t.Helper()
	doc, err := document.Parse([]byte(testingx.ReadFile(t, root, "docker-compose.yml")))
	require.NoError(t, err)
	sec, err := doc.EnsureSection("services")
	require.NoError(t, err)
	return doc, sec
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "pyproject.toml", cfg.RootMarkerFile)
	assert.Equal(t, "src/workers", cfg.SourceRoot)
	assert.Equal(t, `__name__ == "__main__"`, cfg.Marker)
	assert.Equal(t, 1, cfg.GroupDepth)
	assert.Equal(t, []string{"--run=api"}, cfg.EntryPoint.Args)
	assert.Equal(t, Network{Name: "net", External: true}, cfg.DefaultNetwork)
	assert.Equal(t, []string{"./src:/application/src"}, cfg.Template.Volumes)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultTagsBind(t *testing.T) {
	var cfg Config
	if err := configx.Bind(map[string]string{}, &cfg); err != nil {
		t.Fatalf("Expected default tags to bind, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GroupDepth = 0
	_, err := New(t.TempDir(), cfg)
	testingx.AssertError(t, err, errors.CodeInvalidArgument)
}

func TestSync_BillingScenario(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":                       "",
		"src/workers/billing/charge_worker.py": testingx.WorkerSource("ChargeWorker"),
		"src/workers/billing/models.py":        "class Charge:\n    pass\n",
	})
	s := newSync(t, root, nil)

	res, err := s.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, []string{"billing-charge-worker"}, res.AddedKeys)
	assert.Equal(t, []string{"src/workers/billing/charge_worker.py"}, res.Discovered)

	doc, sec := loadEntries(t, root)
	var got EntryBlock
	require.NoError(t, sec.Decode("billing-charge-worker", &got))

	want := EntryBlock{
		Image:         "shop",
		Build:         Build{Context: ".", Dockerfile: "Dockerfile"},
		ContainerName: "billing-charge-worker",
		Command:       "bash -c '" + launcher + " src/workers/billing/charge_worker.py '",
		Restart:       "always",
		Volumes:       []string{"./src:/application/src"},
		EnvFile:       []string{".env"},
		Logging:       &Logging{Options: LoggingOptions{MaxSize: "10m"}},
		Networks:      []string{"net"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}

	var networks map[string]map[string]any
	require.NoError(t, doc.Decode("networks", &networks))
	assert.Equal(t, map[string]map[string]any{"net": {"name": "net", "external": true}}, networks)
}

func TestSync_DefaultNetworkKeyOrder(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{"pyproject.toml": ""})

	_, err := newSync(t, root, nil).Sync(context.Background())
	require.NoError(t, err)

	content := testingx.ReadFile(t, root, "docker-compose.yml")
	assert.Contains(t, content, "networks:\n  net:\n    name: net\n    external: true\n")
}

func TestSync_ExtensionIsCaseSensitive(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":                       "",
		"src/workers/billing/charge.PY":        testingx.WorkerSource("Charge"),
		"src/workers/billing/refund.PY":        testingx.WorkerSource("Refund"),
		"src/workers/billing/charge_worker.py": testingx.WorkerSource("ChargeWorker"),
	})

	res, err := newSync(t, root, nil).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"src/workers/billing/charge_worker.py"}, res.Discovered)
	assert.Equal(t, []string{"billing-charge-worker"}, res.AddedKeys)
	assert.False(t, res.Diagnostics.HasWarnings(), "%v", res.Diagnostics.Items())

	_, sec := loadEntries(t, root)
	assert.False(t, sec.Has("billing-"))
}

func TestSync_Idempotent(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":              "",
		"src/api/":                    "",
		"src/workers/alpha_worker.py": testingx.WorkerSource("AlphaWorker"),
		"src/workers/mail/send.py":    testingx.WorkerSource("Send"),
	})
	s := newSync(t, root, nil)

	first, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Added)
	before := testingx.ReadFile(t, root, "docker-compose.yml")

	second, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 3, second.Total)
	assert.Empty(t, second.AddedKeys)
	assert.Equal(t, before, testingx.ReadFile(t, root, "docker-compose.yml"))
}

func TestSync_EntryPointFirst(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":              "",
		"src/api/routes.py":           "",
		"src/workers/alpha_worker.py": testingx.WorkerSource("AlphaWorker"),
	})
	s := newSync(t, root, nil)

	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"shop-api", "workers-alpha-worker"}, res.AddedKeys)

	_, sec := loadEntries(t, root)
	assert.Equal(t, []string{"shop-api", "workers-alpha-worker"}, sec.Keys())

	var api EntryBlock
	require.NoError(t, sec.Decode("shop-api", &api))
	assert.Equal(t, "bash -c '"+launcher+" src/__main__.py --run=api'", api.Command)
	assert.Equal(t, "shop-api", api.ContainerName)
}

func TestSync_NoEntryPointWithoutGuard(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{"pyproject.toml": ""})
	s := newSync(t, root, nil)

	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.Total)

	doc, sec := loadEntries(t, root)
	assert.Equal(t, 0, sec.Len())
	assert.Equal(t, []string{"services", "networks"}, doc.Keys())
}

func TestSync_MissingRootMarker(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"src/workers/alpha_worker.py": testingx.WorkerSource("AlphaWorker"),
	})
	s := newSync(t, root, nil)

	_, err := s.Sync(context.Background())
	testingx.AssertError(t, err, errors.CodeFailedPrecondition)
	assert.True(t, errors.Is(err, projectfs.ErrNotProjectRoot))

	exists, ferr := projectfs.New(root, nil).FileExists("docker-compose.yml")
	require.NoError(t, ferr)
	assert.False(t, exists, "nothing may be written outside a project root")
}

func TestSync_PreservesExistingContent(t *testing.T) {
	existing := `# managed by hand
services:
  postgres:
    image: postgres:16
    environment:
      POSTGRES_PASSWORD: secret # local only
  workers-alpha-worker:
    image: custom
networks:
  internal:
    driver: bridge
volumes:
  pgdata: {}
`
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":              "",
		"docker-compose.yml":          existing,
		"src/workers/alpha_worker.py": testingx.WorkerSource("AlphaWorker"),
		"src/workers/beta_worker.py":  testingx.WorkerSource("BetaWorker"),
	})
	s := newSync(t, root, nil)

	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"workers-beta-worker"}, res.AddedKeys)
	assert.Equal(t, 3, res.Total)

	doc, sec := loadEntries(t, root)
	assert.Equal(t, []string{"postgres", "workers-alpha-worker", "workers-beta-worker"}, sec.Keys())
	assert.Equal(t, []string{"services", "networks", "volumes"}, doc.Keys())

	var alpha map[string]any
	require.NoError(t, sec.Decode("workers-alpha-worker", &alpha))
	assert.Equal(t, map[string]any{"image": "custom"}, alpha)

	var networks map[string]any
	require.NoError(t, doc.Decode("networks", &networks))
	assert.Equal(t, map[string]any{"internal": map[string]any{"driver": "bridge"}}, networks)

	text := testingx.ReadFile(t, root, "docker-compose.yml")
	assert.Contains(t, text, "# managed by hand")
	assert.Contains(t, text, "# local only")
}

func TestSync_EmptyDocumentTreatedAsMissing(t *testing.T) {
	for name, content := range map[string]string{"empty": "", "whitespace": "  \n\n\t\n"} {
		t.Run(name, func(t *testing.T) {
			root := testingx.NewProject(t, map[string]string{
				"pyproject.toml":              "",
				"docker-compose.yml":          content,
				"src/workers/alpha_worker.py": testingx.WorkerSource("AlphaWorker"),
			})
			res, err := newSync(t, root, nil).Sync(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, res.Added)
			assert.Equal(t, 0, res.Diagnostics.Len())

			doc, _ := loadEntries(t, root)
			assert.Equal(t, []string{"services", "networks"}, doc.Keys())
		})
	}
}

func TestSync_NullEntrySection(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":              "",
		"docker-compose.yml":          "services:\n",
		"src/workers/alpha_worker.py": testingx.WorkerSource("AlphaWorker"),
	})
	res, err := newSync(t, root, nil).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestSync_NonMappingEntrySection(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":     "",
		"docker-compose.yml": "services:\n  - web\n",
	})
	_, err := newSync(t, root, nil).Sync(context.Background())
	testingx.AssertError(t, err, errors.CodeInvalidArgument)
	assert.Equal(t, "services:\n  - web\n", testingx.ReadFile(t, root, "docker-compose.yml"))
}

func TestSync_ParseFailureLenient(t *testing.T) {
	broken := "services:\n  web: [unclosed\n"
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":              "",
		"docker-compose.yml":          broken,
		"src/workers/alpha_worker.py": testingx.WorkerSource("AlphaWorker"),
	})
	res, err := newSync(t, root, nil).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Added)
	assert.True(t, res.Diagnostics.HasWarnings())
	assert.Equal(t, broken, testingx.ReadFile(t, root, "docker-compose.yml.bak"))

	_, sec := loadEntries(t, root)
	assert.Equal(t, []string{"workers-alpha-worker"}, sec.Keys())
}

func TestSync_ParseFailureStrict(t *testing.T) {
	broken := "- just\n- a list\n"
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":     "",
		"docker-compose.yml": broken,
	})
	s := newSync(t, root, func(c *Config) { c.Strict = true })

	_, err := s.Sync(context.Background())
	testingx.AssertError(t, err, errors.CodeInvalidArgument)
	assert.True(t, errors.Is(err, ErrParse))
	assert.Equal(t, broken, testingx.ReadFile(t, root, "docker-compose.yml"))

	exists, ferr := projectfs.New(root, nil).FileExists("docker-compose.yml.bak")
	require.NoError(t, ferr)
	assert.False(t, exists)
}

func TestSync_SkipsNonTextFiles(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":              "",
		"src/workers/alpha_worker.py": testingx.WorkerSource("AlphaWorker"),
		"src/workers/blob.py":         "\xff\xfe\xfd",
	})
	res, err := newSync(t, root, nil).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Added)
	items := res.Diagnostics.Items()
	require.Len(t, items, 1)
	assert.Equal(t, diag.SeverityInfo, items[0].Severity)
	assert.Equal(t, "src/workers/blob.py", items[0].Path)
}

func TestSync_MissingSourceRoot(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{"pyproject.toml": ""})
	res, err := newSync(t, root, func(c *Config) { c.SourceRoot = "src/nowhere" }).Sync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Discovered)
}

func TestSync_OutsideWorkDirFallsBackToAbsolute(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":              "",
		"src/workers/alpha_worker.py": testingx.WorkerSource("AlphaWorker"),
	})
	elsewhere := filepath.Join(t.TempDir(), "elsewhere")
	s := newSync(t, root, nil, WithWorkDir(elsewhere))

	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	require.True(t, res.Diagnostics.HasWarnings())

	_, sec := loadEntries(t, root)
	var got EntryBlock
	require.NoError(t, sec.Decode("workers-alpha-worker", &got))
	abs := filepath.ToSlash(filepath.Join(s.Root(), "src", "workers", "alpha_worker.py"))
	assert.Equal(t, "bash -c '"+launcher+" "+abs+" '", got.Command)
}

func TestSync_DuplicateKeys(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":          "",
		"src/workers/a/jobs/x.py": testingx.WorkerSource("X"),
		"src/workers/b/jobs/x.py": testingx.WorkerSource("X"),
	})
	res, err := newSync(t, root, nil).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs-x"}, res.AddedKeys)
	assert.True(t, res.Diagnostics.HasWarnings())
}

func TestSync_GroupDepth(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":                       "",
		"src/workers/billing/charge_worker.py": testingx.WorkerSource("ChargeWorker"),
	})
	res, err := newSync(t, root, func(c *Config) { c.GroupDepth = 3 }).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"src-charge-worker"}, res.AddedKeys)
}

func TestSync_Cancelled(t *testing.T) {
	root := testingx.NewProject(t, map[string]string{
		"pyproject.toml":              "",
		"src/workers/alpha_worker.py": testingx.WorkerSource("AlphaWorker"),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSync(t, root, nil).Sync(ctx)
	testingx.AssertError(t, err, errors.CodeAborted)

	exists, ferr := projectfs.New(root, nil).FileExists("docker-compose.yml")
	require.NoError(t, ferr)
	assert.False(t, exists)
}

func TestSynthesizeEntry_Template(t *testing.T) {
	root := t.TempDir()
	tmpl := DefaultConfig().Template
	tmpl.Image = "registry.local/shop"
	tmpl.LogMaxSize = ""
	tmpl.Networks = []string{"backend"}

	block := SynthesizeEntry("mail-send", filepath.Join(root, "src", "workers", "mail", "send.py"), root, tmpl, "shop",
		[]string{"--queue=mail", "--verbose"}, diag.New())

	assert.Equal(t, "registry.local/shop", block.Image)
	assert.Nil(t, block.Logging)
	assert.Equal(t, []string{"backend"}, block.Networks)
	assert.True(t, strings.HasSuffix(block.Command, "src/workers/mail/send.py --queue=mail --verbose'"), block.Command)
}
