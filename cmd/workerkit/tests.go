package main

import (
	"github.com/spf13/cobra"

	"go.eggybyte.com/egg/workerkit/internal/configschema"
	"go.eggybyte.com/egg/workerkit/internal/teststub"
	"go.eggybyte.com/egg/workerkit/internal/ui"
)

func newTestsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tests",
		Short: "Append missing pytest stubs for workers",
		Long: `Append a pytest smoke test for every runnable worker that has none yet.

This command:
- Adds the asyncio, pytest and redis_client imports when missing
- Requires src/helper.py before adding the redis_client import
- Starts each worker with its own launch line under a short timeout
- Never rewrites existing tests

Example:
  workerkit tests
  workerkit tests --output tests/test_workers.py`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTests(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("output", "tests/workers/test_workers.py", "Test module to update")
	flags.String("source-root", "src/workers", "Directory scanned for workers")
	bindConfigKey(flags, "output", "TESTS_OUTPUT")
	bindConfigKey(flags, "source-root", "TESTS_SOURCE_ROOT")
	return cmd
}

func (a *app) runTests(cmd *cobra.Command) error {
	if err := a.validate(configschema.SectionTests); err != nil {
		return err
	}
	gen, err := teststub.New(a.root, a.cfg.Tests, a.logger)
	if err != nil {
		return err
	}

	res, err := gen.Generate(cmd.Context())
	if err != nil {
		return err
	}

	for _, imp := range res.ImportsAdded {
		ui.Debug("Added import: %s", imp)
	}
	for _, name := range res.Skipped {
		ui.Info("Test for %s already exists, skipping", name)
	}
	for _, name := range res.AddedNames {
		ui.Success("Added test: test_%s", name)
	}
	printDiagnostics(res.Diagnostics, false)
	ui.Success("Updated %s (added %d new tests, workers: %d)", res.OutputPath, res.Added, res.Total)
	return nil
}
