package main

import (
	"github.com/spf13/cobra"

	"go.eggybyte.com/egg/workerkit/internal/configschema"
	"go.eggybyte.com/egg/workerkit/internal/synchronizer"
	"go.eggybyte.com/egg/workerkit/internal/ui"
)

func newComposeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Append missing worker services to docker-compose.yml",
		Long: `Append a service definition for every runnable worker that has none yet.

This command:
- Scans the worker directory for modules with an entry-point guard
- Adds the API service first when src/api exists
- Keeps existing services, networks, comments and key order untouched
- Creates the document with a default external network when it is missing

An unparseable document is backed up to <document>.bak and rebuilt,
unless --strict is given.

Example:
  workerkit compose
  workerkit compose --strict --document deploy/docker-compose.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCompose(cmd)
		},
	}

	flags := cmd.Flags()
	flags.Bool("strict", false, "Fail instead of rebuilding an unparseable document")
	flags.String("document", "docker-compose.yml", "Deployment document to update")
	flags.String("source-root", "src/workers", "Directory scanned for workers")
	flags.Int("group-depth", 1, "Ancestor directory used as the service name prefix (1 = parent)")
	bindConfigKey(flags, "strict", "COMPOSE_STRICT")
	bindConfigKey(flags, "document", "COMPOSE_DOCUMENT")
	bindConfigKey(flags, "source-root", "COMPOSE_SOURCE_ROOT")
	bindConfigKey(flags, "group-depth", "COMPOSE_GROUP_DEPTH")
	return cmd
}

// runCompose executes the compose command.
//
// Parameters:
//   - cmd: Cobra command
//
// Returns:
//   - error: Configuration, precondition or write error
//
// Concurrency:
//   - Single-threaded
//
// Performance:
//   - One directory walk and one document rewrite
func (a *app) runCompose(cmd *cobra.Command) error {
	if err := a.validate(configschema.SectionCompose); err != nil {
		return err
	}
	s, err := synchronizer.New(a.root, a.cfg.Compose, synchronizer.WithLogger(a.logger))
	if err != nil {
		return err
	}

	res, err := s.Sync(cmd.Context())
	if err != nil {
		return err
	}

	ui.Info("Found %d worker files", len(res.Discovered))
	for _, key := range res.AddedKeys {
		ui.Success("Added service: %s", key)
	}
	printDiagnostics(res.Diagnostics, false)
	ui.Success("Updated %s (added %d new services, total: %d)", res.DocumentPath, res.Added, res.Total)
	return nil
}
