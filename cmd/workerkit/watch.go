package main

import (
	"context"

	"github.com/spf13/cobra"

	"go.eggybyte.com/egg/workerkit/core/log"
	"go.eggybyte.com/egg/workerkit/internal/configschema"
	"go.eggybyte.com/egg/workerkit/internal/ui"
	"go.eggybyte.com/egg/workerkit/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate compose services and tests when workers change",
		Long: `Run compose and tests once, then again whenever a worker file changes.

Changes are batched: generation runs after no event arrived for the
debounce interval. Stop with Ctrl+C.

Example:
  workerkit watch
  workerkit watch --debounce 2s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd)
		},
	}

	cmd.Flags().Duration("debounce", watch.DefaultConfig().Debounce, "Quiet period before regenerating")
	bindConfigKey(cmd.Flags(), "debounce", "WATCH_DEBOUNCE")
	return cmd
}

func (a *app) runWatch(cmd *cobra.Command) error {
	for _, s := range []configschema.Section{configschema.SectionWatch, configschema.SectionCompose, configschema.SectionTests} {
		if err := a.validate(s); err != nil {
			return err
		}
	}

	regenerate := func() error {
		if err := a.runCompose(cmd); err != nil {
			return err
		}
		return a.runTests(cmd)
	}

	if err := regenerate(); err != nil {
		ui.Error("%v", err)
	}

	dirs := []string{a.cfg.Compose.SourceRoot}
	if a.cfg.Tests.SourceRoot != a.cfg.Compose.SourceRoot {
		dirs = append(dirs, a.cfg.Tests.SourceRoot)
	}

	w, err := watch.New(a.root, dirs, a.cfg.Watch, a.logger, func(ctx context.Context, changed []string) error {
		ui.Info("%d worker files changed", len(changed))
		a.logger.Debug("changed files", log.Int("count", len(changed)))
		if err := regenerate(); err != nil {
			ui.Error("%v", err)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	ui.Info("Watching %v (Ctrl+C to stop)", dirs)
	if err := w.Run(cmd.Context()); err != nil {
		return err
	}
	ui.Info("Watch stopped")
	return nil
}
