package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.eggybyte.com/egg/workerkit/core/errors"
	"go.eggybyte.com/egg/workerkit/internal/civars"
	"go.eggybyte.com/egg/workerkit/internal/configschema"
	"go.eggybyte.com/egg/workerkit/internal/envloader"
	"go.eggybyte.com/egg/workerkit/internal/ui"
)

func newCIVarsCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "ci-vars",
		Short: "Push .env variables to GitLab CI settings",
		Long: `Create one GitLab CI variable per entry of a .env file.

The request is made with a browser session: copy the _gitlab_session cookie
and the CSRF token from a logged-in settings page. Keys are prefixed (APP_ by
default). A rejected variable is reported and the run continues; after 5
consecutive failures the run stops.

Prefer WORKERKIT_CI_SESSION and WORKERKIT_CI_CSRF_TOKEN over flags so the
secrets stay out of shell history.

Example:
  workerkit ci-vars --url gitlab.example.com --group acme --project shop
  workerkit ci-vars --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				return a.runCIVarsDryRun()
			}
			return a.runCIVars(cmd)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&dryRun, "dry-run", false, "List the variables without sending them")
	flags.String("env-file", ".env", "Env file to read")
	flags.String("url", "", "GitLab instance host or base URL")
	flags.String("group", "", "Project group path")
	flags.String("project", "", "Project name")
	flags.String("csrf-token", "", "CSRF token of the browser session")
	flags.String("session", "", "Value of the _gitlab_session cookie")
	flags.String("prefix", "APP_", "Prefix added to every key")
	for name, key := range map[string]string{
		"env-file":   "CI_ENV_FILE",
		"url":        "CI_HOST",
		"group":      "CI_GROUP",
		"project":    "CI_PROJECT",
		"csrf-token": "CI_CSRF_TOKEN",
		"session":    "CI_SESSION",
		"prefix":     "CI_PREFIX",
	} {
		bindConfigKey(flags, name, key)
	}
	return cmd
}

func (a *app) runCIVarsDryRun() error {
	vars, err := envloader.LoadEnvFile(a.cfg.CIVars.EnvFile)
	if err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "read env file", err)
	}
	for _, v := range vars {
		ui.Info("Would create variable %s%s", a.cfg.CIVars.Prefix, v.Key)
	}
	ui.Success("%d variables in %s", len(vars), a.cfg.CIVars.EnvFile)
	return nil
}

func (a *app) runCIVars(cmd *cobra.Command) error {
	if err := a.validate(configschema.SectionCIVars); err != nil {
		return err
	}
	up, err := civars.New(a.cfg.CIVars, a.logger)
	if err != nil {
		return err
	}

	ui.Debug("Uploading to %s", up.Endpoint())
	report, runErr := up.UploadFile(cmd.Context())
	if report == nil {
		return runErr
	}

	for _, key := range report.Created {
		ui.Success("Variable %s created successfully.", key)
	}
	for _, f := range report.Failed {
		if f.Err != nil {
			ui.Error("Failed to create variable %s: %v", f.Key, f.Err)
		} else {
			ui.Error("Failed to create variable %s: %s", f.Key, f.Body)
		}
	}
	for _, key := range report.Skipped {
		ui.Warning("Variable %s was not sent", key)
	}
	if runErr != nil {
		return runErr
	}

	total := len(report.Created) + len(report.Failed)
	if len(report.Failed) > 0 {
		return errors.New(errors.CodeUnavailable, fmt.Sprintf("%d of %d variables failed", len(report.Failed), total))
	}
	ui.Success("Created %d variables", len(report.Created))
	return nil
}
