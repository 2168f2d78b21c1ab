// Package main provides the workerkit CLI entry point.
//
// Overview:
//   - Responsibility: Flag parsing, configuration loading and command dispatch
//   - Key Types: app (shared state of one invocation), cobra command tree
//   - Concurrency Model: Single-threaded CLI execution; watch blocks until interrupted
//   - Error Semantics: Any returned error prints a ❌ line and exits with status 1
//   - Performance Notes: Configuration is loaded once per invocation
//
// Usage:
//
//	workerkit [command] [flags]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"go.eggybyte.com/egg/workerkit/core/errors"
	"go.eggybyte.com/egg/workerkit/core/log"
	"go.eggybyte.com/egg/workerkit/internal/configschema"
	"go.eggybyte.com/egg/workerkit/internal/diag"
	"go.eggybyte.com/egg/workerkit/internal/ui"
	"go.eggybyte.com/egg/workerkit/logx"
)

// configKeyAnnotation ties a flag to the configuration key it overrides.
const configKeyAnnotation = "workerkit/config-key"

// sensitiveFields are masked in structured log output.
var sensitiveFields = []string{"value", "secret_value", "csrf_token", "session", "cookie"}

// app carries the state of one invocation.
type app struct {
	verbose    bool
	jsonOutput bool
	noColor    bool
	configPath string
	logLevel   string
	logFormat  string

	root   string
	cfg    *configschema.Config
	logger log.Logger
}

// newRootCmd builds the command tree.
//
// Parameters:
//   - None
//
// Returns:
//   - *cobra.Command: Root command with every subcommand attached
//
// Concurrency:
//   - Each call returns an independent tree
//
// Performance:
//   - Fast startup, minimal initialization
func newRootCmd() *cobra.Command {
	a := &app{logger: log.Nop()}

	root := &cobra.Command{
		Use:   "workerkit",
		Short: "Keep deployment and test artifacts in step with a Python worker tree",
		Long: `workerkit keeps derived artifacts of a Python worker backend up to date.

This tool provides commands for:
- Appending missing worker services to docker-compose.yml
- Appending missing pytest smoke tests for workers
- Pushing .env variables to GitLab CI settings
- Watching the worker tree and regenerating on change

Run every command from the project root (the directory holding pyproject.toml).`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "V", false, "Enable verbose output")
	flags.BoolVar(&a.jsonOutput, "json", false, "Output in JSON format")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable coloured output")
	flags.StringVar(&a.configPath, "config", "", "Configuration file (default: .workerkit.yaml/.yml/.toml in the project root)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Structured log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "logfmt", "Structured log format (logfmt, json)")
	bindConfigKey(flags, "log-level", "LOG_LEVEL")
	bindConfigKey(flags, "log-format", "LOG_FORMAT")

	root.AddCommand(
		newComposeCmd(a),
		newTestsCmd(a),
		newCIVarsCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	root.Version = versionString()
	root.SetVersionTemplate("{{.Version}}\n")
	return root
}

// setup applies output flags, loads configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	ui.SetVerbose(a.verbose)
	ui.SetJSONOutput(a.jsonOutput)
	if a.noColor {
		ui.SetColor(false)
	}
	if cmd.Annotations["skipConfig"] == "true" {
		return nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "resolve working directory", err)
	}
	a.root = wd

	cfg, diags := configschema.Load(cmd.Context(), configschema.LoadOptions{
		Root:       wd,
		ConfigPath: a.configPath,
		Overrides:  overrides(cmd),
	})
	if cfg != nil {
		diags.Merge(cfg.Validate(configschema.SectionLogging))
	}
	printDiagnostics(diags, true)
	if cfg == nil || diags.HasErrors() {
		return errors.New(errors.CodeInvalidArgument, "invalid configuration")
	}
	a.cfg = cfg

	level, err := logx.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(errors.CodeInvalidArgument, "log level", err)
	}
	if a.verbose {
		level, _ = logx.ParseLevel("debug")
	}
	a.logger = logx.New(
		logx.WithLevel(level),
		logx.WithFormat(logx.Format(cfg.LogFormat)),
		logx.WithColor(!a.noColor && !a.jsonOutput && !ui.ColorDisabled()),
		logx.WithSensitiveFields(sensitiveFields...),
		logx.WithPayloadLimit(2048),
	)
	return nil
}

// validate checks one configuration section and prints its diagnostics.
func (a *app) validate(section configschema.Section) error {
	diags := a.cfg.Validate(section)
	printDiagnostics(diags, false)
	if diags.HasErrors() {
		return errors.New(errors.CodeInvalidArgument, "invalid "+string(section)+" configuration")
	}
	return nil
}

// bindConfigKey marks flag name as an override for configuration key.
func bindConfigKey(flags *pflag.FlagSet, name, key string) {
	_ = flags.SetAnnotation(name, configKeyAnnotation, []string{key})
}

// overrides collects the explicitly set flags that map to configuration keys.
func overrides(cmd *cobra.Command) map[string]string {
	values := make(map[string]string)
	collect := func(f *pflag.Flag) {
		if keys := f.Annotations[configKeyAnnotation]; len(keys) == 1 {
			values[keys[0]] = f.Value.String()
		}
	}
	cmd.InheritedFlags().Visit(collect)
	cmd.Flags().Visit(collect)
	return values
}

// printDiagnostics renders diagnostics as status lines. quiet demotes info
// items to debug output.
func printDiagnostics(diags *diag.Diagnostics, quiet bool) {
	if diags == nil {
		return
	}
	for _, d := range diags.Items() {
		switch d.Severity {
		case diag.SeverityError:
			ui.Error("%s", d)
		case diag.SeverityWarning:
			ui.Warning("%s", d)
		default:
			if quiet {
				ui.Debug("%s", d)
			} else {
				ui.Info("%s", d)
			}
		}
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		ui.Error("%v", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
