package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"runbook/internal/core"
	"runbook/internal/logging"
	"runbook/internal/report"
)

// globals holds the persistent flags and output streams shared by all commands.
type globals struct {
	stdout io.Writer
	stderr io.Writer

	logLevel  string
	logFormat string
	noColor   bool
}

func (g *globals) reporter() *report.Reporter {
	if g.noColor {
		return report.New(g.stdout, report.WithoutColor())
	}
	return report.New(g.stdout)
}

func (g *globals) logger() (*slog.Logger, error) {
	name := logging.FromEnv(g.logLevel, logging.EnvLevel)
	if name == "" {
		name = "warn"
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(logging.FromEnv(g.logFormat, logging.EnvFormat))
	if err != nil {
		return nil, err
	}
	return logging.New(level, format, g.stderr), nil
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{stdout: stdout, stderr: stderr}
	opts := &runOptions{}

	root := &cobra.Command{
		Use:   "runbook",
		Short: "Runbook runs a declared sequence of shell steps",
		Long: `Runbook reads runbook.yaml, resolves its variables (literal or computed by a
command), substitutes ${name} placeholders into each step and runs the steps
in order. Consecutive steps marked parallel run together.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunbook(cmd, g, opts)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error (env "+logging.EnvLevel+", default warn)")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: text or json (env "+logging.EnvFormat+")")
	pf.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	addRunFlags(root, opts)

	root.AddCommand(
		newRunCmd(g, opts),
		newValidateCmd(g),
		newServeCmd(g),
		newSubmitCmd(g),
		newLedgerCmd(g),
		newKeysCmd(g),
	)
	return root
}

// reportLoadError prints a locate/parse failure with remediation hints and
// returns the matching exit error.
func reportLoadError(rep *report.Reporter, err error) error {
	rep.Error("%v", err)
	var notFound *core.NotFoundError
	if errors.As(err, &notFound) {
		for _, hint := range notFound.Hints {
			rep.Warn("%s", hint)
		}
	}
	return &ExitError{Code: 1, Err: err, Silent: true}
}

// loadConfig locates and parses the configuration, reporting failures.
func loadConfig(rep *report.Reporter, explicit, workDir string) (string, *core.Config, error) {
	path, err := core.Locate(explicit, workDir)
	if err != nil {
		return "", nil, reportLoadError(rep, err)
	}
	cfg, err := core.LoadConfig(path)
	if err != nil {
		return "", nil, reportLoadError(rep, err)
	}
	return path, cfg, nil
}
