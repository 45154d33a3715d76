package main

import (
	"time"

	"github.com/spf13/cobra"

	"runbook/internal/core"
	"runbook/internal/metrics"
	"runbook/internal/server"
	"runbook/internal/storage"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		addr        string
		shell       string
		stepTimeout time.Duration
		logsDir     string
		ledgerPath  string
		signingKey  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept runbooks over HTTP and run them in the background",
		Long: `Starts the run service:

  POST /runs[?continueOnError=true]   submit a runbook YAML body
  GET  /runs/{id}                     run status, step results and console output
  GET  /ledger/verify                 verify the step ledger (with --ledger)
  GET  /healthz                       liveness
  GET  /metrics                       Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.logger()
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			opts := []server.Option{server.WithMetrics(metrics.New())}
			if logsDir != "" {
				opts = append(opts, server.WithLogStorage(storage.NewLogStorage(logsDir)))
			}
			if ledgerPath != "" {
				l, err := openLedger(ledgerPath, signingKey)
				if err != nil {
					return err
				}
				opts = append(opts, server.WithLedger(l))
			}

			exec := &core.Executor{Shell: shell, Timeout: stepTimeout}
			g.reporter().Info("Run service listening on %s", addr)
			return server.New(exec, logger, opts...).ListenAndServe(cmd.Context(), addr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "listen address")
	f.StringVar(&shell, "shell", "sh", "shell used to run commands")
	f.DurationVar(&stepTimeout, "step-timeout", 0, "kill a command after this long (0 disables)")
	f.StringVar(&logsDir, "logs-dir", "", "save each step's output under this directory")
	f.StringVar(&ledgerPath, "ledger", "", "append a hash-chained record of each step to this JSONL file")
	f.StringVar(&signingKey, "signing-key", "", "hex ed25519 private key file used to sign ledger entries")
	return cmd
}
