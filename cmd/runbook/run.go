package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"runbook/internal/core"
	"runbook/internal/ledger"
	"runbook/internal/metrics"
	"runbook/internal/security"
	"runbook/internal/storage"
)

type runOptions struct {
	config          string
	continueOnError bool
	shell           string
	stepTimeout     time.Duration
	logsDir         string
	ledgerPath      string
	signingKey      string
	metricsAddr     string
}

// addRunFlags binds the run flags to opts. The root command and "run" share
// the same options so that "runbook" and "runbook run" behave the same.
func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.config, "config", "c", "", "path to the runbook file (default: ./"+core.DefaultConfigName+" or ./"+core.DefaultConfigDir+"/"+core.DefaultConfigName+")")
	f.BoolVar(&opts.continueOnError, "continue-on-error", false, "keep running after a step fails")
	f.StringVar(&opts.shell, "shell", "sh", "shell used to run commands (invoked as <shell> -c <command>)")
	f.DurationVar(&opts.stepTimeout, "step-timeout", 0, "kill a command after this long (0 disables)")
	f.StringVar(&opts.logsDir, "logs-dir", "", "save each step's output under this directory")
	f.StringVar(&opts.ledgerPath, "ledger", "", "append a hash-chained record of each step to this JSONL file")
	f.StringVar(&opts.signingKey, "signing-key", "", "hex ed25519 private key file used to sign ledger entries")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
}

func newRunCmd(g *globals, opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the runbook (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunbook(cmd, g, opts)
		},
	}
	addRunFlags(cmd, opts)
	return cmd
}

func runRunbook(cmd *cobra.Command, g *globals, opts *runOptions) error {
	ctx := cmd.Context()
	rep := g.reporter()
	logger, err := g.logger()
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	path, cfg, err := loadConfig(rep, opts.config, wd)
	if err != nil {
		return err
	}
	rep.Info("Using %s", path)

	m := metrics.New()
	runnerOpts := []core.RunnerOption{
		core.WithReporter(rep),
		core.WithLogger(logger),
		core.WithContinueOnError(opts.continueOnError),
		core.WithMetrics(m),
	}
	if opts.logsDir != "" {
		runnerOpts = append(runnerOpts, core.WithLogStorage(storage.NewLogStorage(opts.logsDir)))
	}
	if opts.ledgerPath != "" {
		l, err := openLedger(opts.ledgerPath, opts.signingKey)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, core.WithLedger(l))
	}
	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, m, logger)
		defer stop()
	}

	exec := &core.Executor{Shell: opts.shell, Timeout: opts.stepTimeout}
	if _, err := core.NewRunner(exec, runnerOpts...).Run(ctx, cfg); err != nil {
		return &ExitError{Code: 1, Err: err, Silent: true}
	}
	return nil
}

func openLedger(path, keyPath string) (*ledger.Ledger, error) {
	l, err := ledger.Open(path)
	if err != nil {
		return nil, err
	}
	if keyPath != "" {
		priv, err := security.LoadPrivateKey(keyPath)
		if err != nil {
			return nil, err
		}
		l.SetSigner(priv)
	}
	return l, nil
}

// serveMetrics exposes /metrics and /healthz while the run is in progress and
// returns a function that shuts the server down.
func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) func() {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
