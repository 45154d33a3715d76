package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"runbook/internal/ledger"
	"runbook/internal/metrics"
	"runbook/internal/report"
	"runbook/internal/storage"
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Command  string        `json:"command"`
	Output   string        `json:"output,omitempty"`
	ExitCode int           `json:"exitCode"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	LogPath  string        `json:"logPath,omitempty"`
}

// Failed reports whether the step's command failed.
func (s StepResult) Failed() bool { return s.Err != nil }

// Summary describes a finished (or stopped) run.
type Summary struct {
	RunID      string
	Resolution *Resolution
	Steps      []StepResult
	Failed     int
	Duration   time.Duration
}

// Runner ties together Resolver + Scheduler + Executor + storage + ledger.
type Runner struct {
	Exec     CommandRunner
	Reporter *report.Reporter
	Logger   *slog.Logger

	// Optional collaborators; nil disables them.
	Storage *storage.LogStorage
	Ledger  *ledger.Ledger
	Metrics *metrics.Metrics

	// ContinueOnError records failed steps and keeps going instead of stopping.
	ContinueOnError bool
	RunID           string

	scheduler *Scheduler
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithReporter sets the console reporter.
func WithReporter(rep *report.Reporter) RunnerOption {
	return func(r *Runner) { r.Reporter = rep }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.Logger = logger }
}

// WithLogStorage saves each step's output under the given storage.
func WithLogStorage(s *storage.LogStorage) RunnerOption {
	return func(r *Runner) { r.Storage = s }
}

// WithLedger appends one entry per executed step to l.
func WithLedger(l *ledger.Ledger) RunnerOption {
	return func(r *Runner) { r.Ledger = l }
}

// WithMetrics records run, step and variable metrics.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.Metrics = m }
}

// WithContinueOnError makes step failures non-fatal.
func WithContinueOnError(enabled bool) RunnerOption {
	return func(r *Runner) { r.ContinueOnError = enabled }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) { r.RunID = id }
}

// NewRunner creates a Runner executing commands through exec.
func NewRunner(exec CommandRunner, opts ...RunnerOption) *Runner {
	r := &Runner{
		Exec:      exec,
		scheduler: NewScheduler(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Reporter == nil {
		r.Reporter = report.Discard()
	}
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	return r
}

// Run resolves the variables and then executes the steps batch by batch.
// Failed steps stop the run unless ContinueOnError is set; variable
// resolution failures always do. When ctx ends, no further batch is
// scheduled but commands already running are left to finish.
func (r *Runner) Run(ctx context.Context, cfg *Config) (sum *Summary, err error) {
	start := time.Now()
	sum = &Summary{RunID: r.RunID}
	logger := r.Logger.With("run_id", r.RunID)
	defer func() {
		sum.Duration = time.Since(start)
		r.Metrics.ObserveRun(err == nil)
		logger.Info("run finished", "steps", len(sum.Steps), "failed", sum.Failed, "duration", sum.Duration, "error", err)
	}()

	logger.Info("run started", "variables", len(cfg.Variables), "steps", len(cfg.Steps))
	if len(cfg.Variables) > 0 {
		r.Reporter.Info("Resolving %d variable(s)", len(cfg.Variables))
	}
	res, err := NewResolver(r.Exec, logger).Resolve(ctx, cfg.Variables)
	if err != nil {
		r.Reporter.Error("%v", err)
		return sum, err
	}
	sum.Resolution = res
	for _, name := range res.Duplicates {
		r.Reporter.Warn("variable %q is declared more than once; the last declaration wins", name)
	}
	for name, kind := range res.Sources {
		logger.Debug("variable resolved", "name", name, "source", kind.String())
		r.Metrics.ObserveVariable(kind.String())
	}

	for _, batch := range r.scheduler.Batches(cfg.Steps) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.Reporter.Warn("Run interrupted; no further steps will be started")
			return sum, fmt.Errorf("%w: %v", ErrInterrupted, ctxErr)
		}

		results := r.runBatch(ctx, batch, res.Params)

		var first *StepResult
		for i := range results {
			sum.Steps = append(sum.Steps, results[i])
			if results[i].Failed() {
				sum.Failed++
				if first == nil {
					first = &results[i]
				}
			}
		}
		if first == nil {
			continue
		}
		if !r.ContinueOnError {
			return sum, &StepError{
				Index:    first.Index,
				Name:     first.Name,
				Command:  first.Command,
				ExitCode: first.ExitCode,
				Err:      first.Err,
			}
		}
		r.Reporter.Warn("Continuing after failure of %q", first.Name)
	}

	if sum.Failed > 0 {
		r.Reporter.Warn("Run finished with %d failed step(s) out of %d (continue-on-error)", sum.Failed, len(sum.Steps))
	} else {
		r.Reporter.Success("All %d step(s) completed successfully", len(sum.Steps))
	}
	return sum, nil
}

// runBatch executes a batch and returns results in document order. Parallel
// members all run to completion regardless of each other's outcome.
func (r *Runner) runBatch(ctx context.Context, batch Batch, params Params) []StepResult {
	results := make([]StepResult, len(batch.Steps))
	if !batch.Parallel {
		for i, s := range batch.Steps {
			results[i] = r.runStep(ctx, s, params, false)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, s := range batch.Steps {
		i, s := i, s
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.runStep(ctx, s, params, true)
		}()
	}
	wg.Wait()
	return results
}

func (r *Runner) runStep(ctx context.Context, s IndexedStep, params Params, parallel bool) StepResult {
	name := s.Step.Label(s.Index)
	command := Substitute(s.Step.Bash, params)
	logger := r.Logger.With("run_id", r.RunID, "step", s.Index+1, "name", name)

	r.Reporter.Header(name)
	if missing := Unresolved(s.Step.Bash, params); len(missing) > 0 {
		logger.Debug("placeholders left for the shell", "names", missing)
	}
	r.Reporter.Command(command)

	start := time.Now()
	// Launched commands are never cancelled by the run; only the executor's
	// own timeout applies.
	out, err := r.Exec.Run(context.WithoutCancel(ctx), command)
	result := StepResult{
		Index:    s.Index,
		Name:     name,
		Command:  command,
		Output:   out,
		Err:      err,
		Duration: time.Since(start),
	}
	if err != nil {
		result.ExitCode = ExitCodeOf(err)
		result.Error = err.Error()
	}
	r.Metrics.ObserveStep(err == nil, parallel, result.Duration)
	r.record(&result, logger)

	if err != nil {
		logger.Error("step failed", "command", command, "exit_code", result.ExitCode, "error", err)
		r.Reporter.Output(out)
		r.Reporter.Error("%s failed: %s", name, command)
		r.Reporter.Error("%v", err)
		return result
	}
	logger.Debug("step succeeded", "duration", result.Duration)
	r.Reporter.Output(out)
	r.Reporter.Success("%s completed", name)
	return result
}

// record saves the step log and appends a ledger entry. Both are best-effort:
// problems are logged but never change the step's outcome.
func (r *Runner) record(result *StepResult, logger *slog.Logger) {
	text := result.Output
	var execErr *ExecError
	if errors.As(result.Err, &execErr) && execErr.Stderr != "" {
		text += execErr.Stderr
	}

	if r.Storage != nil {
		path, err := r.Storage.SaveLog(r.RunID, result.Index, result.Name, text)
		if err != nil {
			logger.Warn("cannot save step log", "error", err)
		} else {
			result.LogPath = path
		}
	}

	if r.Ledger != nil {
		status := ledger.StatusSucceeded
		if result.Failed() {
			status = ledger.StatusFailed
		}
		entry := ledger.NewEntry(r.RunID, result.Name, result.Command, status, result.ExitCode, result.LogPath, text)
		if err := r.Ledger.Append(entry); err != nil {
			logger.Warn("cannot append ledger entry", "error", err)
		} else {
			logger.Debug("ledger entry appended", "index", entry.Index, "hash", entry.Hash[:16])
		}
	}
}
