// Package server submits runbooks over HTTP and runs them in the background.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"runbook/internal/core"
	"runbook/internal/ledger"
	"runbook/internal/metrics"
	"runbook/internal/report"
	"runbook/internal/storage"
)

// Run states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const maxBodyBytes = 1 << 20

// Run is the server-side record of a submitted runbook.
type Run struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	ContinueOnError bool              `json:"continueOnError"`
	Error           string            `json:"error,omitempty"`
	Steps           []core.StepResult `json:"steps,omitempty"`
	Failed          int               `json:"failed"`
	Output          string            `json:"output,omitempty"`
	SubmittedAt     time.Time         `json:"submittedAt"`
	FinishedAt      *time.Time        `json:"finishedAt,omitempty"`

	console *lockedBuffer
}

// Server accepts runbooks and executes them with a shared executor.
type Server struct {
	mu   sync.Mutex
	runs map[string]*Run
	wg   sync.WaitGroup

	exec    core.CommandRunner
	logger  *slog.Logger
	ledger  *ledger.Ledger
	storage *storage.LogStorage
	metrics *metrics.Metrics
}

// Option configures a Server.
type Option func(*Server)

// WithLedger records every executed step in l and enables /ledger/verify.
func WithLedger(l *ledger.Ledger) Option { return func(s *Server) { s.ledger = l } }

// WithLogStorage saves step output for every run.
func WithLogStorage(ls *storage.LogStorage) Option { return func(s *Server) { s.storage = ls } }

// WithMetrics records metrics and serves them on /metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// New creates a Server running commands through exec.
func New(exec core.CommandRunner, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		runs:   make(map[string]*Run),
		exec:   exec,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/runs", s.handleSubmitRun)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Get("/ledger/verify", s.handleVerifyLedger)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// Wait blocks until all background runs have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// POST /runs -> submit a runbook YAML
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("runbook exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	cfg, err := core.ParseConfig(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	continueOnError := false
	if v := r.URL.Query().Get("continueOnError"); v != "" {
		if continueOnError, err = strconv.ParseBool(v); err != nil {
			http.Error(w, "continueOnError must be a boolean", http.StatusBadRequest)
			return
		}
	}

	run := &Run{
		ID:              uuid.NewString(),
		Status:          StatusPending,
		ContinueOnError: continueOnError,
		SubmittedAt:     time.Now().UTC(),
		console:         &lockedBuffer{},
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	s.logger.Info("run submitted", "run_id", run.ID, "steps", len(cfg.Steps))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(context.Background(), run, cfg)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"id": run.ID, "status": StatusPending})
}

func (s *Server) execute(ctx context.Context, run *Run, cfg *core.Config) {
	s.setStatus(run.ID, func(r *Run) { r.Status = StatusRunning })

	runner := core.NewRunner(s.exec,
		core.WithRunID(run.ID),
		core.WithReporter(report.New(run.console, report.WithoutColor())),
		core.WithLogger(s.logger),
		core.WithContinueOnError(run.ContinueOnError),
		core.WithLedger(s.ledger),
		core.WithLogStorage(s.storage),
		core.WithMetrics(s.metrics),
	)
	sum, err := runner.Run(ctx, cfg)

	s.setStatus(run.ID, func(r *Run) {
		finished := time.Now().UTC()
		r.FinishedAt = &finished
		r.Steps = sum.Steps
		r.Failed = sum.Failed
		r.Status = StatusSucceeded
		if err != nil {
			r.Status = StatusFailed
			r.Error = err.Error()
		}
	})
}

// GET /runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	run, ok := s.runs[id]
	var view Run
	if ok {
		view = *run
		view.Output = run.console.String()
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /ledger/verify -> run VerifyChain
func (s *Server) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, "no ledger configured", http.StatusNotFound)
		return
	}
	if err := s.ledger.VerifyChain(); err != nil {
		http.Error(w, "ledger verification failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write([]byte("ok"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) setStatus(id string, update func(*Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok {
		update(run)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully and
// waits for background runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("run service listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// lockedBuffer is a bytes.Buffer safe for the reporter's concurrent writers
// and the HTTP readers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
