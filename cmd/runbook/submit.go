package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"runbook/internal/report"
	"runbook/internal/server"
)

type submitOptions struct {
	server          string
	config          string
	continueOnError bool
	wait            bool
	pollInterval    time.Duration
}

func newSubmitCmd(g *globals) *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Send the runbook to a run service started with \"runbook serve\"",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitRunbook(cmd.Context(), g.reporter(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "base URL of the run service")
	f.StringVarP(&opts.config, "config", "c", "", "path to the runbook file")
	f.BoolVar(&opts.continueOnError, "continue-on-error", false, "ask the service to keep running after a step fails")
	f.BoolVar(&opts.wait, "wait", false, "wait for the run to finish and print its output")
	f.DurationVar(&opts.pollInterval, "poll-interval", 500*time.Millisecond, "how often to poll the run status with --wait")
	return cmd
}

func submitRunbook(ctx context.Context, rep *report.Reporter, opts *submitOptions) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	// Validate locally first so hints are printed the same way as for "run".
	path, _, err := loadConfig(rep, opts.config, wd)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	base := strings.TrimRight(opts.server, "/")
	target := base + "/runs"
	if opts.continueOnError {
		target += "?continueOnError=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-yaml")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		rep.Error("Failed to reach %s: %v", base, err)
		return &ExitError{Code: 1, Err: err, Silent: true}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		msg := strings.TrimSpace(string(body))
		rep.Error("Server rejected the runbook (%s): %s", resp.Status, msg)
		return &ExitError{Code: 1, Err: fmt.Errorf("submit: %s", resp.Status), Silent: true}
	}

	var accepted struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &accepted); err != nil {
		return fmt.Errorf("decode submit response: %w", err)
	}
	rep.Success("Submitted run %s", accepted.ID)
	if !opts.wait {
		rep.Info("Check progress with: GET %s/runs/%s", base, url.PathEscape(accepted.ID))
		return nil
	}

	run, err := pollRun(ctx, base, accepted.ID, opts.pollInterval)
	if err != nil {
		return err
	}
	rep.Output(run.Output)
	if run.Status == server.StatusFailed {
		rep.Error("Run %s failed: %s", run.ID, run.Error)
		return &ExitError{Code: 1, Err: fmt.Errorf("run %s failed", run.ID), Silent: true}
	}
	rep.Success("Run %s %s", run.ID, run.Status)
	return nil
}

// pollRun fetches the run until it leaves the pending and running states.
func pollRun(ctx context.Context, base, id string, interval time.Duration) (*server.Run, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		run, err := fetchRun(ctx, base, id)
		if err != nil {
			return nil, err
		}
		if run.Status == server.StatusSucceeded || run.Status == server.StatusFailed {
			return run, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func fetchRun(ctx context.Context, base, id string) (*server.Run, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/runs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get run %s: %s", id, resp.Status)
	}
	var run server.Run
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}
