package core

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// fakeRunner answers commands from a table and records what ran and when.
type fakeRunner struct {
	mu sync.Mutex

	outputs  map[string]string
	failures map[string]int
	delay    time.Duration

	calls  []string
	events []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs:  make(map[string]string),
		failures: make(map[string]int),
	}
}

func (f *fakeRunner) Run(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.events = append(f.events, "start:"+command)
	out := f.outputs[command]
	code, fail := f.failures[command]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.events = append(f.events, "end:"+command)
	f.mu.Unlock()

	if fail {
		return out, &ExecError{Command: command, ExitCode: code, Stderr: fmt.Sprintf("%s failed\n", command)}
	}
	return out, nil
}

func (f *fakeRunner) ran(command string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.calls, command)
}

// position returns the index of event in the recorded sequence, or -1.
func (f *fakeRunner) position(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Index(f.events, event)
}

func ptr(s string) *string { return &s }
