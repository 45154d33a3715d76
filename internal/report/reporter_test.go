package report

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannels(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithoutColor())

	r.Info("Resolving %d variable(s)", 2)
	r.Warn("hint %s", "one")
	r.Success("done")
	r.Error("failed: %v", "boom")
	r.Header("Build")
	r.Command("make all")

	want := strings.Join([]string{
		"Resolving 2 variable(s)",
		"! hint one",
		"✔ done",
		"✘ failed: boom",
		"==> Build",
		"$ make all",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}

func TestOutput(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithoutColor())

	r.Output("")
	assert.Empty(t, buf.String())

	r.Output("no newline")
	r.Output("has newline\n")
	assert.Equal(t, "no newline\nhas newline\n", buf.String())
}

func TestWithColor(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, WithColor()).Error("red")
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "✘ red")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Info("nothing") })
}

func TestConcurrentLinesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithoutColor())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Info("%s", strings.Repeat("x", 64))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 50)
	for _, line := range lines {
		assert.Equal(t, strings.Repeat("x", 64), line)
	}
}
