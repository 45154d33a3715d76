// Package report renders run progress on the console: step headers, the
// commands about to run, their output, and info/warning/success/error lines.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Reporter writes human-readable progress. It is safe for concurrent use;
// each call writes whole lines so parallel steps do not interleave mid-line.
type Reporter struct {
	mu  sync.Mutex
	out io.Writer

	info    *color.Color
	warn    *color.Color
	success *color.Color
	fail    *color.Color
	header  *color.Color
	command *color.Color
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithoutColor disables ANSI styling.
func WithoutColor() Option {
	return func(r *Reporter) {
		for _, c := range r.colors() {
			c.DisableColor()
		}
	}
}

// WithColor forces ANSI styling even when out is not a terminal.
func WithColor() Option {
	return func(r *Reporter) {
		for _, c := range r.colors() {
			c.EnableColor()
		}
	}
}

// New creates a Reporter writing to out. Styling follows the terminal and
// NO_COLOR unless an option overrides it.
func New(out io.Writer, opts ...Option) *Reporter {
	r := &Reporter{
		out:     out,
		info:    color.New(color.FgCyan),
		warn:    color.New(color.FgYellow),
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed, color.Bold),
		header:  color.New(color.FgBlue, color.Bold),
		command: color.New(color.Faint),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discard returns a Reporter that writes nothing.
func Discard() *Reporter {
	return New(io.Discard, WithoutColor())
}

func (r *Reporter) colors() []*color.Color {
	return []*color.Color{r.info, r.warn, r.success, r.fail, r.header, r.command}
}

// Info prints a neutral progress message.
func (r *Reporter) Info(format string, args ...any) { r.line(r.info, "", format, args...) }

// Warn prints a warning, such as a remediation hint or a tolerated failure.
func (r *Reporter) Warn(format string, args ...any) { r.line(r.warn, "! ", format, args...) }

// Success prints a success message.
func (r *Reporter) Success(format string, args ...any) { r.line(r.success, "✔ ", format, args...) }

// Error prints a hard error.
func (r *Reporter) Error(format string, args ...any) { r.line(r.fail, "✘ ", format, args...) }

// Header announces a step.
func (r *Reporter) Header(name string) { r.line(r.header, "==> ", "%s", name) }

// Command shows the final command about to run.
func (r *Reporter) Command(cmd string) { r.line(r.command, "$ ", "%s", cmd) }

// Output prints captured command output verbatim, ensuring it ends with a newline.
func (r *Reporter) Output(text string) {
	if text == "" {
		return
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	io.WriteString(r.out, text)
}

func (r *Reporter) line(c *color.Color, prefix, format string, args ...any) {
	msg := prefix + fmt.Sprintf(format, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Fprintln(r.out, msg)
}
