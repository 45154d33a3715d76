package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Params maps variable names to resolved values. It is written once by the
// Resolver and only read afterwards.
type Params map[string]string

// Resolution is the result of resolving a configuration's variables.
type Resolution struct {
	Params Params
	// Computed is true when at least one variable was read from a command.
	Computed bool
	// Sources records how each resolved name got its value.
	Sources map[string]SourceKind
	// Duplicates lists names declared more than once; the last declaration wins.
	Duplicates []string
	// Skipped lists variables that had neither value nor valueFrom.
	Skipped []string
}

// Resolver turns declared variables into Params.
type Resolver struct {
	Runner CommandRunner
	Logger *slog.Logger
}

// NewResolver creates a Resolver running valueFrom commands through runner.
func NewResolver(runner CommandRunner, logger *slog.Logger) *Resolver {
	return &Resolver{Runner: runner, Logger: logger}
}

// Resolve computes every variable. Commands run concurrently and are all
// awaited before returning; any failing command fails the whole resolution.
func (r *Resolver) Resolve(ctx context.Context, vars []Variable) (*Resolution, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	values := make([]string, len(vars))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range vars {
		kind, src := v.Source()
		switch kind {
		case SourceLiteral:
			values[i] = src
		case SourceCommand:
			i, v := i, v
			g.Go(func() error {
				// Skip commands not yet started once a sibling has failed.
				if err := gctx.Err(); err != nil {
					return err
				}
				logger.Debug("resolving variable", "name", v.Name, "command", src)
				out, err := r.Runner.Run(context.WithoutCancel(gctx), src)
				if err != nil {
					return &VariableError{Name: v.Name, Command: src, Err: err}
				}
				values[i] = trimTrailingNewlines(out)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrInterrupted, err)
		}
		return nil, err
	}

	res := &Resolution{
		Params:  make(Params, len(vars)),
		Sources: make(map[string]SourceKind, len(vars)),
	}
	for i, v := range vars {
		kind, _ := v.Source()
		if kind == SourceUnset {
			logger.Debug("variable has no value or valueFrom, skipping", "name", v.Name)
			res.Skipped = append(res.Skipped, v.Name)
			continue
		}
		if _, exists := res.Params[v.Name]; exists && !slices.Contains(res.Duplicates, v.Name) {
			res.Duplicates = append(res.Duplicates, v.Name)
		}
		res.Params[v.Name] = values[i]
		res.Sources[v.Name] = kind
		if kind == SourceCommand {
			res.Computed = true
		}
	}
	return res, nil
}

// trimTrailingNewlines drops the line terminators most commands end with,
// leaving any other whitespace alone.
func trimTrailingNewlines(s string) string {
	return strings.TrimRight(s, "\r\n")
}
