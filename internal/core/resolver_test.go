package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runbook/internal/logging"
)

func TestResolveLiteralAndComputed(t *testing.T) {
	fake := newFakeRunner()
	fake.outputs["echo X"] = "X\n"
	fake.outputs["git rev-parse HEAD"] = "abc123\r\n"

	res, err := NewResolver(fake, logging.NewNop()).Resolve(context.Background(), []Variable{
		Literal("env", "prod"),
		Computed("x", "echo X"),
		Computed("sha", "git rev-parse HEAD"),
	})
	require.NoError(t, err)

	assert.Equal(t, Params{"env": "prod", "x": "X", "sha": "abc123"}, res.Params)
	assert.True(t, res.Computed)
	assert.Equal(t, SourceLiteral, res.Sources["env"])
	assert.Equal(t, SourceCommand, res.Sources["x"])
}

func TestResolveLiteralsOnly(t *testing.T) {
	fake := newFakeRunner()
	res, err := NewResolver(fake, nil).Resolve(context.Background(), []Variable{Literal("a", "1")})
	require.NoError(t, err)
	assert.False(t, res.Computed)
	assert.Empty(t, fake.calls)
}

func TestResolveKeepsInnerWhitespace(t *testing.T) {
	fake := newFakeRunner()
	fake.outputs["printf"] = "  two\nlines  \n\n"

	res, err := NewResolver(fake, nil).Resolve(context.Background(), []Variable{Computed("v", "printf")})
	require.NoError(t, err)
	assert.Equal(t, "  two\nlines  ", res.Params["v"])
}

func TestResolveFailureIsFatal(t *testing.T) {
	fake := newFakeRunner()
	fake.outputs["ok"] = "fine"
	fake.failures["broken"] = 2

	res, err := NewResolver(fake, nil).Resolve(context.Background(), []Variable{
		Computed("good", "ok"),
		Computed("bad", "broken"),
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrVariableResolution)

	var verr *VariableError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "bad", verr.Name)
	assert.Equal(t, "broken", verr.Command)
	assert.Equal(t, 2, ExitCodeOf(err))
}

func TestResolveRunsCommandsConcurrently(t *testing.T) {
	fake := newFakeRunner()
	fake.delay = 100 * time.Millisecond

	vars := make([]Variable, 5)
	for i := range vars {
		vars[i] = Computed(string(rune('a'+i)), "cmd-"+string(rune('a'+i)))
	}

	start := time.Now()
	_, err := NewResolver(fake, nil).Resolve(context.Background(), vars)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Len(t, fake.calls, 5)
}

func TestResolveDuplicatesLastWins(t *testing.T) {
	fake := newFakeRunner()
	fake.outputs["echo second"] = "second\n"

	res, err := NewResolver(fake, nil).Resolve(context.Background(), []Variable{
		Literal("v", "first"),
		Literal("other", "o"),
		Computed("v", "echo second"),
		Literal("v", "third"),
	})
	require.NoError(t, err)
	assert.Equal(t, "third", res.Params["v"])
	assert.Equal(t, SourceLiteral, res.Sources["v"])
	assert.Equal(t, []string{"v"}, res.Duplicates)
}

func TestResolveSkipsUnset(t *testing.T) {
	res, err := NewResolver(newFakeRunner(), nil).Resolve(context.Background(), []Variable{
		{Name: "empty"},
		Literal("set", "yes"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"empty"}, res.Skipped)
	assert.NotContains(t, res.Params, "empty")
	assert.Equal(t, "yes", res.Params["set"])
}

func TestResolveEmptyValueIsKept(t *testing.T) {
	fake := newFakeRunner()
	fake.outputs["true"] = ""

	res, err := NewResolver(fake, nil).Resolve(context.Background(), []Variable{
		Literal("blank", ""),
		Computed("silent", "true"),
	})
	require.NoError(t, err)
	assert.Equal(t, Params{"blank": "", "silent": ""}, res.Params)
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := newFakeRunner()
	_, err := NewResolver(fake, nil).Resolve(ctx, []Variable{Computed("v", "echo v")})
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.False(t, fake.ran("echo v"))
}
