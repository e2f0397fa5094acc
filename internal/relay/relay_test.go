package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/generation"
	"github.com/taskpilot/taskpilot/internal/task"
)

type fakeGenerator struct {
	text string
	err  error
}

func (g *fakeGenerator) Generate(context.Context, *generation.Request) (string, error) {
	return g.text, g.err
}

type fakeStreamingGenerator struct {
	fragments []string
	err       error
}

func (g *fakeStreamingGenerator) Generate(context.Context, *generation.Request) (string, error) {
	return strings.Join(g.fragments, ""), g.err
}

func (g *fakeStreamingGenerator) GenerateStream(_ context.Context, _ *generation.Request, emit func(string) error) error {
	for _, f := range g.fragments {
		if err := emit(f); err != nil {
			return err
		}
	}
	return g.err
}

type recording struct {
	chunks    []string
	errs      []error
	completes int
}

func (rec *recording) callbacks() Callbacks {
	return Callbacks{
		OnChunk: func(chunk string) error {
			rec.chunks = append(rec.chunks, chunk)
			return nil
		},
		OnError: func(err error) {
			rec.errs = append(rec.errs, err)
		},
		OnComplete: func() {
			rec.completes++
		},
	}
}

func testTask() *task.Task {
	return &task.Task{
		ID:           "task-1",
		Title:        "Add retry to uploader",
		Requirements: []string{"retry three times", "log each attempt"},
	}
}

func testAgent() *agent.Agent {
	return &agent.Agent{ID: "agent-1", Name: "Gemini", SystemPrompt: "You are an engineer."}
}

func TestRunReplayMode(t *testing.T) {
	gen := &fakeGenerator{text: strings.Repeat("x", 120)}
	r := New(gen, WithReplayChunkSize(50), WithReplayDelay(time.Millisecond))
	rec := &recording{}

	r.Run(context.Background(), testTask(), testAgent(), rec.callbacks())

	require.Len(t, rec.chunks, 3)
	assert.Equal(t, gen.text, strings.Join(rec.chunks, ""))
	assert.Equal(t, 1, rec.completes)
	assert.Empty(t, rec.errs)
}

func TestRunPassthroughMode(t *testing.T) {
	gen := &fakeStreamingGenerator{fragments: []string{"First sen", "tence. Sec", "ond one.\ntail"}}
	r := New(gen)
	rec := &recording{}

	r.Run(context.Background(), testTask(), testAgent(), rec.callbacks())

	// Re-chunked at boundaries, but content and order are untouched.
	assert.Equal(t, "First sentence. Second one.\ntail", strings.Join(rec.chunks, ""))
	assert.Equal(t, 1, rec.completes)
	assert.Empty(t, rec.errs)
}

func TestRunUpstreamError(t *testing.T) {
	upstream := errors.New("rate limited")
	r := New(&fakeGenerator{err: upstream})
	rec := &recording{}

	r.Run(context.Background(), testTask(), testAgent(), rec.callbacks())

	// Exactly one of OnError/OnComplete, never both.
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], upstream)
	assert.Zero(t, rec.completes)
	assert.Empty(t, rec.chunks)
}

func TestRunChunkCallbackErrorAborts(t *testing.T) {
	abort := errors.New("subscriber gone")
	r := New(&fakeGenerator{text: strings.Repeat("y", 200)}, WithReplayDelay(0))
	rec := &recording{}
	cb := rec.callbacks()
	cb.OnChunk = func(chunk string) error {
		rec.chunks = append(rec.chunks, chunk)
		if len(rec.chunks) == 2 {
			return abort
		}
		return nil
	}

	r.Run(context.Background(), testTask(), testAgent(), cb)

	assert.Len(t, rec.chunks, 2)
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], abort)
	assert.Zero(t, rec.completes)
}

func TestRunTimeout(t *testing.T) {
	slow := &slowGenerator{delay: 200 * time.Millisecond}
	r := New(slow, WithTimeout(10*time.Millisecond))
	rec := &recording{}

	r.Run(context.Background(), testTask(), testAgent(), rec.callbacks())

	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], context.DeadlineExceeded)
	assert.Zero(t, rec.completes)
}

type slowGenerator struct {
	delay time.Duration
}

func (g *slowGenerator) Generate(ctx context.Context, _ *generation.Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(g.delay):
		return "late", nil
	}
}

func TestBuildPrompt(t *testing.T) {
	tk := &task.Task{
		Title:              "Fix login",
		Description:        "Users get logged out",
		Repo:               "github.com/acme/app",
		Requirements:       []string{"keep sessions alive"},
		AcceptanceCriteria: []string{"no logout within 24h"},
	}
	prompt := BuildPrompt(tk)
	assert.Contains(t, prompt, "Task: Fix login")
	assert.Contains(t, prompt, "Repository: github.com/acme/app")
	assert.Contains(t, prompt, "- keep sessions alive")
	assert.Contains(t, prompt, "- no logout within 24h")
}
