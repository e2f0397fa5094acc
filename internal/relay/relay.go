// Package relay turns a task's requirements into generated "agent work"
// text and delivers it incrementally. Providers that stream are passed
// through with flush-boundary re-chunking; providers that return one
// complete string are replayed in fixed-size chunks with a small delay so
// the UI gets the same progressive-rendering experience either way.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/generation"
	"github.com/taskpilot/taskpilot/internal/task"
)

const (
	defaultTimeout         = 60 * time.Second
	defaultReplayChunkSize = 50
	defaultReplayDelay     = 30 * time.Millisecond
)

// Callbacks receive the relay's output. OnChunk runs once per delivered
// chunk, in order. Exactly one of OnComplete or OnError runs afterwards,
// never both. A non-nil error from OnChunk aborts the relay and is passed
// to OnError.
type Callbacks struct {
	OnChunk    func(chunk string) error
	OnError    func(err error)
	OnComplete func()
}

type Relay struct {
	generator       generation.Generator
	timeout         time.Duration
	replayChunkSize int
	replayDelay     time.Duration
}

type Option func(*Relay)

// WithTimeout bounds the whole upstream generation call. Expiry is
// reported through OnError.
func WithTimeout(d time.Duration) Option {
	return func(r *Relay) {
		r.timeout = d
	}
}

func WithReplayChunkSize(n int) Option {
	return func(r *Relay) {
		r.replayChunkSize = n
	}
}

func WithReplayDelay(d time.Duration) Option {
	return func(r *Relay) {
		r.replayDelay = d
	}
}

func New(generator generation.Generator, opts ...Option) *Relay {
	r := &Relay{
		generator:       generator,
		timeout:         defaultTimeout,
		replayChunkSize: defaultReplayChunkSize,
		replayDelay:     defaultReplayDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run generates text for the task and delivers it through cb. It blocks
// until the relay finishes; callers wanting fire-and-forget run it in a
// goroutine.
func (r *Relay) Run(ctx context.Context, t *task.Task, a *agent.Agent, cb Callbacks) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req := &generation.Request{
		SystemPrompt: a.SystemPrompt,
		Prompt:       BuildPrompt(t),
		Model:        a.Model,
	}

	var err error
	if sg, ok := r.generator.(generation.StreamingGenerator); ok {
		err = r.passthrough(ctx, sg, req, cb)
	} else {
		err = r.replay(ctx, req, cb)
	}
	if err != nil {
		cb.OnError(err)
		return
	}
	cb.OnComplete()
}

// passthrough forwards a live upstream stream, re-chunked at flush
// boundaries.
func (r *Relay) passthrough(ctx context.Context, sg generation.StreamingGenerator, req *generation.Request, cb Callbacks) error {
	chunker := &boundaryChunker{emit: cb.OnChunk}
	if err := sg.GenerateStream(ctx, req, chunker.Write); err != nil {
		return err
	}
	return chunker.Flush()
}

// replay fetches the complete response and drips it out in fixed-size
// chunks.
func (r *Relay) replay(ctx context.Context, req *generation.Request, cb Callbacks) error {
	text, err := r.generator.Generate(ctx, req)
	if err != nil {
		return err
	}
	for i, chunk := range splitReplay(text, r.replayChunkSize) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.replayDelay):
			}
		}
		if err := cb.OnChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

// BuildPrompt assembles the user prompt from the task's requirements and
// acceptance criteria.
func BuildPrompt(t *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	if t.Repo != "" {
		fmt.Fprintf(&b, "Repository: %s\n", t.Repo)
	}
	if len(t.Requirements) > 0 {
		b.WriteString("Requirements:\n")
		for _, req := range t.Requirements {
			fmt.Fprintf(&b, "- %s\n", req)
		}
	}
	if len(t.AcceptanceCriteria) > 0 {
		b.WriteString("Acceptance criteria:\n")
		for _, ac := range t.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", ac)
		}
	}
	return b.String()
}
