package generation

import "context"

// Request carries everything a provider needs to produce text for a task.
type Request struct {
	SystemPrompt string
	Prompt       string
	Model        string
}

// Generator produces the complete text for a request in one call.
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// StreamingGenerator additionally delivers text incrementally. emit is
// called once per upstream fragment, in arrival order, and never after
// GenerateStream returns. A non-nil error from emit aborts the stream.
type StreamingGenerator interface {
	Generator
	GenerateStream(ctx context.Context, req *Request, emit func(fragment string) error) error
}
