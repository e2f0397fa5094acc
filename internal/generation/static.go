package generation

import (
	"context"
	"fmt"
	"strings"
)

// StaticGenerator produces deterministic canned output without calling any
// external API. It intentionally implements only Generator, not
// StreamingGenerator, so the relay exercises its chunked-replay path.
// Used for local development and tests.
type StaticGenerator struct{}

var _ Generator = (*StaticGenerator)(nil)

func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{}
}

func (g *StaticGenerator) Generate(_ context.Context, req *Request) (string, error) {
	var b strings.Builder
	b.WriteString("Starting work on the task. ")
	for i, line := range strings.Split(req.Prompt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, "Step %d: %s Considering the constraints, this looks straightforward. ", i+1, line)
	}
	b.WriteString("All requirements addressed. Handing the task over for review.")
	return b.String(), nil
}
