package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// Recorder writes audit entries fire-and-forget: a failed write is logged
// and dropped, never surfaced to the caller of a task move.
type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Record(ctx context.Context, e *Entry) {
	e.ID = ulid.Make().String()
	e.CreatedAt = time.Now()
	if err := r.repo.Create(ctx, e); err != nil {
		slog.Error("failed to record activity entry", "task_id", e.TaskID, "error", err)
	}
}
