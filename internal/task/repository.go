package task

import "context"

type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, boardID string, status Status, limit, offset int) ([]*Task, int, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id string) error
	// AppendProcessLog appends one chunk to the task's process log without
	// touching any other field.
	AppendProcessLog(ctx context.Context, id, chunk string) error
}
