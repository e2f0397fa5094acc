package activity

import "context"

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, boardID string, limit, offset int) ([]*Entry, int, error)
}
