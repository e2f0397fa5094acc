package board

import "context"

type Repository interface {
	Create(ctx context.Context, b *Board) error
	Get(ctx context.Context, id string) (*Board, error)
	List(ctx context.Context, ownerID string) ([]*Board, error)
	Update(ctx context.Context, b *Board) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}
