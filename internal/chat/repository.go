package chat

import "context"

type Repository interface {
	Create(ctx context.Context, m *Message) error
	Get(ctx context.Context, id string) (*Message, error)
	// ListByBoard returns the board's messages oldest first.
	ListByBoard(ctx context.Context, boardID string, limit int) ([]*Message, error)
	Delete(ctx context.Context, id string) error
}
