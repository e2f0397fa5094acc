package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/taskpilot/taskpilot/internal/board"
	"github.com/taskpilot/taskpilot/pkg/cerr"
	"github.com/taskpilot/taskpilot/pkg/storage"
)

const boardsPrefix = "boards"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", boardsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, b *board.Board) error {
	exists, err := r.storage.Exists(ctx, path(b.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("board", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "board already exists", nil)
	}
	return r.write(ctx, b)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*board.Board, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("board", err)
	}
	var b board.Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal board: %w", err))
	}
	return &b, nil
}

// List returns boards the owner owns or is a member of. Empty ownerID
// returns everything.
func (r *YAMLRepository) List(ctx context.Context, ownerID string) ([]*board.Board, error) {
	paths, err := r.storage.List(ctx, boardsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("boards", err)
	}

	sort.Strings(paths)

	var boards []*board.Board
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var b board.Board
		if err := yaml.Unmarshal(data, &b); err != nil {
			continue
		}
		if ownerID != "" && !visibleTo(&b, ownerID) {
			continue
		}
		boards = append(boards, &b)
	}
	return boards, nil
}

func visibleTo(b *board.Board, ownerID string) bool {
	if b.OwnerID == ownerID {
		return true
	}
	for _, m := range b.Members {
		if m == ownerID {
			return true
		}
	}
	return false
}

func (r *YAMLRepository) Update(ctx context.Context, b *board.Board) error {
	exists, err := r.storage.Exists(ctx, path(b.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("board", err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, "board not found", nil)
	}
	return r.write(ctx, b)
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.WrapStorageDeleteError("board", err)
	}
	return nil
}

func (r *YAMLRepository) Exists(ctx context.Context, id string) (bool, error) {
	exists, err := r.storage.Exists(ctx, path(id))
	if err != nil {
		return false, cerr.WrapStorageReadError("board", err)
	}
	return exists, nil
}

func (r *YAMLRepository) write(ctx context.Context, b *board.Board) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal board: %w", err))
	}
	if err := r.storage.Write(ctx, path(b.ID), data); err != nil {
		return cerr.WrapStorageWriteError("board", err)
	}
	return nil
}
