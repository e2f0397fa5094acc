package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/taskpilot/taskpilot/internal/chat"
	"github.com/taskpilot/taskpilot/pkg/cerr"
	"github.com/taskpilot/taskpilot/pkg/storage"
)

const chatPrefix = "chat"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", chatPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, m *chat.Message) error {
	exists, err := r.storage.Exists(ctx, path(m.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("chat message", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "chat message already exists", nil)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal chat message: %w", err))
	}
	if err := r.storage.Write(ctx, path(m.ID), data); err != nil {
		return cerr.WrapStorageWriteError("chat message", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*chat.Message, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("chat message", err)
	}
	var m chat.Message
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal chat message: %w", err))
	}
	return &m, nil
}

// ListByBoard returns messages oldest first. ULID ids sort by creation
// time, so the path sort gives chronological order for free.
func (r *YAMLRepository) ListByBoard(ctx context.Context, boardID string, limit int) ([]*chat.Message, error) {
	paths, err := r.storage.List(ctx, chatPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("chat messages", err)
	}

	sort.Strings(paths)

	var messages []*chat.Message
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var m chat.Message
		if err := yaml.Unmarshal(data, &m); err != nil {
			continue
		}
		if boardID != "" && m.BoardID != boardID {
			continue
		}
		messages = append(messages, &m)
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.WrapStorageDeleteError("chat message", err)
	}
	return nil
}
