package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/taskpilot/taskpilot/internal/activity"
	"github.com/taskpilot/taskpilot/pkg/cerr"
	"github.com/taskpilot/taskpilot/pkg/storage"
)

const activitiesPrefix = "activities"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", activitiesPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, e *activity.Entry) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal activity entry: %w", err))
	}
	if err := r.storage.Write(ctx, path(e.ID), data); err != nil {
		return cerr.WrapStorageWriteError("activity entry", err)
	}
	return nil
}

func (r *YAMLRepository) List(ctx context.Context, boardID string, limit, offset int) ([]*activity.Entry, int, error) {
	paths, err := r.storage.List(ctx, activitiesPrefix)
	if err != nil {
		return nil, 0, cerr.WrapStorageReadError("activity entries", err)
	}

	// Entry ids are ULIDs, so lexicographic order is creation order.
	// Newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	var all []*activity.Entry
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var e activity.Entry
		if err := yaml.Unmarshal(data, &e); err != nil {
			continue
		}
		if boardID != "" && e.BoardID != boardID {
			continue
		}
		all = append(all, &e)
	}

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}
