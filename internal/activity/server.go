package activity

import (
	"net/http"
	"strconv"

	"github.com/taskpilot/taskpilot/pkg/cerr"
)

type Server struct {
	repo Repository
}

func NewServer(repo Repository) *Server {
	return &Server{repo: repo}
}

type listActivitiesResponse struct {
	Activities []*Entry `json:"activities"`
	Total      int      `json:"total"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
}

// ListActivities returns the feed newest first.
func (s *Server) ListActivities(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if raw := q.Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	entries, total, err := s.repo.List(ctx, q.Get("board_id"), limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	cerr.SetJSONResponse(ctx, &listActivitiesResponse{
		Activities: entries,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
	})
}
