package board

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/taskpilot/taskpilot/internal/eventbus"
	"github.com/taskpilot/taskpilot/internal/task"
	"github.com/taskpilot/taskpilot/pkg/cerr"
)

type Server struct {
	repo     Repository
	tasks    task.Repository
	eventBus *eventbus.Bus
}

func NewServer(repo Repository, tasks task.Repository, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:     repo,
		tasks:    tasks,
		eventBus: eventBus,
	}
}

type createBoardRequest struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	OwnerID string   `json:"owner_id"`
	Members []string `json:"members"`
}

func (s *Server) CreateBoard(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Name == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "name is required", nil)
		return
	}
	boardType, ok := ParseType(req.Type)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown board type %q", req.Type), nil)
		return
	}

	now := time.Now()
	b := &Board{
		ID:        ulid.Make().String(),
		Name:      req.Name,
		Type:      boardType,
		OwnerID:   req.OwnerID,
		Members:   req.Members,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.TypeBoardCreated, b.ID, "", nil)
	cerr.SetJSONResponse(ctx, b)
}

func (s *Server) GetBoard(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	b, err := s.repo.Get(ctx, chi.URLParam(r, "boardID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, b)
}

type listBoardsResponse struct {
	Boards []*Board `json:"boards"`
}

func (s *Server) ListBoards(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	boards, err := s.repo.List(ctx, r.URL.Query().Get("owner_id"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if boards == nil {
		boards = []*Board{}
	}
	cerr.SetJSONResponse(ctx, &listBoardsResponse{Boards: boards})
}

type updateBoardRequest struct {
	Name    *string   `json:"name"`
	Type    *string   `json:"type"`
	Members *[]string `json:"members"`
}

func (s *Server) UpdateBoard(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}

	b, err := s.repo.Get(ctx, chi.URLParam(r, "boardID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Name != nil {
		if *req.Name == "" {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "name must not be empty", nil)
			return
		}
		b.Name = *req.Name
	}
	if req.Type != nil {
		boardType, ok := ParseType(*req.Type)
		if !ok {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown board type %q", *req.Type), nil)
			return
		}
		b.Type = boardType
	}
	if req.Members != nil {
		b.Members = *req.Members
	}
	b.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, b); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.TypeBoardUpdated, b.ID, "", nil)
	cerr.SetJSONResponse(ctx, b)
}

// DeleteBoard removes the board and all of its tasks. The board record
// goes last, so a partial failure leaves it listed and the delete can be
// retried.
func (s *Server) DeleteBoard(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "boardID")

	if _, err := s.repo.Get(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	tasks, _, err := s.tasks.List(ctx, id, "", 0, 0)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	for _, t := range tasks {
		if err := s.tasks.Delete(ctx, t.ID); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		s.eventBus.PublishNew(eventbus.TypeTaskDeleted, t.ID, "", map[string]string{"board_id": id})
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.TypeBoardDeleted, id, "", nil)
	cerr.SetJSONResponse(ctx, struct{}{})
}
