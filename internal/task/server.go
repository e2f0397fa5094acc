package task

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/taskpilot/taskpilot/internal/eventbus"
	"github.com/taskpilot/taskpilot/pkg/cerr"
	"github.com/taskpilot/taskpilot/pkg/sse"
)

// Controller performs validated status moves. Implemented by the
// lifecycle controller.
type Controller interface {
	MoveTask(ctx context.Context, taskID string, from, to Status) (*MoveResult, error)
}

// BoardLookup checks board existence on task creation. Implemented by the
// board repository.
type BoardLookup interface {
	Exists(ctx context.Context, boardID string) (bool, error)
}

// AgentLookup resolves an agent id or display name to its canonical id.
// Implemented by the agent registry.
type AgentLookup interface {
	CanonicalID(idOrName string) (string, bool)
}

type Server struct {
	repo       Repository
	controller Controller
	boards     BoardLookup
	agents     AgentLookup
	eventBus   *eventbus.Bus
}

func NewServer(repo Repository, controller Controller, boards BoardLookup, agents AgentLookup, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:       repo,
		controller: controller,
		boards:     boards,
		agents:     agents,
		eventBus:   eventBus,
	}
}

type createTaskRequest struct {
	BoardID            string   `json:"board_id"`
	OwnerID            string   `json:"owner_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Priority           string   `json:"priority"`
	Requirements       []string `json:"requirements"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	AssignedAgentID    string   `json:"assigned_agent_id"`
	Repo               string   `json:"repo"`
}

func (s *Server) CreateTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Title == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "title is required", nil)
		return
	}
	priority, ok := ParsePriority(req.Priority)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown priority %q", req.Priority), nil)
		return
	}
	if req.BoardID != "" {
		exists, err := s.boards.Exists(ctx, req.BoardID)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		if !exists {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown board %q", req.BoardID), nil)
			return
		}
	}
	assignedAgent := req.AssignedAgentID
	if assignedAgent != "" {
		canonical, ok := s.agents.CanonicalID(assignedAgent)
		if !ok {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown agent %q", assignedAgent), nil)
			return
		}
		assignedAgent = canonical
	}

	now := time.Now()
	t := &Task{
		ID:                 ulid.Make().String(),
		BoardID:            req.BoardID,
		OwnerID:            req.OwnerID,
		Title:              req.Title,
		Description:        req.Description,
		Priority:           priority,
		Status:             StatusToDo,
		Requirements:       req.Requirements,
		AcceptanceCriteria: req.AcceptanceCriteria,
		AssignedAgentID:    assignedAgent,
		Repo:               req.Repo,
		Progress:           0,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.TypeTaskCreated, t.ID, "", map[string]string{"board_id": t.BoardID})
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) GetTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.repo.Get(ctx, chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

type listTasksResponse struct {
	Tasks  []*Task `json:"tasks"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

func (s *Server) ListTasks(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var status Status
	if raw := q.Get("status"); raw != "" {
		parsed, ok := ParseStatus(raw)
		if !ok {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown status %q", raw), nil)
			return
		}
		status = parsed
	}
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

	tasks, total, err := s.repo.List(ctx, q.Get("board_id"), status, limit, offset)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &listTasksResponse{
		Tasks:  tasks,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

type updateTaskRequest struct {
	Title              *string   `json:"title"`
	Description        *string   `json:"description"`
	Priority           *string   `json:"priority"`
	Requirements       *[]string `json:"requirements"`
	AcceptanceCriteria *[]string `json:"acceptance_criteria"`
	AssignedAgentID    *string   `json:"assigned_agent_id"`
	Repo               *string   `json:"repo"`
}

// UpdateTask patches task fields. Status is deliberately not updatable
// here; all status changes go through MoveTask.
func (s *Server) UpdateTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}

	t, err := s.repo.Get(ctx, chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	// Title and description freeze once work starts.
	if (req.Title != nil || req.Description != nil) && t.Status != StatusToDo {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition,
			fmt.Sprintf("title and description can only change while the task is in %q", StatusToDo.Label()), nil)
		return
	}
	if req.Title != nil {
		if *req.Title == "" {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "title must not be empty", nil)
			return
		}
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Priority != nil {
		priority, ok := ParsePriority(*req.Priority)
		if !ok {
			cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown priority %q", *req.Priority), nil)
			return
		}
		t.Priority = priority
	}
	if req.Requirements != nil {
		t.Requirements = *req.Requirements
	}
	if req.AcceptanceCriteria != nil {
		t.AcceptanceCriteria = *req.AcceptanceCriteria
	}
	if req.AssignedAgentID != nil {
		assignedAgent := *req.AssignedAgentID
		if assignedAgent != "" {
			canonical, ok := s.agents.CanonicalID(assignedAgent)
			if !ok {
				cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown agent %q", assignedAgent), nil)
				return
			}
			assignedAgent = canonical
		}
		t.AssignedAgentID = assignedAgent
	}
	if req.Repo != nil {
		t.Repo = *req.Repo
	}
	t.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.TypeTaskUpdated, t.ID, "", map[string]string{"board_id": t.BoardID})
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) DeleteTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "taskID")

	// Fetch before delete for event metadata.
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.TypeTaskDeleted, id, "", map[string]string{"board_id": t.BoardID})
	cerr.SetJSONResponse(ctx, struct{}{})
}

type moveTaskRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MoveTask requests a status transition. The from status is part of the
// request so a move decided against a stale board view is rejected rather
// than applied.
func (s *Server) MoveTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req moveTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	from, ok := ParseStatus(req.From)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown status %q", req.From), nil)
		return
	}
	to, ok := ParseStatus(req.To)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, fmt.Sprintf("unknown status %q", req.To), nil)
		return
	}

	result, err := s.controller.MoveTask(ctx, chi.URLParam(r, "taskID"), from, to)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, result)
}

type processLogResponse struct {
	TaskID  string   `json:"task_id"`
	Entries []string `json:"entries"`
}

// GetProcessLog returns the chunks persisted so far. Clients wanting live
// chunks use the SSE stream instead.
func (s *Server) GetProcessLog(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.repo.Get(ctx, chi.URLParam(r, "taskID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	entries := t.ProcessLog
	if entries == nil {
		entries = []string{}
	}
	cerr.SetJSONResponse(ctx, &processLogResponse{TaskID: t.ID, Entries: entries})
}

// streamEvent is the SSE payload for a task's process stream.
type streamEvent struct {
	TaskID string `json:"task_id"`
	Chunk  string `json:"chunk,omitempty"`
	Error  string `json:"error,omitempty"`
	Status string `json:"status,omitempty"`
}

// StreamTask streams the task's process log over SSE: first the chunks
// already persisted, then live chunks as the relay produces them. The
// stream ends when the task leaves progress or the client disconnects.
// Mounted outside the JSON response middleware.
func (s *Server) StreamTask(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "taskID")

	// Subscribe before the snapshot read so no chunk falls in between.
	subID, events := s.eventBus.Subscribe(64)
	defer s.eventBus.Unsubscribe(subID)

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		http.Error(rw, "task not found", http.StatusNotFound)
		return
	}

	w, err := sse.NewWriter(rw)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, chunk := range t.ProcessLog {
		if err := w.SendJSON("chunk", &streamEvent{TaskID: id, Chunk: chunk}); err != nil {
			return
		}
	}
	if t.Status != StatusProgress {
		_ = w.SendJSON("end", &streamEvent{TaskID: id, Status: string(t.Status)})
		return
	}

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if err := w.Comment("keep-alive"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.ResourceID != id {
				continue
			}
			switch ev.Type {
			case eventbus.TypeTaskProcessChunk:
				if err := w.SendJSON("chunk", &streamEvent{TaskID: id, Chunk: ev.Payload}); err != nil {
					return
				}
			case eventbus.TypeTaskProcessError:
				_ = w.SendJSON("error", &streamEvent{TaskID: id, Error: ev.Payload})
				return
			case eventbus.TypeTaskStatusChanged:
				if to := ev.Metadata["to"]; to != string(StatusProgress) {
					_ = w.SendJSON("end", &streamEvent{TaskID: id, Status: to})
					return
				}
			}
		}
	}
}
