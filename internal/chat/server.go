package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/taskpilot/taskpilot/internal/eventbus"
	"github.com/taskpilot/taskpilot/pkg/cerr"
)

// BoardLookup checks board existence before accepting a message.
type BoardLookup interface {
	Exists(ctx context.Context, boardID string) (bool, error)
}

type Server struct {
	repo     Repository
	boards   BoardLookup
	eventBus *eventbus.Bus
}

func NewServer(repo Repository, boards BoardLookup, eventBus *eventbus.Bus) *Server {
	return &Server{
		repo:     repo,
		boards:   boards,
		eventBus: eventBus,
	}
}

type postMessageRequest struct {
	AuthorID string `json:"author_id"`
	Body     string `json:"body"`
}

func (s *Server) PostMessage(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	boardID := chi.URLParam(r, "boardID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Body == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "body is required", nil)
		return
	}
	exists, err := s.boards.Exists(ctx, boardID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if !exists {
		cerr.SetNewJSONError(ctx, cerr.NotFound, "board not found", nil)
		return
	}

	m := &Message{
		ID:        ulid.Make().String(),
		BoardID:   boardID,
		AuthorID:  req.AuthorID,
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	s.eventBus.PublishNew(eventbus.TypeChatMessagePosted, m.ID, m.Body, map[string]string{"board_id": boardID})
	cerr.SetJSONResponse(ctx, m)
}

type listMessagesResponse struct {
	Messages []*Message `json:"messages"`
}

func (s *Server) ListMessages(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	messages, err := s.repo.ListByBoard(ctx, chi.URLParam(r, "boardID"), limit)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if messages == nil {
		messages = []*Message{}
	}
	cerr.SetJSONResponse(ctx, &listMessagesResponse{Messages: messages})
}

func (s *Server) DeleteMessage(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "messageID")
	if _, err := s.repo.Get(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, struct{}{})
}
