package task_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/taskpilot/internal/eventbus"
	"github.com/taskpilot/taskpilot/internal/task"
	taskrepo "github.com/taskpilot/taskpilot/internal/task/repositoryimpl"
	"github.com/taskpilot/taskpilot/pkg/cerr"
	"github.com/taskpilot/taskpilot/pkg/storage"
)

type fakeController struct {
	result *task.MoveResult
	calls  [][3]string
}

func (c *fakeController) MoveTask(_ context.Context, taskID string, from, to task.Status) (*task.MoveResult, error) {
	c.calls = append(c.calls, [3]string{taskID, string(from), string(to)})
	return c.result, nil
}

type fakeBoards struct{}

func (fakeBoards) Exists(context.Context, string) (bool, error) { return true, nil }

type fakeAgents struct{}

func (fakeAgents) CanonicalID(idOrName string) (string, bool) {
	if strings.EqualFold(idOrName, "gemini") || idOrName == "agent-1" {
		return "agent-1", true
	}
	return "", false
}

type env struct {
	repo       *taskrepo.YAMLRepository
	controller *fakeController
	router     chi.Router
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := taskrepo.NewYAMLRepository(store)
	controller := &fakeController{result: &task.MoveResult{OK: true}}
	server := task.NewServer(repo, controller, fakeBoards{}, fakeAgents{}, eventbus.New())

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(cerr.NewJSONResponseChiMiddleware())
		r.Post("/tasks", server.CreateTask)
		r.Get("/tasks/{taskID}", server.GetTask)
		r.Put("/tasks/{taskID}", server.UpdateTask)
		r.Post("/tasks/{taskID}/move", server.MoveTask)
		r.Get("/tasks/{taskID}/log", server.GetProcessLog)
	})
	r.Get("/tasks/{taskID}/stream", server.StreamTask)

	return &env{repo: repo, controller: controller, router: r}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateTaskHTTP(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/tasks",
		`{"board_id":"b1","title":"Ship it","assigned_agent_id":"Gemini"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, task.StatusToDo, got.Status)
	assert.Equal(t, task.PriorityMedium, got.Priority, "empty priority defaults to medium")
	assert.Equal(t, "agent-1", got.AssignedAgentID, "agent name is canonicalized on create")
	assert.Zero(t, got.Progress)
}

func TestCreateTaskValidation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/tasks", `{"board_id":"b1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing title")

	rec = e.do(t, http.MethodPost, "/tasks", `{"title":"x","priority":"urgent"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown priority")

	rec = e.do(t, http.MethodPost, "/tasks", `{"title":"x","assigned_agent_id":"nobody"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown agent")
}

func TestMoveTaskHTTP(t *testing.T) {
	e := newEnv(t)
	e.controller.result = &task.MoveResult{OK: false, Reason: "agent at capacity"}

	rec := e.do(t, http.MethodPost, "/tasks/01A/move", `{"from":"todo","to":"progress"}`)
	// Rejections are results, not transport errors.
	require.Equal(t, http.StatusOK, rec.Code)

	var result task.MoveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.OK)
	assert.Equal(t, "agent at capacity", result.Reason)
	require.Len(t, e.controller.calls, 1)
	assert.Equal(t, [3]string{"01A", "todo", "progress"}, e.controller.calls[0])
}

func TestMoveTaskRejectsUnknownStatus(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/tasks/01A/move", `{"from":"todo","to":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.controller.calls)
}

func TestUpdateTaskFrozenOutsideTodo(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, e.repo.Create(ctx, &task.Task{
		ID: "01A", Title: "before", Status: task.StatusProgress,
		Priority: task.PriorityMedium, CreatedAt: now, UpdatedAt: now,
	}))

	rec := e.do(t, http.MethodPut, "/tasks/01A", `{"title":"after"}`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	// Priority stays mutable whatever the status.
	rec = e.do(t, http.MethodPut, "/tasks/01A", `{"priority":"high"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := e.repo.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, "before", got.Title)
	assert.Equal(t, task.PriorityHigh, got.Priority)
}

func TestGetProcessLogHTTP(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, e.repo.Create(ctx, &task.Task{
		ID: "01A", Title: "t", Status: task.StatusProgress,
		Priority: task.PriorityMedium, CreatedAt: now, UpdatedAt: now,
		ProcessLog: []string{"chunk one", "chunk two"},
	}))

	rec := e.do(t, http.MethodGet, "/tasks/01A/log", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chunk one")
	assert.Contains(t, rec.Body.String(), "chunk two")
}

func TestStreamTaskReplaysAndEnds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, e.repo.Create(ctx, &task.Task{
		ID: "01A", Title: "t", Status: task.StatusReview,
		Priority: task.PriorityMedium, CreatedAt: now, UpdatedAt: now,
		ProcessLog: []string{"persisted chunk"},
	}))

	rec := e.do(t, http.MethodGet, "/tasks/01A/stream", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: chunk")
	assert.Contains(t, body, "persisted chunk")
	// A task no longer in progress ends the stream right after the replay.
	assert.Contains(t, body, "event: end")
}
