package board_test

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

	"github.com/taskpilot/taskpilot/internal/board"
	boardrepo "github.com/taskpilot/taskpilot/internal/board/repositoryimpl"
	"github.com/taskpilot/taskpilot/internal/eventbus"
	"github.com/taskpilot/taskpilot/internal/task"
	taskrepo "github.com/taskpilot/taskpilot/internal/task/repositoryimpl"
	"github.com/taskpilot/taskpilot/pkg/cerr"
	"github.com/taskpilot/taskpilot/pkg/storage"
)

type env struct {
	boards *boardrepo.YAMLRepository
	tasks  *taskrepo.YAMLRepository
	router chi.Router
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	boards := boardrepo.NewYAMLRepository(store)
	tasks := taskrepo.NewYAMLRepository(store)
	server := board.NewServer(boards, tasks, eventbus.New())

	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	r.Get("/boards", server.ListBoards)
	r.Post("/boards", server.CreateBoard)
	r.Get("/boards/{boardID}", server.GetBoard)
	r.Put("/boards/{boardID}", server.UpdateBoard)
	r.Delete("/boards/{boardID}", server.DeleteBoard)

	return &env{boards: boards, tasks: tasks, router: r}
}

func (e *env) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetBoard(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/boards", `{"name":"Sprint 12","owner_id":"u1","type":"collab"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created board.Board
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, board.TypeCollab, created.Type)

	rec = e.do(t, http.MethodGet, "/boards/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateBoardValidation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/boards", `{"owner_id":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing name")

	rec = e.do(t, http.MethodPost, "/boards", `{"name":"x","type":"shared"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown type")
}

func TestListBoardsByOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, e.boards.Create(ctx, &board.Board{
		ID: "01A", Name: "mine", Type: board.TypePersonal, OwnerID: "u1", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, e.boards.Create(ctx, &board.Board{
		ID: "01B", Name: "shared with me", Type: board.TypeCollab, OwnerID: "u2",
		Members: []string{"u1"}, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, e.boards.Create(ctx, &board.Board{
		ID: "01C", Name: "not mine", Type: board.TypePersonal, OwnerID: "u3", CreatedAt: now, UpdatedAt: now,
	}))

	rec := e.do(t, http.MethodGet, "/boards?owner_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Boards []*board.Board `json:"boards"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Boards, 2)
}

func TestDeleteBoardCascadesTasks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, e.boards.Create(ctx, &board.Board{
		ID: "01A", Name: "b", Type: board.TypePersonal, OwnerID: "u1", CreatedAt: now, UpdatedAt: now,
	}))
	for _, id := range []string{"01X", "01Y"} {
		require.NoError(t, e.tasks.Create(ctx, &task.Task{
			ID: id, BoardID: "01A", Title: id, Status: task.StatusToDo,
			Priority: task.PriorityMedium, CreatedAt: now, UpdatedAt: now,
		}))
	}
	require.NoError(t, e.tasks.Create(ctx, &task.Task{
		ID: "01Z", BoardID: "other", Title: "survives", Status: task.StatusToDo,
		Priority: task.PriorityMedium, CreatedAt: now, UpdatedAt: now,
	}))

	rec := e.do(t, http.MethodDelete, "/boards/01A", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := e.boards.Get(ctx, "01A")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	_, total, err := e.tasks.List(ctx, "01A", "", 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total, "board tasks are deleted with the board")

	_, err = e.tasks.Get(ctx, "01Z")
	assert.NoError(t, err, "tasks on other boards are untouched")
}

func TestDeleteBoardNotFound(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodDelete, "/boards/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
