package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/taskpilot/internal/activity"
	activityrepo "github.com/taskpilot/taskpilot/internal/activity/repositoryimpl"
	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/eventbus"
	"github.com/taskpilot/taskpilot/internal/generation"
	"github.com/taskpilot/taskpilot/internal/relay"
	"github.com/taskpilot/taskpilot/internal/task"
	taskrepo "github.com/taskpilot/taskpilot/internal/task/repositoryimpl"
	"github.com/taskpilot/taskpilot/pkg/cerr"
	"github.com/taskpilot/taskpilot/pkg/storage"
)

// gateGenerator blocks Generate until the gate opens, keeping tasks in
// progress for as long as a test needs.
type gateGenerator struct {
	gate chan struct{}
	text string
}

func newGateGenerator(text string) *gateGenerator {
	return &gateGenerator{gate: make(chan struct{}), text: text}
}

func (g *gateGenerator) Generate(ctx context.Context, _ *generation.Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-g.gate:
		return g.text, nil
	}
}

type fixture struct {
	controller *Controller
	tasks      task.Repository
	registry   *agent.Registry
	bus        *eventbus.Bus
}

func newFixture(t *testing.T, gen generation.Generator, opts ...Option) *fixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	tasks := taskrepo.NewYAMLRepository(store)
	registry := agent.NewRegistry([]*agent.Agent{
		{ID: "agent-1", Name: "Gemini", Aliases: []string{"Gemma"}, Provider: "static"},
		{ID: "agent-2", Name: "OpenAI", Provider: "static", CapacityLimit: 1},
	})
	bus := eventbus.New()
	recorder := activity.NewRecorder(activityrepo.NewYAMLRepository(store))
	rly := relay.New(gen, relay.WithReplayDelay(time.Millisecond))

	return &fixture{
		controller: New(tasks, registry, rly, recorder, bus, opts...),
		tasks:      tasks,
		registry:   registry,
		bus:        bus,
	}
}

func (f *fixture) seedTask(t *testing.T, id string, status task.Status, agentID string) *task.Task {
	t.Helper()
	now := time.Now()
	tk := &task.Task{
		ID:              id,
		BoardID:         "board-1",
		Title:           "task " + id,
		Priority:        task.PriorityMedium,
		Status:          status,
		AssignedAgentID: agentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.tasks.Create(context.Background(), tk))
	return tk
}

func TestMoveTaskInvalidTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newGateGenerator("out"))
	f.seedTask(t, "01A", task.StatusToDo, "agent-1")

	result, err := f.controller.MoveTask(ctx, "01A", task.StatusToDo, task.StatusDone)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Reason)

	got, err := f.tasks.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, task.StatusToDo, got.Status, "rejected move must not change state")
}

func TestMoveTaskStaleFrom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newGateGenerator("out"))
	f.seedTask(t, "01A", task.StatusToDo, "agent-1")

	result, err := f.controller.MoveTask(ctx, "01A", task.StatusReview, task.StatusDone)
	require.NoError(t, err)
	assert.False(t, result.OK)
}

func TestMoveTaskNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newGateGenerator("out"))

	_, err := f.controller.MoveTask(ctx, "missing", task.StatusToDo, task.StatusProgress)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestMoveTaskUnknownAgent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newGateGenerator("out"))
	f.seedTask(t, "01A", task.StatusToDo, "nobody")

	result, err := f.controller.MoveTask(ctx, "01A", task.StatusToDo, task.StatusProgress)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "nobody")
}

func TestMoveTaskProgressHeuristic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newGateGenerator("out"))

	// Fresh task entering progress jumps to 67.
	f.seedTask(t, "01A", task.StatusToDo, "agent-1")
	result, err := f.controller.MoveTask(ctx, "01A", task.StatusToDo, task.StatusProgress)
	require.NoError(t, err)
	require.True(t, result.OK)
	got, err := f.tasks.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, 67, got.Progress)

	// A task with earlier progress keeps it on re-entry.
	tk := f.seedTask(t, "01B", task.StatusToDo, "agent-1")
	tk.Progress = 30
	require.NoError(t, f.tasks.Update(ctx, tk))
	result, err = f.controller.MoveTask(ctx, "01B", task.StatusToDo, task.StatusProgress)
	require.NoError(t, err)
	require.True(t, result.OK)
	got, err = f.tasks.Get(ctx, "01B")
	require.NoError(t, err)
	assert.Equal(t, 30, got.Progress)

	// Review means done from the agent's perspective: 100.
	result, err = f.controller.MoveTask(ctx, "01A", task.StatusProgress, task.StatusReview)
	require.NoError(t, err)
	require.True(t, result.OK)
	got, err = f.tasks.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)

	// Cancel resets.
	result, err = f.controller.MoveTask(ctx, "01A", task.StatusReview, task.StatusCancel)
	require.NoError(t, err)
	require.True(t, result.OK)
	got, err = f.tasks.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Progress)
}

func TestCapacityLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newGateGenerator("out"))

	// agent-2 has capacity 1 and one task already running.
	f.seedTask(t, "01A", task.StatusProgress, "agent-2")
	f.seedTask(t, "01B", task.StatusToDo, "agent-2")

	result, err := f.controller.MoveTask(ctx, "01B", task.StatusToDo, task.StatusProgress)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Contains(t, result.Reason, "capacity")

	workload, err := f.controller.AgentWorkload(ctx, "agent-2")
	require.NoError(t, err)
	assert.Equal(t, 100, workload)
}

func TestCapacityCountsNameAssignments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newGateGenerator("out"))

	// Historic records referenced agents by display name or alias; they
	// still count against the same agent's capacity.
	f.seedTask(t, "01A", task.StatusProgress, "OpenAI")
	f.seedTask(t, "01B", task.StatusToDo, "agent-2")

	result, err := f.controller.MoveTask(ctx, "01B", task.StatusToDo, task.StatusProgress)
	require.NoError(t, err)
	assert.False(t, result.OK)
}

func TestAgentWorkload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newGateGenerator("out"))

	// Default capacity is 5; two running tasks make 40%.
	f.seedTask(t, "01A", task.StatusProgress, "agent-1")
	f.seedTask(t, "01B", task.StatusProgress, "Gemma")

	workload, err := f.controller.AgentWorkload(ctx, "gemini")
	require.NoError(t, err)
	assert.Equal(t, 40, workload)

	_, err = f.controller.AgentWorkload(ctx, "nobody")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestConcurrentAdmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newGateGenerator("out"))

	// Four of five slots taken; two concurrent entries race for the last.
	for i := 0; i < 4; i++ {
		f.seedTask(t, fmt.Sprintf("01RUN%d", i), task.StatusProgress, "agent-1")
	}
	f.seedTask(t, "01X", task.StatusToDo, "agent-1")
	f.seedTask(t, "01Y", task.StatusToDo, "agent-1")

	var wg sync.WaitGroup
	results := make([]*task.MoveResult, 2)
	for i, id := range []string{"01X", "01Y"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			result, err := f.controller.MoveTask(ctx, id, task.StatusToDo, task.StatusProgress)
			if assert.NoError(t, err) {
				results[i] = result
			}
		}(i, id)
	}
	wg.Wait()

	admitted := 0
	for _, r := range results {
		if r != nil && r.OK {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted, "exactly one of two racing moves may take the last slot")
}

func TestRelayAppendsLogAndAutoAdvances(t *testing.T) {
	ctx := context.Background()
	gen := &staticTextGenerator{text: "Working on it. Done with everything now."}
	f := newFixture(t, gen, WithAdvanceDelay(10*time.Millisecond))
	f.seedTask(t, "01A", task.StatusToDo, "agent-1")

	subID, events := f.bus.Subscribe(128)
	defer f.bus.Unsubscribe(subID)

	result, err := f.controller.MoveTask(ctx, "01A", task.StatusToDo, task.StatusProgress)
	require.NoError(t, err)
	require.True(t, result.OK)

	require.Eventually(t, func() bool {
		got, err := f.tasks.Get(ctx, "01A")
		return err == nil && got.Status == task.StatusReview
	}, 3*time.Second, 10*time.Millisecond, "task should auto-advance to review after the relay completes")

	got, err := f.tasks.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
	assert.NotEmpty(t, got.ProcessLog)

	// One chunk event per persisted chunk.
	chunkEvents := 0
	for len(events) > 0 {
		if (<-events).Type == eventbus.TypeTaskProcessChunk {
			chunkEvents++
		}
	}
	assert.Equal(t, len(got.ProcessLog), chunkEvents)
}

type staticTextGenerator struct {
	text string
}

func (g *staticTextGenerator) Generate(context.Context, *generation.Request) (string, error) {
	return g.text, nil
}

func TestManualMoveWinsOverRelay(t *testing.T) {
	ctx := context.Background()
	gen := newGateGenerator("Late output that must not land.")
	f := newFixture(t, gen, WithAdvanceDelay(10*time.Millisecond))
	f.seedTask(t, "01A", task.StatusToDo, "agent-1")

	result, err := f.controller.MoveTask(ctx, "01A", task.StatusToDo, task.StatusProgress)
	require.NoError(t, err)
	require.True(t, result.OK)

	// Reviewer pulls the task while the agent is still generating.
	result, err = f.controller.MoveTask(ctx, "01A", task.StatusProgress, task.StatusReview)
	require.NoError(t, err)
	require.True(t, result.OK)

	close(gen.gate)
	f.controller.Wait()

	got, err := f.tasks.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, task.StatusReview, got.Status)
	assert.Empty(t, got.ProcessLog, "chunks produced after the manual move are discarded")
}

func TestUpstreamFailureKeepsPartialLog(t *testing.T) {
	ctx := context.Background()
	gen := &failingStreamGenerator{fragments: []string{"First part.\n"}}
	f := newFixture(t, gen)
	f.seedTask(t, "01A", task.StatusToDo, "agent-1")

	subID, events := f.bus.Subscribe(64)
	defer f.bus.Unsubscribe(subID)

	result, err := f.controller.MoveTask(ctx, "01A", task.StatusToDo, task.StatusProgress)
	require.NoError(t, err)
	require.True(t, result.OK)

	f.controller.Wait()

	got, err := f.tasks.Get(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, task.StatusProgress, got.Status, "a failed run leaves the task in progress")
	assert.Equal(t, []string{"First part.\n"}, got.ProcessLog)

	sawError := false
	for len(events) > 0 {
		if (<-events).Type == eventbus.TypeTaskProcessError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

type failingStreamGenerator struct {
	fragments []string
}

func (g *failingStreamGenerator) Generate(context.Context, *generation.Request) (string, error) {
	return "", fmt.Errorf("upstream exploded")
}

func (g *failingStreamGenerator) GenerateStream(_ context.Context, _ *generation.Request, emit func(string) error) error {
	for _, f := range g.fragments {
		if err := emit(f); err != nil {
			return err
		}
	}
	return fmt.Errorf("upstream exploded")
}
