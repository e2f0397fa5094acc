// Package lifecycle owns the task status state machine: it validates
// requested moves against the transition table, enforces per-agent
// capacity, persists the change, and kicks off the streaming relay when a
// task enters progress.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/taskpilot/taskpilot/internal/activity"
	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/eventbus"
	"github.com/taskpilot/taskpilot/internal/relay"
	"github.com/taskpilot/taskpilot/internal/task"
	"github.com/taskpilot/taskpilot/pkg/cerr"
)

// defaultAdvanceDelay is how long after relay completion a task in
// progress auto-advances to review. Tied to actual work finishing rather
// than a wall-clock timer; see DESIGN.md.
const defaultAdvanceDelay = time.Second

// errTaskLeftProgress aborts a relay whose task was manually moved out of
// progress while streaming. The partial process log is retained.
var errTaskLeftProgress = errors.New("task no longer in progress")

func errUnknownAgent(idOrName string) error {
	return cerr.NewError(cerr.NotFound, fmt.Sprintf("unknown agent %q", idOrName), nil)
}

func reject(format string, args ...any) *task.MoveResult {
	return &task.MoveResult{OK: false, Reason: fmt.Sprintf(format, args...)}
}

type Controller struct {
	tasks    task.Repository
	agents   *agent.Registry
	relay    *relay.Relay
	recorder *activity.Recorder
	bus      *eventbus.Bus

	taskLocks    *keyedMutex
	admission    *keyedMutex
	wg           *conc.WaitGroup
	advanceDelay time.Duration
}

type Option func(*Controller)

func WithAdvanceDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.advanceDelay = d
	}
}

func New(tasks task.Repository, agents *agent.Registry, rly *relay.Relay, recorder *activity.Recorder, bus *eventbus.Bus, opts ...Option) *Controller {
	c := &Controller{
		tasks:        tasks,
		agents:       agents,
		relay:        rly,
		recorder:     recorder,
		bus:          bus,
		taskLocks:    newKeyedMutex(),
		admission:    newKeyedMutex(),
		wg:           conc.NewWaitGroup(),
		advanceDelay: defaultAdvanceDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wait blocks until all in-flight relays and auto-advances have finished.
// Called on shutdown.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// MoveTask requests a status transition. All-or-nothing: a rejection or a
// failed persistence leaves the task untouched. Moves on the same task are
// serialized; entering progress additionally serializes on the agent so
// two concurrent moves cannot both pass the capacity check.
func (c *Controller) MoveTask(ctx context.Context, taskID string, from, to task.Status) (*task.MoveResult, error) {
	unlock := c.taskLocks.Lock(taskID)
	defer unlock()

	t, err := c.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != from {
		return reject("task is in %q, not %q", t.Status.Label(), from.Label()), nil
	}
	if !task.IsValidTransition(from, to) {
		return reject("cannot move a task from %q to %q", from.Label(), to.Label()), nil
	}

	var ag *agent.Agent
	if to == task.StatusProgress {
		var ok bool
		ag, ok = c.agents.Resolve(t.AssignedAgentID)
		if !ok {
			return reject("task is assigned to unknown agent %q", t.AssignedAgentID), nil
		}
		release := c.admission.Lock(ag.ID)
		defer release()
		admit, err := c.canEnterProgress(ctx, ag, t.ID)
		if err != nil {
			return nil, err
		}
		if !admit {
			return reject("agent %s is at capacity (%d tasks in progress)", ag.Name, ag.Capacity()), nil
		}
	}

	t.Status = to
	applyProgressHeuristic(t, to)
	t.UpdatedAt = time.Now()
	if err := c.tasks.Update(ctx, t); err != nil {
		return nil, err
	}

	agentName := t.AssignedAgentID
	if ag == nil {
		if resolved, ok := c.agents.Resolve(t.AssignedAgentID); ok {
			agentName = resolved.Name
		}
	} else {
		agentName = ag.Name
	}
	c.recorder.Record(ctx, &activity.Entry{
		BoardID:   t.BoardID,
		TaskID:    t.ID,
		TaskTitle: t.Title,
		AgentName: agentName,
		Status:    to.Label(),
		Priority:  string(t.Priority),
		Repo:      t.Repo,
		Percent:   t.Progress,
	})
	c.bus.PublishNew(eventbus.TypeTaskStatusChanged, t.ID, "", map[string]string{
		"board_id": t.BoardID,
		"from":     string(from),
		"to":       string(to),
	})

	if to == task.StatusProgress {
		c.startRelay(ctx, t, ag)
	}

	return &task.MoveResult{OK: true}, nil
}

// applyProgressHeuristic sets the progress percentage for the new status.
// Entering progress bumps an untouched task to 67; review and done mean
// 100; cancel resets to 0. Moves back to todo keep the current value.
func applyProgressHeuristic(t *task.Task, to task.Status) {
	switch to {
	case task.StatusProgress:
		if t.Progress == 0 {
			t.Progress = 67
		}
	case task.StatusReview, task.StatusDone:
		t.Progress = 100
	case task.StatusCancel:
		t.Progress = 0
	}
}

// startRelay launches the agent work stream for a task that just entered
// progress. Fire-and-forget relative to the move: the caller returns
// immediately, the relay runs detached from the request context.
func (c *Controller) startRelay(ctx context.Context, t *task.Task, ag *agent.Agent) {
	relayCtx := context.WithoutCancel(ctx)
	snapshot := *t
	c.wg.Go(func() {
		c.relay.Run(relayCtx, &snapshot, ag, relay.Callbacks{
			OnChunk: func(chunk string) error {
				return c.appendChunk(relayCtx, snapshot.ID, chunk)
			},
			OnError: func(err error) {
				c.handleRelayError(relayCtx, snapshot.ID, err)
			},
			OnComplete: func() {
				c.autoAdvance(relayCtx, snapshot.ID)
			},
		})
	})
}

// appendChunk writes one relay chunk to the task's process log. The log
// only grows while the task is in progress; a manual move out of progress
// aborts the relay instead.
func (c *Controller) appendChunk(ctx context.Context, taskID, chunk string) error {
	unlock := c.taskLocks.Lock(taskID)
	defer unlock()

	t, err := c.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status != task.StatusProgress {
		return errTaskLeftProgress
	}
	if err := c.tasks.AppendProcessLog(ctx, taskID, chunk); err != nil {
		return err
	}
	c.bus.PublishNew(eventbus.TypeTaskProcessChunk, taskID, chunk, map[string]string{
		"board_id": t.BoardID,
	})
	return nil
}

func (c *Controller) handleRelayError(ctx context.Context, taskID string, err error) {
	if errors.Is(err, errTaskLeftProgress) {
		slog.DebugContext(ctx, "relay stopped, task was moved out of progress", "task_id", taskID)
		return
	}
	// The task stays in progress with its partial log; no automatic retry.
	// An operator or the UI re-enters progress to try again.
	slog.ErrorContext(ctx, "relay failed", "task_id", taskID, "error", err)
	c.bus.PublishNew(eventbus.TypeTaskProcessError, taskID, err.Error(), nil)
}

// autoAdvance moves a task to review shortly after its relay completes. A
// manual move in the meantime wins: the auto-advance is then rejected by
// the state check and dropped.
func (c *Controller) autoAdvance(ctx context.Context, taskID string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(c.advanceDelay):
	}
	result, err := c.MoveTask(ctx, taskID, task.StatusProgress, task.StatusReview)
	if err != nil {
		slog.ErrorContext(ctx, "auto-advance failed", "task_id", taskID, "error", err)
		return
	}
	if !result.OK {
		slog.DebugContext(ctx, "auto-advance skipped", "task_id", taskID, "reason", result.Reason)
	}
}
