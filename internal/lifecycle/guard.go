package lifecycle

import (
	"context"
	"strings"

	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/task"
)

// countInProgress returns how many tasks the agent currently works on,
// excluding excludeTaskID so a re-entering task never counts against
// itself. Tasks whose assigned agent cannot be resolved any more fall back
// to a case-insensitive name comparison.
func (c *Controller) countInProgress(ctx context.Context, a *agent.Agent, excludeTaskID string) (int, error) {
	inProgress, _, err := c.tasks.List(ctx, "", task.StatusProgress, 0, 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, t := range inProgress {
		if t.ID == excludeTaskID {
			continue
		}
		if c.isAssignedTo(t, a) {
			count++
		}
	}
	return count, nil
}

func (c *Controller) isAssignedTo(t *task.Task, a *agent.Agent) bool {
	if resolved, ok := c.agents.Resolve(t.AssignedAgentID); ok {
		return resolved.ID == a.ID
	}
	return strings.EqualFold(t.AssignedAgentID, a.Name)
}

// canEnterProgress is the capacity admission check. Callers must hold the
// agent's admission lock so the count and the subsequent status write are
// atomic relative to competing moves.
func (c *Controller) canEnterProgress(ctx context.Context, a *agent.Agent, excludeTaskID string) (bool, error) {
	count, err := c.countInProgress(ctx, a, excludeTaskID)
	if err != nil {
		return false, err
	}
	return count < a.Capacity(), nil
}

// AgentWorkload reports the agent's current load as a percentage of its
// capacity, clamped to 100.
func (c *Controller) AgentWorkload(ctx context.Context, idOrName string) (int, error) {
	a, ok := c.agents.Resolve(idOrName)
	if !ok {
		return 0, errUnknownAgent(idOrName)
	}
	count, err := c.countInProgress(ctx, a, "")
	if err != nil {
		return 0, err
	}
	percent := count * 100 / a.Capacity()
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}
