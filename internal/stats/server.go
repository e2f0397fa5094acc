// Package stats aggregates board state for the dashboard.
package stats

import (
	"net/http"

	"github.com/taskpilot/taskpilot/internal/agent"
	"github.com/taskpilot/taskpilot/internal/task"
	"github.com/taskpilot/taskpilot/pkg/cerr"
)

type Server struct {
	tasks    task.Repository
	registry *agent.Registry
	workload agent.WorkloadReporter
}

func NewServer(tasks task.Repository, registry *agent.Registry, workload agent.WorkloadReporter) *Server {
	return &Server{
		tasks:    tasks,
		registry: registry,
		workload: workload,
	}
}

type agentStats struct {
	AgentID  string `json:"agent_id"`
	Name     string `json:"name"`
	Workload int    `json:"workload"`
	Capacity int    `json:"capacity"`
}

type statsResponse struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
	Agents     []*agentStats  `json:"agents"`
}

// GetStats counts tasks per status and priority for one board (or all
// boards when board_id is empty) and reports each agent's workload.
// Workloads are global: capacity is per agent, not per board.
func (s *Server) GetStats(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	boardID := r.URL.Query().Get("board_id")

	tasks, total, err := s.tasks.List(ctx, boardID, "", 0, 0)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	resp := &statsResponse{
		Total:      total,
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
	}
	for _, st := range []task.Status{task.StatusToDo, task.StatusProgress, task.StatusReview, task.StatusDone, task.StatusCancel} {
		resp.ByStatus[string(st)] = 0
	}
	for _, t := range tasks {
		resp.ByStatus[string(t.Status)]++
		resp.ByPriority[string(t.Priority)]++
	}

	for _, a := range s.registry.List() {
		workload, err := s.workload.AgentWorkload(ctx, a.ID)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		resp.Agents = append(resp.Agents, &agentStats{
			AgentID:  a.ID,
			Name:     a.Name,
			Workload: workload,
			Capacity: a.Capacity(),
		})
	}

	cerr.SetJSONResponse(ctx, resp)
}
