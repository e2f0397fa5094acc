package agent

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskpilot/taskpilot/pkg/cerr"
)

// WorkloadReporter reports an agent's current load as a percentage of its
// capacity. Implemented by the lifecycle controller.
type WorkloadReporter interface {
	AgentWorkload(ctx context.Context, idOrName string) (int, error)
}

type Server struct {
	registry *Registry
	workload WorkloadReporter
}

func NewServer(registry *Registry, workload WorkloadReporter) *Server {
	return &Server{
		registry: registry,
		workload: workload,
	}
}

// agentView is the wire shape of an agent. The system prompt stays
// server-side.
type agentView struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases,omitempty"`
	Provider string   `json:"provider"`
	Model    string   `json:"model,omitempty"`
	Capacity int      `json:"capacity"`
	Workload int      `json:"workload"`
}

type listAgentsResponse struct {
	Agents []*agentView `json:"agents"`
}

func (s *Server) ListAgents(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agents := s.registry.List()
	views := make([]*agentView, 0, len(agents))
	for _, a := range agents {
		workload, err := s.workload.AgentWorkload(ctx, a.ID)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		views = append(views, &agentView{
			ID:       a.ID,
			Name:     a.Name,
			Aliases:  a.Aliases,
			Provider: a.Provider,
			Model:    a.Model,
			Capacity: a.Capacity(),
			Workload: workload,
		})
	}
	cerr.SetJSONResponse(ctx, &listAgentsResponse{Agents: views})
}

type workloadResponse struct {
	AgentID  string `json:"agent_id"`
	Workload int    `json:"workload"`
}

// GetWorkload accepts either the agent's id or its display name, matched
// case-insensitively.
func (s *Server) GetWorkload(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idOrName := chi.URLParam(r, "agentID")
	a, ok := s.registry.Resolve(idOrName)
	if !ok {
		cerr.SetNewJSONError(ctx, cerr.NotFound, "unknown agent", nil)
		return
	}
	workload, err := s.workload.AgentWorkload(ctx, a.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, &workloadResponse{AgentID: a.ID, Workload: workload})
}
