package agent

import (
	"strings"
	"sync"
)

// Registry resolves any identifier a caller may carry for an agent (its id,
// display name or a cosmetic alias, case-insensitively) to the canonical
// Agent. Different call sites historically populated either the id or the
// name; normalizing here keeps the dual matching out of the capacity guard.
type Registry struct {
	mu     sync.RWMutex
	agents []*Agent
	byKey  map[string]*Agent
}

func NewRegistry(agents []*Agent) *Registry {
	r := &Registry{}
	r.Replace(agents)
	return r
}

// Replace swaps the full agent set, e.g. after a config reload.
func (r *Registry) Replace(agents []*Agent) {
	byKey := make(map[string]*Agent)
	for _, a := range agents {
		byKey[strings.ToLower(a.ID)] = a
		byKey[strings.ToLower(a.Name)] = a
		for _, alias := range a.Aliases {
			byKey[strings.ToLower(alias)] = a
		}
	}
	r.mu.Lock()
	r.agents = agents
	r.byKey = byKey
	r.mu.Unlock()
}

// Resolve returns the canonical agent for an id, name or alias.
func (r *Registry) Resolve(idOrName string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byKey[strings.ToLower(strings.TrimSpace(idOrName))]
	return a, ok
}

// CanonicalID resolves an id, name or alias to the agent's canonical id.
func (r *Registry) CanonicalID(idOrName string) (string, bool) {
	a, ok := r.Resolve(idOrName)
	if !ok {
		return "", false
	}
	return a.ID, true
}

// List returns all configured agents in configuration order.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, len(r.agents))
	copy(out, r.agents)
	return out
}
