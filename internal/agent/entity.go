package agent

// DefaultCapacityLimit caps how many tasks an agent works on concurrently.
const DefaultCapacityLimit = 5

// Agent is a named capacity pool backed by one external text-generation
// provider. Agents are statically configured; they are not created or
// destroyed at runtime.
type Agent struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Aliases       []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Provider      string   `yaml:"provider" json:"provider"`
	Model         string   `yaml:"model,omitempty" json:"model,omitempty"`
	SystemPrompt  string   `yaml:"system_prompt,omitempty" json:"-"`
	CapacityLimit int      `yaml:"capacity_limit,omitempty" json:"capacity_limit"`
}

// Capacity returns the configured limit, falling back to the default.
func (a *Agent) Capacity() int {
	if a.CapacityLimit > 0 {
		return a.CapacityLimit
	}
	return DefaultCapacityLimit
}
