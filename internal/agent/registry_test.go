package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAgents() []*Agent {
	return []*Agent{
		{ID: "agent-gemini", Name: "Gemini", Aliases: []string{"Gemma"}, Provider: "gemini"},
		{ID: "agent-openai", Name: "OpenAI", Aliases: []string{"GPT_OSS"}, Provider: "openrouter"},
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(testAgents())

	// Id, name and alias all resolve to the same agent, case-insensitively.
	for _, key := range []string{"agent-gemini", "AGENT-GEMINI", "Gemini", "gemini", "gemma", " Gemma "} {
		a, ok := r.Resolve(key)
		require.True(t, ok, "key %q", key)
		assert.Equal(t, "agent-gemini", a.ID, "key %q", key)
	}

	_, ok := r.Resolve("claude")
	assert.False(t, ok)
	_, ok = r.Resolve("")
	assert.False(t, ok)
}

func TestRegistryCanonicalID(t *testing.T) {
	r := NewRegistry(testAgents())

	id, ok := r.CanonicalID("gpt_oss")
	require.True(t, ok)
	assert.Equal(t, "agent-openai", id)

	_, ok = r.CanonicalID("unknown")
	assert.False(t, ok)
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry(testAgents())
	r.Replace([]*Agent{{ID: "agent-claude", Name: "Claude", Provider: "openrouter"}})

	_, ok := r.Resolve("gemini")
	assert.False(t, ok, "old agents should be gone after replace")

	a, ok := r.Resolve("claude")
	require.True(t, ok)
	assert.Equal(t, "agent-claude", a.ID)
	assert.Len(t, r.List(), 1)
}

func TestAgentCapacityDefault(t *testing.T) {
	a := &Agent{ID: "a"}
	assert.Equal(t, DefaultCapacityLimit, a.Capacity())

	a.CapacityLimit = 2
	assert.Equal(t, 2, a.Capacity())
}
