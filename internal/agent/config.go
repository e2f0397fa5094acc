package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const reloadDebounce = 100 * time.Millisecond

type configFile struct {
	Agents []*Agent `yaml:"agents"`
}

// LoadConfig reads the agent pool definition from a YAML file. An empty
// path yields the built-in defaults.
func LoadConfig(path string) ([]*Agent, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent config %s: %w", path, err)
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse agent config %s: %w", path, err)
	}
	if len(cfg.Agents) == 0 {
		return nil, fmt.Errorf("agent config %s defines no agents", path)
	}
	for _, a := range cfg.Agents {
		if a.ID == "" || a.Name == "" {
			return nil, fmt.Errorf("agent config %s: every agent needs an id and a name", path)
		}
	}
	return cfg.Agents, nil
}

// Defaults returns the built-in agent pools, one per generation provider.
// The aliases cover the display names older boards stored for the same pools.
func Defaults() []*Agent {
	return []*Agent{
		{
			ID:           "agent-gemini",
			Name:         "Gemini",
			Aliases:      []string{"Gemma"},
			Provider:     "gemini",
			SystemPrompt: "You are a focused software engineering agent. Work through the task requirements step by step and explain what you are doing.",
		},
		{
			ID:           "agent-openai",
			Name:         "OpenAI",
			Aliases:      []string{"GPT_OSS"},
			Provider:     "openrouter",
			Model:        "openai/gpt-4o-mini",
			SystemPrompt: "You are a pragmatic software engineering agent. Address each requirement and acceptance criterion in order.",
		},
		{
			ID:           "agent-openrouter",
			Name:         "OpenRouter",
			Aliases:      []string{"DeepSeek"},
			Provider:     "openrouter",
			Model:        "deepseek/deepseek-chat",
			SystemPrompt: "You are a careful software engineering agent. Keep your output concise and tied to the acceptance criteria.",
		},
	}
}

// WatchConfig reloads the registry whenever the config file changes on disk.
// It watches the parent directory because editors and deploy tools replace
// files via rename, which changes the inode. Blocks until ctx is cancelled.
func WatchConfig(ctx context.Context, path string, registry *Registry) {
	if path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("agent config watcher failed to start", "error", err)
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	if err := watcher.Add(dir); err != nil {
		slog.Error("agent config watcher failed to watch directory", "dir", dir, "error", err)
		return
	}
	slog.Info("watching agent config", "path", path)

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				agents, err := LoadConfig(path)
				if err != nil {
					slog.Error("agent config reload failed, keeping previous agents", "error", err)
					return
				}
				registry.Replace(agents)
				slog.Info("agent config reloaded", "agents", len(agents))
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("agent config watcher error", "error", err)
		}
	}
}
