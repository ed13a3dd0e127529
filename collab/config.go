package collab

import (
	"errors"
	"fmt"
	"sync"

	"github.com/threadloom/threadloom/registry"
)

// Agent roles in the pipeline.
const (
	RolePlanner  = "planner"
	RoleWriter   = "writer"
	RoleReviewer = "reviewer"
)

// ErrUnknownRole is returned for a role outside planner/writer/reviewer.
var ErrUnknownRole = errors.New("unknown agent role")

// AgentConfig binds a pipeline role to a model and system prompt. Records
// are replaced whole on update so readers never observe a role whose model
// and prompt disagree.
type AgentConfig struct {
	Role         string `json:"role"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
}

const (
	plannerPrompt = "You are a planning specialist. Break the user's request into a clear, numbered outline of 3-5 points. Output only the outline."

	writerPrompt = "You are a writing specialist. Given a request and an outline, produce a complete, well-structured response that follows the outline."

	reviewerPrompt = "You are a review specialist. Given a request, an outline, and key sections of a draft, produce the polished final answer. Fix inaccuracies, tighten the structure, and keep the draft's substance."
)

func defaultConfigs() map[string]AgentConfig {
	return map[string]AgentConfig{
		RolePlanner: {
			Role:         RolePlanner,
			Model:        "openai/gpt-4-turbo",
			SystemPrompt: plannerPrompt,
		},
		RoleWriter: {
			Role:         RoleWriter,
			Model:        "anthropic/claude-3.5-sonnet",
			SystemPrompt: writerPrompt,
		},
		RoleReviewer: {
			Role:         RoleReviewer,
			Model:        "openai/gpt-4-turbo",
			SystemPrompt: reviewerPrompt,
		},
	}
}

// ConfigTable holds the per-role agent configs. Reads dominate; updates
// replace the whole record under the write lock.
type ConfigTable struct {
	mu      sync.RWMutex
	configs map[string]AgentConfig
}

// NewConfigTable creates a table with the default role bindings.
func NewConfigTable() *ConfigTable {
	return &ConfigTable{configs: defaultConfigs()}
}

// GetConfig returns the config for a role.
func (t *ConfigTable) GetConfig(role string) (AgentConfig, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cfg, ok := t.configs[role]
	if !ok {
		return AgentConfig{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return cfg, nil
}

// UpdateModel rebinds a role to a new model. The model must exist in the
// registry; the record is replaced atomically.
func (t *ConfigTable) UpdateModel(role, model string) (AgentConfig, error) {
	if !registry.IsValid(model) {
		return AgentConfig{}, fmt.Errorf("invalid model %q for role %q", model, role)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.configs[role]
	if !ok {
		return AgentConfig{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	updated := AgentConfig{
		Role:         current.Role,
		Model:        model,
		SystemPrompt: current.SystemPrompt,
	}
	t.configs[role] = updated
	return updated, nil
}

// List returns all role configs, for inspection endpoints.
func (t *ConfigTable) List() []AgentConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]AgentConfig, 0, len(t.configs))
	for _, role := range []string{RolePlanner, RoleWriter, RoleReviewer} {
		if cfg, ok := t.configs[role]; ok {
			result = append(result, cfg)
		}
	}
	return result
}
