package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/steward/internal/autonomy"
	"github.com/fyrsmithlabs/steward/internal/confidence"
	"github.com/fyrsmithlabs/steward/internal/llm"
)

// Kind classifies what a tool does to the world.
type Kind string

const (
	// KindAction performs a side effect through the platform backend.
	KindAction Kind = "action"

	// KindGenerate produces a document or draft.
	KindGenerate Kind = "generate"

	// KindExternal calls a third-party service.
	KindExternal Kind = "external"

	// KindIntegration drives another internal system.
	KindIntegration Kind = "integration"

	// KindQuery reads state without side effects.
	KindQuery Kind = "query"

	// KindMemory reads the knowledge store.
	KindMemory Kind = "memory"
)

var validKinds = map[Kind]bool{
	KindAction:      true,
	KindGenerate:    true,
	KindExternal:    true,
	KindIntegration: true,
	KindQuery:       true,
	KindMemory:      true,
}

// ExemptKind reports whether the kind bypasses confidence scoring.
// Only reads are exempt; anything that touches the world is scored.
func ExemptKind(k Kind) bool {
	return k == KindQuery || k == KindMemory
}

var (
	// ErrInvalidTool indicates a tool that fails registration checks.
	ErrInvalidTool = errors.New("invalid tool")

	// ErrExemptMismatch indicates an Exempt flag inconsistent with the
	// tool's kind.
	ErrExemptMismatch = errors.New("exempt flag does not match tool kind")

	// ErrUnknownTool indicates a tool name the registry does not hold.
	ErrUnknownTool = errors.New("unknown tool")
)

// RunFunc executes a tool call for one user.
type RunFunc func(ctx context.Context, userID string, args map[string]interface{}) (string, error)

// Tool is one callable capability.
type Tool struct {
	Name        string
	Kind        Kind
	Category    autonomy.Category
	Description string

	// Parameters is the JSON schema the model sees.
	Parameters map[string]interface{}

	// Exempt must equal ExemptKind(Kind); registration enforces it so
	// the scoring bypass is a checked property, not a convention.
	Exempt bool

	// Source grades the data the tool acts on, for the source-quality
	// factor. Defaults to live.
	Source confidence.Source

	Run RunFunc
}

// Registry holds the agent's tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register validates and adds a tool. Duplicate names fail.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTool)
	}
	if !validKinds[t.Kind] {
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidTool, t.Name, t.Kind)
	}
	if t.Run == nil {
		return fmt.Errorf("%w: %s: run function is required", ErrInvalidTool, t.Name)
	}
	if t.Exempt != ExemptKind(t.Kind) {
		return fmt.Errorf("%w: %s (kind %s, exempt=%t)", ErrExemptMismatch, t.Name, t.Kind, t.Exempt)
	}
	if !t.Exempt && !autonomy.IsValidCategory(string(t.Category)) {
		return fmt.Errorf("%w: %s: scored tools need a valid category, got %q", ErrInvalidTool, t.Name, t.Category)
	}
	if t.Source == "" {
		t.Source = confidence.SourceLive
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s already registered", ErrInvalidTool, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Run looks a tool up and executes it. Callers outside the chat loop,
// like the heartbeat scanner and task approval, go through this.
func (r *Registry) Run(ctx context.Context, userID, name string, args map[string]interface{}) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return t.Run(ctx, userID, args)
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the tool specs to attach to a chat request, in stable
// order.
func (r *Registry) Specs() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]llm.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		params := t.Parameters
		if params == nil {
			params = map[string]interface{}{"type": "object"}
		}
		specs = append(specs, llm.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
