package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/neverinfamous/mysql-mcp-go/internal/validate"
)

// Registry holds the full set of ToolDefinitions, keyed by name. It is
// built once at startup and treated as read-mostly thereafter (§5
// "memoized once").
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolDefinition
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]ToolDefinition)}
}

// Register adds def to the registry. Registering a name twice is a
// programmer error and panics, since the tool set is fixed at startup.
func (r *Registry) Register(def ToolDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		panic(fmt.Sprintf("registry: tool %q already registered", def.Name))
	}
	r.tools[def.Name] = def
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns every registered tool, sorted by name for stable output.
func (r *Registry) List() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(r.tools))
	for _, def := range r.tools {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Capability is the full per-tool shape a client receives when
// discovering what the server can do (§1, §6): enough to render a tool
// in a UI (Title), validate a call client-side (InputSchema), gate on
// scope (RequiredScopes), and decide what to auto-approve (Annotations).
type Capability struct {
	Name           string              `json:"name"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Group          ToolGroup           `json:"group"`
	InputSchema    validate.Descriptor `json:"inputSchema"`
	Annotations    Annotations         `json:"annotations"`
	RequiredScopes []string            `json:"requiredScopes"`
}

func (r *Registry) Capabilities() []Capability {
	defs := r.List()
	out := make([]Capability, 0, len(defs))
	for _, d := range defs {
		out = append(out, Capability{
			Name:           d.Name,
			Title:          d.Title,
			Description:    d.Description,
			Group:          d.Group,
			InputSchema:    d.Input,
			Annotations:    d.Annotations,
			RequiredScopes: d.RequiredScopes,
		})
	}
	return out
}
