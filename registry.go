package goalrunner

import "sync"

// Registry holds the tools available to planning and execution.
// Names are matched exactly; callers lower-case names before lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its described name.
func (r *Registry) Register(tool Tool) error {
	name := tool.Describe().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return NewDuplicateToolError(name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers tools and panics on a duplicate name.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			panic(err)
		}
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns tool names mapped to their descriptions.
func (r *Registry) List() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.tools))
	for name, tool := range r.tools {
		out[name] = tool.Describe().Description
	}
	return out
}

// Descriptors returns every tool descriptor in registration order.
func (r *Registry) Descriptors() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Describe())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
