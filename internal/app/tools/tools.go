// Package tools defines the uniform capability interface agents invoke
// and the explicit registry they are looked up in. The registry is a
// value built at startup and passed into the orchestrator; there are no
// process-wide singletons.
package tools

import (
	"context"
	"fmt"
)

// CallContext carries metadata of the call to the tool.
type CallContext struct {
	SessionID string
	RequestID string
	Handler   string
}

// Tool is one capability: a name, a JSON-schema-shaped parameter
// description, and an execution returning text. Dispatch is by interface
// lookup, never by string branching on tool names.
type Tool interface {
	Name() string
	Description() string
	ParameterSchema() map[string]any
	Execute(ctx context.Context, cctx CallContext, args map[string]any) (string, error)
}

// Registry maps tool names to implementations and handlers to the tool
// subset they may use.
type Registry struct {
	tools    map[string]Tool
	assigned map[string][]string // handler -> tool names
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		assigned: make(map[string][]string),
	}
}

// Register adds a tool. Duplicate names are an error: tools are wired
// once at startup.
func (r *Registry) Register(t Tool) error {
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Assign binds a handler key to the named tools.
func (r *Registry) Assign(handler string, toolNames ...string) {
	r.assigned[handler] = append(r.assigned[handler], toolNames...)
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// ForHandler returns the tools assigned to a handler, skipping names
// that were never registered.
func (r *Registry) ForHandler(handler string) []Tool {
	names := r.assigned[handler]
	out := make([]Tool, 0, len(names))
	for _, n := range names {
		if t, ok := r.tools[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Names lists every registered tool name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for n := range r.tools {
		out = append(out, n)
	}
	return out
}
