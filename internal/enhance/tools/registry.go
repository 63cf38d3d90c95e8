package tools

import (
	"context"

	"github.com/MrWong99/scribe/pkg/provider/llm"
)

// Registry holds the tools bound to one [Context]. It is built per
// transcript and is safe for concurrent reads.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds the five enhancement tools over tc. tc must not be
// modified afterwards.
func NewRegistry(tc *Context) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range []Tool{
		newLookupPerson(tc),
		newLookupProject(tc),
		newVerifySpelling(tc),
		newRouteNote(tc),
		newStoreContext(tc),
	} {
		r.tools[t.Definition.Name] = t
		r.order = append(r.order, t.Definition.Name)
	}
	return r
}

// Definitions returns the tool descriptors in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Execute runs the named tool with JSON args. Unknown names yield an
// unsuccessful Result, not an error. Errors from the tool itself are
// returned unchanged.
func (r *Registry) Execute(ctx context.Context, name, args string) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return failed("Unknown tool: " + name), nil
	}
	return t.Execute(ctx, args)
}
