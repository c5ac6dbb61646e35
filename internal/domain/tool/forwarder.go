// Package tool defines the forwarder port the admission pipeline dispatches
// accepted calls through, and a registry mapping tool names to
// implementations. Tools are capabilities behind one method; there is no
// adapter inheritance.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownTool is returned when no forwarder is registered for a tool.
var ErrUnknownTool = errors.New("unknown tool")

// ErrUnknownAction is returned when a tool does not offer the action.
var ErrUnknownAction = errors.New("unknown action")

// Forwarder dispatches one accepted call to a tool. Synchronous from the
// pipeline's view; implementations may perform I/O internally. Any returned
// error is treated as a tool fault and audited as allowed_but_tool_error.
type Forwarder interface {
	Forward(ctx context.Context, tool, action string, params map[string]interface{}) (map[string]interface{}, error)
}

// Handler executes one tool's actions. Registered implementations receive
// only calls addressed to their tool name.
type Handler interface {
	// Name is the tool name used in policy files and request paths.
	Name() string
	// Call executes the action with the given params.
	Call(ctx context.Context, action string, params map[string]interface{}) (map[string]interface{}, error)
}

// Registry is a Forwarder backed by a name -> Handler map. Registration
// happens at boot; lookups afterwards are read-only.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under its tool name, replacing any previous one.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Forward dispatches to the handler registered for the tool.
func (r *Registry) Forward(ctx context.Context, toolName, action string, params map[string]interface{}) (map[string]interface{}, error) {
	r.mu.RLock()
	h, ok := r.handlers[toolName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}
	return h.Call(ctx, action, params)
}
