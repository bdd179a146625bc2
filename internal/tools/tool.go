// internal/tools/tool.go
package tools

import (
	"context"
	"encoding/json"

	"github.com/teems-ai/eve/internal/types"
	"github.com/teems-ai/eve/pkg/llm"
)

// Invocation carries a tool call's arguments plus the turn context the
// tool may act on. Conversation mutations made by a tool are persisted
// by the orchestrator after the turn. Media is an output: delegation
// tools record the specialist's produced media here, and the
// orchestrator forwards it on the stream with the right attribution.
type Invocation struct {
	Args         json.RawMessage
	Conversation *types.Conversation
	UserID       string
	Uploads      []*types.PendingUpload
	Media        []types.MediaRef
}

// Tool defines the interface for an executable tool.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, inv *Invocation) (string, error)
}

// Registry holds registered tools and provides lookup.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns all registered tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// AsLLMTools converts registered tools to the LLM provider format.
func (r *Registry) AsLLMTools() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}
