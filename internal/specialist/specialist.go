// internal/specialist/specialist.go
package specialist

import (
	"context"

	"github.com/teems-ai/eve/internal/types"
	"github.com/teems-ai/eve/pkg/llm"
)

// Task is the unit of work handed to a specialist: the user's message
// plus everything the specialist may need to act on it.
type Task struct {
	Text         string
	History      []llm.Message
	State        *types.WizardState
	Uploads      []*types.PendingUpload
	Conversation *types.Conversation
}

// Reply is a specialist's answer to one task. Complete reports whether
// the specialist is finished; an incomplete reply keeps the specialist
// active for the next turn. Metadata carries the declared workflow step
// and anything else the client should see in done metadata.
type Reply struct {
	Content  string
	Media    []types.MediaRef
	Metadata map[string]any
	Complete bool
}

// Specialist handles tasks delegated by the chief-of-staff agent.
type Specialist interface {
	Name() string
	DisplayName() string
	Description() string
	Handle(ctx context.Context, task *Task) (*Reply, error)
}

// Registry holds the closed set of registered specialists in
// registration order.
type Registry struct {
	order  []string
	byName map[string]Specialist
}

// NewRegistry creates an empty specialist registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Specialist)}
}

// Register adds a specialist to the registry.
func (r *Registry) Register(s Specialist) {
	if _, exists := r.byName[s.Name()]; !exists {
		r.order = append(r.order, s.Name())
	}
	r.byName[s.Name()] = s
}

// Get returns a specialist by name.
func (r *Registry) Get(name string) (Specialist, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// All returns all registered specialists in registration order.
func (r *Registry) All() []Specialist {
	out := make([]Specialist, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}
