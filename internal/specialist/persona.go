// internal/specialist/persona.go
package specialist

import (
	"context"
	"fmt"

	"github.com/teems-ai/eve/pkg/llm"
)

// Persona is an LLM-backed single-turn specialist. It answers with its
// own system prompt and yields control back immediately, so delegation
// to a persona never changes the active agent.
type Persona struct {
	name        string
	displayName string
	description string
	prompt      string
	provider    llm.Provider
}

// NewPersona creates a persona specialist with the given identity and
// system prompt.
func NewPersona(name, displayName, description, prompt string, provider llm.Provider) *Persona {
	return &Persona{
		name:        name,
		displayName: displayName,
		description: description,
		prompt:      prompt,
		provider:    provider,
	}
}

func (p *Persona) Name() string        { return p.name }
func (p *Persona) DisplayName() string { return p.displayName }
func (p *Persona) Description() string { return p.description }

// Handle answers the task with a single completion.
func (p *Persona) Handle(ctx context.Context, task *Task) (*Reply, error) {
	messages := make([]llm.Message, 0, len(task.History)+2)
	messages = append(messages, llm.Message{Role: "system", Content: p.prompt})
	messages = append(messages, task.History...)
	messages = append(messages, llm.Message{Role: "user", Content: task.Text})

	resp, err := p.provider.Complete(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", p.name, err)
	}

	return &Reply{
		Content:  resp.Content,
		Complete: true,
	}, nil
}
