// internal/tools/delegate.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teems-ai/eve/internal/specialist"
	"github.com/teems-ai/eve/internal/types"
)

// DelegatePrefix names every delegation tool: delegate_to_<specialist>.
// Delegation tool results are never truncated so handoff markers and
// specialist replies survive intact.
const DelegatePrefix = "delegate_to_"

// Delegate hands a task to one specialist. When the specialist's flow is
// not finished, the result carries a handoff marker that makes the
// orchestrator route the rest of the conversation to that specialist.
type Delegate struct {
	spec specialist.Specialist
}

// NewDelegate creates the delegation tool for the given specialist.
func NewDelegate(spec specialist.Specialist) *Delegate {
	return &Delegate{spec: spec}
}

func (d *Delegate) Name() string { return DelegatePrefix + d.spec.Name() }
func (d *Delegate) Description() string {
	return fmt.Sprintf("Delegate the user's request to %s. %s", d.spec.DisplayName(), d.spec.Description())
}
func (d *Delegate) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message": {"type": "string", "description": "The user's request, in their own words"}
		},
		"required": ["message"]
	}`)
}

func (d *Delegate) Execute(ctx context.Context, inv *Invocation) (string, error) {
	var params struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(inv.Args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	conv := inv.Conversation
	if conv.Wizards == nil {
		conv.Wizards = make(map[string]*types.WizardState)
	}
	st, ok := conv.Wizards[d.spec.Name()]
	if !ok || st == nil {
		st = &types.WizardState{}
		conv.Wizards[d.spec.Name()] = st
	}

	reply, err := d.spec.Handle(ctx, &specialist.Task{
		Text:         params.Message,
		State:        st,
		Uploads:      inv.Uploads,
		Conversation: conv,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", d.spec.Name(), err)
	}

	inv.Media = append(inv.Media, reply.Media...)

	if reply.Complete {
		return reply.Content, nil
	}

	step, _ := reply.Metadata["current_step"].(string)
	return fmt.Sprintf("[AGENT_HANDOFF:%s:%s]\n%s", d.spec.Name(), step, reply.Content), nil
}
