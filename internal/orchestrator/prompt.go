// internal/orchestrator/prompt.go
package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/teems-ai/eve/internal/specialist"
	"github.com/teems-ai/eve/internal/types"
	"github.com/teems-ai/eve/internal/wizard"
	"github.com/teems-ai/eve/pkg/llm"
)

// PromptBuilder assembles token-budgeted prompts for the chief-of-staff
// agent.
type PromptBuilder struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// NewPromptBuilder creates a prompt builder for the given model.
// maxTokens is the model's context window; reserve is held back for the
// model's response.
func NewPromptBuilder(model string, maxTokens, reserve int) (*PromptBuilder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &PromptBuilder{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

func (b *PromptBuilder) countTokens(text string) int {
	return len(b.tokenizer.Encode(text, nil, nil))
}

// Build assembles the system prompt plus as much recent history as fits
// the budget. Trimming drops the oldest messages first.
func (b *PromptBuilder) Build(conv *types.Conversation, messages []*types.Message, specialists *specialist.Registry) []llm.Message {
	sysPrompt := b.systemPrompt(conv, specialists)
	budget := b.maxTokens - b.reserve - b.countTokens(sysPrompt)

	// Walk newest-first so the most recent exchange always survives.
	var kept []llm.Message
	used := 0
	for i := len(messages) - 1; i >= 0; i-- {
		msg := historyMessage(messages[i])
		cost := b.countTokens(msg.Content)
		if used+cost > budget {
			break
		}
		kept = append(kept, msg)
		used += cost
	}

	out := make([]llm.Message, 0, 1+len(kept))
	out = append(out, llm.Message{Role: "system", Content: sysPrompt})
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i])
	}
	return out
}

// historyMessage converts a transcript message to the provider format,
// noting attached media so the model knows images were exchanged.
func historyMessage(msg *types.Message) llm.Message {
	content := msg.Content
	if n := len(msg.Media); n > 0 {
		var urls []string
		for _, m := range msg.Media {
			urls = append(urls, m.URL)
		}
		content += fmt.Sprintf("\n[%d image(s) attached: %s]", n, strings.Join(urls, ", "))
	}
	return llm.Message{Role: msg.Role, Content: content}
}

func (b *PromptBuilder) systemPrompt(conv *types.Conversation, specialists *specialist.Registry) string {
	var sb strings.Builder
	sb.WriteString("You are Eve, the user's chief of staff. You answer directly when you can ")
	sb.WriteString("and delegate to a specialist teammate when their craft fits the request better. ")
	sb.WriteString("Delegate with the delegate_to_* tools; never pretend to do a specialist's work yourself.\n\n")

	if specialists != nil && len(specialists.All()) > 0 {
		sb.WriteString("Your teammates:\n")
		for _, s := range specialists.All() {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", s.DisplayName(), s.Name(), s.Description())
		}
		sb.WriteString("\n")
	}

	if st, ok := conv.Wizards[wizard.OnboardingWizard]; ok && st != nil && !wizard.OnboardingComplete(st) {
		fmt.Fprintf(&sb, "The user is onboarding and currently at the %q stage. ", st.Stage)
		sb.WriteString("Guide them forward with advance_onboarding; check progress with get_onboarding_state.\n\n")
	}

	fmt.Fprintf(&sb, "Current time: %s.", time.Now().Format(time.RFC3339))
	return sb.String()
}
