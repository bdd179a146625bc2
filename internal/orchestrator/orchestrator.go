// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teems-ai/eve/internal/gateway"
	"github.com/teems-ai/eve/internal/specialist"
	"github.com/teems-ai/eve/internal/stream"
	"github.com/teems-ai/eve/internal/tools"
	"github.com/teems-ai/eve/internal/types"
	"github.com/teems-ai/eve/internal/wizard"
	"github.com/teems-ai/eve/pkg/llm"
)

// ChiefAgent is the event name of the top-level agent.
const ChiefAgent = "eve"

// toolResultLimit caps the tool result text fed back to the model and
// mirrored on the wire. Delegation results are exempt so specialist
// replies arrive whole.
const toolResultLimit = 4000

// historyWindow bounds how many transcript messages are loaded per turn.
const historyWindow = 100

// attachmentFallback is the synthesized user text for an empty message
// that carries uploads.
const attachmentFallback = "Here's my uploaded image"

// errorFallback is persisted as the assistant's reply when a turn fails,
// so the transcript never ends on a user message.
const errorFallback = "Something went wrong on my end. Please try again."

// Notifier delivers out-of-band notices, e.g. "your preview is ready".
type Notifier interface {
	Deliver(target, message string) error
}

// Orchestrator runs the per-turn loop: route, call the model, dispatch
// tools, stream events, persist the outcome.
type Orchestrator struct {
	provider      llm.Provider
	conversations types.ConversationStore
	uploads       types.UploadStore
	tools         *tools.Registry
	specialists   *specialist.Registry
	prompts       *PromptBuilder
	notifier      Notifier
	maxRounds     int
}

// New creates an Orchestrator with the given dependencies.
func New(
	provider llm.Provider,
	conversations types.ConversationStore,
	uploads types.UploadStore,
	registry *tools.Registry,
	specialists *specialist.Registry,
	prompts *PromptBuilder,
	maxRounds int,
) *Orchestrator {
	return &Orchestrator{
		provider:      provider,
		conversations: conversations,
		uploads:       uploads,
		tools:         registry,
		specialists:   specialists,
		prompts:       prompts,
		maxRounds:     maxRounds,
	}
}

// SetNotifier wires an optional out-of-band delivery channel.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

type nopSink struct{}

func (nopSink) Emit(stream.Event) error { return nil }

// ProcessTurn executes one turn. This is the function passed to
// Queue.SetProcessor.
func (o *Orchestrator) ProcessTurn(turn *gateway.Turn) error {
	ctx := turn.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	var sink stream.Sink = nopSink{}
	if turn.Sink != nil {
		sink = turn.Sink
	}

	// Reject empty turns before touching any state: no conversation is
	// created for input that cannot become a turn.
	text := strings.TrimSpace(turn.Text)
	if text == "" && len(turn.FileIDs) == 0 {
		sink.Emit(stream.Event{Type: stream.EventError, Content: "message or attachment required"})
		return fmt.Errorf("empty turn: %w", types.ErrInvalidInput)
	}

	conv, err := o.conversations.GetOrCreate(ctx, turn.Key, turn.TenantID, turn.UserID)
	if err != nil {
		sink.Emit(stream.Event{Type: stream.EventError, Content: "failed to load conversation"})
		return fmt.Errorf("resolve conversation: %w", err)
	}

	// Resolve attachments. An ID that does not resolve is dropped with a
	// warning; the turn goes on without it.
	var uploads []*types.PendingUpload
	for _, id := range turn.FileIDs {
		up, err := o.uploads.Consume(ctx, id)
		if err != nil {
			slog.Warn("attachment dropped", "file_id", string(id), "session_key", string(turn.Key), "error", err)
			continue
		}
		uploads = append(uploads, up)
	}

	if text == "" {
		if len(uploads) == 0 {
			sink.Emit(stream.Event{Type: stream.EventError, Content: "message or attachment required"})
			return fmt.Errorf("empty turn: %w", types.ErrInvalidInput)
		}
		text = attachmentFallback
	}

	media := make([]types.MediaRef, 0, len(uploads))
	for _, up := range uploads {
		media = append(media, types.MediaRef{URL: up.URL, Kind: "image"})
	}
	userMsg := &types.Message{
		ID:      types.NewMessageID(),
		Role:    "user",
		Content: text,
		Media:   media,
	}
	if err := o.conversations.AppendMessage(ctx, turn.Key, userMsg); err != nil {
		sink.Emit(stream.Event{Type: stream.EventError, Content: "failed to record message"})
		return fmt.Errorf("record user message: %w", err)
	}
	if conv.Title == "" {
		conv.Title = truncateTitle(text)
	}

	// Route: an active specialist keeps the conversation unless the user
	// backs out with a short exit message.
	agent := conv.ActiveAgent
	if agent != "" && ExitIntent(text) {
		slog.Info("exit intent, returning to chief", "session_key", string(turn.Key), "agent", agent)
		conv.ActiveAgent = ""
		agent = ""
	}

	if agent != "" {
		if _, ok := o.specialists.Get(agent); ok {
			return o.runSpecialist(ctx, sink, turn, conv, agent, text, uploads)
		}
		slog.Warn("active specialist not registered, resetting", "agent", agent)
		conv.ActiveAgent = ""
	}
	return o.runChief(ctx, sink, turn, conv, text, uploads)
}

// runChief drives the tool-round loop for the chief-of-staff agent.
func (o *Orchestrator) runChief(ctx context.Context, sink stream.Sink, turn *gateway.Turn, conv *types.Conversation, text string, uploads []*types.PendingUpload) error {
	sink.Emit(stream.Event{Type: stream.EventAgent, Agent: ChiefAgent})

	transcript, err := o.conversations.Messages(ctx, turn.Key, historyWindow)
	if err != nil {
		return o.failTurn(ctx, sink, turn, conv, fmt.Errorf("load history: %w", err))
	}
	history := o.prompts.Build(conv, transcript, o.specialists)

	// Everything emitted as token events; the persisted assistant content
	// is exactly this concatenation.
	var emitted strings.Builder

	for round := 0; round < o.maxRounds; round++ {
		if ctx.Err() != nil {
			return o.failTurn(ctx, sink, turn, conv, fmt.Errorf("turn cancelled: %w", ctx.Err()))
		}

		ch, err := o.provider.Stream(ctx, history, o.tools.AsLLMTools())
		if err != nil {
			return o.failTurn(ctx, sink, turn, conv, fmt.Errorf("LLM call: %w", err))
		}

		var content strings.Builder
		var calls []llm.ToolCall
		for delta := range ch {
			if delta.Content != "" {
				content.WriteString(delta.Content)
				emitted.WriteString(delta.Content)
				sink.Emit(stream.Event{Type: stream.EventToken, Content: delta.Content})
			}
			if len(delta.ToolCalls) > 0 {
				calls = append(calls, delta.ToolCalls...)
			}
		}

		if len(calls) == 0 {
			return o.finishChief(ctx, sink, turn, conv, emitted.String(), nil, nil)
		}

		history = append(history, llm.Message{Role: "assistant", Content: content.String(), Tools: calls})

		// Sequential dispatch in request order. A cancelled context stops
		// future dispatches; the call in flight runs to completion.
		for _, tc := range calls {
			if ctx.Err() != nil {
				return o.failTurn(ctx, sink, turn, conv, fmt.Errorf("turn cancelled: %w", ctx.Err()))
			}

			name := tc.Function.Name
			sink.Emit(stream.Event{Type: stream.EventToolStart, Name: name})

			var result string
			var produced []types.MediaRef
			tool, ok := o.tools.Get(name)
			if !ok {
				result = fmt.Sprintf("error: unknown tool %q", name)
			} else {
				execCtx := context.WithoutCancel(ctx)
				inv := &tools.Invocation{
					Args:         tc.Function.Arguments,
					Conversation: conv,
					UserID:       turn.UserID,
					Uploads:      uploads,
				}
				var execErr error
				result, execErr = tool.Execute(execCtx, inv)
				if execErr != nil {
					slog.Warn("tool failed", "tool", name, "error", execErr)
					result = fmt.Sprintf("error: %v", execErr)
				}
				produced = inv.Media
			}

			if strings.HasPrefix(name, tools.DelegatePrefix) {
				if specName, step, stripped, ok := ParseHandoff(result); ok {
					stripped = strings.TrimSpace(stripped)
					sink.Emit(stream.Event{Type: stream.EventToolResult, Name: name, Result: "handed off to " + specName})
					sink.Emit(stream.Event{Type: stream.EventAgent, Agent: specName})
					// Media produced during delegation is attributed to
					// the specialist: started precedes every media event.
					if len(produced) > 0 {
						sink.Emit(stream.Event{Type: stream.EventGenerating, Status: "started", Agent: specName})
					}
					sink.Emit(stream.Event{Type: stream.EventToken, Content: stripped})
					emitted.WriteString(stripped)
					for _, m := range produced {
						sink.Emit(stream.Event{Type: stream.EventMedia, URL: m.URL, Metadata: map[string]any{"kind": m.Kind}})
					}
					if len(produced) > 0 {
						sink.Emit(stream.Event{Type: stream.EventGenerating, Status: "done", Agent: specName})
						o.notifyMedia(conv, specName)
					}
					conv.ActiveAgent = specName

					meta := map[string]any{"agent": specName}
					if step != "" {
						meta["current_step"] = step
					}
					return o.finishTurn(ctx, sink, turn, conv, specName, emitted.String(), produced, meta, nil)
				}
				// Completed delegation: the specialist's reply is the
				// result. Any media still gets a bracketed, attributed
				// emission before control returns to the chief.
				if len(produced) > 0 {
					specName := strings.TrimPrefix(name, tools.DelegatePrefix)
					sink.Emit(stream.Event{Type: stream.EventAgent, Agent: specName})
					sink.Emit(stream.Event{Type: stream.EventGenerating, Status: "started", Agent: specName})
					for _, m := range produced {
						sink.Emit(stream.Event{Type: stream.EventMedia, URL: m.URL, Metadata: map[string]any{"kind": m.Kind}})
					}
					sink.Emit(stream.Event{Type: stream.EventGenerating, Status: "done", Agent: specName})
					sink.Emit(stream.Event{Type: stream.EventAgent, Agent: ChiefAgent})
					o.notifyMedia(conv, specName)
				}
				sink.Emit(stream.Event{Type: stream.EventToolResult, Name: name, Result: truncateResult(result)})
				history = append(history, llm.Message{Role: "tool", Content: result, Tools: []llm.ToolCall{{ID: tc.ID}}})
				continue
			}

			display := truncateResult(result)
			sink.Emit(stream.Event{Type: stream.EventToolResult, Name: name, Result: display})
			history = append(history, llm.Message{Role: "tool", Content: display, Tools: []llm.ToolCall{{ID: tc.ID}}})
		}
	}

	// Round limit hit: degrade to the best text produced so far. The
	// sentinel rides along on the result for programmatic callers; the
	// turn itself still completes.
	loopErr := fmt.Errorf("%d tool rounds: %w", o.maxRounds, types.ErrToolLoopExceeded)
	slog.Warn("tool round limit reached", "session_key", string(turn.Key), "max_rounds", o.maxRounds)
	return o.finishChief(ctx, sink, turn, conv, emitted.String(), map[string]any{"hit_max_rounds": true}, loopErr)
}

// finishChief completes a chief-of-staff turn, substituting a fallback
// reply if no text was produced.
func (o *Orchestrator) finishChief(ctx context.Context, sink stream.Sink, turn *gateway.Turn, conv *types.Conversation, content string, extra map[string]any, resultErr error) error {
	if content == "" {
		content = "I wasn't able to finish that. Could you try rephrasing?"
		sink.Emit(stream.Event{Type: stream.EventToken, Content: content})
	}
	meta := map[string]any{"agent": ChiefAgent}
	for k, v := range extra {
		meta[k] = v
	}
	return o.finishTurn(ctx, sink, turn, conv, ChiefAgent, content, nil, meta, resultErr)
}

// finishTurn persists the assistant message, updates the conversation,
// emits the terminal done event, and reports the result.
func (o *Orchestrator) finishTurn(ctx context.Context, sink stream.Sink, turn *gateway.Turn, conv *types.Conversation, agent, content string, media []types.MediaRef, meta map[string]any, resultErr error) error {
	msg := &types.Message{
		ID:       types.NewMessageID(),
		Role:     "assistant",
		Content:  content,
		Media:    media,
		Metadata: meta,
	}
	if err := o.conversations.AppendMessage(ctx, turn.Key, msg); err != nil {
		sink.Emit(stream.Event{Type: stream.EventError, Content: "failed to record reply"})
		return fmt.Errorf("record assistant message: %w", err)
	}
	if err := o.conversations.Update(ctx, conv); err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	sink.Emit(stream.Event{Type: stream.EventDone, Agent: agent, Metadata: meta})

	if turn.OnComplete != nil {
		urls := make([]string, 0, len(media))
		for _, m := range media {
			urls = append(urls, m.URL)
		}
		turn.OnComplete(&gateway.TurnResult{
			Content:        content,
			Agent:          agent,
			MediaURLs:      urls,
			Metadata:       meta,
			ConversationID: string(conv.ID),
			Err:            resultErr,
		})
	}
	return nil
}

// failTurn persists a fallback assistant reply and emits the terminal
// error event. The transcript never ends on a user message.
func (o *Orchestrator) failTurn(ctx context.Context, sink stream.Sink, turn *gateway.Turn, conv *types.Conversation, cause error) error {
	persistCtx := context.WithoutCancel(ctx)
	msg := &types.Message{
		ID:      types.NewMessageID(),
		Role:    "assistant",
		Content: errorFallback,
	}
	if err := o.conversations.AppendMessage(persistCtx, turn.Key, msg); err != nil {
		slog.Error("failed to record fallback reply", "error", err)
	}
	if err := o.conversations.Update(persistCtx, conv); err != nil {
		slog.Error("failed to update conversation", "error", err)
	}
	sink.Emit(stream.Event{Type: stream.EventError, Content: errorFallback})
	return cause
}

// runSpecialist routes the turn directly to the active specialist.
func (o *Orchestrator) runSpecialist(ctx context.Context, sink stream.Sink, turn *gateway.Turn, conv *types.Conversation, agent, text string, uploads []*types.PendingUpload) error {
	spec, _ := o.specialists.Get(agent)
	sink.Emit(stream.Event{Type: stream.EventAgent, Agent: agent})

	if conv.Wizards == nil {
		conv.Wizards = make(map[string]*types.WizardState)
	}
	st, ok := conv.Wizards[agent]
	if !ok || st == nil {
		st = &types.WizardState{}
		conv.Wizards[agent] = st
	}

	// Bracket turns that can synthesize media with generating events.
	bracket := wizard.GeneratingStep(st.Stage)
	if bracket {
		sink.Emit(stream.Event{Type: stream.EventGenerating, Status: "started", Agent: agent})
	}

	reply, err := spec.Handle(ctx, &specialist.Task{
		Text:         text,
		State:        st,
		Uploads:      uploads,
		Conversation: conv,
	})
	if err != nil {
		if bracket {
			sink.Emit(stream.Event{Type: stream.EventGenerating, Status: "done", Agent: agent})
		}
		return o.failTurn(ctx, sink, turn, conv, fmt.Errorf("specialist %s: %w", agent, err))
	}

	if !bracket && len(reply.Media) > 0 {
		bracket = true
		sink.Emit(stream.Event{Type: stream.EventGenerating, Status: "started", Agent: agent})
	}

	sink.Emit(stream.Event{Type: stream.EventToken, Content: reply.Content})
	for _, m := range reply.Media {
		sink.Emit(stream.Event{Type: stream.EventMedia, URL: m.URL, Metadata: map[string]any{"kind": m.Kind}})
	}
	if bracket {
		sink.Emit(stream.Event{Type: stream.EventGenerating, Status: "done", Agent: agent})
	}

	meta := map[string]any{"agent": agent}
	for k, v := range reply.Metadata {
		meta[k] = v
	}
	if reply.Complete {
		conv.ActiveAgent = ""
	} else {
		conv.ActiveAgent = agent
	}

	if len(reply.Media) > 0 {
		o.notifyMedia(conv, agent)
	}

	return o.finishTurn(ctx, sink, turn, conv, agent, reply.Content, reply.Media, meta, nil)
}

// notifyMedia sends an out-of-band notice on the channel the user picked
// during onboarding personalization, if any.
func (o *Orchestrator) notifyMedia(conv *types.Conversation, agent string) {
	if o.notifier == nil {
		return
	}
	st, ok := conv.Wizards[wizard.OnboardingWizard]
	if !ok || st == nil || st.Context == nil {
		return
	}
	prefs, ok := st.Context["notification_preferences"].(map[string]any)
	if !ok {
		return
	}
	for channel, v := range prefs {
		target, ok := v.(string)
		if !ok || target == "" {
			continue
		}
		msg := fmt.Sprintf("%s has new media ready for you in %q.", agent, conv.Title)
		if err := o.notifier.Deliver(channel+":"+target, msg); err != nil {
			slog.Warn("notification delivery failed", "channel", channel, "error", err)
		}
	}
}

func truncateResult(result string) string {
	if len(result) <= toolResultLimit {
		return result
	}
	return result[:toolResultLimit] + "\n[truncated]"
}

func truncateTitle(text string) string {
	const max = 80
	if len(text) <= max {
		return text
	}
	return text[:max]
}
