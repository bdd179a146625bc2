// internal/stream/event.go
package stream

// EventType identifies a typed event on the turn stream.
type EventType string

const (
	EventAgent      EventType = "agent"
	EventToken      EventType = "token"
	EventGenerating EventType = "generating"
	EventMedia      EventType = "media"
	EventToolStart  EventType = "tool_start"
	EventToolResult EventType = "tool_result"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

// Event is one unit of the turn wire protocol. Fields are sparse; each
// event type populates only the fields that apply to it.
type Event struct {
	Type     EventType      `json:"type"`
	Agent    string         `json:"agent,omitempty"`
	Content  string         `json:"content,omitempty"`
	Status   string         `json:"status,omitempty"`
	URL      string         `json:"url,omitempty"`
	Name     string         `json:"name,omitempty"`
	Result   string         `json:"result,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Terminal reports whether the event ends the stream. Every turn emits
// exactly one terminal event and nothing after it.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Sink receives the ordered event stream for a single turn.
type Sink interface {
	Emit(event Event) error
}
