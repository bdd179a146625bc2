// internal/stream/sink.go
package stream

import (
	"log/slog"
	"strings"
	"sync"
)

// Collector buffers every event in memory. It backs the non-streaming
// chat path, where the full event sequence is folded into one response.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Emit appends the event to the buffer.
func (c *Collector) Emit(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

// Events returns a copy of all collected events in emission order.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Text returns the concatenation of all token event contents. The result
// equals the assistant content persisted for the turn.
func (c *Collector) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sb strings.Builder
	for _, e := range c.events {
		if e.Type == EventToken {
			sb.WriteString(e.Content)
		}
	}
	return sb.String()
}

// MediaURLs returns the URLs of all media events in emission order.
func (c *Collector) MediaURLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var urls []string
	for _, e := range c.events {
		if e.Type == EventMedia {
			urls = append(urls, e.URL)
		}
	}
	return urls
}

// Guard wraps a Sink and enforces the single-terminal invariant: after
// the first done or error event passes through, every later event is
// dropped with a warning.
type Guard struct {
	sink     Sink
	mu       sync.Mutex
	terminal bool
}

// NewGuard wraps the given sink.
func NewGuard(sink Sink) *Guard {
	return &Guard{sink: sink}
}

// Emit forwards the event unless a terminal event was already emitted.
func (g *Guard) Emit(event Event) error {
	g.mu.Lock()
	if g.terminal {
		g.mu.Unlock()
		slog.Warn("event dropped after terminal", "type", string(event.Type))
		return nil
	}
	if event.Terminal() {
		g.terminal = true
	}
	g.mu.Unlock()
	return g.sink.Emit(event)
}

// Closed reports whether a terminal event has passed through.
func (g *Guard) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.terminal
}
