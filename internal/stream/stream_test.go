// internal/stream/stream_test.go
package stream

import (
	"bufio"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCollectorTextConcat(t *testing.T) {
	c := NewCollector()
	c.Emit(Event{Type: EventAgent, Agent: "eve"})
	c.Emit(Event{Type: EventToken, Content: "Hello"})
	c.Emit(Event{Type: EventToken, Content: ", "})
	c.Emit(Event{Type: EventToken, Content: "world"})
	c.Emit(Event{Type: EventDone})

	if got := c.Text(); got != "Hello, world" {
		t.Errorf("expected concatenated token text, got %q", got)
	}
	if n := len(c.Events()); n != 5 {
		t.Errorf("expected 5 events, got %d", n)
	}
}

func TestGuardSingleTerminal(t *testing.T) {
	c := NewCollector()
	g := NewGuard(c)

	g.Emit(Event{Type: EventToken, Content: "a"})
	g.Emit(Event{Type: EventDone})
	g.Emit(Event{Type: EventToken, Content: "b"})
	g.Emit(Event{Type: EventError, Content: "late"})

	events := c.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events through guard, got %d", len(events))
	}
	if events[1].Type != EventDone {
		t.Errorf("expected done as last event, got %s", events[1].Type)
	}
	if !g.Closed() {
		t.Error("expected guard to report closed")
	}
}

func TestSSEWriterFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	if err != nil {
		t.Fatal(err)
	}

	w.Emit(Event{Type: EventAgent, Agent: "eve"})
	w.Emit(Event{Type: EventToken, Content: "Hi"})
	w.Emit(Event{Type: EventDone, Metadata: map[string]any{"agent": "eve"}})
	w.Close()

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}

	var events []Event
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		events = append(events, e)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(events))
	}
	if events[0].Type != EventAgent || events[1].Type != EventToken || events[2].Type != EventDone {
		t.Errorf("unexpected frame order: %v", events)
	}
	if events[1].Content != "Hi" {
		t.Errorf("expected token content %q, got %q", "Hi", events[1].Content)
	}
}

func TestSSEWriterCoalescesTokens(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	if err != nil {
		t.Fatal(err)
	}

	// Small tokens stay buffered until a non-token event arrives.
	w.Emit(Event{Type: EventToken, Content: "a"})
	w.Emit(Event{Type: EventToken, Content: "b"})
	w.Emit(Event{Type: EventToken, Content: "c"})
	w.Emit(Event{Type: EventDone})
	w.Close()

	var tokenText strings.Builder
	var types []EventType
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatal(err)
		}
		types = append(types, e.Type)
		if e.Type == EventToken {
			tokenText.WriteString(e.Content)
		}
	}

	if tokenText.String() != "abc" {
		t.Errorf("coalescing must preserve token concatenation, got %q", tokenText.String())
	}
	if types[len(types)-1] != EventDone {
		t.Errorf("expected done after flushed tokens, got %v", types)
	}
}
