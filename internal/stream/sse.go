// internal/stream/sse.go
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// coalesceThreshold is the number of buffered token characters that
// forces a flush. Small deltas are merged into one token event to keep
// the wire chatty but not pathological.
const coalesceThreshold = 64

// SSEWriter encodes events as Server-Sent Events frames, one
// "data: {json}\n\n" frame per event. Consecutive token events are
// coalesced; the pending buffer is always flushed before a non-token
// event so cross-type ordering is preserved.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu      sync.Mutex
	pending strings.Builder
}

// NewSSEWriter prepares the response for SSE and returns a writer.
// Returns an error if the ResponseWriter does not support flushing.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Emit writes the event to the wire. Token events may be buffered;
// everything else is written immediately, after draining the buffer.
func (s *SSEWriter) Emit(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Type == EventToken {
		s.pending.WriteString(event.Content)
		if s.pending.Len() < coalesceThreshold {
			return nil
		}
		return s.flushTokensLocked()
	}

	if err := s.flushTokensLocked(); err != nil {
		return err
	}
	return s.writeLocked(event)
}

// Close drains any buffered token content. Call after the terminal
// event has been emitted.
func (s *SSEWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushTokensLocked()
}

func (s *SSEWriter) flushTokensLocked() error {
	if s.pending.Len() == 0 {
		return nil
	}
	event := Event{Type: EventToken, Content: s.pending.String()}
	s.pending.Reset()
	return s.writeLocked(event)
}

func (s *SSEWriter) writeLocked(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
