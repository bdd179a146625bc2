// internal/server/chat.go
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/teems-ai/eve/internal/gateway"
	"github.com/teems-ai/eve/internal/stream"
	"github.com/teems-ai/eve/internal/types"
)

// chatRequest is the JSON body for both chat endpoints.
type chatRequest struct {
	SessionID string   `json:"session_id"`
	Message   string   `json:"message"`
	FileIDs   []string `json:"file_ids"`
}

// chatResponse mirrors the folded event stream on the non-streaming
// path.
type chatResponse struct {
	Content        string         `json:"content"`
	Agent          string         `json:"agent"`
	MediaURLs      []string       `json:"media_urls,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	NeedsInput     bool           `json:"needs_input"`
	ConversationID string         `json:"conversation_id"`
	SessionID      string         `json:"session_id"`
}

func (r *chatRequest) fileIDs() []types.FileID {
	out := make([]types.FileID, 0, len(r.FileIDs))
	for _, id := range r.FileIDs {
		out = append(out, types.FileID(id))
	}
	return out
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (*chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON")
		return nil, false
	}
	if req.SessionID == "" {
		jsonError(w, http.StatusBadRequest, "session_id is required")
		return nil, false
	}
	if strings.TrimSpace(req.Message) == "" && len(req.FileIDs) == 0 {
		jsonError(w, http.StatusBadRequest, "message or file_ids is required")
		return nil, false
	}
	return &req, true
}

// handleChat processes a turn synchronously: events are collected in
// memory and folded into a single JSON response.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, id identity) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	key := types.NewSessionKey(id.tenantID, req.SessionID)
	collector := stream.NewCollector()
	guard := stream.NewGuard(collector)

	done := make(chan *gateway.TurnResult, 1)
	_, err := s.gateway.HandleTurn(key, id.tenantID, id.userID, req.Message, req.fileIDs(), guard,
		gateway.WithContext(r.Context()),
		gateway.WithOnComplete(func(res *gateway.TurnResult) { done <- res }),
	)
	if err != nil {
		jsonError(w, http.StatusServiceUnavailable, "session queue is full")
		return
	}

	select {
	case res := <-done:
		if res.Err != nil && res.Content == "" {
			jsonError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, foldResult(res, collector, req.SessionID))
	case <-r.Context().Done():
		// The turn keeps running; the client just stopped waiting.
		return
	}
}

func foldResult(res *gateway.TurnResult, collector *stream.Collector, sessionID string) chatResponse {
	resp := chatResponse{
		Content:        res.Content,
		Agent:          res.Agent,
		MediaURLs:      res.MediaURLs,
		Metadata:       res.Metadata,
		ConversationID: res.ConversationID,
		SessionID:      sessionID,
	}
	if resp.Content == "" {
		resp.Content = collector.Text()
	}
	if len(resp.MediaURLs) == 0 {
		resp.MediaURLs = collector.MediaURLs()
	}
	if step, ok := resp.Metadata["current_step"].(string); ok && step != "complete" {
		resp.NeedsInput = true
	}
	return resp
}

// handleChatStream processes a turn with live SSE output. The request
// context rides along on the turn so a client disconnect cancels
// in-flight work.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request, id identity) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	sse, err := stream.NewSSEWriter(w)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	guard := stream.NewGuard(sse)

	key := types.NewSessionKey(id.tenantID, req.SessionID)
	done := make(chan *gateway.TurnResult, 1)
	_, err = s.gateway.HandleTurn(key, id.tenantID, id.userID, req.Message, req.fileIDs(), guard,
		gateway.WithContext(r.Context()),
		gateway.WithOnComplete(func(res *gateway.TurnResult) { done <- res }),
	)
	if err != nil {
		// Headers are already SSE at this point; send the failure in-band.
		guard.Emit(stream.Event{Type: stream.EventError, Content: "session queue is full"})
		sse.Close()
		return
	}

	select {
	case <-done:
		// A crash before any terminal event still must close the stream
		// with exactly one error frame.
		if !guard.Closed() {
			guard.Emit(stream.Event{Type: stream.EventError, Content: "Something went wrong on my end. Please try again."})
		}
	case <-r.Context().Done():
	}
	if err := sse.Close(); err != nil {
		slog.Debug("close stream", "error", err)
	}
}
