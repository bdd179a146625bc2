// internal/server/conversations.go
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/teems-ai/eve/internal/types"
)

// conversationSummary is one row in the conversation list.
type conversationSummary struct {
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	ActiveAgent    string    `json:"active_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, id identity) {
	convs, err := s.conversations.List(r.Context(), id.tenantID)
	if err != nil {
		slog.Error("list conversations failed", "tenant_id", id.tenantID, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]conversationSummary, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conversationSummary{
			SessionID:      sessionID(conv.SessionKey, id.tenantID),
			ConversationID: string(conv.ID),
			Title:          conv.Title,
			ActiveAgent:    conv.ActiveAgent,
			CreatedAt:      conv.CreatedAt,
			UpdatedAt:      conv.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	writeJSON(w, http.StatusOK, out)
}

// sessionID strips the tenant prefix back off a session key for the API
// surface; clients only ever see their own session IDs.
func sessionID(key types.SessionKey, tenantID string) string {
	prefix := tenantID + ":"
	s := string(key)
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

// conversationDetail is a conversation plus its transcript tail.
type conversationDetail struct {
	conversationSummary
	Wizards  map[string]*types.WizardState `json:"wizards,omitempty"`
	Messages []*types.Message              `json:"messages"`
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request, id identity) {
	key := types.NewSessionKey(id.tenantID, r.PathValue("session"))

	conv, err := s.conversations.Get(r.Context(), key)
	if errors.Is(err, types.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		slog.Error("get conversation failed", "session_key", string(key), "error", err)
		jsonError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	msgs, err := s.conversations.Messages(r.Context(), key, limit)
	if err != nil {
		slog.Error("load messages failed", "session_key", string(key), "error", err)
		jsonError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if msgs == nil {
		msgs = []*types.Message{}
	}

	writeJSON(w, http.StatusOK, conversationDetail{
		conversationSummary: conversationSummary{
			SessionID:      r.PathValue("session"),
			ConversationID: string(conv.ID),
			Title:          conv.Title,
			ActiveAgent:    conv.ActiveAgent,
			CreatedAt:      conv.CreatedAt,
			UpdatedAt:      conv.UpdatedAt,
		},
		Wizards:  conv.Wizards,
		Messages: msgs,
	})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request, id identity) {
	key := types.NewSessionKey(id.tenantID, r.PathValue("session"))

	err := s.conversations.Delete(r.Context(), key)
	if errors.Is(err, types.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		slog.Error("delete conversation failed", "session_key", string(key), "error", err)
		jsonError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
