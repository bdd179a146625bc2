// internal/server/server.go
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/teems-ai/eve/internal/gateway"
	"github.com/teems-ai/eve/internal/specialist"
	"github.com/teems-ai/eve/internal/types"
)

// Server is the HTTP boundary: chat (sync and streaming), conversation
// management, uploads, and agent discovery.
type Server struct {
	gateway       *gateway.Gateway
	conversations types.ConversationStore
	uploads       types.UploadStore
	specialists   *specialist.Registry
	maxUpload     int64
	maxFileUpload int64
	mux           *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithUploadLimits overrides the base64 and multipart upload caps, in
// bytes.
func WithUploadLimits(maxUpload, maxFileUpload int64) Option {
	return func(s *Server) {
		if maxUpload > 0 {
			s.maxUpload = maxUpload
		}
		if maxFileUpload > 0 {
			s.maxFileUpload = maxFileUpload
		}
	}
}

// NewServer creates a Server with all routes registered.
func NewServer(gw *gateway.Gateway, conversations types.ConversationStore, uploads types.UploadStore, specialists *specialist.Registry, opts ...Option) *Server {
	s := &Server{
		gateway:       gw,
		conversations: conversations,
		uploads:       uploads,
		specialists:   specialists,
		maxUpload:     20 << 20,
		maxFileUpload: 500 << 20,
		mux:           http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/chat", s.auth(s.handleChat))
	s.mux.HandleFunc("POST /v1/chat/stream", s.auth(s.handleChatStream))
	s.mux.HandleFunc("GET /v1/conversations", s.auth(s.handleListConversations))
	s.mux.HandleFunc("GET /v1/conversations/{session}", s.auth(s.handleGetConversation))
	s.mux.HandleFunc("DELETE /v1/conversations/{session}", s.auth(s.handleDeleteConversation))
	s.mux.HandleFunc("POST /v1/upload", s.auth(s.handleUpload))
	s.mux.HandleFunc("POST /v1/upload/file", s.auth(s.handleUploadFile))
	s.mux.HandleFunc("GET /v1/upload/{id}", s.auth(s.handleGetUpload))
	s.mux.HandleFunc("GET /v1/agents", s.auth(s.handleAgents))
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// identity carries the opaque tenant/user pair from the request headers.
type identity struct {
	tenantID string
	userID   string
}

// auth requires the X-Tenant-ID and X-User-ID headers. The pair is
// opaque; the engine trusts the upstream proxy to have authenticated it.
func (s *Server) auth(next func(http.ResponseWriter, *http.Request, identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identity{
			tenantID: r.Header.Get("X-Tenant-ID"),
			userID:   r.Header.Get("X-User-ID"),
		}
		if id.tenantID == "" || id.userID == "" {
			jsonError(w, http.StatusUnauthorized, "X-Tenant-ID and X-User-ID headers are required")
			return
		}
		next(w, r, id)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request, _ identity) {
	type agentInfo struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		Description string `json:"description"`
	}
	out := []agentInfo{}
	for _, sp := range s.specialists.All() {
		out = append(out, agentInfo{
			Name:        sp.Name(),
			DisplayName: sp.DisplayName(),
			Description: sp.Description(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", "error", err)
	}
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
