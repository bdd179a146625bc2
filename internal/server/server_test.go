// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teems-ai/eve/internal/gateway"
	"github.com/teems-ai/eve/internal/specialist"
	"github.com/teems-ai/eve/internal/state"
	"github.com/teems-ai/eve/internal/stream"
	"github.com/teems-ai/eve/internal/types"
)

type testEnv struct {
	server  *Server
	convs   *state.ConversationStore
	uploads *state.UploadStore
	gw      *gateway.Gateway
}

func newTestEnv(t *testing.T, processor func(*gateway.Turn) error) *testEnv {
	t.Helper()
	dir := t.TempDir()
	convs := state.NewConversationStore(dir)
	uploads := state.NewUploadStore(dir)

	gw := gateway.New(2)
	gw.Start(context.Background())
	t.Cleanup(gw.Stop)
	if processor != nil {
		gw.Queue.SetProcessor(processor)
	}

	specs := specialist.NewRegistry()
	specs.Register(specialist.NewGuidedShoot(nil))

	return &testEnv{
		server:  NewServer(gw, convs, uploads, specs),
		convs:   convs,
		uploads: uploads,
		gw:      gw,
	}
}

// echoProcessor mimics the orchestrator's contract: events to the sink,
// then OnComplete with the folded result.
func echoProcessor(turn *gateway.Turn) error {
	turn.Sink.Emit(stream.Event{Type: stream.EventAgent, Agent: "eve"})
	turn.Sink.Emit(stream.Event{Type: stream.EventToken, Content: "echo: " + turn.Text})
	turn.Sink.Emit(stream.Event{Type: stream.EventDone, Agent: "eve"})
	if turn.OnComplete != nil {
		turn.OnComplete(&gateway.TurnResult{
			Content:        "echo: " + turn.Text,
			Agent:          "eve",
			ConversationID: "conv-1",
		})
	}
	return nil
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

var authHeaders = map[string]string{
	"X-Tenant-ID": "acme",
	"X-User-ID":   "user-1",
}

func TestHealthNoAuth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := doJSON(t, env.server, "GET", "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil)

	paths := []struct{ method, path string }{
		{"POST", "/v1/chat"},
		{"POST", "/v1/chat/stream"},
		{"GET", "/v1/conversations"},
		{"GET", "/v1/agents"},
		{"POST", "/v1/upload"},
	}
	for _, p := range paths {
		rec := doJSON(t, env.server, p.method, p.path, nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, rec.Code)
		}
	}

	// Partial headers are still unauthorized.
	rec := doJSON(t, env.server, "GET", "/v1/conversations", nil, map[string]string{"X-Tenant-ID": "acme"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with missing user header, got %d", rec.Code)
	}
}

func TestChatSync(t *testing.T) {
	env := newTestEnv(t, echoProcessor)

	rec := doJSON(t, env.server, "POST", "/v1/chat", map[string]any{
		"session_id": "s1",
		"message":    "hello",
	}, authHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Content != "echo: hello" {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Agent != "eve" {
		t.Errorf("unexpected agent %q", resp.Agent)
	}
	if resp.SessionID != "s1" {
		t.Errorf("unexpected session_id %q", resp.SessionID)
	}
	if resp.ConversationID != "conv-1" {
		t.Errorf("unexpected conversation_id %q", resp.ConversationID)
	}
}

func TestChatValidation(t *testing.T) {
	env := newTestEnv(t, echoProcessor)

	rec := doJSON(t, env.server, "POST", "/v1/chat", map[string]any{"message": "hi"}, authHeaders)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing session_id: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, env.server, "POST", "/v1/chat", map[string]any{"session_id": "s1"}, authHeaders)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message without files: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, env.server, "POST", "/v1/chat", map[string]any{"session_id": "s1", "message": "   "}, authHeaders)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("whitespace-only message without files: expected 400, got %d", rec.Code)
	}
}

func TestChatStreamFrames(t *testing.T) {
	env := newTestEnv(t, echoProcessor)

	rec := doJSON(t, env.server, "POST", "/v1/chat/stream", map[string]any{
		"session_id": "s1",
		"message":    "hi",
	}, authHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}

	var events []stream.Event
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e stream.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		events = append(events, e)
	}
	if len(events) == 0 {
		t.Fatal("expected SSE frames")
	}

	var terminals int
	var text strings.Builder
	for _, e := range events {
		if e.Terminal() {
			terminals++
		}
		if e.Type == stream.EventToken {
			text.WriteString(e.Content)
		}
	}
	if terminals != 1 {
		t.Errorf("expected exactly one terminal frame, got %d", terminals)
	}
	if text.String() != "echo: hi" {
		t.Errorf("unexpected streamed text %q", text.String())
	}
}

func TestConversationLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	key := types.NewSessionKey("acme", "s1")
	conv, err := env.convs.GetOrCreate(ctx, key, "acme", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	conv.Title = "first message"
	if err := env.convs.Update(ctx, conv); err != nil {
		t.Fatal(err)
	}
	msg := &types.Message{ID: types.NewMessageID(), Role: "user", Content: "first message"}
	if err := env.convs.AppendMessage(ctx, key, msg); err != nil {
		t.Fatal(err)
	}

	// List shows only this tenant's conversations.
	rec := doJSON(t, env.server, "GET", "/v1/conversations", nil, authHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list []conversationSummary
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].SessionID != "s1" || list[0].Title != "first message" {
		t.Errorf("unexpected list %+v", list)
	}

	// Get returns the transcript.
	rec = doJSON(t, env.server, "GET", "/v1/conversations/s1", nil, authHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var detail conversationDetail
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatal(err)
	}
	if len(detail.Messages) != 1 || detail.Messages[0].Content != "first message" {
		t.Errorf("unexpected messages %+v", detail.Messages)
	}

	// Delete, then 404.
	rec = doJSON(t, env.server, "DELETE", "/v1/conversations/s1", nil, authHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, env.server, "GET", "/v1/conversations/s1", nil, authHeaders)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", rec.Code)
	}
	rec = doJSON(t, env.server, "DELETE", "/v1/conversations/s1", nil, authHeaders)
	if rec.Code != http.StatusNotFound {
		t.Errorf("double delete: expected 404, got %d", rec.Code)
	}
}

func TestUploadBase64RoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)

	payload := []byte("fake image bytes")
	rec := doJSON(t, env.server, "POST", "/v1/upload", map[string]any{
		"session_id":   "s1",
		"filename":     "photo.png",
		"content_type": "image/png",
		"data":         base64.StdEncoding.EncodeToString(payload),
	}, authHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp uploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.FileID == "" || !strings.HasPrefix(resp.URL, "/v1/upload/") {
		t.Fatalf("unexpected upload response %+v", resp)
	}

	// Serve it back.
	rec = doJSON(t, env.server, "GET", resp.URL, nil, authHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("get upload: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Error("served bytes differ from uploaded bytes")
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)

	// Disallowed extension
	rec := doJSON(t, env.server, "POST", "/v1/upload", map[string]any{
		"session_id": "s1",
		"filename":   "script.sh",
		"data":       base64.StdEncoding.EncodeToString([]byte("#!/bin/sh")),
	}, authHeaders)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad extension: expected 400, got %d", rec.Code)
	}

	// Invalid base64
	rec = doJSON(t, env.server, "POST", "/v1/upload", map[string]any{
		"session_id": "s1",
		"filename":   "a.png",
		"data":       "not-base64!!!",
	}, authHeaders)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad base64: expected 400, got %d", rec.Code)
	}

	// Unknown file ID
	rec = doJSON(t, env.server, "GET", "/v1/upload/no-such-id", nil, authHeaders)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing file: expected 404, got %d", rec.Code)
	}
}

func TestUploadSizeLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.maxUpload = 16

	big := bytes.Repeat([]byte("x"), 64)
	rec := doJSON(t, env.server, "POST", "/v1/upload", map[string]any{
		"session_id": "s1",
		"filename":   "big.png",
		"data":       base64.StdEncoding.EncodeToString(big),
	}, authHeaders)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestUploadMultipart(t *testing.T) {
	env := newTestEnv(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("session_id", "s1"); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", "clip.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("fake video bytes")); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest("POST", "/v1/upload/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range authHeaders {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp uploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}

	upload, data, err := env.uploads.Get(context.Background(), types.FileID(resp.FileID))
	if err != nil {
		t.Fatal(err)
	}
	if upload.Filename != "clip.mp4" {
		t.Errorf("unexpected filename %q", upload.Filename)
	}
	if string(data) != "fake video bytes" {
		t.Error("stored bytes differ from uploaded bytes")
	}
}

func TestAgentsList(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := doJSON(t, env.server, "GET", "/v1/agents", nil, authHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var agents []map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&agents); err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 || agents[0]["name"] != "photo" {
		t.Errorf("unexpected agents %v", agents)
	}
	if agents[0]["display_name"] == "" || agents[0]["description"] == "" {
		t.Errorf("expected display metadata, got %v", agents[0])
	}
}
