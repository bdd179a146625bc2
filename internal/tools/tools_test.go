// internal/tools/tools_test.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teems-ai/eve/internal/specialist"
	"github.com/teems-ai/eve/internal/types"
	"github.com/teems-ai/eve/internal/wizard"
)

func newConversation() *types.Conversation {
	return &types.Conversation{
		ID:         types.NewConversationID(),
		SessionKey: types.NewSessionKey("t", "s"),
		TenantID:   "t",
		UserID:     "u",
	}
}

func TestRegistryAsLLMTools(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewBrandLookup())
	reg.Register(NewGetOnboardingState())

	llmTools := reg.AsLLMTools()
	if len(llmTools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(llmTools))
	}
	if llmTools[0].Function.Name != "brand_lookup" {
		t.Errorf("expected registration order preserved, got %s", llmTools[0].Function.Name)
	}
	if llmTools[0].Type != "function" {
		t.Errorf("expected function type, got %s", llmTools[0].Type)
	}
}

func TestBrandLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Acme Rockets</h1><p>We sell rockets.</p></body></html>`)
	}))
	defer srv.Close()

	tool := NewBrandLookup()
	args, _ := json.Marshal(map[string]string{"domain": srv.URL})
	result, err := tool.Execute(context.Background(), &Invocation{Args: args, Conversation: newConversation()})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result, "Acme Rockets") {
		t.Errorf("expected markdown content, got %q", result)
	}
}

func TestBrandLookupRequiresDomain(t *testing.T) {
	tool := NewBrandLookup()
	_, err := tool.Execute(context.Background(), &Invocation{Args: json.RawMessage(`{}`), Conversation: newConversation()})
	if err == nil {
		t.Fatal("expected error for missing domain")
	}
}

func TestWebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("missing subscription token")
		}
		fmt.Fprint(w, `{"web":{"results":[{"title":"Go","url":"https://go.dev","description":"The Go language"}]}}`)
	}))
	defer srv.Close()

	tool := NewWebSearch("brave-key")
	tool.baseURL = srv.URL

	args, _ := json.Marshal(map[string]string{"query": "golang"})
	result, err := tool.Execute(context.Background(), &Invocation{Args: args, Conversation: newConversation()})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result, "go.dev") {
		t.Errorf("expected search results, got %q", result)
	}
}

func TestOnboardingTools(t *testing.T) {
	conv := newConversation()
	ctx := context.Background()

	// Fresh state reads as the first stage.
	getTool := NewGetOnboardingState()
	out, err := getTool.Execute(ctx, &Invocation{Args: json.RawMessage(`{}`), Conversation: conv})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "brand_discovery") {
		t.Errorf("expected initial stage in output, got %q", out)
	}

	// Advance with collected data.
	advTool := NewAdvanceOnboarding()
	args, _ := json.Marshal(map[string]any{
		"target_stage": "suggested_teammates",
		"brand_domain": "acme.com",
	})
	out, err = advTool.Execute(ctx, &Invocation{Args: args, Conversation: conv})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "suggested_teammates") {
		t.Errorf("expected advanced stage, got %q", out)
	}

	st := conv.Wizards[wizard.OnboardingWizard]
	if st.Context["brand_domain"] != "acme.com" {
		t.Errorf("expected collected brand domain, got %v", st.Context)
	}

	// Backward advance leaves state alone.
	args, _ = json.Marshal(map[string]any{"target_stage": "brand_discovery"})
	out, _ = advTool.Execute(ctx, &Invocation{Args: args, Conversation: conv})
	if !strings.Contains(out, "unchanged") {
		t.Errorf("expected unchanged result, got %q", out)
	}
}

func TestResetWizard(t *testing.T) {
	conv := newConversation()
	conv.ActiveAgent = "photo"
	conv.Wizards = map[string]*types.WizardState{
		"photo": {Stage: "preview"},
	}

	tool := NewResetWizard()
	args, _ := json.Marshal(map[string]string{"wizard": "photo"})
	out, err := tool.Execute(context.Background(), &Invocation{Args: args, Conversation: conv})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "reset") {
		t.Errorf("expected reset confirmation, got %q", out)
	}
	if _, ok := conv.Wizards["photo"]; ok {
		t.Error("expected wizard state cleared")
	}
	if conv.ActiveAgent != "" {
		t.Error("expected active agent cleared with its wizard")
	}
}

func TestDelegateHandoffMarker(t *testing.T) {
	conv := newConversation()
	spec := specialist.NewGuidedShoot(nil)
	tool := NewDelegate(spec)

	if tool.Name() != "delegate_to_photo" {
		t.Errorf("unexpected tool name %s", tool.Name())
	}

	args, _ := json.Marshal(map[string]string{"message": "I want a product shoot"})
	result, err := tool.Execute(context.Background(), &Invocation{Args: args, Conversation: conv})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(result, "[AGENT_HANDOFF:photo:shoot_goal]") {
		t.Errorf("expected handoff marker, got %q", result)
	}
	if conv.Wizards["photo"] == nil || conv.Wizards["photo"].Stage != "shoot_goal" {
		t.Errorf("expected wizard state persisted on conversation, got %+v", conv.Wizards)
	}
}

func TestDelegateRecordsMedia(t *testing.T) {
	conv := newConversation()
	conv.Wizards = map[string]*types.WizardState{
		"photo": {Stage: "scene_select", Context: map[string]any{"product_url": "/v1/upload/p"}},
	}
	tool := NewDelegate(specialist.NewGuidedShoot(nil))

	args, _ := json.Marshal(map[string]string{"message": "the studio scene"})
	inv := &Invocation{Args: args, Conversation: conv}
	result, err := tool.Execute(context.Background(), inv)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(result, "[AGENT_HANDOFF:photo:preview]") {
		t.Errorf("expected handoff at preview, got %q", result)
	}

	// The specialist's media lands on the invocation for the caller to
	// forward; the tool itself emits nothing.
	if len(inv.Media) != 1 || inv.Media[0].URL != "/v1/upload/p" {
		t.Errorf("expected produced media on the invocation, got %+v", inv.Media)
	}
}
