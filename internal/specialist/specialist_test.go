// internal/specialist/specialist_test.go
package specialist

import (
	"context"
	"testing"

	"github.com/teems-ai/eve/internal/types"
	"github.com/teems-ai/eve/internal/wizard"
	"github.com/teems-ai/eve/pkg/llm"
)

// mockProvider returns a scripted response.
type mockProvider struct {
	content string
	gotSys  string
}

func (m *mockProvider) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	if len(messages) > 0 && messages[0].Role == "system" {
		m.gotSys = messages[0].Content
	}
	return &llm.Response{Content: m.content}, nil
}

func (m *mockProvider) Stream(ctx context.Context, messages []llm.Message, tools []llm.Tool) (<-chan llm.Delta, error) {
	ch := make(chan llm.Delta, 1)
	ch <- llm.Delta{Content: m.content}
	close(ch)
	return ch, nil
}

func TestRegistryOrder(t *testing.T) {
	reg := NewRegistry()
	provider := &mockProvider{content: "hi"}
	reg.Register(NewPersona("notes", "Notes", "takes notes", "You take notes.", provider))
	reg.Register(NewPersona("social", "Social", "writes posts", "You write posts.", provider))

	all := reg.All()
	if len(all) != 2 || all[0].Name() != "notes" || all[1].Name() != "social" {
		t.Errorf("expected registration order preserved, got %v", all)
	}

	if _, ok := reg.Get("social"); !ok {
		t.Error("expected social specialist to resolve")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("unexpected specialist")
	}
}

func TestPersonaCompletesImmediately(t *testing.T) {
	provider := &mockProvider{content: "Here's a caption idea."}
	p := NewPersona("social", "Social", "writes posts", "You write social posts.", provider)

	reply, err := p.Handle(context.Background(), &Task{Text: "Write a caption"})
	if err != nil {
		t.Fatal(err)
	}
	if !reply.Complete {
		t.Error("persona replies must be complete")
	}
	if reply.Content != "Here's a caption idea." {
		t.Errorf("unexpected content: %q", reply.Content)
	}
	if provider.gotSys != "You write social posts." {
		t.Errorf("expected persona system prompt, got %q", provider.gotSys)
	}
}

func TestGuidedShootWalksSteps(t *testing.T) {
	g := NewGuidedShoot(nil)
	ctx := context.Background()
	st := &types.WizardState{}

	// Delegation turn: intro advances to the first question.
	reply, err := g.Handle(ctx, &Task{Text: "let's do a shoot", State: st})
	if err != nil {
		t.Fatal(err)
	}
	if st.Stage != "shoot_goal" {
		t.Fatalf("expected shoot_goal after intro, got %s", st.Stage)
	}
	if reply.Complete {
		t.Error("flow must not complete at shoot_goal")
	}
	if reply.Metadata["current_step"] != "shoot_goal" {
		t.Errorf("expected declared step shoot_goal, got %v", reply.Metadata)
	}

	// Goal answer.
	g.Handle(ctx, &Task{Text: "product listing", State: st})
	if st.Stage != "avatar_choice" || st.Context["shoot_goal"] != "product listing" {
		t.Fatalf("unexpected state after goal: %+v", st)
	}

	// Product-only branch skips avatar steps.
	g.Handle(ctx, &Task{Text: "no model please", State: st})
	if st.Stage != "no_model_style" {
		t.Fatalf("expected no_model_style branch, got %s", st.Stage)
	}
}

func TestGuidedShootUploadRouting(t *testing.T) {
	g := NewGuidedShoot(nil)
	ctx := context.Background()
	st := &types.WizardState{Stage: "product_upload", Context: map[string]any{}}

	// Without an upload the step re-prompts.
	reply, err := g.Handle(ctx, &Task{Text: "here you go", State: st})
	if err != nil {
		t.Fatal(err)
	}
	if st.Stage != "product_upload" {
		t.Errorf("expected to stay at product_upload, got %s", st.Stage)
	}
	if reply.Metadata["current_step"] != "product_upload" {
		t.Errorf("expected re-prompt at product_upload, got %v", reply.Metadata)
	}

	// With an upload the file ID lands in the product field.
	up := &types.PendingUpload{ID: types.NewFileID(), URL: "/v1/upload/abc"}
	g.Handle(ctx, &Task{Text: "", State: st, Uploads: []*types.PendingUpload{up}})
	if st.Stage != "brand_rules" {
		t.Errorf("expected brand_rules after product upload, got %s", st.Stage)
	}
	if st.Context["product_file_id"] != string(up.ID) {
		t.Errorf("expected product_file_id recorded, got %v", st.Context)
	}
}

func TestGuidedShootPreviewAndComplete(t *testing.T) {
	g := NewGuidedShoot(nil)
	ctx := context.Background()
	st := &types.WizardState{
		Stage:   "scene_select",
		Context: map[string]any{"product_url": "/v1/upload/prod"},
	}

	// Scene choice lands on preview with media.
	reply, _ := g.Handle(ctx, &Task{Text: "studio white", State: st})
	if st.Stage != "preview" {
		t.Fatalf("expected preview after scene_select, got %s", st.Stage)
	}
	if len(reply.Media) != 1 || reply.Media[0].URL != "/v1/upload/prod" {
		t.Errorf("expected preview media, got %v", reply.Media)
	}
	if !wizard.GeneratingStep(st.Stage) {
		t.Error("preview must be a generating step")
	}

	// Feedback loops; approval moves on.
	g.Handle(ctx, &Task{Text: "make it brighter", State: st})
	if st.Stage != "preview_feedback" {
		t.Fatalf("expected preview_feedback after changes, got %s", st.Stage)
	}
	g.Handle(ctx, &Task{Text: "looks good", State: st})
	if st.Stage != "output_formats" {
		t.Fatalf("expected output_formats after approval, got %s", st.Stage)
	}

	g.Handle(ctx, &Task{Text: "square and portrait", State: st})
	g.Handle(ctx, &Task{Text: "4", State: st})
	reply, _ = g.Handle(ctx, &Task{Text: "yes, go ahead", State: st})
	if st.Stage != "complete" {
		t.Fatalf("expected complete, got %s", st.Stage)
	}
	if !reply.Complete {
		t.Error("expected complete reply at final step")
	}
}
