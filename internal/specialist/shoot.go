// internal/specialist/shoot.go
package specialist

import (
	"context"
	"strings"

	"github.com/teems-ai/eve/internal/types"
	"github.com/teems-ai/eve/internal/wizard"
)

// RenderFunc produces preview media for the collected shoot state.
// Rendering itself is out of scope here; the default implementation
// echoes the uploaded product image.
type RenderFunc func(st *types.WizardState) []types.MediaRef

// GuidedShoot walks the user through the photo-shoot setup flow, one
// declared step per turn. It stays active until the flow completes or
// the user backs out.
type GuidedShoot struct {
	render RenderFunc
}

// NewGuidedShoot creates the photo specialist. A nil render falls back
// to echoing the uploaded product image as the preview.
func NewGuidedShoot(render RenderFunc) *GuidedShoot {
	if render == nil {
		render = defaultRender
	}
	return &GuidedShoot{render: render}
}

func (g *GuidedShoot) Name() string        { return "photo" }
func (g *GuidedShoot) DisplayName() string { return "Photo Studio" }
func (g *GuidedShoot) Description() string {
	return "Sets up and runs product photo shoots through a guided flow"
}

func defaultRender(st *types.WizardState) []types.MediaRef {
	if st.Context == nil {
		return nil
	}
	url, _ := st.Context["product_url"].(string)
	if url == "" {
		return nil
	}
	return []types.MediaRef{{URL: url, Kind: "image"}}
}

// stepPrompts are the questions asked when the flow arrives at a step.
var stepPrompts = map[string]string{
	"intro":            "Welcome to the photo studio! I'll walk you through setting up your shoot.",
	"shoot_goal":       "What's the goal of this shoot? For example: product listing, social campaign, or lookbook.",
	"avatar_choice":    "Do you want a model in your shots? You can choose one of ours, upload a reference, or go product-only.",
	"avatar_category":  "What kind of model are you looking for? Tell me a style or vibe.",
	"avatar_select":    "Pick the model that fits best and tell me which one.",
	"avatar_upload":    "Upload a reference photo of the model you'd like to use.",
	"no_model_style":   "Product-only it is. What styling direction should the shots have?",
	"product_upload":   "Upload a photo of the product you want to shoot.",
	"brand_rules":      "Any brand rules I should follow? Colors, tone, things to avoid.",
	"scene_category":   "What kind of scene setting do you want? Studio, outdoor, lifestyle...",
	"scene_select":     "Which scene should I use? Describe or name the one you like.",
	"preview":          "Here's a preview of your shoot. Tell me what you think.",
	"preview_feedback": "Here's the adjusted preview. Happy with it, or more changes?",
	"output_formats":   "Which output formats do you need? For example: square, portrait, landscape.",
	"images_per_scene": "How many images per scene should I produce?",
	"final_confirm":    "Ready to run the shoot with these settings?",
	"complete":         "Your shoot is queued! I'll let you know as soon as the images are ready.",
}

func affirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, word := range []string{"yes", "yep", "yeah", "sure", "ok", "okay", "looks good", "perfect", "love it", "approve", "go ahead", "do it"} {
		if strings.Contains(t, word) {
			return true
		}
	}
	return false
}

// absorbUpload records an uploaded file under the field the current step
// routes to.
func absorbUpload(st *types.WizardState, step string, uploads []*types.PendingUpload) bool {
	if len(uploads) == 0 {
		return false
	}
	up := uploads[0]
	field := wizard.UploadField(step)
	st.Context[field] = string(up.ID)
	if field == "product_file_id" {
		st.Context["product_url"] = up.URL
	} else {
		st.Context["avatar_url"] = up.URL
	}
	return true
}

// Handle advances the flow by one step. The reply's metadata declares
// the step the conversation is now at.
func (g *GuidedShoot) Handle(ctx context.Context, task *Task) (*Reply, error) {
	st := task.State
	if st.Context == nil {
		st.Context = make(map[string]any)
	}
	if !wizard.ValidShootStep(st.Stage) {
		st.Stage = wizard.FirstShootStep()
	}

	var media []types.MediaRef

	switch st.Stage {
	case "intro":
		st.Stage = "shoot_goal"

	case "shoot_goal":
		st.Context["shoot_goal"] = task.Text
		st.Stage = "avatar_choice"

	case "avatar_choice":
		choice := strings.ToLower(task.Text)
		st.Context["avatar_choice"] = task.Text
		switch {
		case strings.Contains(choice, "upload"):
			st.Stage = "avatar_upload"
		case strings.Contains(choice, "no") || strings.Contains(choice, "product only") || strings.Contains(choice, "without"):
			st.Stage = "no_model_style"
		default:
			st.Stage = "avatar_category"
		}

	case "avatar_category":
		st.Context["avatar_category"] = task.Text
		st.Stage = "avatar_select"

	case "avatar_select":
		st.Context["avatar_selection"] = task.Text
		st.Stage = "product_upload"

	case "avatar_upload":
		if !absorbUpload(st, st.Stage, task.Uploads) {
			break // re-prompt, stay on this step
		}
		st.Stage = "product_upload"

	case "no_model_style":
		st.Context["style_direction"] = task.Text
		st.Stage = "product_upload"

	case "product_upload":
		if !absorbUpload(st, st.Stage, task.Uploads) {
			break
		}
		st.Stage = "brand_rules"

	case "brand_rules":
		st.Context["brand_rules"] = task.Text
		st.Stage = "scene_category"

	case "scene_category":
		st.Context["scene_category"] = task.Text
		st.Stage = "scene_select"

	case "scene_select":
		st.Context["scene"] = task.Text
		st.Stage = "preview"
		media = g.render(st)

	case "preview":
		if affirmative(task.Text) {
			st.Stage = "output_formats"
		} else {
			st.Context["preview_feedback"] = task.Text
			st.Stage = "preview_feedback"
			media = g.render(st)
		}

	case "preview_feedback":
		if affirmative(task.Text) {
			st.Stage = "output_formats"
		} else {
			st.Context["preview_feedback"] = task.Text
			media = g.render(st)
		}

	case "output_formats":
		st.Context["output_formats"] = task.Text
		st.Stage = "images_per_scene"

	case "images_per_scene":
		st.Context["images_per_scene"] = task.Text
		st.Stage = "final_confirm"

	case "final_confirm":
		if affirmative(task.Text) {
			st.Stage = "complete"
		}

	case "complete":
		// Flow already finished; nothing left to collect.
	}

	return &Reply{
		Content:  stepPrompts[st.Stage],
		Media:    media,
		Metadata: map[string]any{"current_step": st.Stage},
		Complete: st.Stage == "complete",
	}, nil
}
