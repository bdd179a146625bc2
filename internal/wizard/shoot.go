// internal/wizard/shoot.go
package wizard

// ShootSteps lists the guided photo-shoot flow in order. The engine
// validates every step a specialist declares against this list and
// propagates the declared step in done metadata.
var ShootSteps = []string{
	"intro",
	"shoot_goal",
	"avatar_choice",
	"avatar_category",
	"avatar_select",
	"avatar_upload",
	"no_model_style",
	"product_upload",
	"brand_rules",
	"scene_category",
	"scene_select",
	"preview",
	"preview_feedback",
	"output_formats",
	"images_per_scene",
	"final_confirm",
	"complete",
}

// FirstShootStep is where a fresh guided shoot starts.
func FirstShootStep() string {
	return ShootSteps[0]
}

// ShootStepIndex returns the position of the step, or -1 for unknown steps.
func ShootStepIndex(step string) int {
	for i, s := range ShootSteps {
		if s == step {
			return i
		}
	}
	return -1
}

// ValidShootStep reports whether the step belongs to the flow.
func ValidShootStep(step string) bool {
	return ShootStepIndex(step) >= 0
}

// NextShootStep returns the step after the given one, or "" at the end
// of the flow.
func NextShootStep(step string) string {
	idx := ShootStepIndex(step)
	if idx < 0 || idx+1 >= len(ShootSteps) {
		return ""
	}
	return ShootSteps[idx+1]
}

// GeneratingStep reports whether the step can trigger media synthesis.
// Turns at these steps are bracketed with generating started/done events.
func GeneratingStep(step string) bool {
	switch step {
	case "scene_select", "preview", "preview_feedback":
		return true
	}
	return false
}

// UploadField returns the wizard context field an uploaded file belongs
// to at the given step. Avatar steps collect the model reference image;
// everything else collects the product image.
func UploadField(step string) string {
	switch step {
	case "avatar_choice", "avatar_category", "avatar_select", "avatar_upload":
		return "avatar_file_id"
	}
	return "product_file_id"
}
