// internal/wizard/onboarding.go
package wizard

import (
	"log/slog"

	"github.com/teems-ai/eve/internal/types"
)

// OnboardingWizard is the key under which onboarding state is stored on
// a conversation.
const OnboardingWizard = "onboarding"

// OnboardingStages lists the onboarding flow in order. Progress is
// monotonic: a conversation only ever moves rightward through this list.
var OnboardingStages = []string{
	"brand_discovery",
	"suggested_teammates",
	"connect_world",
	"personalization",
	"completed",
}

// OnboardingIndex returns the position of the stage, or -1 for unknown stages.
func OnboardingIndex(stage string) int {
	for i, s := range OnboardingStages {
		if s == stage {
			return i
		}
	}
	return -1
}

// NewOnboardingState returns fresh state at the first stage.
func NewOnboardingState() *types.WizardState {
	return &types.WizardState{
		Stage:   OnboardingStages[0],
		Context: make(map[string]any),
	}
}

// AdvanceOnboarding moves state forward to target and merges data into
// the collected context. Unknown targets and backward moves are ignored
// with a log; advancing a completed flow is a no-op. Returns true if the
// stage changed.
func AdvanceOnboarding(st *types.WizardState, target string, data map[string]any) bool {
	targetIdx := OnboardingIndex(target)
	if targetIdx < 0 {
		slog.Warn("unknown onboarding stage", "target", target)
		return false
	}

	currentIdx := OnboardingIndex(st.Stage)
	if OnboardingComplete(st) {
		return false
	}
	if targetIdx <= currentIdx {
		slog.Info("onboarding advance ignored", "current", st.Stage, "target", target)
		return false
	}

	if st.Context == nil {
		st.Context = make(map[string]any)
	}
	for k, v := range data {
		st.Context[k] = v
	}
	st.Stage = target
	return true
}

// OnboardingComplete reports whether the flow has reached its terminal stage.
func OnboardingComplete(st *types.WizardState) bool {
	return st != nil && st.Stage == OnboardingStages[len(OnboardingStages)-1]
}
