// internal/tools/onboarding.go
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teems-ai/eve/internal/types"
	"github.com/teems-ai/eve/internal/wizard"
)

// GetOnboardingState reports where the user is in onboarding. Read-only.
type GetOnboardingState struct{}

// NewGetOnboardingState creates the tool.
func NewGetOnboardingState() *GetOnboardingState { return &GetOnboardingState{} }

func (g *GetOnboardingState) Name() string { return "get_onboarding_state" }
func (g *GetOnboardingState) Description() string {
	return "Get the user's current onboarding stage and collected data"
}
func (g *GetOnboardingState) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (g *GetOnboardingState) Execute(_ context.Context, inv *Invocation) (string, error) {
	st, ok := inv.Conversation.Wizards[wizard.OnboardingWizard]
	if !ok || st == nil {
		st = wizard.NewOnboardingState()
	}

	out, err := json.Marshal(map[string]any{
		"stage":     st.Stage,
		"completed": wizard.OnboardingComplete(st),
		"collected": st.Context,
		"stages":    wizard.OnboardingStages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return string(out), nil
}

// AdvanceOnboarding moves the user forward through onboarding and
// records the data collected at the stage being left.
type AdvanceOnboarding struct{}

// NewAdvanceOnboarding creates the tool.
func NewAdvanceOnboarding() *AdvanceOnboarding { return &AdvanceOnboarding{} }

func (a *AdvanceOnboarding) Name() string { return "advance_onboarding" }
func (a *AdvanceOnboarding) Description() string {
	return "Advance the user's onboarding to the target stage, recording collected data"
}
func (a *AdvanceOnboarding) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"target_stage": {"type": "string", "description": "Stage to advance to"},
			"brand_domain": {"type": "string", "description": "Brand website domain discovered"},
			"selected_teammates": {"type": "array", "items": {"type": "string"}, "description": "Specialist teammates the user picked"},
			"connected_integrations": {"type": "array", "items": {"type": "string"}, "description": "Integrations the user connected"},
			"notification_preferences": {"type": "object", "description": "Delivery channels for notifications, e.g. {\"telegram\": \"12345\"}"}
		},
		"required": ["target_stage"]
	}`)
}

func (a *AdvanceOnboarding) Execute(_ context.Context, inv *Invocation) (string, error) {
	var params struct {
		TargetStage             string         `json:"target_stage"`
		BrandDomain             string         `json:"brand_domain"`
		SelectedTeammates       []string       `json:"selected_teammates"`
		ConnectedIntegrations   []string       `json:"connected_integrations"`
		NotificationPreferences map[string]any `json:"notification_preferences"`
	}
	if err := json.Unmarshal(inv.Args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.TargetStage == "" {
		return "", fmt.Errorf("target_stage is required")
	}

	conv := inv.Conversation
	if conv.Wizards == nil {
		conv.Wizards = make(map[string]*types.WizardState)
	}
	st, ok := conv.Wizards[wizard.OnboardingWizard]
	if !ok || st == nil {
		st = wizard.NewOnboardingState()
		conv.Wizards[wizard.OnboardingWizard] = st
	}

	data := make(map[string]any)
	if params.BrandDomain != "" {
		data["brand_domain"] = params.BrandDomain
	}
	if len(params.SelectedTeammates) > 0 {
		data["selected_teammates"] = params.SelectedTeammates
	}
	if len(params.ConnectedIntegrations) > 0 {
		data["connected_integrations"] = params.ConnectedIntegrations
	}
	if len(params.NotificationPreferences) > 0 {
		data["notification_preferences"] = params.NotificationPreferences
	}

	if wizard.AdvanceOnboarding(st, params.TargetStage, data) {
		return fmt.Sprintf("Onboarding advanced to %s.", st.Stage), nil
	}
	return fmt.Sprintf("Onboarding unchanged at %s.", st.Stage), nil
}

// ResetWizard clears a wizard's state so its flow can start over.
type ResetWizard struct{}

// NewResetWizard creates the tool.
func NewResetWizard() *ResetWizard { return &ResetWizard{} }

func (r *ResetWizard) Name() string { return "reset_wizard" }
func (r *ResetWizard) Description() string {
	return "Reset a guided flow so it starts from the beginning"
}
func (r *ResetWizard) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"wizard": {"type": "string", "description": "Wizard to reset, e.g. onboarding or photo"}
		},
		"required": ["wizard"]
	}`)
}

func (r *ResetWizard) Execute(_ context.Context, inv *Invocation) (string, error) {
	var params struct {
		Wizard string `json:"wizard"`
	}
	if err := json.Unmarshal(inv.Args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Wizard == "" {
		return "", fmt.Errorf("wizard is required")
	}

	conv := inv.Conversation
	if _, ok := conv.Wizards[params.Wizard]; !ok {
		return fmt.Sprintf("No %s flow in progress.", params.Wizard), nil
	}
	delete(conv.Wizards, params.Wizard)
	if conv.ActiveAgent == params.Wizard {
		conv.ActiveAgent = ""
	}
	return fmt.Sprintf("The %s flow has been reset.", params.Wizard), nil
}
