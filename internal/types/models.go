// internal/types/models.go
package types

import (
	"time"
)

// MediaRef points at a piece of media attached to a message, either
// uploaded by the user or produced by a specialist.
type MediaRef struct {
	URL  string `json:"url"`
	Kind string `json:"kind,omitempty"`
}

// Message is a single turn entry in a conversation transcript.
type Message struct {
	ID        MessageID      `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Media     []MediaRef     `json:"media,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Seq       int64          `json:"seq"`
	CreatedAt time.Time      `json:"created_at"`
}

// WizardState tracks progress through a multi-step guided flow.
// Stage is the current step name; Context holds data collected so far.
type WizardState struct {
	Stage   string         `json:"stage"`
	Context map[string]any `json:"context,omitempty"`
}

// Conversation is the index record for one session's transcript.
// ActiveAgent names the specialist currently holding the conversation;
// empty means the chief-of-staff agent answers directly.
type Conversation struct {
	ID          ConversationID          `json:"id"`
	SessionKey  SessionKey              `json:"session_key"`
	TenantID    string                  `json:"tenant_id"`
	UserID      string                  `json:"user_id"`
	Title       string                  `json:"title,omitempty"`
	ActiveAgent string                  `json:"active_agent,omitempty"`
	Wizards     map[string]*WizardState `json:"wizards,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// PendingUpload is a file received ahead of the turn that references it.
// Uploads are consumed at most once; unconsumed uploads are pruned after
// a configurable TTL.
type PendingUpload struct {
	ID          FileID     `json:"id"`
	SessionKey  SessionKey `json:"session_key"`
	URL         string     `json:"url"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	Consumed    bool       `json:"consumed"`
	CreatedAt   time.Time  `json:"created_at"`
}
