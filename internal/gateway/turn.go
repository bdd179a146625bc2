// internal/gateway/turn.go
package gateway

import (
	"context"
	"time"

	"github.com/teems-ai/eve/internal/stream"
	"github.com/teems-ai/eve/internal/types"
)

// TurnStatus represents the lifecycle state of a Turn.
type TurnStatus string

const (
	TurnStatusQueued   TurnStatus = "queued"
	TurnStatusRunning  TurnStatus = "running"
	TurnStatusComplete TurnStatus = "complete"
	TurnStatusFailed   TurnStatus = "failed"
)

// Turn tracks a single user message moving through the engine.
// Sink receives the typed event stream; Ctx, when set, carries the
// client's request context so a disconnect cancels pending work.
type Turn struct {
	ID         types.TurnID
	Key        types.SessionKey
	TenantID   string
	UserID     string
	Text       string
	FileIDs    []types.FileID
	Sink       stream.Sink
	Status     TurnStatus
	CreatedAt  time.Time
	Ctx        context.Context
	OnComplete func(*TurnResult)
}

// TurnResult is the folded outcome of a turn, mirrored back on the
// non-streaming path and passed to OnComplete.
type TurnResult struct {
	Content        string         `json:"content"`
	Agent          string         `json:"agent"`
	MediaURLs      []string       `json:"media_urls,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ConversationID string         `json:"conversation_id"`
	Err            error          `json:"-"`
}

// NewTurn creates a Turn in the Queued state.
func NewTurn(key types.SessionKey, tenantID, userID, text string, fileIDs []types.FileID, sink stream.Sink) *Turn {
	return &Turn{
		ID:        types.NewTurnID(),
		Key:       key,
		TenantID:  tenantID,
		UserID:    userID,
		Text:      text,
		FileIDs:   fileIDs,
		Sink:      sink,
		Status:    TurnStatusQueued,
		CreatedAt: time.Now(),
	}
}
