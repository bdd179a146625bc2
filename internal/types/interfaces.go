// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

type ConversationStore interface {
	GetOrCreate(ctx context.Context, key SessionKey, tenantID, userID string) (*Conversation, error)
	Get(ctx context.Context, key SessionKey) (*Conversation, error)
	List(ctx context.Context, tenantID string) ([]*Conversation, error)
	Update(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, key SessionKey) error
	AppendMessage(ctx context.Context, key SessionKey, msg *Message) error
	Messages(ctx context.Context, key SessionKey, limit int) ([]*Message, error)
}

type UploadStore interface {
	Put(ctx context.Context, upload *PendingUpload, data []byte) error
	Get(ctx context.Context, id FileID) (*PendingUpload, []byte, error)
	Consume(ctx context.Context, id FileID) (*PendingUpload, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}
