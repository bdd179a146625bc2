// Package state provides filesystem-backed storage implementations.
package state

import "github.com/teems-ai/eve/internal/types"

// Compile-time interface compliance checks.
var _ types.ConversationStore = (*ConversationStore)(nil)
var _ types.UploadStore = (*UploadStore)(nil)
