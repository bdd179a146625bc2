// internal/state/conversation.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teems-ai/eve/internal/types"
)

// ConversationStore is a JSON-file-backed conversation store.
// The index lives in conversations/conversations.json; each conversation
// gets a directory at conversations/<conversationID>/ holding an
// append-only messages.jsonl transcript.
type ConversationStore struct {
	root string
	mu   sync.RWMutex

	lockMu sync.Mutex
	locks  map[types.ConversationID]*sync.Mutex
}

// NewConversationStore creates a file-backed ConversationStore rooted at
// the given directory.
func NewConversationStore(root string) *ConversationStore {
	return &ConversationStore{
		root:  root,
		locks: make(map[types.ConversationID]*sync.Mutex),
	}
}

func (s *ConversationStore) indexPath() string {
	return filepath.Join(s.root, "conversations", "conversations.json")
}

func (s *ConversationStore) conversationsDir() string {
	return filepath.Join(s.root, "conversations")
}

func (s *ConversationStore) conversationDir(id types.ConversationID) string {
	return filepath.Join(s.root, "conversations", string(id))
}

func (s *ConversationStore) messagesPath(id types.ConversationID) string {
	return filepath.Join(s.conversationDir(id), "messages.jsonl")
}

// messageLock returns the per-conversation mutex, creating one on first use.
func (s *ConversationStore) messageLock(id types.ConversationID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	if lock, ok := s.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[id] = lock
	return lock
}

// loadIndex reads conversations.json and returns a map keyed by SessionKey.
func (s *ConversationStore) loadIndex() (map[types.SessionKey]*types.Conversation, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.SessionKey]*types.Conversation), nil
		}
		return nil, fmt.Errorf("read conversation index: %w", err)
	}

	var conversations []*types.Conversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		return nil, fmt.Errorf("unmarshal conversation index: %w", err)
	}

	index := make(map[types.SessionKey]*types.Conversation, len(conversations))
	for _, conv := range conversations {
		index[conv.SessionKey] = conv
	}
	return index, nil
}

// saveIndex converts the map to a slice, marshals with indentation, and
// writes atomically via temp file + rename.
func (s *ConversationStore) saveIndex(index map[types.SessionKey]*types.Conversation) error {
	conversations := make([]*types.Conversation, 0, len(index))
	for _, conv := range index {
		conversations = append(conversations, conv)
	}

	data, err := json.MarshalIndent(conversations, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation index: %w", err)
	}

	if err := os.MkdirAll(s.conversationsDir(), 0o755); err != nil {
		return fmt.Errorf("create conversations dir: %w", err)
	}

	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp index: %w", err)
	}
	return nil
}

// GetOrCreate returns the conversation for the given key, creating a new
// one if needed.
func (s *ConversationStore) GetOrCreate(_ context.Context, key types.SessionKey, tenantID, userID string) (*types.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	if existing, ok := index[key]; ok {
		return existing, nil
	}

	now := time.Now()
	conv := &types.Conversation{
		ID:         types.NewConversationID(),
		SessionKey: key,
		TenantID:   tenantID,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	index[key] = conv
	if err := s.saveIndex(index); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.conversationDir(conv.ID), 0o755); err != nil {
		return nil, fmt.Errorf("create conversation dir: %w", err)
	}

	return conv, nil
}

// Get returns the conversation with the given key, or ErrNotFound.
func (s *ConversationStore) Get(_ context.Context, key types.SessionKey) (*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	conv, ok := index[key]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", key, types.ErrNotFound)
	}
	return conv, nil
}

// List returns all conversations for the given tenant.
func (s *ConversationStore) List(_ context.Context, tenantID string) ([]*types.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	conversations := make([]*types.Conversation, 0, len(index))
	for _, conv := range index {
		if conv.TenantID == tenantID {
			conversations = append(conversations, conv)
		}
	}
	return conversations, nil
}

// Update persists changes to the given conversation, setting UpdatedAt to now.
func (s *ConversationStore) Update(_ context.Context, conv *types.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}

	if _, ok := index[conv.SessionKey]; !ok {
		return fmt.Errorf("conversation %s: %w", conv.SessionKey, types.ErrNotFound)
	}

	conv.UpdatedAt = time.Now()
	index[conv.SessionKey] = conv

	return s.saveIndex(index)
}

// Delete removes the conversation and its transcript.
func (s *ConversationStore) Delete(_ context.Context, key types.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}

	conv, ok := index[key]
	if !ok {
		return fmt.Errorf("conversation %s: %w", key, types.ErrNotFound)
	}

	delete(index, key)
	if err := s.saveIndex(index); err != nil {
		return err
	}

	if err := os.RemoveAll(s.conversationDir(conv.ID)); err != nil {
		return fmt.Errorf("remove conversation dir: %w", err)
	}
	return nil
}

// countMessages reads the transcript and counts lines. Caller must hold
// the conversation's message lock.
func (s *ConversationStore) countMessages(id types.ConversationID) (int64, error) {
	f, err := os.Open(s.messagesPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open messages file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan messages file: %w", err)
	}
	return count, nil
}

// AppendMessage adds a message to the conversation's transcript with an
// auto-incremented sequence number.
func (s *ConversationStore) AppendMessage(ctx context.Context, key types.SessionKey, msg *types.Message) error {
	conv, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	lock := s.messageLock(conv.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(s.conversationDir(conv.ID), 0o755); err != nil {
		return fmt.Errorf("create conversation dir: %w", err)
	}

	existing, err := s.countMessages(conv.ID)
	if err != nil {
		return err
	}
	msg.Seq = existing + 1
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	f, err := os.OpenFile(s.messagesPath(conv.ID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open messages file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// Messages returns the last N messages of the conversation in
// chronological order. Unknown keys return ErrNotFound.
func (s *ConversationStore) Messages(ctx context.Context, key types.SessionKey, limit int) ([]*types.Message, error) {
	conv, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	lock := s.messageLock(conv.ID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(s.messagesPath(conv.ID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open messages file: %w", err)
	}
	defer f.Close()

	var messages []*types.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var msg types.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan messages file: %w", err)
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}
