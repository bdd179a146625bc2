// internal/state/upload.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/teems-ai/eve/internal/types"
)

// UploadStore is a file-backed store for pending uploads. Metadata lives
// in uploads/uploads.json; file bytes are written next to it under
// uploads/files/<fileID>. Consume marks an upload used at most once.
type UploadStore struct {
	root string
	mu   sync.Mutex
}

// NewUploadStore creates a file-backed UploadStore rooted at the given
// directory.
func NewUploadStore(root string) *UploadStore {
	return &UploadStore{root: root}
}

func (u *UploadStore) indexPath() string {
	return filepath.Join(u.root, "uploads", "uploads.json")
}

func (u *UploadStore) filesDir() string {
	return filepath.Join(u.root, "uploads", "files")
}

func (u *UploadStore) filePath(id types.FileID) string {
	return filepath.Join(u.filesDir(), string(id))
}

func (u *UploadStore) loadIndex() (map[types.FileID]*types.PendingUpload, error) {
	data, err := os.ReadFile(u.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.FileID]*types.PendingUpload), nil
		}
		return nil, fmt.Errorf("read upload index: %w", err)
	}

	var uploads []*types.PendingUpload
	if err := json.Unmarshal(data, &uploads); err != nil {
		return nil, fmt.Errorf("unmarshal upload index: %w", err)
	}

	index := make(map[types.FileID]*types.PendingUpload, len(uploads))
	for _, up := range uploads {
		index[up.ID] = up
	}
	return index, nil
}

func (u *UploadStore) saveIndex(index map[types.FileID]*types.PendingUpload) error {
	uploads := make([]*types.PendingUpload, 0, len(index))
	for _, up := range index {
		uploads = append(uploads, up)
	}

	data, err := json.MarshalIndent(uploads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal upload index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(u.indexPath()), 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}

	tmp := u.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := os.Rename(tmp, u.indexPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp index: %w", err)
	}
	return nil
}

// Put stores the upload bytes and records its metadata.
func (u *UploadStore) Put(_ context.Context, upload *types.PendingUpload, data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	index, err := u.loadIndex()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(u.filesDir(), 0o755); err != nil {
		return fmt.Errorf("create files dir: %w", err)
	}
	if err := os.WriteFile(u.filePath(upload.ID), data, 0o644); err != nil {
		return fmt.Errorf("write upload file: %w", err)
	}

	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now()
	}
	upload.Size = int64(len(data))
	index[upload.ID] = upload

	return u.saveIndex(index)
}

// Get returns the upload metadata and bytes, or ErrNotFound.
func (u *UploadStore) Get(_ context.Context, id types.FileID) (*types.PendingUpload, []byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	index, err := u.loadIndex()
	if err != nil {
		return nil, nil, err
	}

	up, ok := index[id]
	if !ok {
		return nil, nil, fmt.Errorf("upload %s: %w", id, types.ErrNotFound)
	}

	data, err := os.ReadFile(u.filePath(id))
	if err != nil {
		return nil, nil, fmt.Errorf("read upload file: %w", err)
	}
	return up, data, nil
}

// Consume marks the upload as used and returns its metadata. A second
// consume of the same ID returns ErrNotFound.
func (u *UploadStore) Consume(_ context.Context, id types.FileID) (*types.PendingUpload, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	index, err := u.loadIndex()
	if err != nil {
		return nil, err
	}

	up, ok := index[id]
	if !ok || up.Consumed {
		return nil, fmt.Errorf("upload %s: %w", id, types.ErrNotFound)
	}

	up.Consumed = true
	if err := u.saveIndex(index); err != nil {
		return nil, err
	}
	return up, nil
}

// PruneBefore removes unconsumed uploads created before the cutoff and
// deletes their file bytes. Returns the number pruned. Consumed uploads
// are kept so their media URLs stay resolvable from the transcript.
func (u *UploadStore) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	index, err := u.loadIndex()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for id, up := range index {
		if up.Consumed || !up.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(u.filePath(id)); err != nil && !os.IsNotExist(err) {
			return pruned, fmt.Errorf("remove upload file: %w", err)
		}
		delete(index, id)
		pruned++
	}

	if pruned == 0 {
		return 0, nil
	}
	return pruned, u.saveIndex(index)
}
