package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ipfs/go-cid"
)

// ErrNotFound reports that a content id is not present in the store.
var ErrNotFound = errors.New("backup: content not found")

// FSStore is a filesystem CAS: each payload lives at
// <root>/<first two cid chars>/<cid>, with a small JSON sidecar carrying
// the upload tags. Put is idempotent - re-storing existing content is a
// no-op that returns the same id.
type FSStore struct {
	root string
	mu   sync.Mutex
}

var _ CAS = (*FSStore)(nil)

// NewFSStore creates the root directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create store root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Put implements CAS.
func (s *FSStore) Put(ctx context.Context, data []byte, meta Meta) (cid.Cid, error) {
	id, err := ContentID(data)
	if err != nil {
		return cid.Undef, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathFor(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, fmt.Errorf("backup: create shard dir: %w", err)
	}

	// Write-then-rename so a crash never leaves a partial object under
	// its final name.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return cid.Undef, fmt.Errorf("backup: write object: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cid.Undef, fmt.Errorf("backup: commit object: %w", err)
	}

	sidecar, err := json.Marshal(map[string]string{
		"name":      meta.Name,
		"kind":      string(meta.Kind),
		"operation": meta.Operation,
		"entityId":  meta.EntityID,
	})
	if err == nil {
		// Tags are advisory; a failed sidecar write is not a Put failure.
		_ = os.WriteFile(path+".meta.json", sidecar, 0o644)
	}

	return id, nil
}

// Get implements CAS.
func (s *FSStore) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("backup: read object: %w", err)
	}
	return data, nil
}

func (s *FSStore) pathFor(id cid.Cid) string {
	str := id.String()
	return filepath.Join(s.root, str[:2], str)
}

// MemStore is an in-memory CAS for tests, with optional fault injection.
type MemStore struct {
	mu      sync.Mutex
	objects map[cid.Cid][]byte

	// PutErr, when set, fails every Put.
	PutErr error
}

var _ CAS = (*MemStore)(nil)

// NewMemStore returns an empty in-memory CAS.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[cid.Cid][]byte)}
}

// Put implements CAS.
func (s *MemStore) Put(ctx context.Context, data []byte, meta Meta) (cid.Cid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.PutErr != nil {
		return cid.Undef, s.PutErr
	}

	id, err := ContentID(data)
	if err != nil {
		return cid.Undef, err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[id] = cp
	return id, nil
}

// Get implements CAS.
func (s *MemStore) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// Len reports the number of stored objects.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
