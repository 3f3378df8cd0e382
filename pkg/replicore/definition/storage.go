package definition

import (
	"sync"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// InMemoryStorage is the default types.Storage implementation, grounded
// on the teacher's unretrieved definition.NewDefaultStorage() (only its
// call site survived retrieval, in test/log_test.go) reconstructed from
// the types.Storage interface shape.
type InMemoryStorage struct {
	mutex   sync.RWMutex
	entries map[types.EntityID]types.Payload
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{entries: make(map[types.EntityID]types.Payload)}
}

func (s *InMemoryStorage) Set(entry types.StorageEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries[entry.Key] = entry.Value.Clone()
	return nil
}

func (s *InMemoryStorage) Get() ([]types.StorageEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]types.StorageEntry, 0, len(s.entries))
	for k, v := range s.entries {
		out = append(out, types.StorageEntry{Key: k, Value: v.Clone()})
	}
	return out, nil
}

var _ types.Storage = (*InMemoryStorage)(nil)
