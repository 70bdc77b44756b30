package vidtask

import (
	"context"
	"sync"
)

// Store persists task records and session pointers across restarts. Get
// returns (nil, nil) when the key is absent. Calls are best-effort from the
// service's point of view: failures are logged and swallowed, never fatal.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// TaskKey returns the store key holding the record for a task.
func TaskKey(taskID string) string {
	return "video_task:" + taskID
}

// LastTaskKey returns the store key holding a session's most recent task ID.
func LastTaskKey(session string) string {
	return "video_last_task:" + session
}

// MemoryStore is a Store kept entirely in process memory, suitable for
// tests and one-shot tools.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get returns the value stored under key, or (nil, nil) if absent.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

// Put stores value under key.
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
