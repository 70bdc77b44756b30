package vidtask

import (
	"container/list"
	"sync"
)

// DefaultTaskCacheSize bounds the in-memory task cache.
const DefaultTaskCacheSize = 200

// TaskCache is a bounded in-memory map of task records used to avoid
// redundant store reads. When full it evicts the entry that was inserted
// earliest; re-putting an existing key updates the value but keeps the
// original eviction slot. Lookups never reorder entries. Safe for
// concurrent use.
type TaskCache struct {
	mu       sync.RWMutex
	capacity int
	order    *list.List // front = oldest insertion
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key    string
	record *TaskRecord
}

// NewTaskCache returns a cache holding at most capacity records. A
// non-positive capacity falls back to DefaultTaskCacheSize.
func NewTaskCache(capacity int) *TaskCache {
	if capacity <= 0 {
		capacity = DefaultTaskCacheSize
	}
	return &TaskCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Put stores a record under taskID, evicting the oldest entry if the cache
// is over capacity.
func (c *TaskCache) Put(taskID string, record *TaskRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[taskID]; ok {
		elem.Value.(*cacheEntry).record = record
		return
	}

	c.entries[taskID] = c.order.PushBack(&cacheEntry{key: taskID, record: record})
	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Get returns the cached record for taskID.
func (c *TaskCache) Get(taskID string) (*TaskRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elem, ok := c.entries[taskID]
	if !ok {
		return nil, false
	}
	return elem.Value.(*cacheEntry).record, true
}

// Len returns the number of cached records.
func (c *TaskCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}
