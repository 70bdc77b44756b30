package vidtask

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func cacheRecord(taskID, status string) *TaskRecord {
	return &TaskRecord{TaskSnapshot: TaskSnapshot{TaskID: taskID, Status: status}}
}

func TestTaskCachePutGet(t *testing.T) {
	cache := NewTaskCache(10)

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	cache.Put("t1", cacheRecord("t1", "queued"))
	got, ok := cache.Get("t1")
	require.True(t, ok)
	assert.Equal(t, "queued", got.Status)

	cache.Put("t1", cacheRecord("t1", "succeeded"))
	got, ok = cache.Get("t1")
	require.True(t, ok)
	assert.Equal(t, "succeeded", got.Status)
	assert.Equal(t, 1, cache.Len())
}

func TestTaskCacheEvictsOldestInsertion(t *testing.T) {
	cache := NewTaskCache(3)

	cache.Put("a", cacheRecord("a", "queued"))
	cache.Put("b", cacheRecord("b", "queued"))
	cache.Put("c", cacheRecord("c", "queued"))
	cache.Put("d", cacheRecord("d", "queued"))

	_, ok := cache.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")
	for _, key := range []string{"b", "c", "d"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, "entry %q should survive", key)
	}
	assert.Equal(t, 3, cache.Len())
}

func TestTaskCacheRePutKeepsEvictionSlot(t *testing.T) {
	cache := NewTaskCache(2)

	cache.Put("a", cacheRecord("a", "queued"))
	cache.Put("b", cacheRecord("b", "queued"))
	// Updating "a" must not refresh its eviction slot.
	cache.Put("a", cacheRecord("a", "processing"))
	cache.Put("c", cacheRecord("c", "queued"))

	_, ok := cache.Get("a")
	assert.False(t, ok, "a was inserted first and should be evicted first")
	_, ok = cache.Get("b")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestTaskCacheDefaultCapacity(t *testing.T) {
	cache := NewTaskCache(0)

	for i := 0; i < DefaultTaskCacheSize+50; i++ {
		key := fmt.Sprintf("t%d", i)
		cache.Put(key, cacheRecord(key, "queued"))
	}
	assert.Equal(t, DefaultTaskCacheSize, cache.Len())

	// The overflow evicted exactly the first 50 insertions.
	_, ok := cache.Get("t49")
	assert.False(t, ok)
	_, ok = cache.Get("t50")
	assert.True(t, ok)
}

func TestTaskCacheConcurrentAccess(t *testing.T) {
	cache := NewTaskCache(64)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("t%d", i%32)
				cache.Put(key, cacheRecord(key, "queued"))
				cache.Get(key)
			}
		}(worker)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 64)
}

func TestProperty_TaskCache_MatchesOrderedModel(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e", "f"}

	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 4).Draw(rt, "capacity")
		cache := NewTaskCache(capacity)

		model := map[string]string{}
		var order []string

		steps := rapid.IntRange(0, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			key := rapid.SampledFrom(keys).Draw(rt, "key")
			status := fmt.Sprintf("s%d", i)

			cache.Put(key, cacheRecord(key, status))
			if _, exists := model[key]; !exists {
				order = append(order, key)
				if len(order) > capacity {
					delete(model, order[0])
					order = order[1:]
				}
			}
			model[key] = status
		}

		require.Equal(rt, len(model), cache.Len())
		for _, key := range keys {
			got, ok := cache.Get(key)
			want, exists := model[key]
			require.Equal(rt, exists, ok, "key %q presence", key)
			if exists {
				require.Equal(rt, want, got.Status, "key %q value", key)
			}
		}
	})
}
