package vidtask

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testService(t *testing.T, baseURL string, store Store) *Service {
	t.Helper()
	registry := LoadProviders([]ProviderRecord{
		{ProviderID: "sora", BaseURL: baseURL, APIKey: "sk-test", Model: "sora-2"},
		{ProviderID: "kling", BaseURL: baseURL},
	}, zap.NewNop())

	service := NewService(registry, store, &ServiceConfig{
		Poll: &PollConfig{Interval: time.Millisecond, MaxAttempts: 20},
	}, zap.NewNop())
	t.Cleanup(func() { service.Close() })
	return service
}

func TestServiceListProviders(t *testing.T) {
	service := testService(t, "https://api.example.com", NewMemoryStore())

	providers := service.ListProviders()
	require.Len(t, providers, 2)
	assert.Equal(t, "sora", providers[0].ProviderID)
	assert.Equal(t, "kling", providers[1].ProviderID)
}

func TestServiceGenerateWaitsForCompletion(t *testing.T) {
	var queries int32
	var submitBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&submitBody))
			w.Write([]byte(`{"id": "t1", "status": "queued"}`))
			return
		}
		if atomic.AddInt32(&queries, 1) < 2 {
			w.Write([]byte(`{"id": "t1", "status": "processing"}`))
			return
		}
		w.Write([]byte(`{"id": "t1", "status": "succeeded", "output": [{"url": "https://x/v.mp4"}]}`))
	}))
	defer server.Close()

	store := NewMemoryStore()
	service := testService(t, server.URL, store)

	final, err := service.Generate(context.Background(), "sora", "a cat surfing", &GenerateOptions{
		Duration:    5,
		AspectRatio: " 16:9 ",
		Session:     "session-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "a cat surfing", submitBody["prompt"])
	assert.Equal(t, "sora-2", submitBody["model"])
	assert.Equal(t, float64(5), submitBody["duration"])
	assert.Equal(t, "16:9", submitBody["aspect_ratio"])

	assert.Equal(t, "https://x/v.mp4", final.VideoURL)
	assert.False(t, service.Failed(mustProvider(t, service, "sora"), final))

	// final record persisted, session pointer updated
	value, err := store.Get(context.Background(), TaskKey("t1"))
	require.NoError(t, err)
	var record TaskRecord
	require.NoError(t, json.Unmarshal(value, &record))
	assert.Equal(t, "https://x/v.mp4", record.VideoURL)
	assert.Equal(t, "a cat surfing", record.Prompt)
	assert.Equal(t, "sora-2", record.Model)
	assert.NotZero(t, record.UpdatedAt)

	assert.Equal(t, "t1", service.LastTaskID(context.Background(), "session-1"))
}

func TestServiceGenerateNoWait(t *testing.T) {
	var queries int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"id": "t1", "status": "queued"}`))
			return
		}
		atomic.AddInt32(&queries, 1)
		w.Write([]byte(`{"id": "t1", "status": "processing"}`))
	}))
	defer server.Close()

	service := testService(t, server.URL, NewMemoryStore())

	snapshot, err := service.Generate(context.Background(), "sora", "a dog skating", &GenerateOptions{NoWait: true})
	require.NoError(t, err)

	assert.Equal(t, "queued", snapshot.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&queries))
}

func TestServiceGenerateUnknownProvider(t *testing.T) {
	service := testService(t, "https://api.example.com", NewMemoryStore())

	_, err := service.Generate(context.Background(), "nonexistent", "prompt", nil)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestServiceGenerateDefaultsToFirstProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "t1", "status": "queued"}`))
	}))
	defer server.Close()

	service := testService(t, server.URL, NewMemoryStore())

	snapshot, err := service.Generate(context.Background(), "", "prompt", &GenerateOptions{NoWait: true})
	require.NoError(t, err)
	assert.Equal(t, "sora", snapshot.ProviderID)
}

func TestServiceQueryStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"id": "t1", "status": "queued"}`))
			return
		}
		w.Write([]byte(`{"id": "t1", "status": "succeeded", "output": [{"url": "https://x/v.mp4"}]}`))
	}))
	defer server.Close()

	service := testService(t, server.URL, NewMemoryStore())

	_, err := service.Generate(context.Background(), "sora", "prompt", &GenerateOptions{NoWait: true})
	require.NoError(t, err)

	latest, err := service.QueryStatus(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", latest.Status)
	assert.Equal(t, "https://x/v.mp4", latest.VideoURL)
}

func TestServiceQueryStatusUnknownTask(t *testing.T) {
	service := testService(t, "https://api.example.com", NewMemoryStore())

	_, err := service.QueryStatus(context.Background(), "never-seen")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestServiceQueryStatusRecoversFromStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "t9", "status": "processing"}`))
	}))
	defer server.Close()

	// record exists only in the store, as after a restart
	store := NewMemoryStore()
	record := NewTaskRecord(&TaskSnapshot{ProviderID: "sora", TaskID: "t9", Status: "queued"}, "old prompt", "sora-2")
	encoded, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), TaskKey("t9"), encoded))

	service := testService(t, server.URL, store)

	latest, err := service.QueryStatus(context.Background(), "t9")
	require.NoError(t, err)
	assert.Equal(t, "processing", latest.Status)
	assert.Equal(t, "t9", latest.TaskID)
}

func TestServiceQueryStatusUnconfiguredProvider(t *testing.T) {
	store := NewMemoryStore()
	record := NewTaskRecord(&TaskSnapshot{ProviderID: "gone", TaskID: "t2", Status: "queued"}, "", "")
	encoded, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), TaskKey("t2"), encoded))

	service := testService(t, "https://api.example.com", store)

	_, err = service.QueryStatus(context.Background(), "t2")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestServiceStoreFailuresAreSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "t1", "status": "queued"}`))
	}))
	defer server.Close()

	service := testService(t, server.URL, failingStore{})

	snapshot, err := service.Generate(context.Background(), "sora", "prompt", &GenerateOptions{NoWait: true, Session: "s"})
	require.NoError(t, err)
	assert.Equal(t, "t1", snapshot.TaskID)

	// cache stays authoritative even though every store call failed
	latest, err := service.QueryStatus(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", latest.TaskID)

	assert.Empty(t, service.LastTaskID(context.Background(), "s"))
}

func TestServiceNilStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "t1", "status": "queued"}`))
	}))
	defer server.Close()

	service := testService(t, server.URL, nil)

	snapshot, err := service.Generate(context.Background(), "sora", "prompt", &GenerateOptions{NoWait: true})
	require.NoError(t, err)
	assert.Equal(t, "t1", snapshot.TaskID)
	assert.Empty(t, service.LastTaskID(context.Background(), "s"))
}

func TestServiceCloseIsIdempotent(t *testing.T) {
	service := testService(t, "https://api.example.com", NewMemoryStore())
	require.NoError(t, service.Close())
	require.NoError(t, service.Close())

	_, err := service.Generate(context.Background(), "sora", "prompt", &GenerateOptions{NoWait: true})
	assert.ErrorIs(t, err, ErrClientClosed)
}

func mustProvider(t *testing.T, service *Service, providerID string) *ProviderConfig {
	t.Helper()
	provider, ok := service.Provider(providerID)
	require.True(t, ok)
	return provider
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, assert.AnError
}

func (failingStore) Put(ctx context.Context, key string, value []byte) error {
	return assert.AnError
}
