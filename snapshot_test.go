package vidtask

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRecordRoundTrip(t *testing.T) {
	snapshot := &TaskSnapshot{
		ProviderID:   "sora",
		TaskID:       "task-42",
		Status:       "processing",
		VideoURL:     "",
		ErrorMessage: "",
		Raw: map[string]any{
			"id":     "task-42",
			"status": "processing",
			"output": []any{},
		},
	}

	record := NewTaskRecord(snapshot, "a cat surfing", "sora-2")
	require.NotZero(t, record.UpdatedAt)

	encoded, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded TaskRecord
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.Equal(t, record.ProviderID, decoded.ProviderID)
	assert.Equal(t, record.TaskID, decoded.TaskID)
	assert.Equal(t, record.Status, decoded.Status)
	assert.Equal(t, record.VideoURL, decoded.VideoURL)
	assert.Equal(t, record.ErrorMessage, decoded.ErrorMessage)
	assert.Equal(t, record.Prompt, decoded.Prompt)
	assert.Equal(t, record.Model, decoded.Model)
	assert.Equal(t, record.UpdatedAt, decoded.UpdatedAt)
}

func TestTaskRecordSnapshotCopy(t *testing.T) {
	record := NewTaskRecord(&TaskSnapshot{
		ProviderID: "sora",
		TaskID:     "task-42",
		Status:     "succeeded",
		VideoURL:   "https://cdn.example.com/v.mp4",
	}, "prompt", "")

	got := record.Snapshot()
	assert.Equal(t, "task-42", got.TaskID)
	assert.Equal(t, "succeeded", got.Status)

	// Mutating the returned snapshot must not touch the record.
	got.Status = "failed"
	assert.Equal(t, "succeeded", record.Status)
}

func TestTaskRecordJSONFieldNames(t *testing.T) {
	record := NewTaskRecord(&TaskSnapshot{
		ProviderID: "sora",
		TaskID:     "task-42",
		Status:     "queued",
	}, "a cat surfing", "sora-2")

	encoded, err := json.Marshal(record)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(encoded, &fields))

	for _, key := range []string{"provider_id", "task_id", "status", "prompt", "model", "updated_at"} {
		assert.Contains(t, fields, key)
	}
}
