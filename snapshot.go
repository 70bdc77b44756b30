package vidtask

import "time"

// Status values the client synthesizes itself. Providers report free-form
// status strings; these two appear only when a response carries no status
// value or when polling gives up after repeated query errors.
const (
	StatusUnknown = "unknown"
	StatusError   = "error"
)

// TaskSnapshot is the uniform result of a submit or query call against any
// provider. Snapshots are never mutated; a newer snapshot supersedes an
// older one.
type TaskSnapshot struct {
	ProviderID   string         `json:"provider_id"`
	TaskID       string         `json:"task_id"`
	Status       string         `json:"status"`
	VideoURL     string         `json:"video_url,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Raw          map[string]any `json:"raw,omitempty"`
}

// TaskRecord is the persisted form of a snapshot, paired with the request
// that produced it.
type TaskRecord struct {
	TaskSnapshot
	Prompt    string `json:"prompt,omitempty"`
	Model     string `json:"model,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// NewTaskRecord builds a record for the given snapshot, stamped with the
// current time.
func NewTaskRecord(snapshot *TaskSnapshot, prompt, model string) *TaskRecord {
	return &TaskRecord{
		TaskSnapshot: *snapshot,
		Prompt:       prompt,
		Model:        model,
		UpdatedAt:    time.Now().Unix(),
	}
}

// Snapshot returns the snapshot portion of the record.
func (r *TaskRecord) Snapshot() *TaskSnapshot {
	snapshot := r.TaskSnapshot
	return &snapshot
}
