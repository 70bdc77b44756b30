package vidtask

import "strings"

// Built-in terminal status vocabularies, matched case-insensitively.
var (
	defaultDoneValues   = []string{"succeeded", "completed", "success", "done", "finished"}
	defaultFailedValues = []string{"failed", "error", "cancelled", "canceled", "rejected"}
)

// ProviderConfig describes the API shape of one video generation provider:
// which paths and methods to call, which request fields to fill, which
// response fields to read and which status values mean the task is done.
// No per-provider code is needed; the whole protocol is data.
type ProviderConfig struct {
	ProviderID string `json:"provider_id"`
	BaseURL    string `json:"base_url"`
	APIKey     string `json:"api_key,omitempty"`
	Model      string `json:"model,omitempty"`

	SubmitPath         string `json:"submit_path"`
	StatusPathTemplate string `json:"status_path_template"`
	SubmitMethod       string `json:"submit_method"`
	StatusMethod       string `json:"status_method"`

	PromptField    string `json:"prompt_field"`
	ModelField     string `json:"model_field"`
	TaskIDField    string `json:"task_id_field"`
	StatusField    string `json:"status_field"`
	OutputURLField string `json:"output_url_field"`
	ErrorField     string `json:"error_field"`

	DoneValues   []string `json:"done_values"`
	FailedValues []string `json:"failed_values"`

	ExtraHeaders map[string]string `json:"extra_headers,omitempty"`
	ExtraBody    map[string]any    `json:"extra_body,omitempty"`

	// StatusRequestIDField names the request body key carrying the task ID
	// on non-GET status queries. Empty means derive it from TaskIDField.
	StatusRequestIDField string `json:"status_request_id_field,omitempty"`

	// Request body keys for the optional duration and aspect ratio knobs.
	DurationField    string `json:"duration_field"`
	AspectRatioField string `json:"aspect_ratio_field"`
}

// NewProviderConfig returns a provider configuration with the default API
// shape: OpenAI-style paths, "id"/"status"/"output[0].url" response fields
// and the common done/failed vocabularies.
func NewProviderConfig(providerID, baseURL string) *ProviderConfig {
	return &ProviderConfig{
		ProviderID:         providerID,
		BaseURL:            baseURL,
		SubmitPath:         "/v1/videos",
		StatusPathTemplate: "/v1/videos/{task_id}",
		SubmitMethod:       "POST",
		StatusMethod:       "GET",
		PromptField:        "prompt",
		ModelField:         "model",
		TaskIDField:        "id",
		StatusField:        "status",
		OutputURLField:     "output[0].url",
		ErrorField:         "error.message",
		DoneValues:         append([]string(nil), defaultDoneValues...),
		FailedValues:       append([]string(nil), defaultFailedValues...),
		ExtraHeaders:       map[string]string{},
		ExtraBody:          map[string]any{},
		DurationField:      "duration",
		AspectRatioField:   "aspect_ratio",
	}
}

// IsTerminal reports whether the snapshot has reached a final state: a video
// URL is present, or the status is in the done or failed vocabulary.
func (c *ProviderConfig) IsTerminal(snapshot *TaskSnapshot) bool {
	if snapshot.VideoURL != "" {
		return true
	}
	status := normalizeStatus(snapshot.Status)
	return containsStatus(c.DoneValues, status) || containsStatus(c.FailedValues, status)
}

// IsFailed reports whether the snapshot describes a failed task. An error
// message alone never signals failure while the status is still in progress.
func (c *ProviderConfig) IsFailed(snapshot *TaskSnapshot) bool {
	status := normalizeStatus(snapshot.Status)
	if containsStatus(c.FailedValues, status) {
		return true
	}
	terminal := containsStatus(c.DoneValues, status) || containsStatus(c.FailedValues, status)
	return terminal && snapshot.ErrorMessage != "" && snapshot.VideoURL == ""
}

// StatusRequestIDKey returns the request body key carrying the task ID on
// non-GET status queries: StatusRequestIDField when set, otherwise the last
// dotted segment of TaskIDField with any bracket suffix stripped, falling
// back to "id".
func (c *ProviderConfig) StatusRequestIDKey() string {
	if c.StatusRequestIDField != "" {
		return c.StatusRequestIDField
	}
	leaf := c.TaskIDField
	if i := strings.LastIndex(leaf, "."); i >= 0 {
		leaf = leaf[i+1:]
	}
	if i := strings.Index(leaf, "["); i >= 0 {
		leaf = leaf[:i]
	}
	if leaf == "" {
		return "id"
	}
	return leaf
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func containsStatus(values []string, status string) bool {
	for _, value := range values {
		if strings.ToLower(value) == status {
			return true
		}
	}
	return false
}
