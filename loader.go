package vidtask

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ProviderRecord is one raw provider entry as written in configuration,
// before validation. Empty fields fall back to the defaults documented on
// NewProviderConfig. DoneValues and FailedValues are comma-separated lists;
// ExtraHeaders and ExtraBody accept either a structured map or a JSON
// object encoded as a string.
type ProviderRecord struct {
	ProviderID string `yaml:"provider_id" json:"provider_id" mapstructure:"provider_id"`
	BaseURL    string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	APIKey     string `yaml:"api_key" json:"api_key" mapstructure:"api_key"`
	Model      string `yaml:"model" json:"model" mapstructure:"model"`

	SubmitPath         string `yaml:"submit_path" json:"submit_path" mapstructure:"submit_path"`
	StatusPathTemplate string `yaml:"status_path_template" json:"status_path_template" mapstructure:"status_path_template"`
	SubmitMethod       string `yaml:"submit_method" json:"submit_method" mapstructure:"submit_method"`
	StatusMethod       string `yaml:"status_method" json:"status_method" mapstructure:"status_method"`

	PromptField    string `yaml:"prompt_field" json:"prompt_field" mapstructure:"prompt_field"`
	ModelField     string `yaml:"model_field" json:"model_field" mapstructure:"model_field"`
	TaskIDField    string `yaml:"task_id_field" json:"task_id_field" mapstructure:"task_id_field"`
	StatusField    string `yaml:"status_field" json:"status_field" mapstructure:"status_field"`
	OutputURLField string `yaml:"output_url_field" json:"output_url_field" mapstructure:"output_url_field"`
	ErrorField     string `yaml:"error_field" json:"error_field" mapstructure:"error_field"`

	DoneValues   string `yaml:"done_values" json:"done_values" mapstructure:"done_values"`
	FailedValues string `yaml:"failed_values" json:"failed_values" mapstructure:"failed_values"`

	ExtraHeaders any `yaml:"extra_headers" json:"extra_headers" mapstructure:"extra_headers"`
	ExtraBody    any `yaml:"extra_body" json:"extra_body" mapstructure:"extra_body"`

	StatusRequestIDField string `yaml:"status_request_id_field" json:"status_request_id_field" mapstructure:"status_request_id_field"`
	DurationField        string `yaml:"duration_field" json:"duration_field" mapstructure:"duration_field"`
	AspectRatioField     string `yaml:"aspect_ratio_field" json:"aspect_ratio_field" mapstructure:"aspect_ratio_field"`
}

var validHTTPMethods = map[string]struct{}{
	"GET":    {},
	"POST":   {},
	"PUT":    {},
	"PATCH":  {},
	"DELETE": {},
}

// Registry holds validated provider configurations in load order. It is
// read-only after LoadProviders returns.
type Registry struct {
	ids       []string
	providers map[string]*ProviderConfig
}

// LoadProviders validates raw records into a Registry. Invalid records are
// skipped with a warning and never abort the load; a later record with a
// duplicate provider_id replaces the earlier one but keeps its position.
func LoadProviders(records []ProviderRecord, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := &Registry{providers: make(map[string]*ProviderConfig)}
	for _, record := range records {
		cfg, err := record.toConfig(logger)
		if err != nil {
			logger.Warn("skipping invalid provider record", zap.Error(err))
			continue
		}
		if _, exists := registry.providers[cfg.ProviderID]; !exists {
			registry.ids = append(registry.ids, cfg.ProviderID)
		}
		registry.providers[cfg.ProviderID] = cfg
		logger.Debug("loaded provider",
			zap.String("provider_id", cfg.ProviderID),
			zap.String("base_url", cfg.BaseURL),
			zap.String("submit", cfg.SubmitMethod+" "+cfg.SubmitPath),
			zap.String("status", cfg.StatusMethod+" "+cfg.StatusPathTemplate),
		)
	}
	return registry
}

// ProvidersFile is the on-disk shape accepted by LoadProvidersFile.
type ProvidersFile struct {
	Providers []ProviderRecord `yaml:"providers" json:"providers" mapstructure:"providers"`
}

// LoadProvidersFile reads a YAML providers file and loads it. The file must
// parse; individual bad records are still only skipped.
func LoadProvidersFile(path string, logger *zap.Logger) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read providers file")
	}
	var file ProvidersFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrapf(err, "parse providers file %s", path)
	}
	return LoadProviders(file.Providers, logger), nil
}

// Get returns the provider with the given ID.
func (r *Registry) Get(providerID string) (*ProviderConfig, bool) {
	cfg, ok := r.providers[providerID]
	return cfg, ok
}

// IDs returns the provider IDs in load order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Len returns the number of loaded providers.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Resolve picks the provider for a request: the explicit ID when given, then
// fallbackID, then the first loaded provider. It returns ErrProviderNotFound
// when nothing matches.
func (r *Registry) Resolve(providerID, fallbackID string) (*ProviderConfig, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID != "" {
		cfg, ok := r.providers[providerID]
		if !ok {
			return nil, errors.Wrap(ErrProviderNotFound, providerID)
		}
		return cfg, nil
	}
	if fallbackID != "" {
		if cfg, ok := r.providers[fallbackID]; ok {
			return cfg, nil
		}
	}
	if len(r.ids) > 0 {
		return r.providers[r.ids[0]], nil
	}
	return nil, ErrProviderNotFound
}

// toConfig validates one record and fills defaults. Invalid extra_headers
// and extra_body degrade to empty maps with a warning rather than failing
// the record.
func (rec ProviderRecord) toConfig(logger *zap.Logger) (*ProviderConfig, error) {
	providerID := strings.TrimSpace(rec.ProviderID)
	baseURL := strings.TrimSpace(rec.BaseURL)
	if providerID == "" {
		return nil, &ConfigError{Field: "provider_id", Message: "must not be empty"}
	}
	if baseURL == "" {
		return nil, &ConfigError{ProviderID: providerID, Field: "base_url", Message: "must not be empty"}
	}

	cfg := NewProviderConfig(providerID, baseURL)
	cfg.APIKey = strings.TrimSpace(rec.APIKey)
	cfg.Model = strings.TrimSpace(rec.Model)

	setIfPresent(&cfg.SubmitPath, rec.SubmitPath)
	setIfPresent(&cfg.StatusPathTemplate, rec.StatusPathTemplate)
	setIfPresent(&cfg.PromptField, rec.PromptField)
	setIfPresent(&cfg.ModelField, rec.ModelField)
	setIfPresent(&cfg.TaskIDField, rec.TaskIDField)
	setIfPresent(&cfg.StatusField, rec.StatusField)
	setIfPresent(&cfg.OutputURLField, rec.OutputURLField)
	setIfPresent(&cfg.ErrorField, rec.ErrorField)
	setIfPresent(&cfg.DurationField, rec.DurationField)
	setIfPresent(&cfg.AspectRatioField, rec.AspectRatioField)
	cfg.StatusRequestIDField = strings.TrimSpace(rec.StatusRequestIDField)

	if method := strings.ToUpper(strings.TrimSpace(rec.SubmitMethod)); method != "" {
		if _, ok := validHTTPMethods[method]; !ok {
			return nil, &ConfigError{ProviderID: providerID, Field: "submit_method", Message: fmt.Sprintf("unsupported HTTP method %q", method)}
		}
		cfg.SubmitMethod = method
	}
	if method := strings.ToUpper(strings.TrimSpace(rec.StatusMethod)); method != "" {
		if _, ok := validHTTPMethods[method]; !ok {
			return nil, &ConfigError{ProviderID: providerID, Field: "status_method", Message: fmt.Sprintf("unsupported HTTP method %q", method)}
		}
		cfg.StatusMethod = method
	}

	if values := parseCSV(rec.DoneValues); len(values) > 0 {
		cfg.DoneValues = values
	}
	if values := parseCSV(rec.FailedValues); len(values) > 0 {
		cfg.FailedValues = values
	}

	headers := parseJSONObject(rec.ExtraHeaders, providerID+".extra_headers", logger)
	for key, value := range headers {
		cfg.ExtraHeaders[key] = asText(value)
	}
	cfg.ExtraBody = parseJSONObject(rec.ExtraBody, providerID+".extra_body", logger)

	return cfg, nil
}

func setIfPresent(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

// parseCSV splits a comma-separated list, dropping blanks.
func parseCSV(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// parseJSONObject accepts a structured map or a JSON-object string and
// returns a map either way. Anything else degrades to an empty map with a
// warning.
func parseJSONObject(value any, field string, logger *zap.Logger) map[string]any {
	switch v := value.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = item
		}
		return out
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return map[string]any{}
		}
		decoder := json.NewDecoder(bytes.NewReader([]byte(text)))
		decoder.UseNumber()
		var decoded any
		if err := decoder.Decode(&decoded); err != nil {
			logger.Warn("config value is not valid JSON, ignoring", zap.String("field", field), zap.Error(err))
			return map[string]any{}
		}
		obj, ok := decoded.(map[string]any)
		if !ok {
			logger.Warn("config value is not a JSON object, ignoring", zap.String("field", field))
			return map[string]any{}
		}
		return obj
	default:
		logger.Warn("config value must be a map or JSON object string, ignoring", zap.String("field", field))
		return map[string]any{}
	}
}
