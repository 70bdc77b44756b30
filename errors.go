package vidtask

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrClientClosed     = errors.New("client closed")
)

// ErrorKind classifies what part of a submit or query call failed.
type ErrorKind string

const (
	// ErrorKindTransport covers connection, DNS and timeout failures.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindProtocol covers HTTP status >= 400 and responses whose body
	// is missing where one is required.
	ErrorKindProtocol ErrorKind = "protocol"
	// ErrorKindExtraction covers responses that decoded fine but yielded
	// neither a task ID nor a video URL.
	ErrorKindExtraction ErrorKind = "extraction"
)

// APIError represents an error returned by a video generation API call.
// Transport, protocol and extraction failures share this one type so that
// callers handle a single taxonomy.
type APIError struct {
	Kind       ErrorKind `json:"kind"`
	Provider   string    `json:"provider,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Message    string    `json:"message"`
	Err        error     `json:"-"`
}

func (e *APIError) Error() string {
	switch {
	case e.Provider != "" && e.StatusCode > 0:
		return fmt.Sprintf("[%s] API error %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Provider != "":
		return fmt.Sprintf("[%s] %s error: %s", e.Provider, e.Kind, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newTransportError(provider string, err error) *APIError {
	return &APIError{
		Kind:     ErrorKindTransport,
		Provider: provider,
		Message:  err.Error(),
		Err:      err,
	}
}

func newProtocolError(provider string, statusCode int, message string) *APIError {
	return &APIError{
		Kind:       ErrorKindProtocol,
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
	}
}

func newExtractionError(provider string, message string) *APIError {
	return &APIError{
		Kind:     ErrorKindExtraction,
		Provider: provider,
		Message:  message,
	}
}

// ConfigError represents an invalid provider record
type ConfigError struct {
	ProviderID string `json:"provider_id"`
	Field      string `json:"field"`
	Message    string `json:"message"`
}

func (e *ConfigError) Error() string {
	if e.ProviderID != "" {
		return fmt.Sprintf("provider %s: invalid %s: %s", e.ProviderID, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsTransient determines if an error is worth retrying on a later attempt
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Kind == ErrorKindTransport {
			return true
		}
		// Server errors (5xx) and rate limiting (429)
		return apiErr.Kind == ErrorKindProtocol && (apiErr.StatusCode >= 500 || apiErr.StatusCode == 429)
	}
	return false
}
