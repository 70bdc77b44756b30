package vidtask

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const userAgent = "vidtask/1.0"

// Request timeout bounds. Timeouts below the floor are raised to it.
const (
	DefaultRequestTimeout = 45 * time.Second
	MinRequestTimeout     = 5 * time.Second

	connectTimeout = 10 * time.Second
	idleConnExpiry = 90 * time.Second
)

// Truncation limits for debug logging of request and response bodies.
const (
	debugRequestBodyLimit  = 300
	debugResponseBodyLimit = 500
)

// ClientConfig holds transport configuration shared by all providers.
type ClientConfig struct {
	// Timeout bounds one whole request, connect and read included.
	Timeout time.Duration
	// Debug enables request/response logging with secrets masked.
	Debug bool
	// Metrics receives per-request observations when set.
	Metrics *Collector
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{Timeout: DefaultRequestTimeout}
}

// SubmitRequest describes one generation submission.
type SubmitRequest struct {
	Prompt string
	// Model overrides the provider's default model; empty keeps the default.
	Model string
	// ExtraOptions merge into the request body last, overriding the prompt
	// and model fields on key collision.
	ExtraOptions map[string]any
}

// Client executes submit and status calls against any configured provider.
// One client shares its connection pool across providers and concurrent
// jobs; it issues exactly one HTTP request per call and never retries.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *Collector

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a client. A nil config uses DefaultClientConfig; a nil
// logger disables logging.
func NewClient(config *ClientConfig, logger *zap.Logger) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if timeout < MinRequestTimeout {
		timeout = MinRequestTimeout
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       idleConnExpiry,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:  logger,
		metrics: config.Metrics,
	}
}

// Submit creates a new generation task and returns its first snapshot. The
// request body starts from the provider's extra_body, adds the prompt and
// model fields, then merges the request's extra options on top.
func (c *Client) Submit(ctx context.Context, provider *ProviderConfig, req *SubmitRequest) (*TaskSnapshot, error) {
	if provider == nil {
		return nil, &ConfigError{Field: "provider", Message: "must not be nil"}
	}
	if req == nil {
		req = &SubmitRequest{}
	}

	payload := make(map[string]any, len(provider.ExtraBody)+2+len(req.ExtraOptions))
	for key, value := range provider.ExtraBody {
		payload[key] = value
	}
	payload[provider.PromptField] = req.Prompt

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = strings.TrimSpace(provider.Model)
	}
	if model != "" {
		payload[provider.ModelField] = model
	}
	for key, value := range req.ExtraOptions {
		payload[key] = value
	}

	requestURL := joinURL(provider.BaseURL, provider.SubmitPath)
	body, err := c.do(ctx, provider, "submit", provider.SubmitMethod, requestURL, payload)
	if err != nil {
		return nil, err
	}

	snapshot, err := c.snapshotFromPayload(provider, body, "")
	if err != nil {
		return nil, err
	}
	c.logger.Debug("task submitted",
		zap.String("provider", provider.ProviderID),
		zap.String("task_id", snapshot.TaskID),
		zap.String("status", snapshot.Status),
	)
	return snapshot, nil
}

// Query fetches the current snapshot of a task. For non-GET status methods
// the task ID also travels in the request body under StatusRequestIDKey.
func (c *Client) Query(ctx context.Context, provider *ProviderConfig, taskID string) (*TaskSnapshot, error) {
	if provider == nil {
		return nil, &ConfigError{Field: "provider", Message: "must not be nil"}
	}
	if taskID == "" {
		return nil, &ConfigError{ProviderID: provider.ProviderID, Field: "task_id", Message: "must not be empty"}
	}

	statusPath := strings.ReplaceAll(provider.StatusPathTemplate, "{task_id}", url.PathEscape(taskID))
	requestURL := joinURL(provider.BaseURL, statusPath)

	var payload map[string]any
	if !strings.EqualFold(provider.StatusMethod, http.MethodGet) {
		payload = map[string]any{provider.StatusRequestIDKey(): taskID}
	}

	body, err := c.do(ctx, provider, "query", provider.StatusMethod, requestURL, payload)
	if err != nil {
		return nil, err
	}
	return c.snapshotFromPayload(provider, body, taskID)
}

// Close releases the shared connection pool. Further calls return
// ErrClientClosed. Close is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// do issues one HTTP request and decodes the response into a JSON object
// per the protocol rules: a non-JSON body becomes {"raw_text": body}, a
// non-object JSON value becomes {"data": value}, an empty body on a
// non-error status is a protocol error, and status >= 400 is always a
// protocol error carrying the extracted detail.
func (c *Client) do(ctx context.Context, provider *ProviderConfig, operation, method, requestURL string, payload map[string]any) (map[string]any, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	method = strings.ToUpper(strings.TrimSpace(method))

	var reqBody io.Reader
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request body")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	headers := buildHeaders(provider, method)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("User-Agent", userAgent)

	var requestID string
	if c.config.Debug {
		requestID = uuid.NewString()
		c.logger.Debug("http request",
			zap.String("request_id", requestID),
			zap.String("provider", provider.ProviderID),
			zap.String("method", method),
			zap.String("url", requestURL),
			zap.Any("headers", maskedHeaders(headers)),
			zap.String("body", truncate(string(encoded), debugRequestBodyLimit)),
		)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(provider.ProviderID, operation, 0, time.Since(start))
		return nil, newTransportError(provider.ProviderID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(provider.ProviderID, operation, resp.StatusCode, time.Since(start))
		return nil, newTransportError(provider.ProviderID, err)
	}
	c.observe(provider.ProviderID, operation, resp.StatusCode, time.Since(start))

	text := strings.TrimSpace(string(raw))
	var decoded any
	if text != "" {
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil || dec.More() {
			decoded = map[string]any{"raw_text": text}
		}
	} else if resp.StatusCode < http.StatusBadRequest {
		return nil, newProtocolError(provider.ProviderID, resp.StatusCode, "empty response body")
	}

	if c.config.Debug {
		c.logger.Debug("http response",
			zap.String("request_id", requestID),
			zap.String("provider", provider.ProviderID),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(text, debugResponseBodyLimit)),
		)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		detail := textAt(decoded, provider.ErrorField)
		if detail == "" {
			detail = text
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return nil, newProtocolError(provider.ProviderID, resp.StatusCode, detail)
	}

	if obj, ok := decoded.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{"data": decoded}, nil
}

// snapshotFromPayload maps a decoded response body onto a snapshot using
// the provider's field paths. A payload yielding neither a task ID nor a
// video URL is an extraction error.
func (c *Client) snapshotFromPayload(provider *ProviderConfig, payload map[string]any, fallbackTaskID string) (*TaskSnapshot, error) {
	taskID := textAt(payload, provider.TaskIDField)
	if taskID == "" {
		taskID = fallbackTaskID
	}

	status := StatusUnknown
	if value, ok := Extract(payload, provider.StatusField); ok {
		status = asText(value)
	}

	videoURL := textAt(payload, provider.OutputURLField)
	errorMessage := textAt(payload, provider.ErrorField)

	if taskID == "" && videoURL == "" {
		return nil, newExtractionError(provider.ProviderID,
			"response contains neither a task ID nor a video URL, check task_id_field/output_url_field")
	}

	return &TaskSnapshot{
		ProviderID:   provider.ProviderID,
		TaskID:       taskID,
		Status:       status,
		VideoURL:     videoURL,
		ErrorMessage: errorMessage,
		Raw:          payload,
	}, nil
}

func (c *Client) observe(provider, operation string, statusCode int, elapsed time.Duration) {
	c.metrics.RecordRequest(provider, operation, statusCode, elapsed)
}

// buildHeaders assembles the outgoing header set: Content-Type on body
// requests, bearer auth when an API key is configured, then the provider's
// extra headers, which may override both.
func buildHeaders(provider *ProviderConfig, method string) map[string]string {
	headers := make(map[string]string, len(provider.ExtraHeaders)+2)
	if method != http.MethodGet {
		headers["Content-Type"] = "application/json"
	}
	if provider.APIKey != "" {
		headers["Authorization"] = "Bearer " + provider.APIKey
	}
	for key, value := range provider.ExtraHeaders {
		headers[key] = value
	}
	return headers
}

// maskedHeaders copies headers with the Authorization value masked.
func maskedHeaders(headers map[string]string) map[string]string {
	masked := make(map[string]string, len(headers))
	for key, value := range headers {
		if strings.EqualFold(key, "Authorization") {
			masked[key] = maskSecret(value)
		} else {
			masked[key] = value
		}
	}
	return masked
}

// maskSecret hides the middle of a credential, keeping at most the first
// and last four characters.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func joinURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
