package vidtask

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// GenerateOptions tune one generation request beyond the prompt.
type GenerateOptions struct {
	// Model overrides the provider's default model; empty keeps the default.
	Model string
	// Duration is the requested video length in seconds; values <= 0 are
	// not sent.
	Duration float64
	// AspectRatio such as "16:9"; blank is not sent.
	AspectRatio string
	// NoWait returns right after submission instead of polling to a
	// terminal state.
	NoWait bool
	// Session names the caller session whose "most recent task" pointer is
	// updated; empty skips the pointer.
	Session string
	// Extra merges into the request body last and wins every key collision.
	Extra map[string]any
}

// ServiceConfig assembles a Service.
type ServiceConfig struct {
	// DefaultProviderID is used when a request names no provider. Empty
	// falls back to the first loaded provider.
	DefaultProviderID string
	// CacheSize bounds the in-memory task cache; <= 0 uses
	// DefaultTaskCacheSize.
	CacheSize int
	Client    *ClientConfig
	Poll      *PollConfig
}

// Service is the caller-facing surface: submit-and-wait generation, status
// refresh and task bookkeeping. It owns the HTTP client and releases it on
// Close; the Store is injected and stays open.
type Service struct {
	registry          *Registry
	client            *Client
	poller            *Poller
	cache             *TaskCache
	store             Store
	logger            *zap.Logger
	metrics           *Collector
	defaultProviderID string

	closeOnce sync.Once
}

// NewService wires a service from loaded providers and a store. A nil config
// uses defaults, a nil store disables persistence (the cache still works for
// the process lifetime) and a nil logger disables logging.
func NewService(registry *Registry, store Store, config *ServiceConfig, logger *zap.Logger) *Service {
	if config == nil {
		config = &ServiceConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := NewClient(config.Client, logger)
	var metrics *Collector
	if config.Client != nil {
		metrics = config.Client.Metrics
	}

	return &Service{
		registry:          registry,
		client:            client,
		poller:            NewPoller(client, config.Poll, logger),
		cache:             NewTaskCache(config.CacheSize),
		store:             store,
		logger:            logger,
		metrics:           metrics,
		defaultProviderID: config.DefaultProviderID,
	}
}

// ListProviders returns the configured providers in load order.
func (s *Service) ListProviders() []*ProviderConfig {
	providers := make([]*ProviderConfig, 0, s.registry.Len())
	for _, id := range s.registry.IDs() {
		if cfg, ok := s.registry.Get(id); ok {
			providers = append(providers, cfg)
		}
	}
	return providers
}

// Generate submits a generation task and, unless opts.NoWait is set, polls it
// to a terminal state. The returned snapshot is persisted either way; a
// non-terminal snapshot means the task is still running and can be refreshed
// later with QueryStatus.
func (s *Service) Generate(ctx context.Context, providerID, prompt string, opts *GenerateOptions) (*TaskSnapshot, error) {
	if opts == nil {
		opts = &GenerateOptions{}
	}
	provider, err := s.registry.Resolve(providerID, s.defaultProviderID)
	if err != nil {
		return nil, err
	}

	extra := make(map[string]any, len(opts.Extra)+2)
	if opts.Duration > 0 {
		extra[provider.DurationField] = opts.Duration
	}
	if ratio := strings.TrimSpace(opts.AspectRatio); ratio != "" {
		extra[provider.AspectRatioField] = ratio
	}
	for key, value := range opts.Extra {
		extra[key] = value
	}

	model := opts.Model
	if strings.TrimSpace(model) == "" {
		model = provider.Model
	}

	snapshot, err := s.client.Submit(ctx, provider, &SubmitRequest{
		Prompt:       prompt,
		Model:        opts.Model,
		ExtraOptions: extra,
	})
	if err != nil {
		return nil, err
	}
	s.saveTask(ctx, snapshot, prompt, model, opts.Session)

	if opts.NoWait {
		return snapshot, nil
	}

	final, err := s.poller.WaitForResult(ctx, provider, snapshot)
	if err != nil {
		return nil, err
	}
	s.saveTask(ctx, final, prompt, model, opts.Session)
	s.recordOutcome(provider, final)
	return final, nil
}

// QueryStatus refreshes a known task from its provider. The task must have
// been seen before (cache or store) so the provider can be recovered from the
// record; unknown tasks return ErrTaskNotFound and a task whose provider has
// since been removed from configuration returns ErrProviderNotFound.
func (s *Service) QueryStatus(ctx context.Context, taskID string) (*TaskSnapshot, error) {
	record := s.loadTask(ctx, taskID)
	if record == nil {
		return nil, errors.Wrap(ErrTaskNotFound, taskID)
	}
	provider, ok := s.registry.Get(record.ProviderID)
	if !ok {
		return nil, errors.Wrap(ErrProviderNotFound, record.ProviderID)
	}

	latest, err := s.client.Query(ctx, provider, record.TaskID)
	if err != nil {
		return nil, err
	}
	s.saveTask(ctx, latest, record.Prompt, record.Model, "")
	return latest, nil
}

// LastTaskID returns the most recent task ID recorded for a session, or the
// empty string when the session has no history.
func (s *Service) LastTaskID(ctx context.Context, session string) string {
	if s.store == nil || session == "" {
		return ""
	}
	value, err := s.store.Get(ctx, LastTaskKey(session))
	if err != nil {
		s.logger.Warn("store read failed", zap.String("session", session), zap.Error(err))
		return ""
	}
	return string(value)
}

// Failed reports whether a finished snapshot should be presented as a failure.
func (s *Service) Failed(provider *ProviderConfig, snapshot *TaskSnapshot) bool {
	return provider.IsFailed(snapshot)
}

// Provider returns the configuration behind a provider ID.
func (s *Service) Provider(providerID string) (*ProviderConfig, bool) {
	return s.registry.Get(providerID)
}

// Close releases the HTTP transport. The injected store is not closed.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.client.Close()
	})
	return err
}

// saveTask caches and persists a snapshot. Store failures are logged and
// swallowed; the cache stays authoritative for this process.
func (s *Service) saveTask(ctx context.Context, snapshot *TaskSnapshot, prompt, model, session string) {
	if snapshot == nil || snapshot.TaskID == "" {
		return
	}
	record := NewTaskRecord(snapshot, prompt, model)
	s.cache.Put(snapshot.TaskID, record)

	if s.store == nil {
		return
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn("encode task record failed", zap.String("task_id", snapshot.TaskID), zap.Error(err))
		return
	}
	if err := s.store.Put(ctx, TaskKey(snapshot.TaskID), encoded); err != nil {
		s.logger.Warn("store write failed", zap.String("task_id", snapshot.TaskID), zap.Error(err))
	}
	if session != "" {
		if err := s.store.Put(ctx, LastTaskKey(session), []byte(snapshot.TaskID)); err != nil {
			s.logger.Warn("store write failed", zap.String("session", session), zap.Error(err))
		}
	}
}

// loadTask finds a task record, consulting the cache before the store and
// re-caching store hits.
func (s *Service) loadTask(ctx context.Context, taskID string) *TaskRecord {
	if taskID == "" {
		return nil
	}
	if record, ok := s.cache.Get(taskID); ok {
		return record
	}
	if s.store == nil {
		return nil
	}

	value, err := s.store.Get(ctx, TaskKey(taskID))
	if err != nil {
		s.logger.Warn("store read failed", zap.String("task_id", taskID), zap.Error(err))
		return nil
	}
	if len(value) == 0 {
		return nil
	}
	var record TaskRecord
	if err := json.Unmarshal(value, &record); err != nil {
		s.logger.Warn("decode task record failed", zap.String("task_id", taskID), zap.Error(err))
		return nil
	}
	s.cache.Put(taskID, &record)
	return &record
}

func (s *Service) recordOutcome(provider *ProviderConfig, snapshot *TaskSnapshot) {
	if s.metrics == nil || snapshot == nil {
		return
	}
	outcome := "running"
	switch {
	case provider.IsFailed(snapshot):
		outcome = "failed"
	case snapshot.VideoURL != "":
		outcome = "succeeded"
	case provider.IsTerminal(snapshot):
		outcome = "done"
	}
	s.metrics.RecordTask(provider.ProviderID, outcome)
}
