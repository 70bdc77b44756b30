package vidtask

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Polling defaults.
const (
	DefaultPollInterval    = 6 * time.Second
	DefaultMaxPollAttempts = 20

	// Consecutive query failures tolerated before polling gives up.
	transientErrorLimit = 3
)

// PollConfig bounds one polling run. Zero values fall back to the defaults
// above.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Poller drives repeated status queries until a task reaches a terminal
// state or a budget runs out.
type Poller struct {
	client *Client
	config *PollConfig
	logger *zap.Logger
}

// NewPoller creates a poller on top of client. A nil config uses the
// default cadence; a nil logger disables logging.
func NewPoller(client *Client, config *PollConfig, logger *zap.Logger) *Poller {
	if config == nil {
		config = &PollConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{client: client, config: config, logger: logger}
}

// WaitForResult polls the task described by snapshot until it is terminal,
// the attempt budget runs out, or three consecutive query errors occur. A
// snapshot that is already terminal or carries no task ID is returned
// unchanged. When polling gives up on repeated errors the returned snapshot
// keeps the last known fields, a status of "error" if none was known, and
// the final error text. The error return is non-nil only when ctx ends the
// wait.
func (p *Poller) WaitForResult(ctx context.Context, provider *ProviderConfig, snapshot *TaskSnapshot) (*TaskSnapshot, error) {
	if provider == nil {
		return nil, &ConfigError{Field: "provider", Message: "must not be nil"}
	}
	if snapshot == nil || provider.IsTerminal(snapshot) || snapshot.TaskID == "" {
		return snapshot, nil
	}

	interval, attempts := p.budgets()
	taskID := snapshot.TaskID

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	latest := snapshot
	consecutiveErrors := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		p.logger.Debug("polling task",
			zap.String("provider", provider.ProviderID),
			zap.String("task_id", taskID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.String("status", latest.Status),
		)

		next, err := p.client.Query(ctx, provider, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			consecutiveErrors++
			p.logger.Debug("poll query failed",
				zap.String("task_id", taskID),
				zap.Int("consecutive_errors", consecutiveErrors),
				zap.Error(err),
			)
			if consecutiveErrors >= transientErrorLimit {
				p.observePoll(provider.ProviderID, "aborted", attempt)
				status := latest.Status
				if status == "" {
					status = StatusError
				}
				return &TaskSnapshot{
					ProviderID:   latest.ProviderID,
					TaskID:       latest.TaskID,
					Status:       status,
					VideoURL:     latest.VideoURL,
					ErrorMessage: err.Error(),
					Raw:          latest.Raw,
				}, nil
			}
			continue
		}

		consecutiveErrors = 0
		latest = next
		if provider.IsTerminal(latest) {
			p.observePoll(provider.ProviderID, "terminal", attempt)
			p.logger.Debug("task reached terminal state",
				zap.String("task_id", taskID),
				zap.String("status", latest.Status),
				zap.Bool("has_video", latest.VideoURL != ""),
			)
			return latest, nil
		}
	}

	p.observePoll(provider.ProviderID, "exhausted", attempts)
	p.logger.Debug("poll budget exhausted",
		zap.String("task_id", taskID),
		zap.Int("attempts", attempts),
		zap.String("status", latest.Status),
	)
	return latest, nil
}

func (p *Poller) budgets() (time.Duration, int) {
	interval := p.config.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	attempts := p.config.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxPollAttempts
	}
	return interval, attempts
}

func (p *Poller) observePoll(provider, outcome string, attempts int) {
	if p.client != nil {
		p.client.metrics.RecordPoll(provider, outcome, attempts)
	}
}
