package tracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"delayrisk/domain/core"
	"delayrisk/domain/run"
	"delayrisk/internal"
	"delayrisk/ports"
)

// LogTracker writes each completed run to the logger. It keeps the runs of
// the current process so GetRun works without a database.
type LogTracker struct {
	logger *internal.Logger

	mu   sync.RWMutex
	runs map[core.RunID]*run.Summary
}

var _ ports.ExperimentTracker = (*LogTracker)(nil)

// NewLogTracker creates a tracker that only logs
func NewLogTracker(logger *internal.Logger) *LogTracker {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &LogTracker{
		logger: logger.Named("tracking"),
		runs:   make(map[core.RunID]*run.Summary),
	}
}

func (t *LogTracker) RecordRun(ctx context.Context, summary *run.Summary, bundlePath string) error {
	t.logger.With(
		"run_id", summary.RunID.String(),
		"bundle", bundlePath,
		"fingerprint", summary.Fingerprint.Value.Short(),
	).Info("run recorded: val_auc=%.3f test_auc=%.3f test_f1=%.3f",
		summary.Validation[run.MetricROCAUC], summary.Test[run.MetricROCAUC], summary.Test[run.MetricF1])

	copied := *summary
	t.mu.Lock()
	t.runs[summary.RunID] = &copied
	t.mu.Unlock()
	return nil
}

func (t *LogTracker) GetRun(ctx context.Context, runID core.RunID) (*run.Summary, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return s, nil
}

// RetryTracker retries RecordRun on a backing tracker with linear backoff.
type RetryTracker struct {
	next       ports.ExperimentTracker
	logger     *internal.Logger
	maxRetries int
	baseDelay  time.Duration
}

var _ ports.ExperimentTracker = (*RetryTracker)(nil)

// NewRetryTracker wraps next with three attempts spaced 100ms apart
func NewRetryTracker(next ports.ExperimentTracker, logger *internal.Logger) *RetryTracker {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &RetryTracker{
		next:       next,
		logger:     logger.Named("tracking"),
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
	}
}

// WithBackoff overrides the retry policy
func (t *RetryTracker) WithBackoff(maxRetries int, baseDelay time.Duration) *RetryTracker {
	t.maxRetries = max(1, maxRetries)
	t.baseDelay = baseDelay
	return t
}

func (t *RetryTracker) RecordRun(ctx context.Context, summary *run.Summary, bundlePath string) error {
	var err error
	for attempt := 0; attempt < t.maxRetries; attempt++ {
		if err = t.next.RecordRun(ctx, summary, bundlePath); err == nil {
			return nil
		}
		t.logger.Warn("record run %s failed (attempt %d/%d): %v", summary.RunID, attempt+1, t.maxRetries, err)

		if attempt < t.maxRetries-1 {
			delay := time.Duration(attempt+1) * t.baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}

func (t *RetryTracker) GetRun(ctx context.Context, runID core.RunID) (*run.Summary, error) {
	return t.next.GetRun(ctx, runID)
}
