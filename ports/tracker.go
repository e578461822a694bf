package ports

import (
	"context"

	"delayrisk/domain/core"
	"delayrisk/domain/run"
)

// ExperimentTracker records completed runs in an external system.
type ExperimentTracker interface {
	RecordRun(ctx context.Context, summary *run.Summary, bundlePath string) error
	GetRun(ctx context.Context, runID core.RunID) (*run.Summary, error)
}
