package ports

import (
	"context"

	"delayrisk/domain/core"
)

// ArtifactStore persists a training bundle. Either every file is written or
// none is; an existing bundle is never overwritten.
type ArtifactStore interface {
	BundlePath(runID core.RunID) string
	WriteBundle(ctx context.Context, runID core.RunID, files map[string][]byte) (string, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
}
