package ports

import (
	"context"

	"delayrisk/domain/dataset"
)

// TableReader loads a tabular dataset source into memory.
// Implementations never interpret cells; typing happens in the feature loader.
type TableReader interface {
	ReadTable(ctx context.Context, path string) (*dataset.Table, error)
}
