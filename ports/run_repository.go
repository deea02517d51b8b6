package ports

import (
	"context"

	"stratforge/domain/core"
	"stratforge/domain/run"
)

// RunRepository persists terminal run summaries for later inspection
type RunRepository interface {
	SaveSummary(ctx context.Context, summary run.Summary) error
	GetSummary(ctx context.Context, runID core.RunID) (*run.Summary, error)
	ListSummaries(ctx context.Context, limit int) ([]run.Summary, error)
}
