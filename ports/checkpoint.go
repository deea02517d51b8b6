package ports

import (
	"context"

	"stratforge/domain/core"
	"stratforge/domain/run"
	"stratforge/domain/strategy"
)

// CheckpointStore persists per-stage pipeline state for resume.
// Save must durably complete before the driver reports a stage done;
// it is the correctness anchor for resume.
type CheckpointStore interface {
	// Save idempotently overwrites the (run, stage) key
	Save(ctx context.Context, cp run.Checkpoint) error

	// LoadLatest returns the most recent checkpoint for a run, or
	// core.ErrCheckpointNotFound when the run was never checkpointed
	LoadLatest(ctx context.Context, runID core.RunID) (*run.Checkpoint, error)

	// Resume returns the cursor of the first incomplete stage and the
	// artifact set carried into it
	Resume(ctx context.Context, runID core.RunID) (int, []*strategy.Artifact, error)
}
