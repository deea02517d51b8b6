package run

import (
	"stratforge/domain/core"
	"stratforge/domain/strategy"
)

// Checkpoint is the durable per-stage snapshot enabling resume. It is
// purely additive metadata: artifact content is persisted verbatim, never
// transformed. Checkpoints are append-only per run; each stage's save
// supersedes the previous stage's record as "latest", and save is
// idempotent per (run, stage) key.
type Checkpoint struct {
	RunID      core.RunID           `json:"run_id"`
	Stage      StageName            `json:"stage"`
	StageIndex int                  `json:"stage_index"`
	Status     Status               `json:"status"`
	Artifacts  []*strategy.Artifact `json:"artifacts"`
	CreatedAt  core.Timestamp       `json:"created_at"`
}

// NewCheckpoint snapshots the run state after a completed stage
func NewCheckpoint(r *Run) Checkpoint {
	return Checkpoint{
		RunID:      r.ID,
		Stage:      r.CurrentStage().Name,
		StageIndex: r.Cursor,
		Status:     r.Status,
		Artifacts:  r.Artifacts,
		CreatedAt:  core.Now(),
	}
}

// ResumeCursor returns the index of the first incomplete stage: the one
// immediately after the last successfully checkpointed stage.
func (c Checkpoint) ResumeCursor() int {
	return c.StageIndex + 1
}
