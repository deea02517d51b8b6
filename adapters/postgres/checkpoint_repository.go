package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"stratforge/domain/core"
	"stratforge/domain/run"
	"stratforge/domain/strategy"
	"stratforge/internal/errors"
	"stratforge/ports"

	"github.com/jmoiron/sqlx"
)

// CheckpointRepositoryImpl implements CheckpointStore for PostgreSQL
type CheckpointRepositoryImpl struct {
	db *sqlx.DB
}

// NewCheckpointRepository creates a new PostgreSQL checkpoint repository
func NewCheckpointRepository(db *sqlx.DB) ports.CheckpointStore {
	return &CheckpointRepositoryImpl{db: db}
}

// checkpointRow is the storage shape; artifacts travel as a JSONB document
type checkpointRow struct {
	RunID      string          `db:"run_id"`
	StageName  string          `db:"stage_name"`
	StageIndex int             `db:"stage_index"`
	Status     string          `db:"status"`
	Artifacts  json.RawMessage `db:"artifacts"`
	CreatedAt  time.Time       `db:"created_at"`
}

// Save upserts on the (run, stage) key so retried stage completions
// overwrite rather than duplicate.
func (r *CheckpointRepositoryImpl) Save(ctx context.Context, cp run.Checkpoint) error {
	artifacts, err := json.Marshal(cp.Artifacts)
	if err != nil {
		return errors.Wrap(err, "failed to encode checkpoint artifacts")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO run_checkpoints (run_id, stage_name, stage_index, status, artifacts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, stage_name)
		DO UPDATE SET stage_index = EXCLUDED.stage_index,
		              status      = EXCLUDED.status,
		              artifacts   = EXCLUDED.artifacts,
		              created_at  = EXCLUDED.created_at
	`, string(cp.RunID), string(cp.Stage), cp.StageIndex, string(cp.Status), artifacts, cp.CreatedAt.Time())

	if err != nil {
		return errors.Wrapf(err, "failed to save checkpoint for run %s stage %s", cp.RunID, cp.Stage)
	}
	return nil
}

// LoadLatest returns the highest-index checkpoint for the run
func (r *CheckpointRepositoryImpl) LoadLatest(ctx context.Context, runID core.RunID) (*run.Checkpoint, error) {
	var row checkpointRow
	err := r.db.GetContext(ctx, &row, `
		SELECT run_id, stage_name, stage_index, status, artifacts, created_at
		FROM run_checkpoints
		WHERE run_id = $1
		ORDER BY stage_index DESC
		LIMIT 1
	`, string(runID))

	if err == sql.ErrNoRows {
		return nil, core.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load checkpoint for run %s", runID)
	}

	return row.toCheckpoint()
}

// Resume returns the cursor of the first incomplete stage and the artifact
// set carried into it.
func (r *CheckpointRepositoryImpl) Resume(ctx context.Context, runID core.RunID) (int, []*strategy.Artifact, error) {
	cp, err := r.LoadLatest(ctx, runID)
	if err != nil {
		return 0, nil, err
	}
	if cp.Status == run.StatusCompleted {
		return 0, nil, core.ErrRunNotResumable
	}
	return cp.ResumeCursor(), cp.Artifacts, nil
}

func (row checkpointRow) toCheckpoint() (*run.Checkpoint, error) {
	var artifacts []*strategy.Artifact
	if err := json.Unmarshal(row.Artifacts, &artifacts); err != nil {
		return nil, errors.Wrap(err, "failed to decode checkpoint artifacts")
	}
	return &run.Checkpoint{
		RunID:      core.RunID(row.RunID),
		Stage:      run.StageName(row.StageName),
		StageIndex: row.StageIndex,
		Status:     run.Status(row.Status),
		Artifacts:  artifacts,
		CreatedAt:  core.NewTimestamp(row.CreatedAt),
	}, nil
}
