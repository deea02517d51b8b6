package postgres

import (
	"context"

	"stratforge/internal/errors"

	"github.com/jmoiron/sqlx"
)

// EnsureSchema creates the pipeline tables if they do not exist. The DDL is
// idempotent so it runs unconditionally at startup.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_checkpoints (
			run_id      UUID NOT NULL,
			stage_name  TEXT NOT NULL,
			stage_index INT  NOT NULL,
			status      TEXT NOT NULL,
			artifacts   JSONB NOT NULL DEFAULT '[]',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, stage_name)
		);

		CREATE INDEX IF NOT EXISTS idx_run_checkpoints_latest
			ON run_checkpoints (run_id, stage_index DESC);

		CREATE TABLE IF NOT EXISTS run_summaries (
			run_id       UUID PRIMARY KEY,
			status       TEXT NOT NULL,
			report       TEXT NOT NULL,
			summary      JSONB NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_run_summaries_completed
			ON run_summaries (completed_at DESC);
	`)
	if err != nil {
		return errors.Wrap(err, "failed to create pipeline schema")
	}
	return nil
}
