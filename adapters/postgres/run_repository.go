package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"stratforge/domain/core"
	"stratforge/domain/run"
	"stratforge/internal/errors"
	"stratforge/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run summary repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// SaveSummary stores the terminal summary; the JSONB document is the source
// of truth, the flat columns exist for listing queries.
func (r *RunRepositoryImpl) SaveSummary(ctx context.Context, summary run.Summary) error {
	doc, err := json.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "failed to encode run summary")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO run_summaries (run_id, status, report, summary, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id)
		DO UPDATE SET status       = EXCLUDED.status,
		              report       = EXCLUDED.report,
		              summary      = EXCLUDED.summary,
		              completed_at = EXCLUDED.completed_at
	`, string(summary.RunID), string(summary.Status), string(summary.Report),
		doc, summary.CreatedAt.Time(), summary.CompletedAt.Time())

	if err != nil {
		return errors.Wrapf(err, "failed to save summary for run %s", summary.RunID)
	}
	return nil
}

// GetSummary retrieves a run summary by ID
func (r *RunRepositoryImpl) GetSummary(ctx context.Context, runID core.RunID) (*run.Summary, error) {
	var doc json.RawMessage
	err := r.db.GetContext(ctx, &doc, `
		SELECT summary FROM run_summaries WHERE run_id = $1
	`, string(runID))

	if err == sql.ErrNoRows {
		return nil, core.NewNotFoundError("run summary", string(runID))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load summary for run %s", runID)
	}

	var summary run.Summary
	if err := json.Unmarshal(doc, &summary); err != nil {
		return nil, errors.Wrap(err, "failed to decode run summary")
	}
	return &summary, nil
}

// ListSummaries returns summaries ordered by completion time, newest first
func (r *RunRepositoryImpl) ListSummaries(ctx context.Context, limit int) ([]run.Summary, error) {
	query := `SELECT summary FROM run_summaries ORDER BY completed_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list run summaries")
	}
	defer rows.Close()

	var summaries []run.Summary
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var summary run.Summary
		if err := json.Unmarshal(doc, &summary); err != nil {
			return nil, errors.Wrap(err, "failed to decode run summary")
		}
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}
