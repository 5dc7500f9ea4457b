package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"rentcrunch/internal/domain"
)

// reason is a VARCHAR(512)
const maxReason = 512

func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

// Repo is the MySQL-backed search journal.
type Repo struct{ db *sql.DB }

var _ domain.SearchJournal = (*Repo)(nil)

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// RecordRun inserts the run or updates its progress columns.
func (r *Repo) RecordRun(ctx context.Context, run domain.SearchRun) error {
	filters, err := json.Marshal(run.Query.Filters)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, upsertRunSQL,
		run.ID,
		uint64(run.Generation),
		run.Query.Location,
		string(filters),
		string(run.State),
		run.Total,
		run.Received,
		run.Degraded,
		run.StartedAt.UTC(),
		valTime(run.FinishedAt),
	)
	return err
}

func (r *Repo) LogMiss(ctx context.Context, runID string, page int, reason string) error {
	if len(reason) > maxReason {
		reason = reason[:maxReason]
	}
	_, err := r.db.ExecContext(ctx, insertMissSQL, runID, page, reason)
	return err
}

// ListRuns returns the most recent runs first.
func (r *Repo) ListRuns(ctx context.Context, limit int) ([]domain.SearchRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SearchRun
	for rows.Next() {
		var run domain.SearchRun
		var gen uint64
		var filters []byte
		var state string
		var finished sql.NullTime
		if err := rows.Scan(
			&run.ID, &gen, &run.Query.Location, &filters, &state,
			&run.Total, &run.Received, &run.Degraded, &run.StartedAt, &finished,
		); err != nil {
			return nil, err
		}
		run.Generation = domain.Generation(gen)
		run.State = domain.SessionState(state)
		if len(filters) > 0 {
			if err := json.Unmarshal(filters, &run.Query.Filters); err != nil {
				return nil, fmt.Errorf("run %s filters: %w", run.ID, err)
			}
		}
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Ping reports whether the database is reachable.
func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }
