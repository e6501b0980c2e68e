package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobsince/internal/model"
)

// timestampLayout has a fixed width so stored times sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one job as it was reported by a past run.
type Entry struct {
	Job        model.JobRecord
	RunID      string
	ReportedAt time.Time
}

// RecordRun stores a finished run and the jobs it reported. An empty run ID
// is filled in.
func (s *Store) RecordRun(ctx context.Context, run model.Run, jobs []model.JobRecord) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	run.JobCount = len(jobs)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, query_user, owner_user, lower_bound, finished_at, job_count)
VALUES (?, ?, ?, ?, ?, ?)
`, run.ID, run.User, run.Owner,
		run.LowerBound.UTC().Format(timestampLayout),
		run.FinishedAt.UTC().Format(timestampLayout),
		run.JobCount,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO job_history (run_id, job_id, name, user, state, raw_state, start_time, end_time, exit_code)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return "", fmt.Errorf("prepare job insert: %w", err)
	}
	defer stmt.Close()

	for _, j := range jobs {
		if _, err := stmt.ExecContext(ctx,
			run.ID, j.JobID, j.Name, j.User, string(j.State), j.RawState,
			nullTime(j.StartTime), nullTime(j.EndTime), nullInt(j.ExitCode),
		); err != nil {
			return "", fmt.Errorf("insert job %s: %w", j.JobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("tx commit: %w", err)
	}
	return run.ID, nil
}

// ListHistory returns logged jobs, most recently reported first. An empty
// state lists every state; limit <= 0 means no limit.
func (s *Store) ListHistory(ctx context.Context, state model.State, limit int) ([]Entry, error) {
	q := `
		SELECT h.run_id, r.finished_at, h.job_id, h.name, h.user, h.state, h.raw_state,
		       h.start_time, h.end_time, h.exit_code
		FROM job_history h
		JOIN runs r ON r.id = h.run_id
	`
	args := []any{}

	if state != "" {
		q += " WHERE h.state = ?"
		args = append(args, string(state))
	}
	q += " ORDER BY r.finished_at DESC, h.end_time DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var finishedAtStr, stateStr string
		var startStr, endStr sql.NullString
		var exitCode sql.NullInt64

		if err := rows.Scan(
			&e.RunID, &finishedAtStr, &e.Job.JobID, &e.Job.Name, &e.Job.User, &stateStr, &e.Job.RawState,
			&startStr, &endStr, &exitCode,
		); err != nil {
			return nil, err
		}

		e.Job.State = model.State(stateStr)
		e.ReportedAt, _ = time.Parse(time.RFC3339Nano, finishedAtStr)
		e.Job.StartTime = parseNullTime(startStr)
		e.Job.EndTime = parseNullTime(endStr)
		if exitCode.Valid {
			n := int(exitCode.Int64)
			e.Job.ExitCode = &n
		}

		result = append(result, e)
	}
	return result, rows.Err()
}

// ListRuns returns recorded runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	q := `
		SELECT id, query_user, owner_user, lower_bound, finished_at, job_count
		FROM runs
		ORDER BY finished_at DESC
	`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Run
	for rows.Next() {
		var r model.Run
		var lowerStr, finishedStr string
		if err := rows.Scan(&r.ID, &r.User, &r.Owner, &lowerStr, &finishedStr, &r.JobCount); err != nil {
			return nil, err
		}
		r.LowerBound, _ = time.Parse(time.RFC3339Nano, lowerStr)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr)
		result = append(result, r)
	}
	return result, rows.Err()
}

// HistoryStatus counts logged jobs per state. Every state is present.
func (s *Store) HistoryStatus(ctx context.Context) (map[model.State]int, error) {
	stats := make(map[model.State]int, len(model.States))
	for _, st := range model.States {
		stats[st] = 0
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT state, COUNT(*) FROM job_history GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[model.State(state)] = count
	}
	return stats, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timestampLayout)
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
