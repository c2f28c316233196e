package store

import (
	"context"
	"database/sql"
	"time"
)

// Run is one entry of the analysis ledger. It is written outside the result
// transaction so failed runs stay visible.
type Run struct {
	RunID       string     `json:"run_id"`
	SessionID   int64      `json:"session_id"`
	Status      Status     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	Diagnostics int        `json:"diagnostics"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func (s *Store) BeginRun(ctx context.Context, runID string, sessionID int64, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO analysis_runs(run_id, session_id, status, started_at) VALUES(?,?,?,?)`,
		runID, sessionID, string(StatusAnalyzing), ts)
	return err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status Status, errMsg *string, diagnostics int, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE analysis_runs SET status=?, error=?, diagnostics=?, finished_at=? WHERE run_id=?`,
		string(status), errMsg, diagnostics, ts, runID)
	return err
}

// Runs lists a session's runs, newest first.
func (s *Store) Runs(ctx context.Context, sessionID int64, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, session_id, status, error, diagnostics, started_at, finished_at
		FROM analysis_runs WHERE session_id=? ORDER BY started_at DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var (
			r        Run
			status   string
			errMsg   sql.NullString
			finished sql.NullTime
		)
		if err := rows.Scan(&r.RunID, &r.SessionID, &status, &errMsg, &r.Diagnostics, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		if errMsg.Valid {
			r.Error = &errMsg.String
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
