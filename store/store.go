// Package store persists sessions, questions, weight profiles, analysis
// results and the knowledge base in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Andrandra1na/AMER-SMA/timeline"
)

var ErrNotFound = errors.New("store: not found")

// Status is the session analysis state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusComplete  Status = "analysis_complete"
	StatusFailed    Status = "analysis_failed"
)

// Store wraps SQLite access.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	// one writer; reads queue behind an open commit
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			candidate TEXT,
			media_path TEXT,
			status TEXT NOT NULL,
			weight_profile TEXT,
			events_json TEXT NOT NULL DEFAULT '[]',
			full_transcription TEXT,
			final_score REAL,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY,
			text TEXT NOT NULL,
			category TEXT,
			ideal_answer TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS weight_profiles (
			name TEXT PRIMARY KEY,
			description TEXT,
			weights_json TEXT NOT NULL,
			updated_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS answer_analyses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			question_id INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			window_start REAL,
			window_end REAL,
			transcription TEXT,
			relevance_score REAL,
			relevance_mode TEXT,
			relevance_explanation TEXT,
			grammar_score REAL,
			grammar_errors_json TEXT,
			vocal_json TEXT,
			diagnostics_json TEXT,
			created_at TIMESTAMP
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_answers_session_question ON answer_analyses(session_id, question_id);`,
		`CREATE TABLE IF NOT EXISTS session_metrics (
			session_id INTEGER PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
			run_id TEXT NOT NULL,
			speech_rate REAL,
			pause_count INTEGER,
			avg_pause_duration REAL,
			pitch_mean REAL,
			pitch_std REAL,
			fluency_score REAL,
			dominant_emotion TEXT,
			emotion_scores_json TEXT,
			gaze_global_json TEXT,
			gaze_by_question_json TEXT,
			updated_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS reports (
			session_id INTEGER PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
			run_id TEXT NOT NULL,
			report_json TEXT NOT NULL,
			created_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			run_id TEXT PRIMARY KEY,
			session_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			diagnostics INTEGER DEFAULT 0,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_session ON analysis_runs(session_id, started_at);`,
		`CREATE TABLE IF NOT EXISTS knowledge_chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			seq INTEGER NOT NULL,
			text TEXT NOT NULL,
			embedding BLOB,
			created_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON knowledge_chunks(source, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Session is one candidate recording with its question timeline.
type Session struct {
	ID                int64            `json:"id"`
	Candidate         string           `json:"candidate"`
	MediaPath         string           `json:"media_path"`
	Status            Status           `json:"status"`
	WeightProfile     string           `json:"weight_profile,omitempty"`
	Events            []timeline.Event `json:"events"`
	FullTranscription string           `json:"full_transcription,omitempty"`
	FinalScore        *float64         `json:"final_score,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (s *Store) CreateSession(ctx context.Context, sess *Session) (int64, error) {
	if sess.Status == "" {
		sess.Status = StatusPending
	}
	events, err := json.Marshal(sess.Events)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO sessions(candidate, media_path, status, weight_profile, events_json, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?)`, sess.Candidate, sess.MediaPath, string(sess.Status), nullString(sess.WeightProfile), string(events), now, now)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	sess.ID, sess.CreatedAt, sess.UpdatedAt = id, now, now
	return id, nil
}

func (s *Store) Session(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, candidate, media_path, status, weight_profile, events_json, full_transcription, final_score, created_at, updated_at
		FROM sessions WHERE id=?`, id)
	var (
		sess       Session
		candidate  sql.NullString
		media      sql.NullString
		status     string
		profile    sql.NullString
		events     string
		transcript sql.NullString
		score      sql.NullFloat64
	)
	err := row.Scan(&sess.ID, &candidate, &media, &status, &profile, &events, &transcript, &score, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	sess.Candidate, sess.MediaPath, sess.Status = candidate.String, media.String, Status(status)
	sess.WeightProfile, sess.FullTranscription = profile.String, transcript.String
	if score.Valid {
		sess.FinalScore = &score.Float64
	}
	if err := json.Unmarshal([]byte(events), &sess.Events); err != nil {
		return nil, fmt.Errorf("session %d events: %w", id, err)
	}
	return &sess, nil
}

func (s *Store) SetStatus(ctx context.Context, id int64, status Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET status=?, updated_at=? WHERE id=?`, string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return nil
}

// Question is a catalog entry referenced by session timelines.
type Question struct {
	ID          int64  `json:"id"`
	Text        string `json:"text"`
	Category    string `json:"category"`
	IdealAnswer string `json:"ideal_answer"`
}

func (s *Store) UpsertQuestion(ctx context.Context, q Question) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO questions(id, text, category, ideal_answer) VALUES(?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET text=excluded.text, category=excluded.category, ideal_answer=excluded.ideal_answer`,
		q.ID, q.Text, q.Category, q.IdealAnswer)
	return err
}

// Questions returns the catalog entries for ids. Missing ids are absent
// from the map.
func (s *Store) Questions(ctx context.Context, ids []int64) (map[int64]Question, error) {
	out := make(map[int64]Question, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		var (
			q     Question
			cat   sql.NullString
			ideal sql.NullString
		)
		err := s.db.QueryRowContext(ctx, `SELECT id, text, category, ideal_answer FROM questions WHERE id=?`, id).
			Scan(&q.ID, &q.Text, &cat, &ideal)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		q.Category, q.IdealAnswer = cat.String, ideal.String
		out[id] = q
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
