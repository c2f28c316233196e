package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Andrandra1na/AMER-SMA/aggregate"
	"github.com/Andrandra1na/AMER-SMA/grammar"
	"github.com/Andrandra1na/AMER-SMA/scoring"
	"github.com/Andrandra1na/AMER-SMA/vocal"
)

// Diagnostic records a sub-analysis that fell back to its default.
type Diagnostic struct {
	Analyzer string `json:"analyzer"`
	Message  string `json:"message"`
}

// AnswerAnalysis is the per-question record of one run.
type AnswerAnalysis struct {
	SessionID            int64           `json:"session_id"`
	QuestionID           int64           `json:"question_id"`
	RunID                string          `json:"run_id"`
	WindowStart          float64         `json:"window_start"`
	WindowEnd            float64         `json:"window_end"`
	Transcription        string          `json:"transcription"`
	RelevanceScore       float64         `json:"relevance_score"`
	RelevanceMode        string          `json:"relevance_mode"`
	RelevanceExplanation *string         `json:"relevance_explanation,omitempty"`
	GrammarScore         float64         `json:"grammar_score"`
	GrammarErrors        []grammar.Issue `json:"grammar_errors"`
	Vocal                vocal.Features  `json:"vocal"`
	Diagnostics          []Diagnostic    `json:"diagnostics,omitempty"`
}

// Report is the session summary consumed by reporting.
type Report struct {
	SessionID            int64                        `json:"session_id"`
	RunID                string                       `json:"run_id"`
	FullTranscription    string                       `json:"full_transcription"`
	RelevanceAvg         float64                      `json:"relevance_avg"`
	GrammarAvg           float64                      `json:"grammar_avg"`
	SubScores            scoring.SubScores            `json:"sub_scores"`
	FinalScore           float64                      `json:"final_score"`
	WeightProfile        string                       `json:"weight_profile"`
	Weights              scoring.Weights              `json:"weights"`
	CommunicationProfile scoring.CommunicationProfile `json:"communication_profile"`
	Diagnostics          []Diagnostic                 `json:"diagnostics,omitempty"`
	CreatedAt            time.Time                    `json:"created_at"`
}

// RunCommit is everything one successful run writes.
type RunCommit struct {
	SessionID int64
	RunID     string
	Answers   []AnswerAnalysis
	Metrics   aggregate.SessionMetrics
	Report    Report
}

// CommitRun replaces the session's answers, metrics and report and marks it
// complete, all in one transaction.
func (s *Store) CommitRun(ctx context.Context, c RunCommit) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	now := time.Now().UTC()

	if _, err = tx.ExecContext(ctx, `DELETE FROM answer_analyses WHERE session_id=?`, c.SessionID); err != nil {
		return fmt.Errorf("clearing answers: %w", err)
	}
	for _, a := range c.Answers {
		if err = insertAnswer(ctx, tx, c.SessionID, c.RunID, a, now); err != nil {
			return fmt.Errorf("answer %d: %w", a.QuestionID, err)
		}
	}
	if err = upsertMetrics(ctx, tx, c.SessionID, c.RunID, c.Metrics, now); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	c.Report.SessionID, c.Report.RunID, c.Report.CreatedAt = c.SessionID, c.RunID, now
	report, err := json.Marshal(c.Report)
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO reports(session_id, run_id, report_json, created_at) VALUES(?,?,?,?)
		ON CONFLICT(session_id) DO UPDATE SET run_id=excluded.run_id, report_json=excluded.report_json, created_at=excluded.created_at`,
		c.SessionID, c.RunID, string(report), now); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET status=?, final_score=?, full_transcription=?, updated_at=? WHERE id=?`,
		string(StatusComplete), c.Report.FinalScore, c.Report.FullTranscription, now, c.SessionID)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("session %d: %w", c.SessionID, ErrNotFound)
		return err
	}
	return tx.Commit()
}

func insertAnswer(ctx context.Context, tx *sql.Tx, sessionID int64, runID string, a AnswerAnalysis, ts time.Time) error {
	errs := a.GrammarErrors
	if errs == nil {
		errs = []grammar.Issue{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return err
	}
	vocalJSON, err := json.Marshal(a.Vocal)
	if err != nil {
		return err
	}
	diagJSON, err := json.Marshal(a.Diagnostics)
	if err != nil {
		return err
	}
	var explanation sql.NullString
	if a.RelevanceExplanation != nil {
		explanation = sql.NullString{String: *a.RelevanceExplanation, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO answer_analyses(session_id, question_id, run_id, window_start, window_end, transcription,
		relevance_score, relevance_mode, relevance_explanation, grammar_score, grammar_errors_json, vocal_json, diagnostics_json, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sessionID, a.QuestionID, runID, a.WindowStart, a.WindowEnd, a.Transcription,
		a.RelevanceScore, a.RelevanceMode, explanation, a.GrammarScore, string(errsJSON), string(vocalJSON), string(diagJSON), ts)
	return err
}

func upsertMetrics(ctx context.Context, tx *sql.Tx, sessionID int64, runID string, m aggregate.SessionMetrics, ts time.Time) error {
	emo, err := json.Marshal(m.EmotionScores)
	if err != nil {
		return err
	}
	global, err := json.Marshal(m.GazeGlobal)
	if err != nil {
		return err
	}
	byQ, err := json.Marshal(m.GazeByQuestion)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO session_metrics(session_id, run_id, speech_rate, pause_count, avg_pause_duration, pitch_mean, pitch_std,
		fluency_score, dominant_emotion, emotion_scores_json, gaze_global_json, gaze_by_question_json, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(session_id) DO UPDATE SET run_id=excluded.run_id, speech_rate=excluded.speech_rate, pause_count=excluded.pause_count,
			avg_pause_duration=excluded.avg_pause_duration, pitch_mean=excluded.pitch_mean, pitch_std=excluded.pitch_std,
			fluency_score=excluded.fluency_score, dominant_emotion=excluded.dominant_emotion, emotion_scores_json=excluded.emotion_scores_json,
			gaze_global_json=excluded.gaze_global_json, gaze_by_question_json=excluded.gaze_by_question_json, updated_at=excluded.updated_at`,
		sessionID, runID, m.SpeechRate, m.PauseCount, m.AvgPauseDuration, m.PitchMean, m.PitchStd,
		m.FluencyScore, m.DominantEmotion, string(emo), string(global), string(byQ), ts)
	return err
}

// Answers returns the session's answer records ordered by window start.
func (s *Store) Answers(ctx context.Context, sessionID int64) ([]AnswerAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question_id, run_id, window_start, window_end, transcription, relevance_score, relevance_mode,
		relevance_explanation, grammar_score, grammar_errors_json, vocal_json, diagnostics_json
		FROM answer_analyses WHERE session_id=? ORDER BY window_start, question_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnswerAnalysis
	for rows.Next() {
		var (
			a                         AnswerAnalysis
			explanation               sql.NullString
			errsJSON, vocJSON, dgJSON string
		)
		if err := rows.Scan(&a.QuestionID, &a.RunID, &a.WindowStart, &a.WindowEnd, &a.Transcription, &a.RelevanceScore, &a.RelevanceMode,
			&explanation, &a.GrammarScore, &errsJSON, &vocJSON, &dgJSON); err != nil {
			return nil, err
		}
		a.SessionID = sessionID
		if explanation.Valid {
			e := explanation.String
			a.RelevanceExplanation = &e
		}
		if err := json.Unmarshal([]byte(errsJSON), &a.GrammarErrors); err != nil {
			return nil, fmt.Errorf("answer %d grammar errors: %w", a.QuestionID, err)
		}
		if err := json.Unmarshal([]byte(vocJSON), &a.Vocal); err != nil {
			return nil, fmt.Errorf("answer %d vocal: %w", a.QuestionID, err)
		}
		if err := json.Unmarshal([]byte(dgJSON), &a.Diagnostics); err != nil {
			return nil, fmt.Errorf("answer %d diagnostics: %w", a.QuestionID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Metrics(ctx context.Context, sessionID int64) (*aggregate.SessionMetrics, error) {
	var (
		m                aggregate.SessionMetrics
		emo, global, byQ string
	)
	err := s.db.QueryRowContext(ctx, `SELECT speech_rate, pause_count, avg_pause_duration, pitch_mean, pitch_std, fluency_score,
		dominant_emotion, emotion_scores_json, gaze_global_json, gaze_by_question_json FROM session_metrics WHERE session_id=?`, sessionID).
		Scan(&m.SpeechRate, &m.PauseCount, &m.AvgPauseDuration, &m.PitchMean, &m.PitchStd, &m.FluencyScore,
			&m.DominantEmotion, &emo, &global, &byQ)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("metrics for session %d: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw string
		dst any
	}{{emo, &m.EmotionScores}, {global, &m.GazeGlobal}, {byQ, &m.GazeByQuestion}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("metrics for session %d: %w", sessionID, err)
		}
	}
	return &m, nil
}

func (s *Store) Report(ctx context.Context, sessionID int64) (*Report, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM reports WHERE session_id=?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report for session %d: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
