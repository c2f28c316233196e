package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Andrandra1na/AMER-SMA/aggregate"
	"github.com/Andrandra1na/AMER-SMA/grammar"
	"github.com/Andrandra1na/AMER-SMA/scoring"
	"github.com/Andrandra1na/AMER-SMA/timeline"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "amer.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSession(t *testing.T, s *Store) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := s.CreateSession(ctx, &Session{
		Candidate: "c-1",
		MediaPath: "data/uploads/c-1.webm",
		Events:    []timeline.Event{{QuestionID: 1, Timestamp: 0}, {QuestionID: 2, Timestamp: 30}},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return id
}

func commitFor(id int64, runID string, score float64) RunCommit {
	return RunCommit{
		SessionID: id,
		RunID:     runID,
		Answers: []AnswerAnalysis{
			{QuestionID: 1, WindowStart: 0, WindowEnd: 30, Transcription: "hello", RelevanceScore: 0.8, GrammarScore: 0.95,
				GrammarErrors: []grammar.Issue{{Message: "m", Correction: grammar.NoCorrection}}},
			{QuestionID: 2, WindowStart: 30, WindowEnd: 60.1, Transcription: "world", RelevanceScore: 0.5, GrammarScore: 1,
				Diagnostics: []Diagnostic{{Analyzer: "prosody", Message: "timeout"}}},
		},
		Metrics: aggregate.SessionMetrics{
			SpeechRate: 120, PauseCount: 3, DominantEmotion: "calm",
			EmotionScores:  map[string]float64{"calm": 0.7},
			GazeGlobal:     aggregate.Distribution{"eye_contact": 100},
			GazeByQuestion: map[int64]aggregate.Distribution{1: {"eye_contact": 100}},
		},
		Report: Report{FinalScore: score, FullTranscription: "hello world", Weights: scoring.DefaultWeights},
	}
}

func TestSessionRoundTripAndStatus(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id := seedSession(t, s)

	got, err := s.Session(ctx, id)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if got.Status != StatusPending || len(got.Events) != 2 || got.Events[1].Timestamp != 30 || got.FinalScore != nil {
		t.Fatalf("unexpected session %+v", got)
	}
	if err := s.SetStatus(ctx, id, StatusAnalyzing); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Session(ctx, id)
	if got.Status != StatusAnalyzing {
		t.Fatalf("expected analyzing, got %s", got.Status)
	}
	if _, err := s.Session(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetStatus(ctx, 999, StatusFailed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on status update, got %v", err)
	}
}

func TestQuestionsSkipsMissing(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if err := s.UpsertQuestion(ctx, Question{ID: 1, Text: "Why us?", Category: "motivation"}); err != nil {
		t.Fatal(err)
	}
	qs, err := s.Questions(ctx, []int64{1, 2, 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(qs) != 1 || qs[1].Category != "motivation" {
		t.Fatalf("unexpected questions %v", qs)
	}
}

func TestCommitRunReplacesPreviousRun(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id := seedSession(t, s)

	if err := s.CommitRun(ctx, commitFor(id, "run-1", 61.5)); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.CommitRun(ctx, commitFor(id, "run-2", 72.25)); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	answers, err := s.Answers(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected exactly one answer per question, got %d", len(answers))
	}
	for _, a := range answers {
		if a.RunID != "run-2" {
			t.Fatalf("answer from stale run: %+v", a)
		}
	}
	if answers[0].GrammarErrors[0].Correction != grammar.NoCorrection || answers[1].Diagnostics[0].Analyzer != "prosody" {
		t.Fatalf("answer details not persisted: %+v", answers)
	}
	if answers[1].GrammarErrors == nil {
		t.Fatal("expected empty, non-nil grammar error list")
	}

	sess, _ := s.Session(ctx, id)
	if sess.Status != StatusComplete || sess.FinalScore == nil || *sess.FinalScore != 72.25 {
		t.Fatalf("unexpected session after commit %+v", sess)
	}
	m, err := s.Metrics(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if m.PauseCount != 3 || m.GazeByQuestion[1]["eye_contact"] != 100 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	r, err := s.Report(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if r.RunID != "run-2" || r.FinalScore != 72.25 || r.Weights != scoring.DefaultWeights {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestCommitRunRollsBackOnMissingSession(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id := seedSession(t, s)
	if err := s.CommitRun(ctx, commitFor(id, "run-1", 50)); err != nil {
		t.Fatal(err)
	}

	// a commit for an unknown session must leave nothing behind
	if err := s.CommitRun(ctx, commitFor(id+100, "run-x", 10)); err == nil {
		t.Fatal("expected commit for unknown session to fail")
	}
	if _, err := s.Report(ctx, id+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no report for rolled back commit, got %v", err)
	}
	answers, _ := s.Answers(ctx, id)
	if len(answers) != 2 || answers[0].RunID != "run-1" {
		t.Fatalf("prior run data disturbed: %+v", answers)
	}
}

func TestRunLedger(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	id := seedSession(t, s)
	start := time.Now().UTC()
	if err := s.BeginRun(ctx, "run-a", id, start); err != nil {
		t.Fatal(err)
	}
	msg := "ffmpeg failed"
	if err := s.FinishRun(ctx, "run-a", StatusFailed, &msg, 0, start.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginRun(ctx, "run-b", id, start.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	runs, err := s.Runs(ctx, id, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-b" || runs[0].FinishedAt != nil {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[1].Status != StatusFailed || runs[1].Error == nil || *runs[1].Error != msg {
		t.Fatalf("failed run not recorded: %+v", runs[1])
	}
}

func TestWeightProfiles(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if _, err := s.WeightProfile(ctx, "technical-expert"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	p := WeightProfile{Name: "technical-expert", WeightsJSON: `{"relevance":50,"clarity":30,"fluency":10,"engagement":10}`}
	if err := s.UpsertWeightProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.WeightsJSON = `{"relevance":60}`
	if err := s.UpsertWeightProfile(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, err := s.WeightProfile(ctx, "technical-expert")
	if err != nil {
		t.Fatal(err)
	}
	if got.WeightsJSON != `{"relevance":60}` {
		t.Fatalf("expected upsert to overwrite, got %s", got.WeightsJSON)
	}
	all, _ := s.ListWeightProfiles(ctx)
	if len(all) != 1 {
		t.Fatalf("expected one profile, got %d", len(all))
	}
}

func TestKnowledgeChunksReplace(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	first := []KnowledgeChunk{{Seq: 0, Text: "a", Embedding: []float32{1, 0.5}}, {Seq: 1, Text: "b", Embedding: []float32{0, 1}}}
	if err := s.ReplaceKnowledge(ctx, "kb.txt", first); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceKnowledge(ctx, "kb.txt", first[:1]); err != nil {
		t.Fatal(err)
	}
	got, err := s.KnowledgeChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Embedding[1] != 0.5 {
		t.Fatalf("unexpected chunks %+v", got)
	}
}
