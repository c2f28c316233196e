package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/Andrandra1na/AMER-SMA/aggregate"
	"github.com/Andrandra1na/AMER-SMA/grammar"
	"github.com/Andrandra1na/AMER-SMA/media"
	"github.com/Andrandra1na/AMER-SMA/relevance"
	"github.com/Andrandra1na/AMER-SMA/store"
	"github.com/Andrandra1na/AMER-SMA/timeline"
	"github.com/Andrandra1na/AMER-SMA/vocal"
)

var (
	// ErrInputInvalid marks a missing recording, an empty timeline or a
	// timeline referencing unknown questions.
	ErrInputInvalid = errors.New("invalid analysis input")
	// ErrPersist marks a failed commit of the run's results.
	ErrPersist = errors.New("persisting analysis results")
)

// Analyzer names used in diagnostics, logs and metrics.
const (
	AnalyzerTranscription = "transcription"
	AnalyzerProsody       = "prosody"
	AnalyzerGrammar       = "grammar"
	AnalyzerRelevance     = "relevance"
	AnalyzerEmotion       = "emotion"
	AnalyzerGaze          = "gaze"
)

type Diagnostic = store.Diagnostic

type Transcriber interface {
	EnsureReady(ctx context.Context) error
	Transcribe(ctx context.Context, wavPath string) ([]timeline.Utterance, error)
}

type ProsodyExtractor interface {
	EnsureReady(ctx context.Context) error
	Extract(ctx context.Context, clip media.Clip) (vocal.Prosody, error)
}

type GrammarChecker interface {
	EnsureReady(ctx context.Context) error
	Check(ctx context.Context, text string) (grammar.Result, error)
}

// RelevanceScorer must be total; failures come back inside the result.
type RelevanceScorer interface {
	Score(ctx context.Context, q relevance.Question, answer string) relevance.Result
}

type EmotionClassifier interface {
	EnsureReady(ctx context.Context) error
	Classify(ctx context.Context, wavPath string) (aggregate.Emotion, error)
}

type GazeTracker interface {
	EnsureReady(ctx context.Context) error
	Track(ctx context.Context, mediaPath string, fps float64) ([]aggregate.GazeSample, error)
}

type Decoder interface {
	Decode(ctx context.Context, src string) (*media.Audio, error)
}

// Store is the persistence the pipeline reads and writes.
type Store interface {
	Session(ctx context.Context, id int64) (*store.Session, error)
	Questions(ctx context.Context, ids []int64) (map[int64]store.Question, error)
	WeightProfile(ctx context.Context, name string) (*store.WeightProfile, error)
	SetStatus(ctx context.Context, id int64, status store.Status) error
	CommitRun(ctx context.Context, c store.RunCommit) error
	BeginRun(ctx context.Context, runID string, sessionID int64, ts time.Time) error
	FinishRun(ctx context.Context, runID string, status store.Status, errMsg *string, diagnostics int, ts time.Time) error
}

// Analyzers groups the external collaborators of a run.
type Analyzers struct {
	Transcriber Transcriber
	Prosody     ProsodyExtractor
	Grammar     GrammarChecker
	Relevance   RelevanceScorer
	Emotion     EmotionClassifier
	Gaze        GazeTracker
}

// Observer receives run and degradation events; *metrics.Counters fits.
type Observer interface {
	RunStarted()
	RunSucceeded()
	RunFailed()
	Degraded(analyzer string)
}

// Outcome is what runAnalysis reports to the dispatch layer.
type Outcome struct {
	SessionID   int64        `json:"session_id"`
	RunID       string       `json:"run_id"`
	Status      store.Status `json:"status"`
	FinalScore  float64      `json:"final_score"`
	Answers     int          `json:"answers"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Err         error        `json:"-"`
}

func (o Outcome) Success() bool { return o.Status == store.StatusComplete && o.Err == nil }
