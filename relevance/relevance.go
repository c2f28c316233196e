// Package relevance scores how well an answer addresses its question, either
// against a stored ideal answer or against a reference generated from the
// knowledge base.
package relevance

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	ExplainFallback    = "No reference answer could be generated from the knowledge base; the score reflects general semantic similarity to the question."
	ExplainUnavailable = "The retrieval-augmented scorer is not available."
	ExplainError       = "A technical error occurred during retrieval-augmented scoring."
)

// Similarity is the embedSimilarity contract.
type Similarity interface {
	EnsureReady(ctx context.Context) error
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// ReferenceGenerator is the generateGroundedAnswer contract. It may return
// an empty string.
type ReferenceGenerator interface {
	EnsureReady(ctx context.Context) error
	GenerateReference(ctx context.Context, question string) (string, error)
}

type Question struct {
	ID          int64
	Text        string
	Category    string
	IdealAnswer string
}

type Result struct {
	Score       float64 `json:"score"`
	Explanation *string `json:"explanation,omitempty"`
	Mode        Mode    `json:"-"`
	// Err is the absorbed failure, if any.
	Err error `json:"-"`
}

type Scorer struct {
	sim    Similarity
	gen    ReferenceGenerator
	router Router
	log    logrus.FieldLogger
}

func NewScorer(sim Similarity, gen ReferenceGenerator, router Router, log logrus.FieldLogger) *Scorer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scorer{sim: sim, gen: gen, router: router, log: log}
}

// Score never fails: failures degrade to 0 and are reported in Result.Err.
func (s *Scorer) Score(ctx context.Context, q Question, answer string) (res Result) {
	mode := s.router.ModeFor(q.Category)
	defer func() {
		if r := recover(); r != nil {
			res = s.degraded(mode, fmt.Errorf("panic: %v", r), ExplainError)
		}
	}()
	if mode == RetrievalAugmented {
		return s.scoreRAG(ctx, q, answer)
	}
	return s.scoreDirect(ctx, q, answer)
}

func (s *Scorer) scoreDirect(ctx context.Context, q Question, answer string) Result {
	if s.sim == nil {
		return s.degraded(Direct, fmt.Errorf("similarity not configured"), "")
	}
	if err := s.sim.EnsureReady(ctx); err != nil {
		return s.degraded(Direct, fmt.Errorf("similarity not ready: %w", err), "")
	}
	score, err := s.sim.Similarity(ctx, answer, q.IdealAnswer)
	if err != nil {
		return s.degraded(Direct, err, "")
	}
	return Result{Score: Clamp01(score), Mode: Direct}
}

func (s *Scorer) scoreRAG(ctx context.Context, q Question, answer string) Result {
	if s.gen == nil || s.sim == nil {
		return s.degraded(RetrievalAugmented, fmt.Errorf("rag not configured"), ExplainUnavailable)
	}
	if err := s.gen.EnsureReady(ctx); err != nil {
		return s.degraded(RetrievalAugmented, fmt.Errorf("generator not ready: %w", err), ExplainUnavailable)
	}
	if err := s.sim.EnsureReady(ctx); err != nil {
		return s.degraded(RetrievalAugmented, fmt.Errorf("similarity not ready: %w", err), ExplainUnavailable)
	}

	ref, err := s.gen.GenerateReference(ctx, q.Text)
	if err != nil {
		return s.degraded(RetrievalAugmented, err, ExplainError)
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		s.log.WithField("question_id", q.ID).Warn("empty generated reference, comparing with question text")
		score, err := s.sim.Similarity(ctx, q.Text, answer)
		if err != nil {
			return s.degraded(RetrievalAugmented, err, ExplainError)
		}
		return Result{Score: Clamp01(score), Explanation: explain(ExplainFallback), Mode: RetrievalAugmented}
	}

	score, err := s.sim.Similarity(ctx, answer, ref)
	if err != nil {
		return s.degraded(RetrievalAugmented, err, ExplainError)
	}
	return Result{
		Score: Clamp01(score),
		Explanation: explain(fmt.Sprintf(
			"Reference answer generated from the knowledge base: %q. The candidate's answer was compared semantically with this reference.", ref)),
		Mode: RetrievalAugmented,
	}
}

func (s *Scorer) degraded(mode Mode, err error, explanation string) Result {
	s.log.WithError(err).WithField("analyzer", "relevance").Warn("relevance scoring degraded")
	res := Result{Score: 0, Mode: mode, Err: err}
	if mode == RetrievalAugmented && explanation != "" {
		res.Explanation = explain(explanation)
	}
	return res
}

func explain(s string) *string { return &s }
