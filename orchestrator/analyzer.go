package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Andrandra1na/AMER-SMA/grammar"
	"github.com/Andrandra1na/AMER-SMA/media"
	"github.com/Andrandra1na/AMER-SMA/relevance"
	"github.com/Andrandra1na/AMER-SMA/store"
	"github.com/Andrandra1na/AMER-SMA/timeline"
	"github.com/Andrandra1na/AMER-SMA/vocal"
)

// questionInput is one window ready for analysis.
type questionInput struct {
	window   timeline.Window
	question store.Question
	text     string
	audio    media.Clip
}

// resultBuilder fills one AnswerAnalysis. Every sub-analysis either sets its
// fields or records the default plus a diagnostic; none stops the others.
type resultBuilder struct {
	rec   store.AnswerAnalysis
	diags *diagnostics
}

func (b *resultBuilder) degrade(analyzer string, err error) {
	d := b.diags.add(analyzer, fmt.Errorf("question %d: %w", b.rec.QuestionID, err))
	b.rec.Diagnostics = append(b.rec.Diagnostics, d)
}

// analyzeQuestion never fails. The caller guarantees in.text is not blank.
func (p *Pipeline) analyzeQuestion(ctx context.Context, runID string, in questionInput, ready readiness, diags *diagnostics) store.AnswerAnalysis {
	log := p.log.WithFields(logrus.Fields{"run_id": runID, "question_id": in.question.ID})
	b := &resultBuilder{
		rec: store.AnswerAnalysis{
			QuestionID:    in.question.ID,
			RunID:         runID,
			WindowStart:   in.window.Start,
			WindowEnd:     in.window.End,
			Transcription: in.text,
			GrammarErrors: []grammar.Issue{},
		},
		diags: diags,
	}

	b.vocal(ctx, p.an.Prosody, in, ready, p.cfg.Analysis.PauseThreshold)
	b.grammar(ctx, p.an.Grammar, in.text, ready)
	b.relevance(ctx, p.an.Relevance, in)

	log.WithFields(logrus.Fields{
		"relevance": b.rec.RelevanceScore,
		"grammar":   b.rec.GrammarScore,
		"wpm":       b.rec.Vocal.SpeechRate,
		"degraded":  len(b.rec.Diagnostics),
	}).Debug("question analyzed")
	return b.rec
}

func (b *resultBuilder) vocal(ctx context.Context, pr ProsodyExtractor, in questionInput, ready readiness, threshold float64) {
	// too short to measure: documented zero defaults, not a failure
	if in.audio.Duration() < 1 {
		return
	}
	if !ready.ok(AnalyzerProsody) || pr == nil {
		b.degrade(AnalyzerProsody, fmt.Errorf("%s unavailable", AnalyzerProsody))
		return
	}
	var prosody vocal.Prosody
	err := guard(func() (err error) {
		prosody, err = pr.Extract(ctx, in.audio)
		return err
	})
	if err != nil {
		b.degrade(AnalyzerProsody, err)
		return
	}
	b.rec.Vocal = vocal.Compute(prosody, in.audio.Duration(), in.text, threshold)
}

func (b *resultBuilder) grammar(ctx context.Context, gc GrammarChecker, text string, ready readiness) {
	if !ready.ok(AnalyzerGrammar) || gc == nil {
		b.rec.GrammarScore, b.rec.GrammarErrors = 0, []grammar.Issue{}
		b.degrade(AnalyzerGrammar, fmt.Errorf("%s unavailable", AnalyzerGrammar))
		return
	}
	var res grammar.Result
	err := guard(func() (err error) {
		res, err = gc.Check(ctx, text)
		return err
	})
	if err != nil {
		d := grammar.Degraded()
		b.rec.GrammarScore, b.rec.GrammarErrors = d.Score, d.Issues
		b.degrade(AnalyzerGrammar, err)
		return
	}
	b.rec.GrammarScore = res.Score
	b.diags.log.WithFields(logrus.Fields{"question_id": b.rec.QuestionID, "grammar_errors": res.ErrorCount()}).Debug("grammar checked")
	if res.Issues != nil {
		b.rec.GrammarErrors = res.Issues
	}
}

func (b *resultBuilder) relevance(ctx context.Context, rs RelevanceScorer, in questionInput) {
	if rs == nil {
		b.degrade(AnalyzerRelevance, fmt.Errorf("%s not configured", AnalyzerRelevance))
		return
	}
	q := relevance.Question{
		ID:          in.question.ID,
		Text:        in.question.Text,
		Category:    in.question.Category,
		IdealAnswer: in.question.IdealAnswer,
	}
	var res relevance.Result
	err := guard(func() error {
		res = rs.Score(ctx, q, in.text)
		return nil
	})
	if err != nil {
		res = relevance.Result{Err: err}
	}
	b.rec.RelevanceScore = res.Score
	b.rec.RelevanceMode = res.Mode.String()
	b.rec.RelevanceExplanation = res.Explanation
	if res.Err != nil {
		b.degrade(AnalyzerRelevance, res.Err)
	}
}

// answerText is the trimmed transcript of the utterances starting in w.
func answerText(utts []timeline.Utterance, w timeline.Window) string {
	return strings.TrimSpace(timeline.Join(timeline.Slice(utts, w)))
}
