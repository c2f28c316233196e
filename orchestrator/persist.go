package orchestrator

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Andrandra1na/AMER-SMA/aggregate"
	"github.com/Andrandra1na/AMER-SMA/scoring"
	"github.com/Andrandra1na/AMER-SMA/store"
	"github.com/Andrandra1na/AMER-SMA/vocal"
)

// buildCommit aggregates the answers and global analyses into the metrics,
// scores and report of one run.
func (p *Pipeline) buildCommit(ctx context.Context, log logrus.FieldLogger, runID string, sess *store.Session,
	answers []store.AnswerAnalysis, fullText string, global vocal.Features,
	emo aggregate.Emotion, gaze aggregate.GazeResult, diags []Diagnostic) store.RunCommit {

	qv := make([]aggregate.QuestionVocal, 0, len(answers))
	rel := make([]float64, 0, len(answers))
	gram := make([]float64, 0, len(answers))
	for _, a := range answers {
		qv = append(qv, aggregate.QuestionVocal{
			QuestionID:       a.QuestionID,
			SpeechRate:       a.Vocal.SpeechRate,
			PauseCount:       a.Vocal.PauseCount,
			AvgPauseDuration: a.Vocal.AvgPauseDuration,
		})
		rel = append(rel, a.RelevanceScore)
		gram = append(gram, a.GrammarScore)
	}
	metrics := aggregate.Session(qv, global, emo, gaze)

	profile, weights := p.weights(ctx, log, sess.WeightProfile)
	subs := scoring.Compute(scoring.Inputs{
		RelevanceScores: rel,
		GrammarScores:   gram,
		SessionFluency:  global.FluencyScore,
		EmotionProbs:    metrics.EmotionScores,
	}, p.emotionGroups())
	final := scoring.Final(subs, weights)

	relAvg, gramAvg := scoring.Mean(rel), scoring.Mean(gram)
	report := store.Report{
		SessionID:         sess.ID,
		RunID:             runID,
		FullTranscription: fullText,
		RelevanceAvg:      scoring.Round2(relAvg),
		GrammarAvg:        scoring.Round2(gramAvg),
		SubScores:         subs,
		FinalScore:        final,
		WeightProfile:     profile,
		Weights:           weights,
		CommunicationProfile: scoring.Interpret(scoring.Signals{
			RelevanceAvg:    relAvg,
			GrammarAvg:      gramAvg,
			SpeechRate:      metrics.SpeechRate,
			PauseCount:      metrics.PauseCount,
			DominantEmotion: metrics.DominantEmotion,
		}),
		Diagnostics: diags,
		CreatedAt:   p.now(),
	}

	log.WithFields(logrus.Fields{
		"profile":    profile,
		"relevance":  subs.Relevance,
		"clarity":    subs.Clarity,
		"fluency":    subs.Fluency,
		"engagement": subs.Engagement,
	}).Debug("session scored")

	return store.RunCommit{
		SessionID: sess.ID,
		RunID:     runID,
		Answers:   answers,
		Metrics:   metrics,
		Report:    report,
	}
}

// weights resolves the session's profile. A missing or malformed profile is
// replaced by the configured default rather than failing the run.
func (p *Pipeline) weights(ctx context.Context, log logrus.FieldLogger, name string) (string, scoring.Weights) {
	def, err := scoring.WeightsFromMap(p.cfg.Scoring.DefaultProfile, scoring.DefaultWeights)
	if err != nil {
		log.WithError(err).Warn("configured default profile is malformed")
		def = scoring.DefaultWeights
	}
	if name == "" || name == scoring.DefaultProfileName {
		return scoring.DefaultProfileName, def
	}
	wp, err := p.store.WeightProfile(ctx, name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.WithError(err).Warn("loading weight profile")
		} else {
			log.WithField("profile", name).Warn("weight profile not found, using default")
		}
		return scoring.DefaultProfileName, def
	}
	w, ok := scoring.ResolveWeights(wp.WeightsJSON, def)
	if !ok {
		log.WithField("profile", name).Warn("weight profile malformed, using default")
		return scoring.DefaultProfileName, def
	}
	return wp.Name, w
}

func (p *Pipeline) emotionGroups() scoring.EmotionGroups {
	a := p.cfg.Analysis
	if len(a.PositiveEmotions) == 0 && len(a.NegativeEmotions) == 0 {
		return scoring.DefaultEmotionGroups
	}
	return scoring.EmotionGroups{Positive: a.PositiveEmotions, Negative: a.NegativeEmotions}
}
