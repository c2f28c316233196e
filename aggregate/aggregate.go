// Package aggregate folds per-question results and whole-recording analyses
// into session-level metrics.
package aggregate

import (
	"github.com/Andrandra1na/AMER-SMA/vocal"
)

// QuestionVocal is the per-window vocal input to aggregation.
type QuestionVocal struct {
	QuestionID       int64
	SpeechRate       float64
	PauseCount       int
	AvgPauseDuration float64
}

type VocalSummary struct {
	SpeechRate       float64 `json:"speech_rate"`
	PauseCount       int     `json:"pause_count"`
	AvgPauseDuration float64 `json:"average_pause_duration"`
}

// Vocal averages speech rate over questions that produced one, sums pauses and
// weights the mean pause duration by each question's pause count.
func Vocal(qs []QuestionVocal) VocalSummary {
	var (
		rateSum   float64
		rateN     int
		pauses    int
		pauseTime float64
	)
	for _, q := range qs {
		if q.SpeechRate > 0 {
			rateSum += q.SpeechRate
			rateN++
		}
		if q.PauseCount > 0 {
			pauses += q.PauseCount
			pauseTime += q.AvgPauseDuration * float64(q.PauseCount)
		}
	}
	var s VocalSummary
	if rateN > 0 {
		s.SpeechRate = rateSum / float64(rateN)
	}
	s.PauseCount = pauses
	if pauses > 0 {
		s.AvgPauseDuration = pauseTime / float64(pauses)
	}
	return s
}

// Emotion is the classifier output over the full recording.
type Emotion struct {
	Dominant string             `json:"dominant_emotion"`
	Scores   map[string]float64 `json:"scores"`
}

const EmotionUnavailable = "unavailable"

// SessionMetrics is recomputed from scratch on every run.
type SessionMetrics struct {
	SpeechRate       float64                `json:"speech_rate"`
	PauseCount       int                    `json:"pause_count"`
	AvgPauseDuration float64                `json:"average_pause_duration"`
	PitchMean        float64                `json:"pitch_mean"`
	PitchStd         float64                `json:"pitch_std"`
	FluencyScore     float64                `json:"fluency_score"`
	DominantEmotion  string                 `json:"dominant_emotion"`
	EmotionScores    map[string]float64     `json:"emotion_scores"`
	GazeGlobal       Distribution           `json:"gaze_global_distribution"`
	GazeByQuestion   map[int64]Distribution `json:"gaze_by_question"`
}

// Session assembles the session metrics. Pitch and fluency come from the
// whole-recording vocal pass, not from the windows.
func Session(qs []QuestionVocal, global vocal.Features, emo Emotion, gaze GazeResult) SessionMetrics {
	v := Vocal(qs)
	m := SessionMetrics{
		SpeechRate:       vocal.Round2(v.SpeechRate),
		PauseCount:       v.PauseCount,
		AvgPauseDuration: vocal.Round2(v.AvgPauseDuration),
		PitchMean:        global.PitchMean,
		PitchStd:         global.PitchStd,
		FluencyScore:     global.FluencyScore,
		DominantEmotion:  emo.Dominant,
		EmotionScores:    emo.Scores,
		GazeGlobal:       gaze.Global,
		GazeByQuestion:   gaze.ByQuestion,
	}
	if m.DominantEmotion == "" {
		m.DominantEmotion = EmotionUnavailable
	}
	if m.EmotionScores == nil {
		m.EmotionScores = map[string]float64{}
	}
	return m
}
