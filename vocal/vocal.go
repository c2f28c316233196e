// Package vocal derives speech-rate, pause and fluency metrics from the
// speech spans detected in an audio clip.
package vocal

import (
	"math"
	"sort"
	"strings"
)

const (
	// DefaultPauseThreshold is the minimum silent gap counted as a pause.
	DefaultPauseThreshold = 0.5
	minClipSeconds        = 1.0
	minSpeechSeconds      = 0.5
	maxPenalty            = 25.0
)

// Span is a detected speech interval, in seconds relative to the clip.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Prosody is what the prosody extractor reports for one clip.
type Prosody struct {
	Speech    []Span  `json:"speech"`
	PitchMean float64 `json:"pitch_mean"`
	PitchStd  float64 `json:"pitch_std"`
}

type Features struct {
	SpeechRate       float64 `json:"speech_rate"` // words per minute of speech
	PauseCount       int     `json:"pause_count"`
	AvgPauseDuration float64 `json:"average_pause_duration"`
	PitchMean        float64 `json:"pitch_mean"`
	PitchStd         float64 `json:"pitch_std"`
	FluencyScore     float64 `json:"fluency_score"`
	SpeechSeconds    float64 `json:"speech_seconds"`
	// Voiced is false when the clip was too short or held too little speech;
	// every other field is then zero.
	Voiced bool `json:"voiced"`
}

// Compute applies the per-clip rules: metrics exist only when the clip lasts
// at least one second and holds at least half a second of speech.
func Compute(p Prosody, clipSeconds float64, transcript string, pauseThreshold float64) Features {
	if clipSeconds < minClipSeconds || len(p.Speech) == 0 {
		return Features{}
	}
	spans := append([]Span(nil), p.Speech...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	speech := 0.0
	for _, s := range spans {
		speech += math.Max(0, s.End-s.Start)
	}
	if speech < minSpeechSeconds {
		return Features{}
	}

	words := len(strings.Fields(transcript))
	rate := float64(words) / (speech / 60)

	var pauses []float64
	for i := 0; i+1 < len(spans); i++ {
		gap := spans[i+1].Start - spans[i].End
		if gap > pauseThreshold {
			pauses = append(pauses, gap)
		}
	}
	avgPause := mean(pauses)

	return Features{
		SpeechRate:       Round2(rate),
		PauseCount:       len(pauses),
		AvgPauseDuration: Round2(avgPause),
		PitchMean:        Round2(p.PitchMean),
		PitchStd:         Round2(p.PitchStd),
		FluencyScore:     Round2(Fluency(speech, clipSeconds, len(pauses), avgPause)),
		SpeechSeconds:    Round2(speech),
		Voiced:           true,
	}
}

// Fluency scores a clip on [0,100]: the speech ratio as a percentage minus
// two pause penalties, each capped at 25.
func Fluency(speechSeconds, totalSeconds float64, pauseCount int, avgPause float64) float64 {
	if totalSeconds <= 0 {
		return 0
	}
	ratio := math.Min(1, speechSeconds/totalSeconds) * 100
	countPenalty := math.Min(maxPenalty, float64(pauseCount)*1.5)
	durationPenalty := math.Min(maxPenalty, avgPause*5)
	return math.Max(0, ratio-countPenalty-durationPenalty)
}

func Round2(v float64) float64 { return math.Round(v*100) / 100 }

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
