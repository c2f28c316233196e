// Package scoring turns the aggregated session metrics into the four
// normalized sub-scores and the weighted final score.
package scoring

import "math"

// SubScores are each on [0,100].
type SubScores struct {
	Relevance  float64 `json:"relevance"`
	Clarity    float64 `json:"clarity"`
	Fluency    float64 `json:"fluency"`
	Engagement float64 `json:"engagement"`
}

// EmotionGroups lists the classifier labels that raise and lower engagement.
type EmotionGroups struct {
	Positive []string
	Negative []string
}

var DefaultEmotionGroups = EmotionGroups{
	Positive: []string{"calm", "happy"},
	Negative: []string{"angry", "fearful"},
}

type Inputs struct {
	RelevanceScores []float64 // per question, [0,1]
	GrammarScores   []float64 // per question, [0,1]
	SessionFluency  float64   // [0,100]
	EmotionProbs    map[string]float64
}

func Compute(in Inputs, groups EmotionGroups) SubScores {
	return SubScores{
		Relevance:  clamp100(Mean(in.RelevanceScores) * 100),
		Clarity:    clamp100(Mean(in.GrammarScores) * 100),
		Fluency:    clamp100(in.SessionFluency),
		Engagement: Engagement(in.EmotionProbs, groups),
	}
}

// Engagement maps positive minus negative emotion mass from [-1,1] onto
// [0,100]. An empty distribution scores 50.
func Engagement(probs map[string]float64, groups EmotionGroups) float64 {
	raw := 0.0
	for _, l := range groups.Positive {
		raw += probs[l]
	}
	for _, l := range groups.Negative {
		raw -= probs[l]
	}
	return Normalize(raw, -1, 1)
}

// Normalize linearly rescales v from [lo,hi] to [0,100], clamped.
func Normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp100((v - lo) / (hi - lo) * 100)
}

// Final is the weighted sum of the sub-scores, rounded to two decimals.
func Final(s SubScores, w Weights) float64 {
	total := s.Relevance*w.Relevance/100 +
		s.Clarity*w.Clarity/100 +
		s.Fluency*w.Fluency/100 +
		s.Engagement*w.Engagement/100
	return Round2(total)
}

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func Round2(v float64) float64 { return math.Round(v*100) / 100 }

func clamp100(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
