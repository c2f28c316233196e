package aggregate

import (
	"math"
	"strings"

	"github.com/Andrandra1na/AMER-SMA/timeline"
)

// Gaze behaviors, derived from the tracker's head direction. The candidate's
// own camera preview sits to the left, the question text to the right.
const (
	BehaviorSelfView    = "self_view"
	BehaviorEyeContact  = "eye_contact"
	BehaviorReading     = "reading"
	BehaviorDistraction = "distraction"
	BehaviorUnknown     = "unknown"
)

// GazeSample is one tracker observation at a fixed cadence.
type GazeSample struct {
	Timestamp float64 `json:"timestamp"`
	Direction string  `json:"direction"`
}

// Distribution maps behavior to percentage of samples, two decimals.
type Distribution map[string]float64

type GazeResult struct {
	Global     Distribution
	ByQuestion map[int64]Distribution
}

func Behavior(direction string) string {
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "left":
		return BehaviorSelfView
	case "center":
		return BehaviorEyeContact
	case "right":
		return BehaviorReading
	case "off_frame", "off-frame", "none":
		return BehaviorDistraction
	}
	return BehaviorUnknown
}

// Gaze computes the global and per-window behavior breakdowns. A window with
// no samples reports 100% distraction.
func Gaze(samples []GazeSample, windows []timeline.Window) GazeResult {
	res := GazeResult{
		Global:     distribution(samples, func(GazeSample) bool { return true }),
		ByQuestion: make(map[int64]Distribution, len(windows)),
	}
	for _, w := range windows {
		d := distribution(samples, func(s GazeSample) bool { return w.Contains(s.Timestamp) })
		if len(d) == 0 {
			d = Distribution{BehaviorDistraction: 100}
		}
		res.ByQuestion[w.QuestionID] = d
	}
	return res
}

// FallbackGaze is used when the tracker failed: no global breakdown and every
// window marked as distraction.
func FallbackGaze(windows []timeline.Window) GazeResult {
	return Gaze(nil, windows)
}

func distribution(samples []GazeSample, keep func(GazeSample) bool) Distribution {
	counts := map[string]int{}
	total := 0
	for _, s := range samples {
		if !keep(s) {
			continue
		}
		counts[Behavior(s.Direction)]++
		total++
	}
	d := make(Distribution, len(counts))
	for b, n := range counts {
		d[b] = math.Round(float64(n)/float64(total)*100*100) / 100
	}
	return d
}
