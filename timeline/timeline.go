// Package timeline turns the question event timeline of a recording into
// per-question time windows and slices the global transcript along them.
package timeline

import (
	"errors"
	"strings"
)

// DefaultMargin absorbs rounding of the last segment end.
const DefaultMargin = 0.1

var ErrEmptyTimeline = errors.New("timeline: no events")

// Event marks the moment the candidate started answering a question.
type Event struct {
	QuestionID int64   `json:"questionId"`
	Timestamp  float64 `json:"timestamp"` // sec
}

// Window is the [Start, End) span of the recording attributed to one question.
type Window struct {
	QuestionID int64   `json:"question_id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

func (w Window) Duration() float64 { return w.End - w.Start }

func (w Window) Contains(t float64) bool { return t >= w.Start && t < w.End }

// Utterance is one transcribed segment of the recording.
type Utterance struct {
	Start float64 `json:"start"` // sec
	End   float64 `json:"end"`   // sec
	Text  string  `json:"text"`
}

// Build returns one window per event, in event order. Window i ends where
// window i+1 starts; the last one ends at duration+margin. Events are
// expected in non-decreasing timestamp order; equal timestamps yield
// zero-length windows.
func Build(events []Event, duration, margin float64) ([]Window, error) {
	if len(events) == 0 {
		return nil, ErrEmptyTimeline
	}
	out := make([]Window, 0, len(events))
	for i, ev := range events {
		end := duration + margin
		if i+1 < len(events) {
			end = events[i+1].Timestamp
		}
		if end < ev.Timestamp {
			end = ev.Timestamp
		}
		out = append(out, Window{QuestionID: ev.QuestionID, Start: ev.Timestamp, End: end})
	}
	return out, nil
}

// Slice keeps the utterances whose start falls inside w.
func Slice(utts []Utterance, w Window) []Utterance {
	var out []Utterance
	for _, u := range utts {
		if w.Contains(u.Start) {
			out = append(out, u)
		}
	}
	return out
}

// Join concatenates trimmed utterance texts with single spaces.
func Join(utts []Utterance) string {
	parts := make([]string, 0, len(utts))
	for _, u := range utts {
		if t := strings.TrimSpace(u.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
