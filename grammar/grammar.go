// Package grammar holds the grammar-check result shape and its scoring rule.
package grammar

import "math"

// Issue is one finding reported by the checker.
type Issue struct {
	Message    string `json:"message"`
	Correction string `json:"correction"`
	Context    string `json:"context"`
	Offset     int    `json:"offset"`
	Length     int    `json:"length"`
}

const NoCorrection = "N/A"

type Result struct {
	Score  float64 `json:"grammar_score"`
	Issues []Issue `json:"errors"`
}

func (r Result) ErrorCount() int { return len(r.Issues) }

// Score is max(0, 100-5n)/100 rounded to two decimals.
func Score(errorCount int) float64 {
	s := math.Max(0, float64(100-5*errorCount)) / 100
	return math.Round(math.Min(1, s)*100) / 100
}

// FromIssues builds a result, scoring it by issue count.
func FromIssues(issues []Issue) Result {
	if issues == nil {
		issues = []Issue{}
	}
	return Result{Score: Score(len(issues)), Issues: issues}
}

// Degraded is the documented default when the checker is unavailable.
func Degraded() Result { return Result{Score: 0, Issues: []Issue{}} }
