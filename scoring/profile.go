package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	KeyRelevance  = "relevance"
	KeyClarity    = "clarity"
	KeyFluency    = "fluency"
	KeyEngagement = "engagement"

	DefaultProfileName = "default"
)

var ErrMalformedProfile = errors.New("scoring: malformed weight profile")

// Weights are percentages; they are divided by 100 when applied.
type Weights struct {
	Relevance  float64 `json:"relevance" yaml:"relevance"`
	Clarity    float64 `json:"clarity" yaml:"clarity"`
	Fluency    float64 `json:"fluency" yaml:"fluency"`
	Engagement float64 `json:"engagement" yaml:"engagement"`
}

var DefaultWeights = Weights{Relevance: 40, Clarity: 30, Fluency: 15, Engagement: 15}

func (w Weights) Sum() float64 { return w.Relevance + w.Clarity + w.Fluency + w.Engagement }

// WeightsFromMap builds Weights from a percentage map. Keys absent from m are
// taken from def. Unknown keys, negative values and an all-zero result make
// the map malformed.
func WeightsFromMap(m map[string]float64, def Weights) (Weights, error) {
	w := def
	for k, v := range m {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return def, fmt.Errorf("%w: %s=%v", ErrMalformedProfile, k, v)
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case KeyRelevance:
			w.Relevance = v
		case KeyClarity:
			w.Clarity = v
		case KeyFluency:
			w.Fluency = v
		case KeyEngagement:
			w.Engagement = v
		default:
			return def, fmt.Errorf("%w: unknown key %q", ErrMalformedProfile, k)
		}
	}
	if w.Sum() <= 0 {
		return def, fmt.Errorf("%w: weights sum to zero", ErrMalformedProfile)
	}
	return w, nil
}

// ResolveWeights decodes the stored JSON form of a profile's weights. An
// empty or malformed document yields def and false.
func ResolveWeights(raw string, def Weights) (Weights, bool) {
	if strings.TrimSpace(raw) == "" {
		return def, false
	}
	var m map[string]float64
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return def, false
	}
	w, err := WeightsFromMap(m, def)
	if err != nil {
		return def, false
	}
	return w, true
}

// Profile is an admin-edited, named weight set as it appears on disk.
type Profile struct {
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description" json:"description"`
	Weights     map[string]float64 `yaml:"weights" json:"weights"`
}

// ParseProfile reads one YAML profile document.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrMalformedProfile, err)
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Profile{}, fmt.Errorf("%w: missing name", ErrMalformedProfile)
	}
	if len(p.Weights) == 0 {
		return Profile{}, fmt.Errorf("%w: %s has no weights", ErrMalformedProfile, p.Name)
	}
	if _, err := WeightsFromMap(p.Weights, Weights{}); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return p, nil
}

// SumWarning is the loose admin-side check: it reports, but does not reject,
// a profile whose percentages do not add up to 100.
func (p Profile) SumWarning() string {
	sum := 0.0
	keys := make([]string, 0, len(p.Weights))
	for k, v := range p.Weights {
		sum += v
		keys = append(keys, k)
	}
	if math.Abs(sum-100) < 0.01 {
		return ""
	}
	sort.Strings(keys)
	return fmt.Sprintf("weights %s sum to %.2f, not 100", strings.Join(keys, "/"), sum)
}

// JSON is the storage form of the profile weights.
func (p Profile) JSON() (string, error) {
	b, err := json.Marshal(p.Weights)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
