package relevance

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type fakeSim struct {
	score    float64
	err      error
	readyErr error
	pairs    [][2]string
}

func (f *fakeSim) EnsureReady(context.Context) error { return f.readyErr }

func (f *fakeSim) Similarity(_ context.Context, a, b string) (float64, error) {
	f.pairs = append(f.pairs, [2]string{a, b})
	return f.score, f.err
}

type fakeGen struct {
	ref      string
	err      error
	readyErr error
	panics   bool
}

func (f *fakeGen) EnsureReady(context.Context) error { return f.readyErr }

func (f *fakeGen) GenerateReference(context.Context, string) (string, error) {
	if f.panics {
		panic("model crashed")
	}
	return f.ref, f.err
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var router = NewRouter([]string{"Motivation", "company  culture"})

func TestRouterModes(t *testing.T) {
	cases := map[string]Mode{
		"motivation":      RetrievalAugmented,
		" Company Culture": RetrievalAugmented,
		"technical":       Direct,
		"":                Direct,
	}
	for cat, want := range cases {
		if got := router.ModeFor(cat); got != want {
			t.Fatalf("ModeFor(%q)=%v want %v", cat, got, want)
		}
	}
}

func TestDirectMode(t *testing.T) {
	sim := &fakeSim{score: 0.834}
	s := NewScorer(sim, &fakeGen{}, router, quietLogger())
	res := s.Score(context.Background(), Question{ID: 1, Category: "technical", IdealAnswer: "ideal"}, "answer")
	if res.Score != 0.83 || res.Explanation != nil || res.Mode != Direct {
		t.Fatalf("unexpected result %+v", res)
	}
	if sim.pairs[0] != [2]string{"answer", "ideal"} {
		t.Fatalf("unexpected comparison %v", sim.pairs)
	}
}

func TestDirectModeClampsNegativeSimilarity(t *testing.T) {
	s := NewScorer(&fakeSim{score: -0.3}, nil, router, quietLogger())
	if res := s.Score(context.Background(), Question{IdealAnswer: "x"}, "y"); res.Score != 0 {
		t.Fatalf("expected clamp to 0, got %v", res.Score)
	}
}

func TestRAGModeUsesGeneratedReference(t *testing.T) {
	sim := &fakeSim{score: 0.7}
	s := NewScorer(sim, &fakeGen{ref: "  we value ownership  "}, router, quietLogger())
	res := s.Score(context.Background(), Question{Text: "Why us?", Category: "Motivation"}, "I like ownership")
	if res.Score != 0.7 || res.Explanation == nil || !strings.Contains(*res.Explanation, "we value ownership") {
		t.Fatalf("unexpected result %+v", res)
	}
	if sim.pairs[0] != [2]string{"I like ownership", "we value ownership"} {
		t.Fatalf("unexpected comparison %v", sim.pairs)
	}
}

func TestRAGModeFallsBackToQuestionText(t *testing.T) {
	sim := &fakeSim{score: 0.4}
	s := NewScorer(sim, &fakeGen{ref: "   "}, router, quietLogger())
	res := s.Score(context.Background(), Question{Text: "Why us?", Category: "motivation"}, "money")
	if res.Score != 0.4 || res.Explanation == nil || *res.Explanation != ExplainFallback {
		t.Fatalf("unexpected fallback result %+v", res)
	}
	if sim.pairs[0] != [2]string{"Why us?", "money"} {
		t.Fatalf("fallback should compare question text, got %v", sim.pairs)
	}
}

func TestRAGModeDegrades(t *testing.T) {
	cases := []struct {
		name string
		sim  *fakeSim
		gen  *fakeGen
		want string
	}{
		{"generator unavailable", &fakeSim{}, &fakeGen{readyErr: errors.New("no key")}, ExplainUnavailable},
		{"similarity unavailable", &fakeSim{readyErr: errors.New("down")}, &fakeGen{ref: "r"}, ExplainUnavailable},
		{"generator error", &fakeSim{}, &fakeGen{err: errors.New("quota")}, ExplainError},
		{"similarity error", &fakeSim{err: errors.New("timeout")}, &fakeGen{ref: "r"}, ExplainError},
		{"panic", &fakeSim{}, &fakeGen{panics: true}, ExplainError},
	}
	for _, tc := range cases {
		s := NewScorer(tc.sim, tc.gen, router, quietLogger())
		res := s.Score(context.Background(), Question{Text: "q", Category: "motivation"}, "a")
		if res.Score != 0 || res.Err == nil || res.Explanation == nil || *res.Explanation != tc.want {
			t.Fatalf("%s: unexpected result %+v", tc.name, res)
		}
	}
}

func TestDirectModeDegradesWithoutExplanation(t *testing.T) {
	s := NewScorer(&fakeSim{err: errors.New("down")}, nil, router, quietLogger())
	res := s.Score(context.Background(), Question{IdealAnswer: "x"}, "y")
	if res.Score != 0 || res.Explanation != nil || res.Err == nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

type fakeEmbedder struct{ vecs [][]float32 }

func (f fakeEmbedder) EnsureReady(context.Context) error { return nil }

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return f.vecs[:len(texts)], nil
}

func TestEmbeddingSimilarity(t *testing.T) {
	e := EmbeddingSimilarity{Embedder: fakeEmbedder{vecs: [][]float32{{1, 0}, {1, 1}}}}
	got, err := e.Similarity(context.Background(), "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0.71 {
		t.Fatalf("expected 0.71, got %v", got)
	}
	if got, _ := e.Similarity(context.Background(), "a", " "); got != 0 {
		t.Fatalf("expected 0 for blank text, got %v", got)
	}
	if Cosine([]float32{1, 0}, []float32{-1, 0}) != -1 {
		t.Fatal("expected raw cosine -1")
	}
	if Cosine([]float32{0, 0}, []float32{1, 0}) != 0 {
		t.Fatal("expected 0 for zero vector")
	}
}
