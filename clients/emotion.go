package clients

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Andrandra1na/AMER-SMA/aggregate"
)

// --- Emotion (/detect) ---
type EmoScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
type EmoResp struct {
	Emotions        []EmoScore `json:"emotions"`
	DominantEmotion string     `json:"dominant_emotion"`
}

type Emotion struct {
	h     *HTTP
	url   string
	ready probe
}

func NewEmotion(h *HTTP, url string) *Emotion { return &Emotion{h: h, url: url} }

func (e *Emotion) EnsureReady(ctx context.Context) error {
	return e.ready.ensure(ctx, e.h, "emotion", e.url)
}

// Classify runs the speech-emotion model over the whole decoded recording.
func (e *Emotion) Classify(ctx context.Context, wavPath string) (aggregate.Emotion, error) {
	fd, err := os.Open(wavPath)
	if err != nil {
		return aggregate.Emotion{}, err
	}
	defer fd.Close()

	var out EmoResp
	if err := e.h.postFile(ctx, "emotion", e.url+"/detect", filepath.Base(wavPath), fd, nil, &out); err != nil {
		return aggregate.Emotion{}, err
	}
	res := aggregate.Emotion{Dominant: out.DominantEmotion, Scores: make(map[string]float64, len(out.Emotions))}
	best, argmax := -1.0, ""
	for _, s := range out.Emotions {
		res.Scores[s.Label] = s.Score
		if s.Score > best {
			best, argmax = s.Score, s.Label
		}
	}
	if res.Dominant == "" {
		res.Dominant = argmax
	}
	return res, nil
}
