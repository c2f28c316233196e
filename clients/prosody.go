package clients

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Andrandra1na/AMER-SMA/media"
	"github.com/Andrandra1na/AMER-SMA/vocal"
)

// --- Prosody (/prosody) ---
type ProsodyResp struct {
	SpeechTimestamps []vocal.Span `json:"speech_timestamps"`
	PitchMean        float64      `json:"pitch_mean"`
	PitchStd         float64      `json:"pitch_std"`
}

type Prosody struct {
	h     *HTTP
	url   string
	ready probe
}

func NewProsody(h *HTTP, url string) *Prosody { return &Prosody{h: h, url: url} }

func (p *Prosody) EnsureReady(ctx context.Context) error {
	return p.ready.ensure(ctx, p.h, "prosody", p.url)
}

// Extract sends the clip as a WAV file; span times come back clip-relative.
func (p *Prosody) Extract(ctx context.Context, clip media.Clip) (vocal.Prosody, error) {
	wav, err := media.WAVBytes(clip)
	if err != nil {
		return vocal.Prosody{}, err
	}
	fields := map[string]string{"sample_rate": fmt.Sprint(clip.SampleRate)}
	var out ProsodyResp
	if err := p.h.postFile(ctx, "prosody", p.url+"/prosody", "clip.wav", bytes.NewReader(wav), fields, &out); err != nil {
		return vocal.Prosody{}, err
	}
	return vocal.Prosody{Speech: out.SpeechTimestamps, PitchMean: out.PitchMean, PitchStd: out.PitchStd}, nil
}
