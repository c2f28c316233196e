package clients

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Andrandra1na/AMER-SMA/timeline"
)

// --- ASR (/transcribe) ---
type TransSeg struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
type ASRResp struct {
	Segments []TransSeg `json:"segments"`
	Language string     `json:"language"`
}

type ASR struct {
	h     *HTTP
	url   string
	ready probe
}

func NewASR(h *HTTP, url string) *ASR { return &ASR{h: h, url: url} }

func (a *ASR) EnsureReady(ctx context.Context) error { return a.ready.ensure(ctx, a.h, "asr", a.url) }

// Transcribe uploads the decoded WAV and returns utterances in time order.
func (a *ASR) Transcribe(ctx context.Context, wavPath string) ([]timeline.Utterance, error) {
	fd, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	var out ASRResp
	if err := a.h.postFile(ctx, "asr", a.url+"/transcribe", filepath.Base(wavPath), fd, nil, &out); err != nil {
		return nil, err
	}
	utts := make([]timeline.Utterance, 0, len(out.Segments))
	for _, s := range out.Segments {
		utts = append(utts, timeline.Utterance{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
	}
	return utts, nil
}
