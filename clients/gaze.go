package clients

import (
	"context"

	"github.com/Andrandra1na/AMER-SMA/aggregate"
)

// --- Gaze (/track) ---
type GazeReq struct {
	MediaPath string  `json:"media_path"`
	FPS       float64 `json:"fps"`
}
type GazeResp struct {
	Samples []aggregate.GazeSample `json:"samples"`
}

type Gaze struct {
	h     *HTTP
	url   string
	ready probe
}

func NewGaze(h *HTTP, url string) *Gaze { return &Gaze{h: h, url: url} }

func (g *Gaze) EnsureReady(ctx context.Context) error { return g.ready.ensure(ctx, g.h, "gaze", g.url) }

// Track asks the tracker to sample head direction from the source media at
// fps frames per second.
func (g *Gaze) Track(ctx context.Context, mediaPath string, fps float64) ([]aggregate.GazeSample, error) {
	var out GazeResp
	if err := g.h.postJSON(ctx, "gaze", g.url+"/track", GazeReq{MediaPath: mediaPath, FPS: fps}, &out); err != nil {
		return nil, err
	}
	return out.Samples, nil
}
