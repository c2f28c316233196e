package clients

import (
	"context"
	"fmt"
)

// --- Embeddings (/embed) ---
type EmbedReq struct {
	Texts []string `json:"texts"`
}
type EmbedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type Embeddings struct {
	h     *HTTP
	url   string
	ready probe
}

func NewEmbeddings(h *HTTP, url string) *Embeddings { return &Embeddings{h: h, url: url} }

func (e *Embeddings) EnsureReady(ctx context.Context) error {
	return e.ready.ensure(ctx, e.h, "embedding", e.url)
}

func (e *Embeddings) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out EmbedResp
	if err := e.h.postJSON(ctx, "embedding", e.url+"/embed", EmbedReq{Texts: texts}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding: got %d vectors for %d texts", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

// --- Generation (/generate) ---
type GenerateReq struct {
	Prompt    string `json:"prompt"`
	MaxLength int    `json:"max_length"`
}
type GenerateResp struct {
	Text string `json:"text"`
}

type Generator struct {
	h     *HTTP
	url   string
	ready probe
}

func NewGenerator(h *HTTP, url string) *Generator { return &Generator{h: h, url: url} }

func (g *Generator) EnsureReady(ctx context.Context) error {
	return g.ready.ensure(ctx, g.h, "generation", g.url)
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	var out GenerateResp
	if err := g.h.postJSON(ctx, "generation", g.url+"/generate", GenerateReq{Prompt: prompt, MaxLength: 150}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}
