package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel    = "gemini-2.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
)

// Gemini serves both reference generation and embeddings. The client is
// created lazily on first EnsureReady.
type Gemini struct {
	apiKey         string
	model          string
	embeddingModel string

	mu     sync.Mutex
	client *genai.Client
}

func NewGemini(apiKey, model, embeddingModel string) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	return &Gemini{apiKey: apiKey, model: model, embeddingModel: embeddingModel}
}

func (g *Gemini) EnsureReady(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return nil
	}
	if g.apiKey == "" {
		return errors.New("gemini: no api key configured")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: g.apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}
	g.client = c
	return nil
}

func (g *Gemini) get() (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil, errors.New("gemini client not initialized")
	}
	return g.client, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	c, err := g.get()
	if err != nil {
		return "", err
	}
	resp, err := c.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return cleanModelOutput(resp.Text()), nil
}

func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c, err := g.get()
	if err != nil {
		return nil, err
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}
	resp, err := c.Models.EmbedContent(ctx, g.embeddingModel, contents, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func cleanModelOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```text")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
