// Package knowledge indexes the company knowledge base and produces grounded
// reference answers from it.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Andrandra1na/AMER-SMA/relevance"
	"github.com/Andrandra1na/AMER-SMA/store"
)

const DefaultTopK = 2

var ErrEmptyKnowledgeBase = errors.New("knowledge: no indexed chunks")

// ChunkStore persists embedded chunks.
type ChunkStore interface {
	ReplaceKnowledge(ctx context.Context, source string, chunks []store.KnowledgeChunk) error
	KnowledgeChunks(ctx context.Context) ([]store.KnowledgeChunk, error)
}

// TextGenerator completes a prompt.
type TextGenerator interface {
	EnsureReady(ctx context.Context) error
	Generate(ctx context.Context, prompt string) (string, error)
}

type Indexer struct {
	Embedder  relevance.Embedder
	Store     ChunkStore
	Size      int
	Overlap   int
	BatchSize int
	Log       logrus.FieldLogger
}

// Index splits text, embeds every chunk and replaces whatever was stored
// for source. It returns the number of chunks written.
func (ix *Indexer) Index(ctx context.Context, source, text string) (int, error) {
	pieces := Split(text, ix.Size, ix.Overlap)
	if len(pieces) == 0 {
		return 0, fmt.Errorf("knowledge source %s is empty", source)
	}
	if err := ix.Embedder.EnsureReady(ctx); err != nil {
		return 0, fmt.Errorf("embedder not ready: %w", err)
	}
	batch := ix.BatchSize
	if batch <= 0 {
		batch = 32
	}
	chunks := make([]store.KnowledgeChunk, 0, len(pieces))
	for from := 0; from < len(pieces); from += batch {
		to := min(from+batch, len(pieces))
		vecs, err := ix.Embedder.Embed(ctx, pieces[from:to])
		if err != nil {
			return 0, fmt.Errorf("embedding chunks %d-%d: %w", from, to, err)
		}
		if len(vecs) != to-from {
			return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), to-from)
		}
		for i, v := range vecs {
			chunks = append(chunks, store.KnowledgeChunk{
				Source:    source,
				Seq:       from + i,
				Text:      pieces[from+i],
				Embedding: v,
			})
		}
	}
	if err := ix.Store.ReplaceKnowledge(ctx, source, chunks); err != nil {
		return 0, fmt.Errorf("storing chunks: %w", err)
	}
	if ix.Log != nil {
		ix.Log.WithFields(logrus.Fields{"source": source, "chunks": len(chunks)}).Info("knowledge base indexed")
	}
	return len(chunks), nil
}

// Retriever ranks stored chunks by cosine similarity to a query.
type Retriever struct {
	Embedder relevance.Embedder
	Store    ChunkStore
}

func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	chunks, err := r.Store.KnowledgeChunks(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyKnowledgeBase
	}
	vecs, err := r.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for the query", len(vecs))
	}
	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		ranked = append(ranked, scored{c.Text, relevance.Cosine(vecs[0], c.Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if k <= 0 {
		k = DefaultTopK
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := range out {
		out[i] = ranked[i].text
	}
	return out, nil
}

// Grounded generates reference answers from retrieved context. It satisfies
// relevance.ReferenceGenerator.
type Grounded struct {
	Retriever *Retriever
	LLM       TextGenerator
	TopK      int
}

// EnsureReady requires a usable generator and a non-empty knowledge base.
func (g *Grounded) EnsureReady(ctx context.Context) error {
	if g.LLM == nil || g.Retriever == nil {
		return errors.New("knowledge: generator not configured")
	}
	if err := g.LLM.EnsureReady(ctx); err != nil {
		return err
	}
	if err := g.Retriever.Embedder.EnsureReady(ctx); err != nil {
		return err
	}
	chunks, err := g.Retriever.Store.KnowledgeChunks(ctx)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return ErrEmptyKnowledgeBase
	}
	return nil
}

func (g *Grounded) GenerateReference(ctx context.Context, question string) (string, error) {
	docs, err := g.Retriever.Retrieve(ctx, question, g.TopK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}
	out, err := g.LLM.Generate(ctx, Prompt(docs, question))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Prompt is the grounded-answer prompt: retrieved context, then the question.
func Prompt(docs []string, question string) string {
	var b strings.Builder
	b.WriteString("Context: ")
	b.WriteString(strings.Join(docs, "\n\n"))
	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nAnswer:")
	return b.String()
}
