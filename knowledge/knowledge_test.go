package knowledge

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Andrandra1na/AMER-SMA/store"
)

// keywordEmbedder maps text onto three axes: culture, salary, tech.
type keywordEmbedder struct{ calls int }

func (e *keywordEmbedder) EnsureReady(context.Context) error { return nil }
func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		t = strings.ToLower(t)
		out[i] = []float32{
			float32(strings.Count(t, "culture")) + 0.01,
			float32(strings.Count(t, "salary")),
			float32(strings.Count(t, "go")),
		}
	}
	return out, nil
}

type recordingLLM struct {
	prompt string
	reply  string
	err    error
}

func (l *recordingLLM) EnsureReady(context.Context) error { return nil }
func (l *recordingLLM) Generate(_ context.Context, prompt string) (string, error) {
	l.prompt = prompt
	return l.reply, l.err
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "kb.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSplitSizesAndOverlap(t *testing.T) {
	text := strings.Repeat("word ", 300) // 1500 runes
	pieces := Split(text, 500, 50)
	if len(pieces) < 3 {
		t.Fatalf("got %d pieces", len(pieces))
	}
	for i, p := range pieces {
		if n := len([]rune(p)); n > 500 {
			t.Fatalf("piece %d has %d runes", i, n)
		}
	}
	// consecutive pieces share text
	tail := pieces[0][len(pieces[0])-20:]
	if !strings.Contains(pieces[1], strings.TrimSpace(tail)) {
		t.Fatalf("no overlap between %q and %q", tail, pieces[1][:40])
	}
}

func TestSplitPrefersParagraphs(t *testing.T) {
	para := strings.Repeat("a", 300)
	pieces := Split(para+"\n\n"+para, 500, 0)
	if len(pieces) != 2 || pieces[0] != para || pieces[1] != para {
		t.Fatalf("pieces %q", pieces)
	}
	if got := Split("   ", 500, 50); len(got) != 0 {
		t.Fatalf("blank text gave %q", got)
	}
}

func TestIndexAndRetrieve(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	emb := &keywordEmbedder{}
	ix := &Indexer{Embedder: emb, Store: s, Size: 60, Overlap: 0, BatchSize: 2}

	doc := "Our culture values ownership and culture of feedback.\n\n" +
		"Salary bands are public and reviewed yearly.\n\n" +
		"We write Go services and go tooling."
	n, err := ix.Index(ctx, "handbook.txt", doc)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 3 {
		t.Fatalf("indexed %d chunks", n)
	}
	if emb.calls != 2 {
		t.Fatalf("embed calls = %d, want 2 batches", emb.calls)
	}

	r := &Retriever{Embedder: emb, Store: s}
	docs, err := r.Retrieve(ctx, "tell me about the culture", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) != 1 || !strings.Contains(docs[0], "culture values") {
		t.Fatalf("docs %q", docs)
	}

	// reindexing the same source replaces it
	if _, err := ix.Index(ctx, "handbook.txt", "Salary only."); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	chunks, err := s.KnowledgeChunks(ctx)
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks after reindex = %d", len(chunks))
	}
}

func TestGroundedReference(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	emb := &keywordEmbedder{}
	llm := &recordingLLM{reply: "  We value a culture of feedback.  "}
	g := &Grounded{Retriever: &Retriever{Embedder: emb, Store: s}, LLM: llm, TopK: 2}

	if err := g.EnsureReady(ctx); !errors.Is(err, ErrEmptyKnowledgeBase) {
		t.Fatalf("ready on empty kb: %v", err)
	}
	ix := &Indexer{Embedder: emb, Store: s, Size: 500, Overlap: 50}
	if _, err := ix.Index(ctx, "kb", "Our culture values feedback."); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := g.EnsureReady(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}

	ref, err := g.GenerateReference(ctx, "Why our culture?")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if ref != "We value a culture of feedback." {
		t.Fatalf("reference %q", ref)
	}
	want := "Context: Our culture values feedback.\nQuestion: Why our culture?\n\nAnswer:"
	if llm.prompt != want {
		t.Fatalf("prompt %q", llm.prompt)
	}
}

func TestGroundedGeneratorError(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	emb := &keywordEmbedder{}
	if _, err := (&Indexer{Embedder: emb, Store: s}).Index(ctx, "kb", "culture"); err != nil {
		t.Fatalf("index: %v", err)
	}
	g := &Grounded{Retriever: &Retriever{Embedder: emb, Store: s}, LLM: &recordingLLM{err: errors.New("quota")}}
	if _, err := g.GenerateReference(ctx, "q"); err == nil {
		t.Fatal("expected generator error")
	}
}
