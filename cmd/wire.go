package cmd

import (
	"github.com/Andrandra1na/AMER-SMA/clients"
	"github.com/Andrandra1na/AMER-SMA/knowledge"
	"github.com/Andrandra1na/AMER-SMA/media"
	"github.com/Andrandra1na/AMER-SMA/metrics"
	"github.com/Andrandra1na/AMER-SMA/orchestrator"
	"github.com/Andrandra1na/AMER-SMA/relevance"
	"github.com/Andrandra1na/AMER-SMA/store"
)

func openStore() (*store.Store, error) {
	st, err := store.Open(conf.Store.Path)
	if err != nil {
		return nil, err
	}
	log.WithField("path", conf.Store.Path).Debug("store opened")
	return st, nil
}

// backends picks the embedding and generation backends: Gemini when enabled,
// the local NLP services otherwise.
func backends(h *clients.HTTP) (relevance.Embedder, knowledge.TextGenerator) {
	if conf.Gemini.Enabled {
		g := clients.NewGemini(conf.Gemini.APIKey, conf.Gemini.Model, conf.Gemini.EmbeddingModel)
		return g, g
	}
	return clients.NewEmbeddings(h, conf.Services.Embedding.URL), clients.NewGenerator(h, conf.Services.Generation.URL)
}

func buildPipeline(st *store.Store, counters *metrics.Counters) *orchestrator.Pipeline {
	h := clients.NewHTTP(conf.JobTimeout())
	emb, gen := backends(h)

	grounded := &knowledge.Grounded{
		Retriever: &knowledge.Retriever{Embedder: emb, Store: st},
		LLM:       gen,
		TopK:      conf.Analysis.RAGTopK,
	}
	scorer := relevance.NewScorer(
		relevance.EmbeddingSimilarity{Embedder: emb},
		grounded,
		relevance.NewRouter(conf.Analysis.RAGCategories),
		log,
	)

	an := orchestrator.Analyzers{
		Transcriber: clients.NewASR(h, conf.Services.ASR.URL),
		Prosody:     clients.NewProsody(h, conf.Services.Prosody.URL),
		Grammar:     clients.NewLanguageTool(h, conf.Services.Grammar.URL, conf.Analysis.GrammarLanguage),
		Relevance:   scorer,
		Emotion:     clients.NewEmotion(h, conf.Services.Emotion.URL),
		Gaze:        clients.NewGaze(h, conf.Services.Gaze.URL),
	}
	dec := &media.Decoder{
		FFmpegBin:  conf.Media.FFmpegBin,
		WorkDir:    conf.Media.WorkDir,
		SampleRate: conf.Media.SampleRate,
	}
	return orchestrator.NewPipeline(conf, st, dec, an, counters, log)
}
