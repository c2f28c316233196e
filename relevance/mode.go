package relevance

import "strings"

// Mode selects how an answer is compared.
type Mode int

const (
	// Direct compares the answer with the stored ideal answer.
	Direct Mode = iota
	// RetrievalAugmented compares it with a reference generated from the
	// knowledge base.
	RetrievalAugmented
)

func (m Mode) String() string {
	switch m {
	case RetrievalAugmented:
		return "retrieval_augmented"
	default:
		return "direct"
	}
}

// Router is the static category to mode lookup.
type Router struct {
	rag map[string]struct{}
}

func NewRouter(ragCategories []string) Router {
	r := Router{rag: make(map[string]struct{}, len(ragCategories))}
	for _, c := range ragCategories {
		r.rag[normalizeCategory(c)] = struct{}{}
	}
	return r
}

func (r Router) ModeFor(category string) Mode {
	if _, ok := r.rag[normalizeCategory(category)]; ok {
		return RetrievalAugmented
	}
	return Direct
}

func normalizeCategory(c string) string {
	return strings.Join(strings.Fields(strings.ToLower(c)), " ")
}
