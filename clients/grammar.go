package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Andrandra1na/AMER-SMA/grammar"
)

// --- Grammar (LanguageTool /v2/check) ---
type ltReplacement struct {
	Value string `json:"value"`
}
type ltContext struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}
type ltMatch struct {
	Message      string          `json:"message"`
	Offset       int             `json:"offset"`
	Length       int             `json:"length"`
	Replacements []ltReplacement `json:"replacements"`
	Context      ltContext       `json:"context"`
}
type LTResp struct {
	Matches []ltMatch `json:"matches"`
}

type LanguageTool struct {
	h        *HTTP
	url      string
	language string
	ready    probe
}

func NewLanguageTool(h *HTTP, baseURL, language string) *LanguageTool {
	return &LanguageTool{h: h, url: baseURL, language: language}
}

// EnsureReady asks for the language list; LanguageTool has no /health.
func (l *LanguageTool) EnsureReady(ctx context.Context) error {
	l.ready.mu.Lock()
	defer l.ready.mu.Unlock()
	if l.ready.ok {
		return nil
	}
	if strings.TrimSpace(l.url) == "" {
		return fmt.Errorf("grammar: no url configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url+"/v2/languages", nil)
	if err != nil {
		return err
	}
	resp, err := l.h.c.Do(req)
	if err != nil {
		return fmt.Errorf("grammar health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("grammar health %s", resp.Status)
	}
	l.ready.ok = true
	return nil
}

func (l *LanguageTool) Check(ctx context.Context, text string) (grammar.Result, error) {
	if strings.TrimSpace(text) == "" {
		return grammar.Degraded(), nil
	}
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", l.language)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url+"/v2/check", strings.NewReader(form.Encode()))
	if err != nil {
		return grammar.Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out LTResp
	if err := l.h.do(req, "grammar", &out); err != nil {
		return grammar.Result{}, err
	}
	issues := make([]grammar.Issue, 0, len(out.Matches))
	for _, m := range out.Matches {
		corr := grammar.NoCorrection
		if len(m.Replacements) > 0 {
			corr = m.Replacements[0].Value
		}
		issues = append(issues, grammar.Issue{
			Message:    m.Message,
			Correction: corr,
			Context:    m.Context.Text,
			Offset:     m.Offset,
			Length:     m.Length,
		})
	}
	return grammar.FromIssues(issues), nil
}
