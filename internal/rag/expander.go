package rag

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/llmjson"
)

const (
	maxQueries           = 3
	expansionNumCtx      = 512
	expansionTemperature = 0
)

type Generator interface {
	Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error)
}

// QueryExpander asks the model for paraphrases of a question. It never fails:
// any problem yields the question alone.
type QueryExpander struct {
	gen Generator
}

func NewQueryExpander(gen Generator) *QueryExpander {
	return &QueryExpander{gen: gen}
}

// Expand returns the question followed by up to two distinct rewrites.
func (e *QueryExpander) Expand(ctx context.Context, question string, enabled bool) []string {
	if !enabled {
		return []string{question}
	}

	raw, err := e.gen.Generate(ctx, expansionPrompt(question), gemini.GenerateOptions{
		Temperature: expansionTemperature,
		NumCtx:      expansionNumCtx,
		System:      expansionSystem,
	})
	if err != nil {
		slog.WarnContext(ctx, "query expansion failed", "error", err)
		return []string{question}
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := llmjson.Decode(raw, &parsed); err != nil {
		slog.WarnContext(ctx, "query expansion unparseable", "error", err)
		return []string{question}
	}

	out := []string{question}
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(question)): true}
	for _, v := range parsed.Queries {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		if len(out) == maxQueries {
			break
		}
	}
	return out
}
