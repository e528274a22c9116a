package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/category"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/llmjson"
)

const (
	categorizeSampleRunes = 2000
	categorizeNumCtx      = 1024
)

// Categorizer picks one of the active categories for a document. It returns
// an empty id whenever the model is unavailable, unparseable or names a
// category that is not in the list.
type Categorizer struct {
	gen Generator
}

func NewCategorizer(gen Generator) *Categorizer {
	return &Categorizer{gen: gen}
}

func (c *Categorizer) Categorize(ctx context.Context, title, sample string, cats []category.Category) string {
	if len(cats) == 0 {
		return ""
	}

	raw, err := c.gen.Generate(ctx, categorizePrompt(title, truncate(sample, categorizeSampleRunes), cats), gemini.GenerateOptions{
		Temperature: 0,
		NumCtx:      categorizeNumCtx,
		System:      categorizeSystem,
	})
	if err != nil {
		slog.WarnContext(ctx, "auto categorization failed", "error", err)
		return ""
	}

	var parsed struct {
		CategoryID string `json:"category_id"`
	}
	if err := llmjson.Decode(raw, &parsed); err != nil {
		slog.WarnContext(ctx, "auto categorization unparseable", "error", err)
		return ""
	}

	id := strings.TrimSpace(parsed.CategoryID)
	for _, cat := range cats {
		if cat.ID == id {
			return id
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
