package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/vector"
)

const (
	summaryThresholdFactor = 0.6
	summaryKFactor         = 3
	summaryKCap            = 15
	candidateKCap          = 40
	thresholdFloor         = 0.20
)

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Index interface {
	Search(ctx context.Context, vec []float32, p vector.SearchParams) ([]vector.Match, error)
}

// Params controls one retrieval. Zero CategoryID searches every category.
type Params struct {
	TopK                     int
	Threshold                float64
	CandidateMultiplier      int
	CandidateThresholdFactor float64
	MaxChunksPerDoc          int
	CategoryID               string
	ExpandQuery              bool
}

type Retriever struct {
	embedder Embedder
	index    Index
	tracer   trace.Tracer
}

func NewRetriever(e Embedder, idx Index) *Retriever {
	return &Retriever{embedder: e, index: idx, tracer: otel.Tracer("retrieval")}
}

// Retrieve finds candidate documents through their summaries, then searches
// content chunks inside those documents. When the restricted search finds
// nothing it searches the whole corpus. The result holds at most
// MaxChunksPerDoc hits per document.
func (r *Retriever) Retrieve(ctx context.Context, query string, p Params) ([]vector.Match, error) {
	ctx, span := r.tracer.Start(ctx, "retrieval.retrieve")
	defer span.End()

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	summaries, err := r.index.Search(ctx, vec, vector.SearchParams{
		TopK:       min(p.TopK*summaryKFactor, summaryKCap),
		Threshold:  max(p.Threshold*summaryThresholdFactor, thresholdFloor),
		Kind:       vector.KindSummary,
		CategoryID: p.CategoryID,
	})
	if err != nil {
		return nil, fmt.Errorf("summary search: %w", err)
	}
	candidates := documentIDs(summaries)

	fine := vector.SearchParams{
		TopK:        min(p.TopK*p.CandidateMultiplier, candidateKCap),
		Threshold:   max(p.Threshold*p.CandidateThresholdFactor, thresholdFloor),
		Kind:        vector.KindContent,
		CategoryID:  p.CategoryID,
		DocumentIDs: candidates,
	}
	hits, err := r.index.Search(ctx, vec, fine)
	if err != nil {
		return nil, fmt.Errorf("content search: %w", err)
	}

	if len(hits) == 0 && len(candidates) > 0 {
		slog.DebugContext(ctx, "no content hits in candidate documents, searching all", "candidates", len(candidates))
		fine.DocumentIDs = nil
		hits, err = r.index.Search(ctx, vec, fine)
		if err != nil {
			return nil, fmt.Errorf("fallback search: %w", err)
		}
	}

	out := Diversify(hits, p.TopK, p.MaxChunksPerDoc)
	span.SetAttributes(
		attribute.Int("retrieval.candidate_documents", len(candidates)),
		attribute.Int("retrieval.raw_hits", len(hits)),
		attribute.Int("retrieval.hits", len(out)),
	)
	return out, nil
}

// Diversify walks hits in score order and keeps at most perDoc hits from each
// document, stopping once topK hits are kept. hits must already be sorted by
// descending score.
func Diversify(hits []vector.Match, topK, perDoc int) []vector.Match {
	counts := make(map[string]int)
	var out []vector.Match
	for _, h := range hits {
		if len(out) >= topK {
			break
		}
		if counts[h.DocumentID] >= perDoc {
			continue
		}
		counts[h.DocumentID]++
		out = append(out, h)
	}
	return out
}

func documentIDs(matches []vector.Match) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range matches {
		if seen[m.DocumentID] {
			continue
		}
		seen[m.DocumentID] = true
		ids = append(ids, m.DocumentID)
	}
	return ids
}
