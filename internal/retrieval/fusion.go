package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/middleware"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/vector"
)

const (
	keyPrefixRunes = 60
	previewRunes   = 150
	blockSeparator = "\n\n---\n\n"
)

var ErrAllQueriesFailed = errors.New("retrieval failed for every query variant")

// Source is one cited (document, page) pair.
type Source struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Page       int     `json:"page"`
	Preview    string  `json:"preview"`
	Score      float64 `json:"score"`
}

// Context is the evidence handed to the generator. An empty Text means
// nothing relevant was found.
type Context struct {
	Text    string
	Sources []Source
	Hits    []vector.Match
}

func (c Context) Empty() bool { return c.Text == "" }

type Expander interface {
	Expand(ctx context.Context, question string, enabled bool) []string
}

type Searcher interface {
	Retrieve(ctx context.Context, query string, p Params) ([]vector.Match, error)
}

type Assembler struct {
	expander Expander
	searcher Searcher
	logger   *QueryLogger
	tracer   trace.Tracer
}

func NewAssembler(e Expander, s Searcher, l *QueryLogger) *Assembler {
	return &Assembler{expander: e, searcher: s, logger: l, tracer: otel.Tracer("retrieval")}
}

// Assemble retrieves evidence for every variant of question and fuses it.
// A variant whose retrieval fails is skipped; only when all of them fail is
// an error returned.
func (a *Assembler) Assemble(ctx context.Context, question string, p Params) (Context, error) {
	ctx, span := a.tracer.Start(ctx, "retrieval.assemble")
	defer span.End()
	start := time.Now()

	queries := a.expander.Expand(ctx, question, p.ExpandQuery)

	var results [][]vector.Match
	var lastErr error
	for _, q := range queries {
		hits, err := a.searcher.Retrieve(ctx, q, p)
		if err != nil {
			slog.WarnContext(ctx, "retrieval failed for query variant", "query", q, "error", err)
			lastErr = err
			continue
		}
		results = append(results, hits)
	}
	if len(results) == 0 && lastErr != nil {
		return Context{}, fmt.Errorf("%w: %v", ErrAllQueriesFailed, lastErr)
	}

	hits := Fuse(results, p.TopK)
	text, sources := Render(hits)
	span.SetAttributes(attribute.Int("retrieval.variants", len(queries)), attribute.Int("retrieval.fused_hits", len(hits)))

	if a.logger != nil {
		entry := QueryLogEntry{
			Query:         question,
			Variants:      len(queries),
			CategoryID:    p.CategoryID,
			NumResults:    len(hits),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		}
		if len(hits) > 0 {
			entry.TopScore = hits[0].Score
		}
		a.logger.Log(entry)
	}

	return Context{Text: text, Sources: sources, Hits: hits}, nil
}

type fusionKey struct {
	documentID string
	page       int
	prefix     string
}

// Fuse merges per-variant results. Hits sharing document, page and content
// prefix collapse into the highest scoring one. The merged list is sorted by
// score and cut to topK.
func Fuse(results [][]vector.Match, topK int) []vector.Match {
	best := make(map[fusionKey]vector.Match)
	var order []fusionKey
	for _, hits := range results {
		for _, h := range hits {
			k := fusionKey{documentID: h.DocumentID, page: h.Page, prefix: truncateRunes(h.Content, keyPrefixRunes)}
			prev, ok := best[k]
			if !ok {
				order = append(order, k)
			}
			if !ok || h.Score > prev.Score {
				best[k] = h
			}
		}
	}

	merged := make([]vector.Match, 0, len(order))
	for _, k := range order {
		merged = append(merged, best[k])
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// Render builds the context block and one source per distinct document page.
func Render(hits []vector.Match) (string, []Source) {
	if len(hits) == 0 {
		return "", []Source{}
	}

	type sourceKey struct {
		documentID string
		page       int
	}
	seen := make(map[sourceKey]bool)
	blocks := make([]string, 0, len(hits))
	sources := []Source{}

	for _, h := range hits {
		blocks = append(blocks, fmt.Sprintf("[Documento: %s, Pagina: %d]\n%s", h.Title, h.Page, h.Content))

		k := sourceKey{h.DocumentID, h.Page}
		if seen[k] {
			continue
		}
		seen[k] = true
		sources = append(sources, Source{
			DocumentID: h.DocumentID,
			Title:      h.Title,
			Page:       h.Page,
			Preview:    preview(h.Content),
			Score:      math.Round(h.Score*1000) / 1000,
		})
	}
	return strings.Join(blocks, blockSeparator), sources
}

func preview(content string) string {
	if r := []rune(content); len(r) > previewRunes {
		return string(r[:previewRunes]) + "..."
	}
	return content
}

func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
