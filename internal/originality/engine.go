package originality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/settings"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/text"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/vector"
)

var ErrNoChunks = errors.New("submission produced no chunks")

const (
	maxSources      = 20
	pairTextRunes   = 400
	defaultTopK     = 3
	defaultFloor    = 0.35
	defaultLLMDocs  = 5
	defaultMinSimPc = 5.0

	failWriteTimeout = 10 * time.Second
)

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type Index interface {
	Search(ctx context.Context, vec []float32, p vector.SearchParams) ([]vector.Match, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error)
}

// CheckStore persists the status transitions of a check.
type CheckStore interface {
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, r *Result) error
	Fail(ctx context.Context, id, message string) error
}

type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Options struct {
	TopK                int
	NoiseFloor          float64
	MaxLLMDocs          int
	MinSimilarityForLLM float64
	MinChunkLength      int
}

type Engine struct {
	embedder Embedder
	index    Index
	gen      Generator
	checks   CheckStore
	settings SettingsProvider
	opts     Options
}

func NewEngine(e Embedder, idx Index, gen Generator, checks CheckStore, s SettingsProvider, opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.NoiseFloor <= 0 {
		opts.NoiseFloor = defaultFloor
	}
	if opts.MaxLLMDocs <= 0 {
		opts.MaxLLMDocs = defaultLLMDocs
	}
	if opts.MinSimilarityForLLM <= 0 {
		opts.MinSimilarityForLLM = defaultMinSimPc
	}
	if opts.MinChunkLength <= 0 {
		opts.MinChunkLength = text.DefaultMinLength
	}
	return &Engine{embedder: e, index: idx, gen: gen, checks: checks, settings: s, opts: opts}
}

// Run scores a submission against the indexed corpus. The check ends either
// completed with its result or failed with the error message.
func (e *Engine) Run(ctx context.Context, checkID string, pages []text.Page, threshold float64) (*Result, error) {
	ctx, span := otel.Tracer("originality").Start(ctx, "Engine.Run")
	defer span.End()
	span.SetAttributes(attribute.String("check.id", checkID))

	res, err := e.run(ctx, checkID, pages, threshold)
	if err != nil {
		span.RecordError(err)
		// The unit deadline may already have passed.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
		defer cancel()
		if failErr := e.checks.Fail(wctx, checkID, err.Error()); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark check failed", "error", failErr)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "originality check completed",
		"score", res.OriginalityScore, "level", res.Level,
		"chunks", res.TotalChunks, "flagged", res.FlaggedChunks)
	return res, nil
}

type sourceStats struct {
	title      string
	categoryID string
	scores     []float64
	pages      map[int]struct{}
	samples    *sampler
}

func (e *Engine) run(ctx context.Context, checkID string, pages []text.Page, threshold float64) (*Result, error) {
	if err := e.checks.MarkProcessing(ctx, checkID); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	set, err := e.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	// Probe chunks are never written to the index.
	chunks, err := text.NewSplitter(set.ChunkSize, set.ChunkOverlap).ChunkPages(pages, e.opts.MinChunkLength)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed probe chunks: %w", err)
	}

	stats := map[string]*sourceStats{}
	var order []string
	flagged := 0

	for i, c := range chunks {
		hits, err := e.index.Search(ctx, vectors[i], vector.SearchParams{
			TopK:      e.opts.TopK,
			Threshold: e.opts.NoiseFloor,
			Kind:      vector.KindContent,
		})
		if err != nil {
			return nil, fmt.Errorf("search chunk %d: %w", c.Index, err)
		}
		if len(hits) == 0 {
			continue
		}
		if hits[0].Score >= threshold {
			flagged++
		}

		for _, h := range hits {
			st, ok := stats[h.DocumentID]
			if !ok {
				st = &sourceStats{
					title:      h.Title,
					categoryID: h.CategoryID,
					pages:      map[int]struct{}{},
					samples:    newSampler(maxSamplePairs),
				}
				stats[h.DocumentID] = st
				order = append(order, h.DocumentID)
			}
			page := h.Page
			if page < 1 {
				page = 1
			}
			st.scores = append(st.scores, h.Score)
			st.pages[page] = struct{}{}
			st.samples.Offer(Pair{
				ProbeText:  clip(c.Content, pairTextRunes),
				SourceText: clip(h.Content, pairTextRunes),
				Score:      h.Score,
			})
		}
	}

	total := len(chunks)
	score := round(100-float64(flagged)/float64(total)*100, 2)
	res := &Result{
		OriginalityScore: score,
		Level:            GlobalLevel(100 - score),
		TotalChunks:      total,
		FlaggedChunks:    flagged,
		Summary: MatchSummary{
			TotalDocumentsMatched: len(stats),
			Documents:             summarize(stats, order, total),
		},
	}

	e.annotate(ctx, res.Summary.Documents, stats)

	if err := e.checks.Complete(ctx, checkID, res); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}
	return res, nil
}

func summarize(stats map[string]*sourceStats, order []string, total int) []SourceMatch {
	docs := make([]SourceMatch, 0, len(order))
	for _, id := range order {
		st := stats[id]
		maxScore, sum := 0.0, 0.0
		for _, s := range st.scores {
			sum += s
			if s > maxScore {
				maxScore = s
			}
		}
		pagesHit := make([]int, 0, len(st.pages))
		for p := range st.pages {
			pagesHit = append(pagesHit, p)
		}
		sort.Ints(pagesHit)

		maxScore = round(maxScore, 3)
		docs = append(docs, SourceMatch{
			DocumentID:    id,
			Title:         st.title,
			CategoryID:    st.categoryID,
			MaxScore:      maxScore,
			AvgScore:      round(sum/float64(len(st.scores)), 3),
			ChunkHits:     len(st.scores),
			SimilarityPct: round(float64(len(st.scores))/float64(total)*100, 2),
			PagesHit:      pagesHit,
			RiskLevel:     SourceLevel(maxScore),
			CommonThemes:  []string{},
			Technologies:  []string{},
			Methods:       []string{},
		})
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].SimilarityPct > docs[j].SimilarityPct })
	if len(docs) > maxSources {
		docs = docs[:maxSources]
	}
	return docs
}

// annotate fills the comparative analysis of the leading sources. A failed
// analysis leaves that source's fields empty.
func (e *Engine) annotate(ctx context.Context, docs []SourceMatch, stats map[string]*sourceStats) {
	for i := range docs {
		if i >= e.opts.MaxLLMDocs {
			return
		}
		d := &docs[i]
		if d.SimilarityPct < e.opts.MinSimilarityForLLM {
			continue
		}
		pairs := stats[d.DocumentID].samples.Top(analysisPairs)
		if len(pairs) == 0 {
			continue
		}
		a, err := analyze(ctx, e.gen, d.Title, pairs)
		if err != nil {
			slog.WarnContext(ctx, "comparative analysis failed", "document_id", d.DocumentID, "error", err)
			continue
		}
		d.apply(a)
	}
}

func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
