package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/category"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/settings"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/text"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/vector"
)

var ErrNoChunks = errors.New("document produced no chunks")

const (
	summaryTemperature = 0.1
	summaryNumCtx      = 2048

	// Terminal writes outlive the unit deadline by at most this long.
	cleanupTimeout = 10 * time.Second
)

type Generator interface {
	Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error)
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type ChunkIndex interface {
	StoreChunks(ctx context.Context, chunks []vector.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// DocumentStore records the progress of a document through the pipeline.
type DocumentStore interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, chunkCount int) error
	MarkFailed(ctx context.Context, id, message string) error
	SetCategory(ctx context.Context, id, categoryID string) error
	SetSummary(ctx context.Context, id, summary string) error
}

type CategoryStore interface {
	ListActive(ctx context.Context) ([]category.Category, error)
	RefreshDocumentCount(ctx context.Context, id string) error
}

type SettingsProvider interface {
	Get(ctx context.Context) (*settings.Settings, error)
}

type Options struct {
	AutoCategorize bool
	SummaryChunks  int
	MinChunkLength int
}

type Document struct {
	ID         string
	Title      string
	CategoryID string
}

type Pipeline struct {
	docs        DocumentStore
	categories  CategoryStore
	settings    SettingsProvider
	embedder    Embedder
	index       ChunkIndex
	gen         Generator
	categorizer *Categorizer
	opts        Options
}

func NewPipeline(docs DocumentStore, cats CategoryStore, s SettingsProvider, e Embedder, idx ChunkIndex, gen Generator, opts Options) *Pipeline {
	if opts.MinChunkLength <= 0 {
		opts.MinChunkLength = text.DefaultMinLength
	}
	return &Pipeline{
		docs:        docs,
		categories:  cats,
		settings:    s,
		embedder:    e,
		index:       idx,
		gen:         gen,
		categorizer: NewCategorizer(gen),
		opts:        opts,
	}
}

// Run ingests the extracted pages of one document and returns the number of
// content chunks stored. Any returned error has already been recorded on the
// document as a failed status.
func (p *Pipeline) Run(ctx context.Context, doc Document, pages []text.Page) (int, error) {
	ctx, span := otel.Tracer("ingest").Start(ctx, "Pipeline.Run")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", doc.ID))

	if err := p.docs.MarkProcessing(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("mark processing: %w", err)
	}

	count, err := p.run(ctx, &doc, pages)
	if err != nil {
		span.RecordError(err)
		wctx, cancel := cleanupContext(ctx)
		defer cancel()
		if markErr := p.docs.MarkFailed(wctx, doc.ID, err.Error()); markErr != nil {
			slog.ErrorContext(ctx, "failed to mark document failed", "error", markErr)
		}
		return 0, err
	}
	return count, nil
}

func (p *Pipeline) run(ctx context.Context, doc *Document, pages []text.Page) (int, error) {
	if doc.CategoryID == "" && p.opts.AutoCategorize {
		p.classify(ctx, doc, pages)
	}

	set, err := p.settings.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("load settings: %w", err)
	}

	chunks, err := text.NewSplitter(set.ChunkSize, set.ChunkOverlap).ChunkPages(pages, p.opts.MinChunkLength)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, ErrNoChunks
	}

	inputs := make([]string, len(chunks))
	for i, c := range chunks {
		inputs[i] = anchored(doc.Title, c.Content)
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, inputs)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	records := make([]vector.Chunk, len(chunks))
	for i, c := range chunks {
		records[i] = vector.Chunk{
			DocumentID: doc.ID,
			CategoryID: doc.CategoryID,
			Title:      doc.Title,
			Content:    c.Content,
			Kind:       vector.KindContent,
			Page:       c.Page,
			ChunkIndex: c.Index,
			Vector:     vectors[i],
		}
	}

	if err := p.index.DeleteByDocument(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("clear previous chunks: %w", err)
	}
	if err := p.index.StoreChunks(ctx, records); err != nil {
		p.dropChunks(ctx, doc.ID)
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	if err := p.docs.MarkCompleted(ctx, doc.ID, len(records)); err != nil {
		p.dropChunks(ctx, doc.ID)
		return 0, fmt.Errorf("mark completed: %w", err)
	}
	if doc.CategoryID != "" {
		if err := p.categories.RefreshDocumentCount(ctx, doc.CategoryID); err != nil {
			slog.WarnContext(ctx, "failed to refresh category count", "category_id", doc.CategoryID, "error", err)
		}
	}
	slog.InfoContext(ctx, "document processed", "title", doc.Title, "chunks", len(records))

	p.summarize(ctx, doc, chunks)
	return len(records), nil
}

// dropChunks removes whatever was indexed for a document that will end failed.
func (p *Pipeline) dropChunks(ctx context.Context, documentID string) {
	wctx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := p.index.DeleteByDocument(wctx, documentID); err != nil {
		slog.ErrorContext(ctx, "failed to remove indexed chunks", "error", err)
	}
}

// cleanupContext keeps the values of ctx but not its deadline, so a unit that
// timed out can still record its outcome.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

func (p *Pipeline) classify(ctx context.Context, doc *Document, pages []text.Page) {
	cats, err := p.categories.ListActive(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to list categories for auto categorization", "error", err)
		return
	}

	var sample strings.Builder
	for _, pg := range pages {
		sample.WriteString(pg.Content)
		sample.WriteString("\n")
		if sample.Len() >= categorizeSampleRunes*4 {
			break
		}
	}

	id := p.categorizer.Categorize(ctx, doc.Title, sample.String(), cats)
	if id == "" {
		return
	}
	if err := p.docs.SetCategory(ctx, doc.ID, id); err != nil {
		slog.WarnContext(ctx, "failed to save detected category", "error", err)
		return
	}
	doc.CategoryID = id
	slog.InfoContext(ctx, "document auto categorized", "category_id", id)
}

// summarize stores a short abstract of the document and indexes it as the
// document's summary chunk. Failures only degrade candidate selection.
func (p *Pipeline) summarize(ctx context.Context, doc *Document, chunks []text.PageChunk) {
	n := p.opts.SummaryChunks
	if n <= 0 {
		return
	}
	if n > len(chunks) {
		n = len(chunks)
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = chunks[i].Content
	}

	summary, err := p.gen.Generate(ctx, summaryPrompt(doc.Title, strings.Join(parts, "\n\n")), gemini.GenerateOptions{
		Temperature: summaryTemperature,
		NumCtx:      summaryNumCtx,
		System:      summarySystem,
	})
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		slog.WarnContext(ctx, "summary generation failed", "error", err)
		return
	}

	if err := p.docs.SetSummary(ctx, doc.ID, summary); err != nil {
		slog.WarnContext(ctx, "failed to save summary", "error", err)
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, []string{anchored(doc.Title, summary)})
	if err != nil {
		slog.WarnContext(ctx, "failed to embed summary", "error", err)
		return
	}
	err = p.index.StoreChunks(ctx, []vector.Chunk{{
		DocumentID: doc.ID,
		CategoryID: doc.CategoryID,
		Title:      doc.Title,
		Content:    summary,
		Kind:       vector.KindSummary,
		Page:       1,
		ChunkIndex: vector.SummaryChunkIndex,
		Vector:     vectors[0],
	}})
	if err != nil {
		slog.WarnContext(ctx, "failed to index summary chunk", "error", err)
	}
}

// anchored prefixes chunk text with the document title for embedding only.
func anchored(title, content string) string {
	return "[" + title + "]\n" + content
}
