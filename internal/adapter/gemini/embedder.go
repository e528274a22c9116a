package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
)

var (
	ErrAPIKeyMissing     = errors.New("gemini api key not configured")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyEmbedding    = errors.New("empty embedding received")
	ErrClientClosed      = errors.New("gemini client closed")
)

type EmbedderConfig struct {
	APIKey      string
	Model       string
	Dimension   int
	BatchSize   int
	Concurrency int
	Options     []option.ClientOption
}

// Embedder turns text into vectors. The underlying client is created on first
// use and shared by every caller afterwards.
type Embedder struct {
	cfg EmbedderConfig

	newClient func(ctx context.Context, opts ...option.ClientOption) (*genai.Client, error)
	once      sync.Once
	client    *genai.Client
	initErr   error
}

func NewEmbedder(cfg EmbedderConfig) *Embedder {
	if cfg.Model == "" {
		cfg.Model = "gemini-embedding-001"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Embedder{cfg: cfg, newClient: genai.NewClient}
}

func (e *Embedder) getClient() (*genai.Client, error) {
	e.once.Do(func() {
		if e.cfg.APIKey == "" {
			e.initErr = ErrAPIKeyMissing
			return
		}
		opts := append(slices.Clone(e.cfg.Options), option.WithAPIKey(e.cfg.APIKey))
		e.client, e.initErr = e.newClient(context.Background(), opts...)
		if e.initErr == nil {
			slog.Info("embedding client ready", "model", e.cfg.Model, "dimension", e.cfg.Dimension)
		}
	})
	return e.client, e.initErr
}

// EmbedQuery embeds a single search query.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	em := client.EmbeddingModel(e.cfg.Model)
	em.TaskType = genai.TaskTypeRetrievalQuery
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		slog.ErrorContext(ctx, "query embedding failed", "error", err)
		return nil, err
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if err := e.checkDimension(res.Embedding.Values); err != nil {
		return nil, err
	}
	return res.Embedding.Values, nil
}

// EmbedDocuments embeds texts in batches. Batches run concurrently and the
// result keeps the input order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(texts))
		g.Go(func() error {
			return e.embedBatch(gctx, client, texts[start:end], out[start:end])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, client *genai.Client, texts []string, dst [][]float32) error {
	em := client.EmbeddingModel(e.cfg.Model)
	em.TaskType = genai.TaskTypeRetrievalDocument

	b := em.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}

	slog.DebugContext(ctx, "embedding batch", "model", e.cfg.Model, "size", len(texts))
	res, err := em.BatchEmbedContents(ctx, b)
	if err != nil {
		slog.ErrorContext(ctx, "batch embedding failed", "error", err)
		return err
	}
	if len(res.Embeddings) != len(texts) {
		return fmt.Errorf("batch returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return ErrEmptyEmbedding
		}
		if err := e.checkDimension(emb.Values); err != nil {
			return err
		}
		dst[i] = emb.Values
	}
	return nil
}

func (e *Embedder) checkDimension(v []float32) error {
	if e.cfg.Dimension > 0 && len(v) != e.cfg.Dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), e.cfg.Dimension)
	}
	return nil
}

// Close releases the client. An embedder closed before first use never
// creates one.
func (e *Embedder) Close() error {
	e.once.Do(func() { e.initErr = ErrClientClosed })
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
