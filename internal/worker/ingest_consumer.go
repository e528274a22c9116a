package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/document"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/ingest"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/middleware"
)

// IngestConsumer turns queued documents into indexed chunks.
type IngestConsumer struct {
	docs     DocumentSource
	pipeline Ingester
	failures FailureRecorder
	timeout  time.Duration
}

func NewIngestConsumer(docs DocumentSource, p Ingester, f FailureRecorder, timeout time.Duration) *IngestConsumer {
	return &IngestConsumer{docs: docs, pipeline: p, failures: f, timeout: timeout}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task document.IngestTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		slog.Error("poison pill: invalid json", "topic", config.TopicDocumentIngest, "error", err)
		return nil
	}
	if task.DocumentID == "" {
		slog.Error("poison pill: missing document_id", "topic", config.TopicDocumentIngest)
		return nil
	}

	correlationID := task.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)
	ctx = middleware.WithDocumentID(ctx, task.DocumentID)
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	doc, err := h.docs.Get(ctx, task.DocumentID)
	if errors.Is(err, document.ErrNotFound) {
		slog.WarnContext(ctx, "document deleted before ingestion, dropping")
		return nil
	}
	if err != nil {
		// Transient lookup failures are left to NSQ redelivery.
		slog.ErrorContext(ctx, "failed to load document", "error", err)
		return err
	}
	if doc.Status == document.StatusCompleted {
		slog.InfoContext(ctx, "document already ingested, skipping")
		return nil
	}

	pages, err := h.docs.GetPages(ctx, task.DocumentID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load document pages", "error", err)
		return err
	}

	n, err := h.pipeline.Run(ctx, ingest.Document{ID: doc.ID, Title: doc.Title, CategoryID: doc.CategoryID}, pages)
	if err != nil {
		slog.ErrorContext(ctx, "document ingestion failed", "error", err)
		recordFailure(ctx, h.failures, config.TopicDocumentIngest, task.DocumentID, m.Body, err)
		return nil
	}

	slog.InfoContext(ctx, "document ingested", "chunks", n)
	return nil
}
