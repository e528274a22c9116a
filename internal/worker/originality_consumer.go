package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/originality"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/middleware"
)

// OriginalityConsumer scores queued thesis checks against the indexed corpus.
type OriginalityConsumer struct {
	checks   CheckSource
	scorer   Scorer
	failures FailureRecorder
	timeout  time.Duration
}

func NewOriginalityConsumer(checks CheckSource, s Scorer, f FailureRecorder, timeout time.Duration) *OriginalityConsumer {
	return &OriginalityConsumer{checks: checks, scorer: s, failures: f, timeout: timeout}
}

func (h *OriginalityConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task originality.CheckTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		slog.Error("poison pill: invalid json", "topic", config.TopicOriginalityCheck, "error", err)
		return nil
	}
	if task.CheckID == "" {
		slog.Error("poison pill: missing check_id", "topic", config.TopicOriginalityCheck)
		return nil
	}

	correlationID := task.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)
	ctx = middleware.WithCheckID(ctx, task.CheckID)
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	check, err := h.checks.Get(ctx, task.CheckID)
	if errors.Is(err, originality.ErrNotFound) {
		slog.WarnContext(ctx, "check deleted before scoring, dropping")
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load check", "error", err)
		return err
	}
	if check.Status == originality.StatusCompleted {
		slog.InfoContext(ctx, "check already scored, skipping")
		return nil
	}

	pages, err := h.checks.GetPages(ctx, task.CheckID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load check pages", "error", err)
		return err
	}

	res, err := h.scorer.Run(ctx, task.CheckID, pages, check.ScoreThreshold)
	if err != nil {
		slog.ErrorContext(ctx, "originality check failed", "error", err)
		recordFailure(ctx, h.failures, config.TopicOriginalityCheck, task.CheckID, m.Body, err)
		return nil
	}

	slog.InfoContext(ctx, "originality check completed",
		"originality_score", res.OriginalityScore,
		"level", res.Level,
		"flagged_chunks", res.FlaggedChunks,
	)
	return nil
}
