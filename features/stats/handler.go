package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/middleware"
)

type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type VectorStore interface {
	CountChunks(ctx context.Context) (int, error)
}

type Handler struct {
	documents   StatusCounter
	checks      StatusCounter
	jobRepo     JobRepo
	vectorStore VectorStore
}

func NewHandler(documents, checks StatusCounter, j JobRepo, v VectorStore) *Handler {
	return &Handler{documents: documents, checks: checks, jobRepo: j, vectorStore: v}
}

type StatsResponse struct {
	Documents     map[string]int `json:"documents"`
	ThesisChecks  map[string]int `json:"thesis_checks"`
	IndexedChunks int            `json:"indexed_chunks"`
	FailedJobs    int            `json:"failed_jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	docs, err := h.documents.CountByStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	checks, err := h.checks.CountByStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count thesis checks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count thesis checks", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	chunks, err := h.vectorStore.CountChunks(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents:     docs,
		ThesisChecks:  checks,
		IndexedChunks: chunks,
		FailedJobs:    jCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
