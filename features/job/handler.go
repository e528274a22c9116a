package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// List serves GET /jobs/failed, optionally narrowed by ?topic= and ?reference_id=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := Filter{
		Topic:       r.URL.Query().Get("topic"),
		ReferenceID: r.URL.Query().Get("reference_id"),
	}

	jobs, err := h.service.List(ctx, f)
	if err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}

	h.write(ctx, w, http.StatusOK, map[string]interface{}{
		"data": jobs,
		"meta": map[string]int{"count": len(jobs)},
	})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.service.Retry(ctx, id); err != nil {
		h.writeServiceError(ctx, w, err)
		return
	}

	h.write(ctx, w, http.StatusOK, map[string]interface{}{"data": map[string]string{"id": id, "status": "requeued"}})
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", "Job not found", http.StatusNotFound)
	case errors.Is(err, ErrUnknownTopic):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrPublishTimeout):
		h.writeError(ctx, w, "QUEUE_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	default:
		slog.ErrorContext(ctx, "failed job request failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) write(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.write(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
