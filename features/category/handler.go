package category

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lib/pq"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cats, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list categories", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if cats == nil {
		cats = []Category{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": cats,
		"meta": map[string]int{"count": len(cats)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var c Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.service.Create(ctx, &c); err != nil {
		var pqErr *pq.Error
		switch {
		case errors.Is(err, ErrInvalidName):
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		case errors.As(err, &pqErr) && pqErr.Code == "23505":
			h.writeError(ctx, w, "CONFLICT", "Category already exists", http.StatusConflict)
		default:
			slog.ErrorContext(ctx, "failed to create category", "error", err)
			h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	slog.InfoContext(ctx, "category created", "id", c.ID, "slug", c.Slug)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": c}); err != nil {
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
