package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/middleware"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/rag"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	reply, err := h.service.Send(ctx, req)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(ctx, "chat message failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": reply}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Stream answers over server-sent events: one sources event, token events,
// then done or error.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", ErrEmptyMessage.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(ctx, w, "INTERNAL_ERROR", "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(event string, data interface{}) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(data)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	reply, err := h.service.Stream(ctx, req, func(e rag.Event) error {
		switch e.Type {
		case rag.EventSources:
			return send("sources", map[string]interface{}{"sources": e.Sources})
		default:
			return send("token", map[string]string{"token": e.Token})
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "chat stream client disconnected")
			return
		}
		slog.ErrorContext(ctx, "chat stream failed", "error", err)
		_ = send("error", map[string]string{"message": "No se pudo generar la respuesta."})
		return
	}

	_ = send("done", map[string]interface{}{"conversation_id": reply.ConversationID, "no_answer": reply.NoAnswer})
}

func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	msgs, err := h.service.Conversation(ctx, r.PathValue("id"))
	if err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": msgs,
		"meta": map[string]int{"count": len(msgs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteConversation(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
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
