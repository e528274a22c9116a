package logger

import (
	"context"
	"log/slog"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/middleware"
)

// ContextHandler copies request and unit identifiers from the context onto every record.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if id, ok := ctx.Value(middleware.DocumentKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("document_id", id))
	}
	if id, ok := ctx.Value(middleware.CheckKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("check_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
