package app

import (
	"context"
	"database/sql"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/vector"
)

type Database interface {
	PingContext(ctx context.Context) error
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type VectorStore interface {
	EnsureSchema(ctx context.Context) error
	StoreChunks(ctx context.Context, chunks []vector.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, vec []float32, p vector.SearchParams) ([]vector.Match, error)
	CountChunks(ctx context.Context) (int, error)
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}
