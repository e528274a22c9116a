package app

import (
	"context"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/vector"
)

// MockVectorStore is shared with the external app_test package.
type MockVectorStore struct {
	EnsureSchemaErr error
}

func (m *MockVectorStore) EnsureSchema(ctx context.Context) error { return m.EnsureSchemaErr }

func (m *MockVectorStore) StoreChunks(ctx context.Context, chunks []vector.Chunk) error { return nil }

func (m *MockVectorStore) DeleteByDocument(ctx context.Context, documentID string) error { return nil }

func (m *MockVectorStore) Search(ctx context.Context, vec []float32, p vector.SearchParams) ([]vector.Match, error) {
	return nil, nil
}

func (m *MockVectorStore) CountChunks(ctx context.Context) (int, error) { return 0, nil }
