package ingest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/category"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/settings"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/vector"
)

type MockDocs struct{ mock.Mock }

func (m *MockDocs) MarkProcessing(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDocs) MarkCompleted(ctx context.Context, id string, n int) error {
	return m.Called(ctx, id, n).Error(0)
}

func (m *MockDocs) MarkFailed(ctx context.Context, id, msg string) error {
	return m.Called(ctx, id, msg).Error(0)
}

func (m *MockDocs) SetCategory(ctx context.Context, id, categoryID string) error {
	return m.Called(ctx, id, categoryID).Error(0)
}

func (m *MockDocs) SetSummary(ctx context.Context, id, summary string) error {
	return m.Called(ctx, id, summary).Error(0)
}

type MockCategories struct{ mock.Mock }

func (m *MockCategories) ListActive(ctx context.Context) ([]category.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]category.Category), args.Error(1)
}

func (m *MockCategories) RefreshDocumentCount(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockIndex struct{ mock.Mock }

func (m *MockIndex) StoreChunks(ctx context.Context, chunks []vector.Chunk) error {
	return m.Called(ctx, chunks).Error(0)
}

func (m *MockIndex) DeleteByDocument(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

type staticSettings struct{}

func (staticSettings) Get(ctx context.Context) (*settings.Settings, error) {
	return &settings.Settings{ChunkSize: 1000, ChunkOverlap: 200}, nil
}

func withSystem(system string) interface{} {
	return mock.MatchedBy(func(o gemini.GenerateOptions) bool { return o.System == system })
}
