package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/document"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/originality"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/ingest"
	engine "github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/originality"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/text"
)

type MockDocuments struct{ mock.Mock }

func (m *MockDocuments) Get(ctx context.Context, id string) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocuments) GetPages(ctx context.Context, id string) ([]text.Page, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]text.Page), args.Error(1)
}

type MockChecks struct{ mock.Mock }

func (m *MockChecks) Get(ctx context.Context, id string) (*originality.Check, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*originality.Check), args.Error(1)
}

func (m *MockChecks) GetPages(ctx context.Context, id string) ([]text.Page, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]text.Page), args.Error(1)
}

type MockIngester struct{ mock.Mock }

func (m *MockIngester) Run(ctx context.Context, doc ingest.Document, pages []text.Page) (int, error) {
	args := m.Called(ctx, doc, pages)
	return args.Int(0), args.Error(1)
}

type MockScorer struct{ mock.Mock }

func (m *MockScorer) Run(ctx context.Context, checkID string, pages []text.Page, threshold float64) (*engine.Result, error) {
	args := m.Called(ctx, checkID, pages, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.Result), args.Error(1)
}

type MockFailures struct{ mock.Mock }

func (m *MockFailures) Record(ctx context.Context, topic, referenceID string, payload []byte, cause error) error {
	args := m.Called(ctx, topic, referenceID, payload, cause)
	return args.Error(0)
}
