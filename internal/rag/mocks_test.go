package rag

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/retrieval"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/settings"
)

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts gemini.GenerateOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Stream(ctx context.Context, prompt string, opts gemini.GenerateOptions, onToken func(string) error) error {
	return m.Called(ctx, prompt, opts, onToken).Error(0)
}

type MockAssembler struct{ mock.Mock }

func (m *MockAssembler) Assemble(ctx context.Context, question string, p retrieval.Params) (retrieval.Context, error) {
	args := m.Called(ctx, question, p)
	return args.Get(0).(retrieval.Context), args.Error(1)
}

type staticSettings struct {
	s settings.Settings
}

func (s staticSettings) Get(ctx context.Context) (*settings.Settings, error) {
	c := s.s
	return &c, nil
}

func testSettings() settings.Settings {
	return settings.Settings{
		TopK: 5, ScoreThreshold: 0.3, Temperature: 0.3, NumCtx: 4096,
		CandidateMultiplier: 4, CandidateThresholdFactor: 0.7, MaxChunksPerDoc: 2,
		ChunkSize: 1000, ChunkOverlap: 200, EnableQueryExpansion: true,
	}
}

func withSystem(system string) interface{} {
	return mock.MatchedBy(func(o gemini.GenerateOptions) bool { return o.System == system })
}
