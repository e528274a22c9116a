package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the retrieval and generation parameters that can be changed
// while the service runs.
type Settings struct {
	ID                       int     `json:"-"`
	ChunkSize                int     `json:"chunk_size"`
	ChunkOverlap             int     `json:"chunk_overlap"`
	TopK                     int     `json:"top_k"`
	ScoreThreshold           float64 `json:"score_threshold"`
	Temperature              float64 `json:"temperature"`
	NumCtx                   int     `json:"num_ctx"`
	CandidateMultiplier      int     `json:"candidate_multiplier"`
	CandidateThresholdFactor float64 `json:"candidate_threshold_factor"`
	MaxChunksPerDoc          int     `json:"max_chunks_per_doc"`
	EnableReflection         bool    `json:"enable_reflection"`
	EnableQueryExpansion     bool    `json:"enable_query_expansion"`
}

func FromDefaults(d config.RAGDefaults) Settings {
	return Settings{
		ID:                       1,
		ChunkSize:                d.ChunkSize,
		ChunkOverlap:             d.ChunkOverlap,
		TopK:                     d.TopK,
		ScoreThreshold:           d.ScoreThreshold,
		Temperature:              d.Temperature,
		NumCtx:                   d.NumCtx,
		CandidateMultiplier:      d.CandidateMultiplier,
		CandidateThresholdFactor: d.CandidateThresholdFactor,
		MaxChunksPerDoc:          d.MaxChunksPerDoc,
		EnableReflection:         d.EnableReflection,
		EnableQueryExpansion:     d.EnableQueryExpansion,
	}
}

func (s *Settings) Validate() error {
	positive := map[string]int{
		"chunk_size":           s.ChunkSize,
		"top_k":                s.TopK,
		"num_ctx":              s.NumCtx,
		"candidate_multiplier": s.CandidateMultiplier,
		"max_chunks_per_doc":   s.MaxChunksPerDoc,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be a positive integer", ErrInvalidSettings, name)
		}
	}
	if s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be between 0 and chunk_size", ErrInvalidSettings)
	}

	unit := map[string]float64{
		"score_threshold":            s.ScoreThreshold,
		"temperature":                s.Temperature,
		"candidate_threshold_factor": s.CandidateThresholdFactor,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be between 0 and 1", ErrInvalidSettings, name)
		}
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
	Seed(ctx context.Context, s *Settings) error
}

type Service struct {
	repo     Repository
	defaults Settings
}

func NewService(repo Repository, defaults Settings) *Service {
	return &Service{repo: repo, defaults: defaults}
}

// Get returns the stored settings, or the defaults when the row cannot be read.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	set, err := s.repo.Get(ctx)
	if err != nil {
		slog.WarnContext(ctx, "settings unavailable, using defaults", "error", err)
		d := s.defaults
		return &d, nil
	}
	return set, nil
}

func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.repo.Update(ctx, set)
}

// Seed writes the defaults unless a row already exists.
func (s *Service) Seed(ctx context.Context) error {
	d := s.defaults
	return s.repo.Seed(ctx, &d)
}
