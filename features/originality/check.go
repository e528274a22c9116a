package originality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/middleware"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/text"
)

var (
	ErrNotFound     = errors.New("originality check not found")
	ErrInvalidCheck = errors.New("invalid originality check")
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Check is one originality analysis of a submitted thesis. Score fields are
// set once the check completes.
type Check struct {
	ID               string          `json:"id"`
	FileName         string          `json:"file_name"`
	Status           string          `json:"status"`
	Error            string          `json:"error_message,omitempty"`
	ScoreThreshold   float64         `json:"score_threshold"`
	OriginalityScore *float64        `json:"originality_score"`
	PlagiarismLevel  string          `json:"plagiarism_level,omitempty"`
	TotalChunks      int             `json:"total_chunks"`
	FlaggedChunks    int             `json:"flagged_chunks"`
	MatchesSummary   json.RawMessage `json:"matches_summary,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CheckTask is the queue payload asking a worker to run one check.
type CheckTask struct {
	CheckID       string `json:"check_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type Repository interface {
	Save(ctx context.Context, c *Check, pages []text.Page) error
	Get(ctx context.Context, id string) (*Check, error)
	List(ctx context.Context) ([]Check, error)
	Delete(ctx context.Context, id string) error
	GetPages(ctx context.Context, id string) ([]text.Page, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo             Repository
	pub              EventPublisher
	defaultThreshold float64
}

func NewService(repo Repository, pub EventPublisher, defaultThreshold float64) *Service {
	return &Service{repo: repo, pub: pub, defaultThreshold: defaultThreshold}
}

// Create stores a pending check for the extracted thesis and queues it.
// A nil threshold selects the configured default.
func (s *Service) Create(ctx context.Context, fileName string, pages []text.Page, threshold *float64) (*Check, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, fmt.Errorf("%w: file_name is required", ErrInvalidCheck)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no extracted text", ErrInvalidCheck)
	}

	t := s.defaultThreshold
	if threshold != nil {
		t = *threshold
	}
	if t <= 0 || t > 1 {
		return nil, fmt.Errorf("%w: score_threshold must be in (0, 1]", ErrInvalidCheck)
	}

	c := &Check{FileName: fileName, Status: StatusPending, ScoreThreshold: t}
	if err := s.repo.Save(ctx, c, pages); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(CheckTask{CheckID: c.ID, CorrelationID: middleware.GetCorrelationID(ctx)})
	if err != nil {
		return nil, err
	}
	if err := s.pub.Publish(config.TopicOriginalityCheck, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish originality task", "error", err, "check_id", c.ID)
		return nil, fmt.Errorf("publish originality task: %w", err)
	}
	slog.InfoContext(ctx, "published originality task", "check_id", c.ID)
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Check, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Check, error) {
	return s.repo.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) CountByStatus(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByStatus(ctx)
}
