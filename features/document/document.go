package document

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
	ErrNotFound        = errors.New("document not found")
	ErrInvalidDocument = errors.New("invalid document")
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CategoryID string    `json:"category_id,omitempty"`
	Status     string    `json:"processing_status"`
	Error      string    `json:"processing_error,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IngestTask is the queue payload asking a worker to ingest one document.
type IngestTask struct {
	DocumentID    string `json:"document_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type Repository interface {
	Save(ctx context.Context, d *Document, pages []text.Page) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	Delete(ctx context.Context, id string) error
	GetPages(ctx context.Context, id string) ([]text.Page, error)
	ResetForReprocess(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type ChunkRemover interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

type CategoryCounter interface {
	RefreshDocumentCount(ctx context.Context, id string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo       Repository
	pub        EventPublisher
	chunks     ChunkRemover
	categories CategoryCounter
}

func NewService(repo Repository, pub EventPublisher, chunks ChunkRemover, categories CategoryCounter) *Service {
	return &Service{repo: repo, pub: pub, chunks: chunks, categories: categories}
}

// Create stores a document with its extracted pages and queues it for ingestion.
func (s *Service) Create(ctx context.Context, d *Document, pages []text.Page) error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDocument)
	}
	if !hasText(pages) {
		return fmt.Errorf("%w: no extracted text", ErrInvalidDocument)
	}

	d.Status = StatusPending
	if err := s.repo.Save(ctx, d, pages); err != nil {
		return err
	}
	return s.enqueue(ctx, d.ID)
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

func (s *Service) Pages(ctx context.Context, id string) ([]text.Page, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetPages(ctx, id)
}

// Delete removes the document's chunks from the index before the row itself.
func (s *Service) Delete(ctx context.Context, id string) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.refreshCount(ctx, d.CategoryID)
	return nil
}

// Reprocess drops the indexed chunks, resets the document to pending and
// queues it again from its stored pages.
func (s *Service) Reprocess(ctx context.Context, id string) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.repo.ResetForReprocess(ctx, id); err != nil {
		return err
	}
	// A pending document no longer counts towards its category.
	if d.Status == StatusCompleted {
		s.refreshCount(ctx, d.CategoryID)
	}
	return s.enqueue(ctx, id)
}

func (s *Service) refreshCount(ctx context.Context, categoryID string) {
	if categoryID == "" {
		return
	}
	if err := s.categories.RefreshDocumentCount(ctx, categoryID); err != nil {
		slog.WarnContext(ctx, "failed to refresh category count", "category_id", categoryID, "error", err)
	}
}

func (s *Service) CountByStatus(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *Service) enqueue(ctx context.Context, id string) error {
	payload, err := json.Marshal(IngestTask{DocumentID: id, CorrelationID: middleware.GetCorrelationID(ctx)})
	if err != nil {
		return err
	}
	if err := s.pub.Publish(config.TopicDocumentIngest, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish ingestion task", "error", err, "document_id", id)
		return fmt.Errorf("publish ingestion task: %w", err)
	}
	slog.InfoContext(ctx, "published ingestion task", "document_id", id)
	return nil
}

func hasText(pages []text.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Content) != "" {
			return true
		}
	}
	return false
}
