package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const publishTimeout = 5 * time.Second

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// ResetFunc puts the document or check a job refers to back to pending.
type ResetFunc func(ctx context.Context, referenceID string) error

type Service struct {
	repo    Repository
	pub     EventPublisher
	resets  map[string]ResetFunc
	timeout time.Duration
}

// NewService keys resets by topic. Topics without one are republished as is.
func NewService(repo Repository, pub EventPublisher, resets map[string]ResetFunc) *Service {
	return &Service{repo: repo, pub: pub, resets: resets, timeout: publishTimeout}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Job, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, f)
}

// Record saves a failed unit so it can be retried later.
func (s *Service) Record(ctx context.Context, topic, referenceID string, payload []byte, cause error) error {
	return s.repo.Save(ctx, &Job{ReferenceID: referenceID, Topic: topic, Payload: payload, Error: cause.Error()})
}

// Retry resets the referenced unit to pending, publishes the job's payload
// back to its topic and removes the job.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if reset, ok := s.resets[job.Topic]; ok {
		if err := reset(ctx, job.ReferenceID); err != nil {
			return fmt.Errorf("reset %s: %w", job.ReferenceID, err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- s.pub.Publish(job.Topic, job.Payload) }()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-time.After(s.timeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	slog.InfoContext(ctx, "failed job republished", "topic", job.Topic, "reference_id", job.ReferenceID, "retries", job.Retries)
	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
